package main

import (
	"context"
	"fmt"
	"os"

	"assessment-backend/infrastructure/config"
	"assessment-backend/infrastructure/di"

	"github.com/spf13/cobra"
)

var (
	configFile string
	days       int

	// record flags
	subcomponent    string
	overallScore    int
	dimensions      map[string]int
	strengths       []string
	weaknesses      []string
	recommendations []string
	sessionID       string
	actorID         string

	reconcileAll bool

	rootCmd = &cobra.Command{
		Use:          "assessctl",
		Short:        "Operate the assessment score store",
		SilenceUsage: true,
		Long: `assessctl records analyses and reads block aggregates against the
configured storage backend. Use it with the dynamodb or postgres backend;
the memory backend does not outlive a single command.`,
	}

	recordCmd = &cobra.Command{
		Use:   "record",
		Short: "Record an analysis result and reconcile its block",
		Args:  cobra.NoArgs,
		RunE:  runRecord,
	}

	reconcileCmd = &cobra.Command{
		Use:   "reconcile [block]",
		Short: "Recompute a block aggregate, or every block with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runReconcile,
	}

	blocksCmd = &cobra.Command{
		Use:   "blocks",
		Short: "List cached block aggregates",
		Args:  cobra.NoArgs,
		RunE:  runBlocks,
	}

	aggregateCmd = &cobra.Command{
		Use:   "aggregate <block>",
		Short: "Compute a block aggregate without touching the cache",
		Args:  cobra.ExactArgs(1),
		RunE:  runAggregate,
	}

	latestCmd = &cobra.Command{
		Use:   "latest <subcomponent>",
		Short: "Show the latest analysis of a subcomponent",
		Args:  cobra.ExactArgs(1),
		RunE:  runLatest,
	}

	changesCmd = &cobra.Command{
		Use:   "changes <block|subcomponent>",
		Short: "Show recent score changes of a block or subcomponent",
		Args:  cobra.ExactArgs(1),
		RunE:  runChanges,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")

	recordCmd.Flags().StringVar(&subcomponent, "sub", "", "subcomponent id, e.g. 3-2")
	recordCmd.Flags().IntVar(&overallScore, "score", 0, "overall score 0-100")
	recordCmd.Flags().StringToIntVar(&dimensions, "dim", nil, "dimension score as name=score, repeatable")
	recordCmd.Flags().StringArrayVar(&strengths, "strength", nil, "strength note, repeatable")
	recordCmd.Flags().StringArrayVar(&weaknesses, "weakness", nil, "weakness note, repeatable")
	recordCmd.Flags().StringArrayVar(&recommendations, "recommendation", nil, "recommendation, repeatable")
	recordCmd.Flags().StringVar(&sessionID, "session", "", "analysis session id")
	recordCmd.Flags().StringVar(&actorID, "actor", "", "actor the analysis is attributed to")
	_ = recordCmd.MarkFlagRequired("sub")
	_ = recordCmd.MarkFlagRequired("score")

	reconcileCmd.Flags().BoolVar(&reconcileAll, "all", false, "reconcile every block")
	changesCmd.Flags().IntVar(&days, "days", 0, "window in days (default from config)")

	rootCmd.AddCommand(recordCmd, reconcileCmd, blocksCmd, aggregateCmd, latestCmd, changesCmd, migrateCmd)
}

// withContainer builds the dependency graph for one command run
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *di.Container) error) error {
	return buildContainer(cmd, false, fn)
}

func withServingContainer(cmd *cobra.Command, fn func(ctx context.Context, c *di.Container) error) error {
	return buildContainer(cmd, true, fn)
}

func buildContainer(cmd *cobra.Command, serving bool, fn func(ctx context.Context, c *di.Container) error) error {
	if configFile != "" {
		if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
			return err
		}
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !serving {
		cfg.EnableMetrics = false
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer cleanup()
	defer container.Logger.Sync()

	if err := fn(ctx, container); err != nil {
		return err
	}
	// serve flushes from RunBackground
	if !serving && container.CloudWatch != nil {
		return container.CloudWatch.Flush(ctx)
	}
	return nil
}
