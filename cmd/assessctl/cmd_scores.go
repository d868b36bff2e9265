package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"assessment-backend/application/commands"
	"assessment-backend/application/commands/handlers"
	"assessment-backend/application/queries"
	querybus "assessment-backend/application/queries/bus"
	"assessment-backend/application/services"
	"assessment-backend/domain/core/entities"
	"assessment-backend/domain/core/valueobjects"
	"assessment-backend/infrastructure/di"
	"assessment-backend/pkg/utils"

	"github.com/spf13/cobra"
)

func runRecord(cmd *cobra.Command, args []string) error {
	input := entities.ScoreEventInput{
		SubcomponentID:  subcomponent,
		OverallScore:    overallScore,
		DimensionScores: dimensions,
		Strengths:       strengths,
		Weaknesses:      weaknesses,
		Recommendations: recommendations,
		SessionID:       sessionID,
		ActorID:         actorID,
	}
	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		out, err := c.CommandBus.Send(ctx, commands.RecordAnalysisCommand{Input: input})
		if err != nil {
			return err
		}
		result := out.(*services.RecordAnalysisResult)
		fmt.Fprintf(cmd.ErrOrStderr(), "recorded event %d at %s\n", result.Event.ID, utils.FormatRFC3339(result.Event.CreatedAt))
		if result.Reconcile != nil && result.Reconcile.Warning != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", result.Reconcile.Warning.Error())
		}
		return printJSON(cmd, result)
	})
}

func runReconcile(cmd *cobra.Command, args []string) error {
	if reconcileAll == (len(args) == 1) {
		return fmt.Errorf("give either a block or --all")
	}
	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		if reconcileAll {
			out, err := c.CommandBus.Send(ctx, commands.ReconcileAllCommand{})
			if out != nil {
				if perr := printJSON(cmd, out); perr != nil {
					return perr
				}
			}
			if err != nil {
				return err
			}
			if failed := out.(*handlers.ReconcileAllResult).Failed; len(failed) > 0 {
				return fmt.Errorf("%d blocks failed to reconcile", len(failed))
			}
			return nil
		}

		blockID, err := valueobjects.ParseBlockID(args[0])
		if err != nil {
			return err
		}
		out, err := c.CommandBus.Send(ctx, commands.ReconcileBlockCommand{BlockID: blockID})
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	})
}

func runBlocks(cmd *cobra.Command, args []string) error {
	return ask(cmd, queries.ListBlockCachesQuery{})
}

func runAggregate(cmd *cobra.Command, args []string) error {
	blockID, err := valueobjects.ParseBlockID(args[0])
	if err != nil {
		return err
	}
	return ask(cmd, queries.GetBlockAggregateQuery{BlockID: blockID})
}

func runLatest(cmd *cobra.Command, args []string) error {
	subID, err := valueobjects.ParseSubcomponentID(args[0])
	if err != nil {
		return err
	}
	return ask(cmd, queries.GetLatestScoreQuery{SubcomponentID: subID})
}

// runChanges treats "3" as a block and "3-2" as a subcomponent
func runChanges(cmd *cobra.Command, args []string) error {
	if strings.Contains(args[0], "-") {
		subID, err := valueobjects.ParseSubcomponentID(args[0])
		if err != nil {
			return err
		}
		return ask(cmd, queries.GetSubcomponentChangesQuery{SubcomponentID: subID, Days: days})
	}
	blockID, err := valueobjects.ParseBlockID(args[0])
	if err != nil {
		return err
	}
	return ask(cmd, queries.GetBlockChangesQuery{BlockID: blockID, Days: days})
}

func runMigrate(cmd *cobra.Command, args []string) error {
	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		version, err := c.Migrate(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "schema at version %d\n", version)
		return nil
	})
}

func ask(cmd *cobra.Command, query querybus.Query) error {
	return withContainer(cmd, func(ctx context.Context, c *di.Container) error {
		out, err := c.QueryBus.Ask(ctx, query)
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	})
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
