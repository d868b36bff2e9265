package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageDynamoDB = "dynamodb"
	StoragePostgres = "postgres"
)

// Reconcile lock modes
const (
	LockNone     = "none"
	LockLocal    = "local"
	LockDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// Storage
	StorageBackend string `yaml:"storage_backend"`
	PostgresDSN    string `yaml:"postgres_dsn"`

	// AWS configuration
	AWSRegion     string `yaml:"aws_region"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	IndexName     string `yaml:"gsi1_index_name"`
	EventBusName  string `yaml:"event_bus_name"`

	// Lambda configuration
	IsLambda           bool   `yaml:"-"`
	LambdaFunctionName string `yaml:"-"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Authentication
	JWTSecret string `yaml:"jwt_secret"`
	JWTIssuer string `yaml:"jwt_issuer"`

	// Scoring rules
	BlockCount         int    `yaml:"block_count"`
	HistoryDefaultDays int    `yaml:"history_default_days"`
	ReconcileLock      string `yaml:"reconcile_lock"`
	RateLimitPerMinute int    `yaml:"rate_limit_rpm"`

	ReconcileLockTTL     time.Duration `yaml:"reconcile_lock_ttl"`
	ReconcileLockTimeout time.Duration `yaml:"reconcile_lock_timeout"`

	// Feature flags
	EnableEvents     bool `yaml:"enable_events"`
	EnableMetrics    bool `yaml:"enable_metrics"`
	EnableCloudWatch bool `yaml:"enable_cloudwatch"`
	EnableTracing    bool `yaml:"enable_tracing"`
	EnableCORS       bool `yaml:"enable_cors"`

	MetricsFlushInterval time.Duration `yaml:"metrics_flush_interval"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		ServerAddress:        ":8080",
		Environment:          "development",
		StorageBackend:       StorageMemory,
		AWSRegion:            "us-west-2",
		DynamoDBTable:        "assessment-scores",
		IndexName:            "GSI1",
		EventBusName:         "assessment-events",
		LogLevel:             "info",
		JWTIssuer:            "assessment-backend",
		BlockCount:           16,
		HistoryDefaultDays:   30,
		ReconcileLock:        LockNone,
		ReconcileLockTTL:     10 * time.Second,
		ReconcileLockTimeout: 5 * time.Second,
		RateLimitPerMinute:   120,
		EnableMetrics:        true,
		EnableCORS:           true,
		MetricsFlushInterval: time.Minute,
	}
}

// LoadConfig loads configuration from defaults, an optional YAML file named
// by CONFIG_FILE, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.StorageBackend = getEnv("STORAGE_BACKEND", c.StorageBackend)
	c.PostgresDSN = getEnv("POSTGRES_DSN", c.PostgresDSN)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.IndexName = getEnv("GSI1_INDEX_NAME", c.IndexName)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.LambdaFunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", "")
	c.IsLambda = getEnvBool("IS_LAMBDA", c.LambdaFunctionName != "")

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = getEnv("JWT_ISSUER", c.JWTIssuer)

	c.BlockCount = getEnvInt("BLOCK_COUNT", c.BlockCount)
	c.HistoryDefaultDays = getEnvInt("HISTORY_DEFAULT_DAYS", c.HistoryDefaultDays)
	c.ReconcileLock = getEnv("RECONCILE_LOCK", c.ReconcileLock)
	c.ReconcileLockTTL = getEnvDuration("RECONCILE_LOCK_TTL", c.ReconcileLockTTL)
	c.ReconcileLockTimeout = getEnvDuration("RECONCILE_LOCK_TIMEOUT", c.ReconcileLockTimeout)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_RPM", c.RateLimitPerMinute)

	c.EnableEvents = getEnvBool("ENABLE_EVENTS", c.EnableEvents)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableCloudWatch = getEnvBool("ENABLE_CLOUDWATCH", c.EnableCloudWatch)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}

	switch c.StorageBackend {
	case StorageMemory:
	case StorageDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb backend")
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	switch c.ReconcileLock {
	case LockNone, LockLocal:
	case LockDynamoDB:
		if c.StorageBackend != StorageDynamoDB {
			return fmt.Errorf("RECONCILE_LOCK=dynamodb requires the dynamodb backend")
		}
	default:
		return fmt.Errorf("unknown RECONCILE_LOCK %q", c.ReconcileLock)
	}
	if c.ReconcileLockTTL <= 0 {
		return fmt.Errorf("RECONCILE_LOCK_TTL must be positive")
	}
	if c.ReconcileLockTimeout <= 0 {
		return fmt.Errorf("RECONCILE_LOCK_TIMEOUT must be positive")
	}

	if c.EnableEvents && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when events are enabled")
	}
	if c.BlockCount < 1 {
		return fmt.Errorf("BLOCK_COUNT must be positive")
	}
	if c.HistoryDefaultDays < 1 {
		return fmt.Errorf("HISTORY_DEFAULT_DAYS must be positive")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable such as "10s"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
