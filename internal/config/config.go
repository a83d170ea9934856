// Package config provides configuration structures and validation for the adapter.
// It handles environment-based configuration for the gateway, the reconciler
// workers and the admin CLI, which all share one layout.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all components.
// Each field represents a major subsystem's configuration and is validated during
// application startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	WorkerPool  WorkerPoolConfig
	Platform    PlatformConfig
	Auth        AuthConfig
	Retry       RetryConfig
	Policy      PolicyConfig
	Sweeper     SweeperConfig
	Metrics     MetricsConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	JobTopic          string // Reconciliation and webhook jobs
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Undecodable jobs and retry exhaustion alerts
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Minimum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// PlatformConfig points at the ledger platform's admin API
type PlatformConfig struct {
	URL        string
	Token      string
	AuthScheme string // Authorization header scheme, e.g. "Token" or "Bearer"
	Timeout    time.Duration
	Company    string // When set, authenticated users must belong to this company
}

// AuthConfig holds the shared secrets checked by the gateway
type AuthConfig struct {
	AdminSecret   string
	WebhookSecret string // Optional, compared against the ?secret= query parameter
}

// RetryConfig controls rescheduling of platform calls after transport failures
type RetryConfig struct {
	MaxAttempts      int
	Backoff          time.Duration
	PollingInterval  time.Duration
	BatchSize        int
	FailOnExhaustion bool
}

// PolicyConfig holds reconciliation policy switches
type PolicyConfig struct {
	FastCompleteTypes []string // Transaction types completed as soon as the platform accepts them
}

// SweeperConfig controls the stale transaction report
type SweeperConfig struct {
	Schedule   string // cron spec, e.g. "@every 15m"
	StaleAfter time.Duration
	BatchSize  int
}

// MetricsConfig controls the standalone metrics listener used by the workers
type MetricsConfig struct {
	Port int
}

var knownTransactionTypes = map[string]bool{"deposit": true, "withdraw": true, "send": true, "receive": true}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.JobTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_JOB_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate Platform config
	if c.Platform.URL == "" {
		validationErrors = append(validationErrors, "PLATFORM_API_URL is required")
	}
	if c.Platform.Token == "" {
		validationErrors = append(validationErrors, "PLATFORM_API_TOKEN is required")
	}
	if c.Platform.AuthScheme == "" {
		validationErrors = append(validationErrors, "PLATFORM_AUTH_SCHEME is required")
	}
	if c.Platform.Timeout <= 0 {
		validationErrors = append(validationErrors, "PLATFORM_TIMEOUT must be greater than 0")
	}

	// Validate Auth config
	if c.Auth.AdminSecret == "" {
		validationErrors = append(validationErrors, "ADMIN_SECRET is required")
	}

	// Validate Retry config
	if c.Retry.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "RETRY_MAX_ATTEMPTS must be greater than 0")
	}
	if c.Retry.Backoff <= 0 {
		validationErrors = append(validationErrors, "RETRY_BACKOFF must be greater than 0")
	}
	if c.Retry.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "RETRY_POLLING_INTERVAL must be greater than 0")
	}
	if c.Retry.BatchSize <= 0 {
		validationErrors = append(validationErrors, "RETRY_BATCH_SIZE must be greater than 0")
	}

	// Validate Policy config
	for _, t := range c.Policy.FastCompleteTypes {
		if !knownTransactionTypes[t] {
			validationErrors = append(validationErrors, fmt.Sprintf("POLICY_FAST_COMPLETE_TYPES contains unknown type %q", t))
		}
	}

	// Validate Sweeper config
	if c.Sweeper.Schedule == "" {
		validationErrors = append(validationErrors, "SWEEPER_SCHEDULE is required")
	}
	if c.Sweeper.StaleAfter <= 0 {
		validationErrors = append(validationErrors, "SWEEPER_STALE_AFTER must be greater than 0")
	}
	if c.Sweeper.BatchSize <= 0 {
		validationErrors = append(validationErrors, "SWEEPER_BATCH_SIZE must be greater than 0")
	}

	if c.Metrics.Port <= 0 {
		validationErrors = append(validationErrors, "METRICS_PORT must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}

// RetryHorizon is the longest a transaction can wait on transport retries.
func (c RetryConfig) RetryHorizon() time.Duration {
	return time.Duration(c.MaxAttempts) * c.Backoff
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
