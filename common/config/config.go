// Package config provides centralized configuration management for the
// combat log services.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	globalConfig *Config
	once         sync.Once
)

// Config is the master configuration struct for the pipeline and its shared
// infrastructure.
type Config struct {
	CombatLog   CombatLogConfig   `mapstructure:"combatlog"`
	Publisher   PublisherConfig   `mapstructure:"publisher"`
	ObjectStore ObjectStoreConfig `mapstructure:"objectstore"`

	Database   DatabaseConfig   `mapstructure:"database"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// CombatLogConfig holds the worker settings.
type CombatLogConfig struct {
	WorkDir      string        `mapstructure:"work_dir"`
	Bucket       string        `mapstructure:"bucket"`
	PartitionTTL time.Duration `mapstructure:"partition_ttl"`
	Concurrency  int           `mapstructure:"concurrency"`
	NakDelay     time.Duration `mapstructure:"nak_delay"`
}

// PublisherConfig controls report uploads.
type PublisherConfig struct {
	SegmentSize     int64         `mapstructure:"segment_size"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	PartConcurrency int           `mapstructure:"part_concurrency"`
}

// ObjectStoreConfig selects and configures the report store.
type ObjectStoreConfig struct {
	Backend      string `mapstructure:"backend"` // "s3" or "file"
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	BasePath     string `mapstructure:"base_path"` // Only used for file backend
	UsePathStyle bool   `mapstructure:"use_path_style"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// URL returns the connection string understood by pgx and golang-migrate.
func (p PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// OpenSearchConfig holds OpenSearch connection settings
type OpenSearchConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	Username      string        `mapstructure:"username"`
	Password      string        `mapstructure:"password"`
	TLSSkipVerify bool          `mapstructure:"tls_skip_verify"`
	IndexPrefix   string        `mapstructure:"index_prefix"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	Workers       int           `mapstructure:"workers"`
}

// NATSConfig holds NATS message broker configuration
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Enabled       bool          `mapstructure:"enabled"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL        string `mapstructure:"url"`
	Enabled    bool   `mapstructure:"enabled"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MustLoad loads the configuration and panics on error.
// This initializes the global singleton.
func MustLoad(serviceName string) {
	once.Do(func() {
		cfg, err := Load(serviceName)
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
		globalConfig = cfg
	})
}

// GetConfig returns the global configuration singleton.
// Panics if MustLoad has not been called first.
func GetConfig() *Config {
	if globalConfig == nil {
		panic("config not initialized - call MustLoad first")
	}
	return globalConfig
}

// Load reads configuration from $COMBATLOG_CONFIG_DIR/config.yaml and
// environment variables. Every service reads the same file; serviceName is
// reserved for per-service overrides.
func Load(serviceName string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	configDir := os.Getenv("COMBATLOG_CONFIG_DIR")
	if configDir == "" {
		configDir = "/etc/telhawk"
	}

	configPath := fmt.Sprintf("%s/config.yaml", configDir)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Environment variables override with NO prefix (empty string)
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file - don't fail if file doesn't exist
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values
func setDefaults(v *viper.Viper) {
	// Worker defaults
	v.SetDefault("combatlog.work_dir", os.TempDir())
	v.SetDefault("combatlog.bucket", "combatlog-reports")
	v.SetDefault("combatlog.partition_ttl", "24h")
	v.SetDefault("combatlog.concurrency", 4)
	v.SetDefault("combatlog.nak_delay", "5s")

	// Publisher defaults
	v.SetDefault("publisher.segment_size", 100*1024*1024)
	v.SetDefault("publisher.max_attempts", 5)
	v.SetDefault("publisher.initial_interval", "200ms")
	v.SetDefault("publisher.max_interval", "10s")
	v.SetDefault("publisher.part_concurrency", 1)

	// Object store defaults
	v.SetDefault("objectstore.backend", "file")
	v.SetDefault("objectstore.region", "us-east-1")
	v.SetDefault("objectstore.endpoint", "")
	v.SetDefault("objectstore.base_path", "/var/lib/telhawk/reports")
	v.SetDefault("objectstore.use_path_style", false)

	// Database defaults
	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "telhawk_combatlog")
	v.SetDefault("database.postgres.user", "telhawk")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.sslmode", "disable")

	// OpenSearch defaults
	v.SetDefault("opensearch.enabled", false)
	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "admin")
	v.SetDefault("opensearch.tls_skip_verify", true)
	v.SetDefault("opensearch.index_prefix", "telhawk-combatlog")
	v.SetDefault("opensearch.flush_interval", "5s")
	v.SetDefault("opensearch.workers", 2)

	// NATS defaults
	v.SetDefault("nats.url", "nats://nats:4222")
	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	// Redis defaults
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
