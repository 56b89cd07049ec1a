package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/somcheck/pkg/export"
	"github.com/platinummonkey/somcheck/pkg/observability"
	"github.com/platinummonkey/somcheck/pkg/progress"
	"github.com/platinummonkey/somcheck/pkg/storage"
	"github.com/platinummonkey/somcheck/pkg/validation"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Check         CheckConfig
	Export        export.Config
	Redis         RedisConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Addr is the listen address.
func (s ServerConfig) Addr() string { return s.Host + ":" + s.Port }

// CheckConfig holds the check run settings
type CheckConfig struct {
	SchemaPath string
	Project    string

	IdentPropertySet string
	IdentAttribute   string
	PatternCacheSize int

	MaxImports int
	// Excluded lists schema entity ids left out of every run.
	Excluded []string
}

// RedisConfig configures progress publishing and the issue count cache.
// An empty URL disables both.
type RedisConfig struct {
	URL           string
	Channel       string
	CountCacheTTL time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel observability.LogLevel

	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	obs, err := loadObservabilityConfig()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Check:         loadCheckConfig(),
		Export:        loadExportConfig(),
		Redis:         loadRedisConfig(),
		Observability: obs,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("SOMCHECK_HOST", "127.0.0.1"),
		Port:            getEnv("SOMCHECK_PORT", "8080"),
		ReadTimeout:     getEnvDuration("SOMCHECK_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SOMCHECK_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("SOMCHECK_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SOMCHECK_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()
	cfg.Driver = getEnv("SOMCHECK_DB_DRIVER", cfg.Driver)
	cfg.Path = getEnv("SOMCHECK_DB_PATH", "")
	cfg.DSN = getEnv("SOMCHECK_DB_DSN", "")
	if maxConns := getEnvInt("SOMCHECK_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if cfg.Driver == storage.DriverPostgres && getEnvInt("SOMCHECK_DB_MAX_CONNS", 0) == 0 {
		cfg.MaxConns = 10
	}
	cfg.Timeout = getEnvDuration("SOMCHECK_DB_TIMEOUT", cfg.Timeout)
	return cfg
}

func loadCheckConfig() CheckConfig {
	defaults := validation.DefaultConfig()
	return CheckConfig{
		SchemaPath:       getEnv("SOMCHECK_SCHEMA", ""),
		Project:          getEnv("SOMCHECK_PROJECT", ""),
		IdentPropertySet: getEnv("SOMCHECK_IDENT_PSET", defaults.IdentPropertySet),
		IdentAttribute:   getEnv("SOMCHECK_IDENT_ATTRIBUTE", defaults.IdentAttribute),
		PatternCacheSize: getEnvInt("SOMCHECK_PATTERN_CACHE_SIZE", defaults.PatternCacheSize),
		MaxImports:       getEnvInt("SOMCHECK_MAX_IMPORTS", 3),
		Excluded:         getEnvList("SOMCHECK_EXCLUDE"),
	}
}

func loadExportConfig() export.Config {
	return export.Config{
		Path:           getEnv("SOMCHECK_EXPORT_PATH", ""),
		S3Region:       getEnv("SOMCHECK_S3_REGION", "eu-central-1"),
		S3Endpoint:     getEnv("SOMCHECK_S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("SOMCHECK_S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("SOMCHECK_S3_SECRET_KEY", ""),
		S3UsePathStyle: getEnvBool("SOMCHECK_S3_USE_PATH_STYLE", false),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:           getEnv("SOMCHECK_REDIS_URL", ""),
		Channel:       getEnv("SOMCHECK_REDIS_CHANNEL", progress.DefaultChannel),
		CountCacheTTL: getEnvDuration("SOMCHECK_REDIS_COUNT_TTL", storage.DefaultCountTTL),
	}
}

func loadObservabilityConfig() (ObservabilityConfig, error) {
	level, err := observability.ParseLogLevel(getEnv("SOMCHECK_LOG_LEVEL", "info"))
	if err != nil {
		return ObservabilityConfig{}, fmt.Errorf("SOMCHECK_LOG_LEVEL: %w", err)
	}
	return ObservabilityConfig{
		LogLevel:           level,
		MetricsEnabled:     getEnvBool("SOMCHECK_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("SOMCHECK_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("SOMCHECK_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("SOMCHECK_OTEL_SERVICE_NAME", "somcheck"),
		OTelServiceVersion: getEnv("SOMCHECK_OTEL_SERVICE_VERSION", "dev"),
		OTelInsecure:       getEnvBool("SOMCHECK_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("SOMCHECK_OTEL_SAMPLE_RATIO", 1.0),
	}, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Storage.Driver {
	case storage.DriverSQLite:
	case storage.DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("SOMCHECK_DB_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (must be %s or %s)", c.Storage.Driver, storage.DriverSQLite, storage.DriverPostgres)
	}

	if c.Check.IdentPropertySet == "" || c.Check.IdentAttribute == "" {
		return fmt.Errorf("identifying property set and attribute are required")
	}
	if c.Check.MaxImports < 1 {
		return fmt.Errorf("max imports must be at least 1, got %d", c.Check.MaxImports)
	}

	if c.Export.Path != "" {
		if c.Storage.Driver != storage.DriverSQLite {
			return fmt.Errorf("export requires the sqlite driver")
		}
		if strings.HasPrefix(c.Export.Path, "s3://") {
			if _, _, err := export.ParseS3URL(c.Export.Path); err != nil {
				return err
			}
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be within [0, 1], got %v", r)
		}
	}

	return nil
}

// ValidatorConfig returns the identification settings of the validator.
func (c *Config) ValidatorConfig() *validation.Config {
	return &validation.Config{
		IdentPropertySet: c.Check.IdentPropertySet,
		IdentAttribute:   c.Check.IdentAttribute,
		PatternCacheSize: c.Check.PatternCacheSize,
	}
}

// OTel returns the tracing settings.
func (c *Config) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.Observability.OTelEnabled,
		Endpoint:       c.Observability.OTelEndpoint,
		ServiceName:    c.Observability.OTelServiceName,
		ServiceVersion: c.Observability.OTelServiceVersion,
		Insecure:       c.Observability.OTelInsecure,
		SampleRatio:    c.Observability.OTelSampleRatio,
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
