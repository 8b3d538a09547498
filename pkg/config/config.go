package config

import (
	"fmt"
	"math"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for bitebase-intelligence.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"4060"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if empty, server runs HTTP)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Engine store (PostgreSQL): query history and pattern aggregates.
	Database DatabaseConfig `yaml:"database"`

	// Analytics warehouse (PostgreSQL): the data generated SQL runs against.
	Warehouse WarehouseConfig `yaml:"warehouse"`

	// Redis cache backend (optional; in-memory cache is used when unset).
	Redis RedisConfig `yaml:"redis"`

	// Natural-language query pipeline tuning.
	NLQ NLQConfig `yaml:"nlq"`

	// History retention.
	Retention RetentionConfig `yaml:"retention"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:"https://auth.bitebase.app=https://auth.bitebase.app/.well-known/jwks.json"`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL configuration for the engine store.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"bitebase"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"bitebase_intelligence"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// URL returns a PostgreSQL connection URL for the engine store.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// WarehouseConfig holds PostgreSQL configuration for the analytics warehouse.
// Kept separate from the engine store so generated SQL never touches engine
// tables and the warehouse can live on different hardware.
type WarehouseConfig struct {
	Host           string `yaml:"host" env:"WAREHOUSE_HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"WAREHOUSE_PORT" env-default:"5432"`
	User           string `yaml:"user" env:"WAREHOUSE_USER" env-default:"bitebase_ro"`
	Password       string `yaml:"-" env:"WAREHOUSE_PASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"WAREHOUSE_DATABASE" env-default:"bitebase_analytics"`
	Schema         string `yaml:"schema" env:"WAREHOUSE_SCHEMA" env-default:"public"`
	MaxConnections int32  `yaml:"max_connections" env:"WAREHOUSE_MAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"WAREHOUSE_SSLMODE" env-default:"disable"`
}

// URL returns a PostgreSQL connection URL for the warehouse.
func (c *WarehouseConfig) URL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   fmt.Sprintf("%s:%d", ResolveHostForDocker(c.Host), c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	q.Set("sslmode", c.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisConfig holds Redis configuration for the query cache.
// An empty host means "not configured"; the engine falls back to the
// in-process cache.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// NLQConfig tunes the natural-language query pipeline.
type NLQConfig struct {
	// Confidence weights. Must sum to 1.
	WeightIntent           float64 `yaml:"weight_intent" env:"NLQ_WEIGHT_INTENT" env-default:"0.3"`
	WeightEntity           float64 `yaml:"weight_entity" env:"NLQ_WEIGHT_ENTITY" env-default:"0.25"`
	WeightSQL              float64 `yaml:"weight_sql" env:"NLQ_WEIGHT_SQL" env-default:"0.2"`
	WeightDataAvailability float64 `yaml:"weight_data_availability" env:"NLQ_WEIGHT_DATA_AVAILABILITY" env-default:"0.15"`
	WeightHistorical       float64 `yaml:"weight_historical" env:"NLQ_WEIGHT_HISTORICAL" env-default:"0.1"`

	// IntentThreshold is the minimum classifier score for a usable intent;
	// below it the query is classified as unknown.
	IntentThreshold float64 `yaml:"intent_threshold" env:"NLQ_INTENT_THRESHOLD" env-default:"0.3"`

	// EntityFloor is the minimum entity confidence that counts toward
	// required-entity coverage.
	EntityFloor float64 `yaml:"entity_floor" env:"NLQ_ENTITY_FLOOR" env-default:"0.5"`

	// CacheTTLMinutes is how long processed queries stay cached.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" env:"NLQ_CACHE_TTL_MINUTES" env-default:"15"`

	// ExecTimeoutSeconds bounds warehouse execution per query; requests may
	// lower it but never exceed ExecTimeoutMaxSeconds.
	ExecTimeoutSeconds    int `yaml:"exec_timeout_seconds" env:"NLQ_EXEC_TIMEOUT_SECONDS" env-default:"15"`
	ExecTimeoutMaxSeconds int `yaml:"exec_timeout_max_seconds" env:"NLQ_EXEC_TIMEOUT_MAX_SECONDS" env-default:"60"`

	// MaxResultRows caps rows returned from the warehouse.
	MaxResultRows int `yaml:"max_result_rows" env:"NLQ_MAX_RESULT_ROWS" env-default:"1000"`

	// SuggestionLimit is the default number of query suggestions returned.
	SuggestionLimit int `yaml:"suggestion_limit" env:"NLQ_SUGGESTION_LIMIT" env-default:"8"`
}

// CacheTTL returns the cache TTL as a duration.
func (c *NLQConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// ExecTimeout returns the default execution timeout as a duration.
func (c *NLQConfig) ExecTimeout() time.Duration {
	return time.Duration(c.ExecTimeoutSeconds) * time.Second
}

// ExecTimeoutMax returns the execution timeout ceiling as a duration.
func (c *NLQConfig) ExecTimeoutMax() time.Duration {
	return time.Duration(c.ExecTimeoutMaxSeconds) * time.Second
}

// RetentionConfig controls scheduled pruning of old history entries.
type RetentionConfig struct {
	Days int `yaml:"days" env:"RETENTION_DAYS" env-default:"90"`
	// Schedule is a cron expression (with seconds field) for the prune job.
	Schedule string `yaml:"schedule" env:"RETENTION_SCHEDULE" env-default:"0 0 3 * * *"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. Secrets (PGPASSWORD, WAREHOUSE_PASSWORD, REDIS_PASSWORD)
// must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.parseComplexFields(); err != nil {
		return nil, fmt.Errorf("failed to parse config fields: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set.
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// parseComplexFields handles fields that need post-processing after loading.
func (c *Config) parseComplexFields() error {
	c.Auth.JWKSEndpoints = parseJWKSEndpoints(c.Auth.JWKSEndpointsStr)
	return nil
}

// Validate rejects configurations the pipeline cannot run with. Weight and
// threshold checks happen here, once, so downstream components can assume
// the numbers are sane.
func (c *Config) Validate() error {
	if err := c.validateTLS(); err != nil {
		return err
	}

	sum := c.NLQ.WeightIntent + c.NLQ.WeightEntity + c.NLQ.WeightSQL +
		c.NLQ.WeightDataAvailability + c.NLQ.WeightHistorical
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("confidence weights must sum to 1, got %g", sum)
	}
	for name, w := range map[string]float64{
		"weight_intent":            c.NLQ.WeightIntent,
		"weight_entity":            c.NLQ.WeightEntity,
		"weight_sql":               c.NLQ.WeightSQL,
		"weight_data_availability": c.NLQ.WeightDataAvailability,
		"weight_historical":        c.NLQ.WeightHistorical,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be in [0,1], got %g", name, w)
		}
	}

	if c.NLQ.IntentThreshold < 0 || c.NLQ.IntentThreshold > 1 {
		return fmt.Errorf("intent_threshold must be in [0,1], got %g", c.NLQ.IntentThreshold)
	}
	if c.NLQ.EntityFloor < 0 || c.NLQ.EntityFloor > 1 {
		return fmt.Errorf("entity_floor must be in [0,1], got %g", c.NLQ.EntityFloor)
	}
	if c.NLQ.CacheTTLMinutes <= 0 {
		return fmt.Errorf("cache_ttl_minutes must be positive, got %d", c.NLQ.CacheTTLMinutes)
	}
	if c.NLQ.ExecTimeoutSeconds <= 0 {
		return fmt.Errorf("exec_timeout_seconds must be positive, got %d", c.NLQ.ExecTimeoutSeconds)
	}
	if c.NLQ.ExecTimeoutMaxSeconds < c.NLQ.ExecTimeoutSeconds {
		return fmt.Errorf("exec_timeout_max_seconds (%d) must be >= exec_timeout_seconds (%d)",
			c.NLQ.ExecTimeoutMaxSeconds, c.NLQ.ExecTimeoutSeconds)
	}
	if c.NLQ.MaxResultRows <= 0 {
		return fmt.Errorf("max_result_rows must be positive, got %d", c.NLQ.MaxResultRows)
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention days must be positive, got %d", c.Retention.Days)
	}

	return nil
}

// validateTLS checks TLS configuration consistency. Either both cert and key
// are provided (and exist on disk), or neither is.
func (c *Config) validateTLS() error {
	if c.TLSCertPath == "" && c.TLSKeyPath == "" {
		return nil
	}
	if c.TLSCertPath == "" || c.TLSKeyPath == "" {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided for TLS")
	}
	if _, err := os.Stat(c.TLSCertPath); err != nil {
		return fmt.Errorf("TLS cert file not accessible: %w", err)
	}
	if _, err := os.Stat(c.TLSKeyPath); err != nil {
		return fmt.Errorf("TLS key file not accessible: %w", err)
	}
	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, "=")
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}
