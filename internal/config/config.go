package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	pkgconfig "github.com/Maharab24/Bottle-Collection/pkg/config"
	"github.com/Maharab24/Bottle-Collection/pkg/database"
	"github.com/Maharab24/Bottle-Collection/pkg/tracing"
)

// Slot backends.
const (
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Sync transports. TransportAuto picks the backend's natural partner.
const (
	TransportAuto     = "auto"
	TransportNone     = "none"
	TransportFile     = "file"
	TransportRedis    = "redis"
	TransportPostgres = "postgres"
	TransportKafka    = "kafka"
)

var (
	backends   = []string{BackendFile, BackendRedis, BackendPostgres, BackendMemory}
	transports = []string{TransportAuto, TransportNone, TransportFile, TransportRedis, TransportPostgres, TransportKafka}
)

// Config holds all configuration for the storefront and cartctl.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int      `env:"STOREFRONT_HTTP_PORT" envDefault:"8080"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs  []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.1/32,::1/128" envSeparator:","`

	// Catalog
	CatalogSource         string `env:"CATALOG_SOURCE" envDefault:""`
	CatalogTimeoutSeconds int    `env:"CATALOG_TIMEOUT_SECONDS" envDefault:"10"`

	// Cart slot
	SlotKey       string `env:"CART_SLOT_KEY" envDefault:"bottleCart"`
	SlotBackend   string `env:"CART_SLOT_BACKEND" envDefault:"file"`
	SlotPath      string `env:"CART_SLOT_PATH" envDefault:"./data/bottleCart.json"`
	SyncTransport string `env:"CART_SYNC_TRANSPORT" envDefault:"auto"`

	// Widget
	AckDurationMS int `env:"ACK_DURATION_MS" envDefault:"3000"`

	// Redis
	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"storefront"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"storefront"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"storefront"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`

	// Slot operations slower than this are logged; 0 disables.
	SlowQueryThresholdMS int `env:"SLOW_QUERY_THRESHOLD_MS" envDefault:"200"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_CART_TOPIC" envDefault:""`

	Tracing tracing.Config
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory when one exists.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg, ".env"); err != nil {
		return nil, fmt.Errorf("load storefront config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.SlotBackend = strings.ToLower(strings.TrimSpace(c.SlotBackend))
	c.SyncTransport = strings.ToLower(strings.TrimSpace(c.SyncTransport))
	c.Tracing.Environment = c.Environment
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if strings.TrimSpace(c.SlotKey) == "" {
		return fmt.Errorf("CART_SLOT_KEY is required")
	}
	if !slices.Contains(backends, c.SlotBackend) {
		return fmt.Errorf("CART_SLOT_BACKEND must be one of %s, got %q", strings.Join(backends, "|"), c.SlotBackend)
	}
	if !slices.Contains(transports, c.SyncTransport) {
		return fmt.Errorf("CART_SYNC_TRANSPORT must be one of %s, got %q", strings.Join(transports, "|"), c.SyncTransport)
	}
	if c.SlotBackend == BackendFile && c.SlotPath == "" {
		return fmt.Errorf("CART_SLOT_PATH is required for the file backend")
	}
	if c.Transport() == TransportFile && c.SlotBackend != BackendFile {
		return fmt.Errorf("CART_SYNC_TRANSPORT=file requires CART_SLOT_BACKEND=file")
	}
	if c.Transport() == TransportKafka && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required for the kafka transport")
	}
	if c.CatalogTimeoutSeconds < 1 {
		return fmt.Errorf("CATALOG_TIMEOUT_SECONDS must be positive, got %d", c.CatalogTimeoutSeconds)
	}
	if c.AckDurationMS < 0 {
		return fmt.Errorf("ACK_DURATION_MS must not be negative, got %d", c.AckDurationMS)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %v", c.Tracing.SampleRate)
	}
	return nil
}

// Transport resolves TransportAuto to the partner of the slot backend.
func (c *Config) Transport() string {
	if c.SyncTransport != TransportAuto {
		return c.SyncTransport
	}
	switch c.SlotBackend {
	case BackendFile:
		return TransportFile
	case BackendRedis:
		return TransportRedis
	case BackendPostgres:
		return TransportPostgres
	default:
		return TransportNone
	}
}

// NeedsRedis reports whether a Redis client must be opened.
func (c *Config) NeedsRedis() bool {
	return c.SlotBackend == BackendRedis || c.Transport() == TransportRedis
}

// NeedsPostgres reports whether a PostgreSQL pool must be opened.
func (c *Config) NeedsPostgres() bool {
	return c.SlotBackend == BackendPostgres || c.Transport() == TransportPostgres
}

// CatalogTimeout is the catalog fetch timeout.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.CatalogTimeoutSeconds) * time.Second
}

// AckDuration is how long the widget shows its success message.
func (c *Config) AckDuration() time.Duration {
	return time.Duration(c.AckDurationMS) * time.Millisecond
}

// SlowQueryThreshold is the slot latency above which operations are logged.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryThresholdMS) * time.Millisecond
}

// Postgres returns the pool configuration.
func (c *Config) Postgres() database.PostgresConfig {
	pg := database.DefaultPostgresConfig()
	pg.Host = c.PostgresHost
	pg.Port = c.PostgresPort
	pg.User = c.PostgresUser
	pg.Password = c.PostgresPassword
	pg.DBName = c.PostgresDB
	pg.SSLMode = c.PostgresSSLMode
	return pg
}

// Redis returns the client configuration.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{Addr: c.RedisAddr, Password: c.RedisPass, DB: c.RedisDB}
}
