// Package config loads the node runtime configuration from the environment
package config

import (
	"fmt"
	"time"

	"n8n-gportal/pkg/errors"
	"n8n-gportal/pkg/logger"
	"n8n-gportal/pkg/metrics"
	"n8n-gportal/pkg/tracing"
	"n8n-gportal/pkg/validator"
)

// Config holds the complete application configuration
type Config struct {
	Environment string            `json:"environment" validate:"oneof=development staging production test"`
	LogLevel    string            `json:"log_level" validate:"oneof=debug info warn warning error"`
	LogFormat   string            `json:"log_format" validate:"oneof=json text"`
	GPortal     *GPortalConfig    `json:"gportal" validate:"required"`
	Socket      *SocketConfig     `json:"socket" validate:"required"`
	Webhook     *WebhookConfig    `json:"webhook" validate:"required"`
	CustomData  *CustomDataConfig `json:"custom_data" validate:"required"`
	Redis       *RedisConfig      `json:"redis" validate:"required"`
	Wait        *WaitConfig       `json:"wait" validate:"required"`
	Database    *DatabaseConfig   `json:"database" validate:"required"`
	Broadcast   *BroadcastConfig  `json:"broadcast" validate:"required"`
	Kafka       *KafkaConfig      `json:"kafka" validate:"required"`
	Metrics     *MetricsConfig    `json:"metrics" validate:"required"`
	Tracing     *TracingConfig    `json:"tracing" validate:"required"`
}

// GPortalConfig describes the remote entity API
type GPortalConfig struct {
	BaseURL   string        `json:"base_url" validate:"required,http_url"`
	Token     string        `json:"-"`
	Timeout   time.Duration `json:"timeout" validate:"gt=0"`
	RateLimit float64       `json:"rate_limit" validate:"gte=0"` // requests per second, 0 disables
	RateBurst int           `json:"rate_burst" validate:"gte=0"`
	UserAgent string        `json:"user_agent"`
}

// SocketConfig holds the socketIOApi credential supplied through the environment
type SocketConfig struct {
	JWTToken       string `json:"-"`
	ServerURL      string `json:"server_url" validate:"required,socket_url"`
	Namespace      string `json:"namespace" validate:"required,startswith=/"`
	AuthQueryParam string `json:"auth_query_param" validate:"required"`
}

// WebhookConfig holds webhook server configuration
type WebhookConfig struct {
	Host               string        `json:"host"`
	Port               int           `json:"port" validate:"min=1,max=65535"`
	BasePath           string        `json:"base_path" validate:"required,startswith=/"`
	ReadTimeout        time.Duration `json:"read_timeout" validate:"gte=0"`
	WriteTimeout       time.Duration `json:"write_timeout" validate:"gte=0"`
	IdleTimeout        time.Duration `json:"idle_timeout" validate:"gte=0"`
	MaxBodySize        int64         `json:"max_body_size" validate:"gt=0"`
	CORSAllowedOrigins []string      `json:"cors_allowed_origins"`
}

// CustomDataConfig selects the execution-scoped key/value backend
type CustomDataConfig struct {
	Backend   string        `json:"backend" validate:"oneof=memory redis"`
	KeyPrefix string        `json:"key_prefix"`
	TTL       time.Duration `json:"ttl" validate:"gte=0"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr         string        `json:"addr"`
	Password     string        `json:"-"`
	Database     int           `json:"database" validate:"gte=0"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	PoolSize     int           `json:"pool_size" validate:"gte=0"`
}

// WaitConfig configures persisted waits and the expiry sweeper
type WaitConfig struct {
	Driver        string `json:"driver" validate:"oneof=memory sqlite postgres"`
	SQLitePath    string `json:"sqlite_path"`
	SweepSchedule string `json:"sweep_schedule" validate:"required,cron"`
}

// DatabaseConfig holds PostgreSQL settings used by the postgres wait driver
type DatabaseConfig struct {
	Host               string        `json:"host"`
	Port               int           `json:"port" validate:"min=1,max=65535"`
	Database           string        `json:"database"`
	Username           string        `json:"username"`
	Password           string        `json:"-"`
	SSLMode            string        `json:"ssl_mode"`
	MaxOpenConnections int           `json:"max_open_connections" validate:"gte=0"`
	MaxIdleConnections int           `json:"max_idle_connections" validate:"gte=0"`
	ConnectionLifetime time.Duration `json:"connection_lifetime"`
	EnableQueryLogging bool          `json:"enable_query_logging"`
}

// BroadcastConfig selects how UI commands are fanned out
type BroadcastConfig struct {
	Mode string `json:"mode" validate:"oneof=http kafka none"`
}

// KafkaConfig holds Kafka producer settings for the kafka broadcast mode
type KafkaConfig struct {
	Brokers      []string      `json:"brokers"`
	Topic        string        `json:"topic"`
	ClientID     string        `json:"client_id"`
	BatchTimeout time.Duration `json:"batch_timeout"`
	MaxAttempts  int           `json:"max_attempts" validate:"gte=0"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path"`
	Namespace string `json:"namespace"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled     bool    `json:"enabled"`
	Exporter    string  `json:"exporter" validate:"oneof=otlp stdout none"`
	Endpoint    string  `json:"endpoint"`
	Insecure    bool    `json:"insecure"`
	SampleRatio float64 `json:"sample_ratio" validate:"gte=0,lte=1"`
}

// Validate checks field constraints and cross-section requirements
func (c *Config) Validate() error {
	if err := validator.Validate(c); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfiguration, errors.CodeInvalidInput, "invalid configuration").
			WithDetails(err.Error())
	}

	errs := errors.NewErrorList()
	if c.CustomData.Backend == "redis" && c.Redis.Addr == "" {
		errs.Add(errors.NewConfigurationError("redis address is required when custom data backend is redis"))
	}
	if c.Broadcast.Mode == "kafka" {
		if len(c.Kafka.Brokers) == 0 {
			errs.Add(errors.NewConfigurationError("at least one Kafka broker is required for kafka broadcast mode"))
		}
		if c.Kafka.Topic == "" {
			errs.Add(errors.NewConfigurationError("kafka topic is required for kafka broadcast mode"))
		}
	}
	switch c.Wait.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.Database == "" {
			errs.Add(errors.NewConfigurationError("database host and name are required for the postgres wait driver"))
		}
	case "sqlite":
		if c.Wait.SQLitePath == "" {
			errs.Add(errors.NewConfigurationError("sqlite path is required for the sqlite wait driver"))
		}
	}
	if c.Tracing.Enabled && c.Tracing.Exporter == "otlp" && c.Tracing.Endpoint == "" {
		errs.Add(errors.NewConfigurationError("tracing endpoint is required for the otlp exporter"))
	}

	return errs.ErrOrNil()
}

// PostgresDSN returns the connection string for the postgres wait driver
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Database.Host, c.Database.Port, c.Database.Username, c.Database.Password, c.Database.Database, c.Database.SSLMode)
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// LoggerConfig derives the pkg/logger configuration
func (c *Config) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Format = c.LogFormat
	cfg.Fields["environment"] = c.Environment
	return cfg
}

// MetricsSettings derives the pkg/metrics configuration
func (c *Config) MetricsSettings(service string) *metrics.Config {
	return &metrics.Config{
		Enabled:     c.Metrics.Enabled,
		Path:        c.Metrics.Path,
		Namespace:   c.Metrics.Namespace,
		ServiceName: service,
	}
}

// TracingSettings derives the pkg/tracing configuration
func (c *Config) TracingSettings(service, version string) *tracing.Config {
	return &tracing.Config{
		Enabled:      c.Tracing.Enabled,
		ServiceName:  service,
		Environment:  c.Environment,
		Version:      version,
		ExporterType: c.Tracing.Exporter,
		OTLPEndpoint: c.Tracing.Endpoint,
		OTLPInsecure: c.Tracing.Insecure,
		SampleRatio:  c.Tracing.SampleRatio,
	}
}
