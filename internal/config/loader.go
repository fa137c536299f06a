package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"n8n-gportal/pkg/logger"
)

// DefaultGPortalBaseURL is the API root used when none is configured
const DefaultGPortalBaseURL = "http://103.124.95.129:8080/api/v1"

// Load reads .env files, then the process environment, and validates the result
func Load() (*Config, error) {
	log := logger.New("config")
	if err := NewEnvFileLoader(log).LoadDefaults(); err != nil {
		log.Warn("Failed to load environment files", "error", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds the configuration from environment variables without validating it
func FromEnv() *Config {
	return &Config{
		Environment: getEnvString("ENVIRONMENT", "development"),
		LogLevel:    getEnvString("LOG_LEVEL", "info"),
		LogFormat:   getEnvString("LOG_FORMAT", "json"),
		GPortal:     loadGPortalConfig(),
		Socket:      loadSocketConfig(),
		Webhook:     loadWebhookConfig(),
		CustomData:  loadCustomDataConfig(),
		Redis:       loadRedisConfig(),
		Wait:        loadWaitConfig(),
		Database:    loadDatabaseConfig(),
		Broadcast:   &BroadcastConfig{Mode: getEnvString("BROADCAST_MODE", "http")},
		Kafka:       loadKafkaConfig(),
		Metrics:     loadMetricsConfig(),
		Tracing:     loadTracingConfig(),
	}
}

func loadSocketConfig() *SocketConfig {
	return &SocketConfig{
		JWTToken:       getEnvString("SOCKET_JWT_TOKEN", ""),
		ServerURL:      getEnvString("SOCKET_SERVER_URL", "ws://localhost:3000"),
		Namespace:      getEnvString("SOCKET_NAMESPACE", "/"),
		AuthQueryParam: getEnvString("SOCKET_AUTH_QUERY_PARAM", "token"),
	}
}

func loadGPortalConfig() *GPortalConfig {
	return &GPortalConfig{
		BaseURL:   getEnvString("GPORTAL_BASE_URL", DefaultGPortalBaseURL),
		Token:     getEnvString("GPORTAL_TOKEN", ""),
		Timeout:   getEnvDuration("GPORTAL_TIMEOUT", 30*time.Second),
		RateLimit: getEnvFloat("GPORTAL_RATE_LIMIT", 0),
		RateBurst: getEnvInt("GPORTAL_RATE_BURST", 1),
		UserAgent: getEnvString("GPORTAL_USER_AGENT", "n8n-gportal/1.0"),
	}
}

func loadWebhookConfig() *WebhookConfig {
	return &WebhookConfig{
		Host:               getEnvString("WEBHOOK_HOST", "0.0.0.0"),
		Port:               getEnvInt("WEBHOOK_PORT", 5678),
		BasePath:           getEnvString("WEBHOOK_BASE_PATH", "/webhook"),
		ReadTimeout:        getEnvDuration("WEBHOOK_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:       getEnvDuration("WEBHOOK_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:        getEnvDuration("WEBHOOK_IDLE_TIMEOUT", 120*time.Second),
		MaxBodySize:        getEnvInt64("WEBHOOK_MAX_BODY_SIZE", 16*1024*1024),
		CORSAllowedOrigins: getEnvStringSlice("WEBHOOK_CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

func loadCustomDataConfig() *CustomDataConfig {
	return &CustomDataConfig{
		Backend:   getEnvString("CUSTOM_DATA_BACKEND", "memory"),
		KeyPrefix: getEnvString("CUSTOM_DATA_KEY_PREFIX", "gportal:customdata:"),
		TTL:       getEnvDuration("CUSTOM_DATA_TTL", 7*24*time.Hour),
	}
}

func loadRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         getEnvString("REDIS_ADDR", ""),
		Password:     getEnvString("REDIS_PASSWORD", ""),
		Database:     getEnvInt("REDIS_DATABASE", 0),
		DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
	}
}

func loadWaitConfig() *WaitConfig {
	return &WaitConfig{
		Driver:        getEnvString("WAIT_DRIVER", "sqlite"),
		SQLitePath:    getEnvString("WAIT_SQLITE_PATH", "gportal-waits.db"),
		SweepSchedule: getEnvString("WAIT_SWEEP_SCHEDULE", "@every 1m"),
	}
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:               getEnvString("DB_HOST", "localhost"),
		Port:               getEnvInt("DB_PORT", 5432),
		Database:           getEnvString("DB_NAME", "gportal"),
		Username:           getEnvString("DB_USER", "postgres"),
		Password:           getEnvString("DB_PASSWORD", ""),
		SSLMode:            getEnvString("DB_SSL_MODE", "disable"),
		MaxOpenConnections: getEnvInt("DB_MAX_OPEN_CONNECTIONS", 10),
		MaxIdleConnections: getEnvInt("DB_MAX_IDLE_CONNECTIONS", 2),
		ConnectionLifetime: getEnvDuration("DB_CONNECTION_LIFETIME", 5*time.Minute),
		EnableQueryLogging: getEnvBool("DB_ENABLE_QUERY_LOGGING", false),
	}
}

func loadKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers:      getEnvStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		Topic:        getEnvString("KAFKA_TOPIC", "gportal-ui-commands"),
		ClientID:     getEnvString("KAFKA_CLIENT_ID", "n8n-gportal"),
		BatchTimeout: getEnvDuration("KAFKA_BATCH_TIMEOUT", 50*time.Millisecond),
		MaxAttempts:  getEnvInt("KAFKA_MAX_ATTEMPTS", 3),
	}
}

func loadMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:   getEnvBool("METRICS_ENABLED", true),
		Path:      getEnvString("METRICS_PATH", "/metrics"),
		Namespace: getEnvString("METRICS_NAMESPACE", "gportal"),
	}
}

func loadTracingConfig() *TracingConfig {
	return &TracingConfig{
		Enabled:     getEnvBool("TRACING_ENABLED", false),
		Exporter:    getEnvString("TRACING_EXPORTER", "stdout"),
		Endpoint:    getEnvString("TRACING_ENDPOINT", "localhost:4318"),
		Insecure:    getEnvBool("TRACING_INSECURE", true),
		SampleRatio: getEnvFloat("TRACING_SAMPLE_RATIO", 1.0),
	}
}

// Helper functions for loading environment variables

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// bare integers are seconds
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
