package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Chat client configuration
	Client struct {
		BackendURL     string
		RequestTimeout time.Duration
		HealthInterval time.Duration
		AuthToken      string
		ProjectionAddr string
	}

	// Backend simulator server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		Storage string // "memory" or "postgres"
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// Redis configuration for the classification cache
	Redis struct {
		Enabled bool
		Addr    string
		DB      int
	}

	// JWT configuration
	JWT struct {
		Secret   string
		Expiry   time.Duration
		Required bool
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
		MaxBodySize    int64
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Observability configuration
	Observability struct {
		TracingEnabled bool
		MetricsAddr    string
	}

	// Responder configuration of the backend simulator
	Responder struct {
		Mode          string // "mock" or "openai"
		Classifier    string // "keyword" or "random"; ignored in openai mode
		OpenAIModel   string
		OpenAIBaseURL string
		MinLatency    time.Duration
		MaxLatency    time.Duration
		CacheTTL      time.Duration
		OpenAPIPath   string
		CacheMaxSize  int
	}

	// Vault configuration
	Vault struct {
		Enabled     bool
		Address     string
		Token       string
		Namespace   string
		SecretsPath string
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates the Config singleton from environment variables.
// A .env file in the working directory is loaded first when present.
func New() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance = Load()
	})
	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

// Load builds a fresh Config from the current environment without touching the singleton
func Load() *Config {
	cfg := &Config{}

	cfg.Client.BackendURL = strings.TrimRight(getEnvString("CHAT_API_URL", "http://localhost:8000"), "/")
	cfg.Client.RequestTimeout = getEnvDuration("CHAT_REQUEST_TIMEOUT", 30*time.Second)
	cfg.Client.HealthInterval = getEnvDuration("CHAT_HEALTH_INTERVAL", 30*time.Second)
	cfg.Client.AuthToken = getEnvString("CHAT_AUTH_TOKEN", "")
	cfg.Client.ProjectionAddr = getEnvString("CHAT_PROJECTION_ADDR", "")

	cfg.Server.Port = getEnvString("PORT", "8000")
	cfg.Server.Env = getEnvString("APP_ENV", "development")
	cfg.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
	cfg.Server.Storage = getEnvString("STORAGE_BACKEND", "memory")

	cfg.Database.Host = getEnvString("DB_HOST", "localhost")
	cfg.Database.Port = getEnvString("DB_PORT", "5432")
	cfg.Database.User = getEnvString("DB_USER", "postgres")
	cfg.Database.Password = getEnvString("DB_PASSWORD", "postgres")
	cfg.Database.Name = getEnvString("DB_NAME", "langgraph_chat")
	cfg.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
	cfg.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", false)
	cfg.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.JWT.Secret = getEnvString("JWT_SECRET", "")
	cfg.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)
	cfg.JWT.Required = getEnvBool("JWT_REQUIRED", false)

	cfg.Security.RateLimit = getEnvFloat("RATE_LIMIT", 5)
	cfg.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
	cfg.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})
	cfg.Security.MaxBodySize = getEnvInt64("MAX_BODY_SIZE", 1<<20)

	cfg.Logging.Level = getEnvString("LOG_LEVEL", "info")
	cfg.Logging.Format = getEnvString("LOG_FORMAT", "json")

	cfg.Observability.TracingEnabled = getEnvBool("TRACING_ENABLED", false)
	cfg.Observability.MetricsAddr = getEnvString("METRICS_ADDR", "")

	cfg.Responder.Mode = getEnvString("RESPONDER_MODE", "mock")
	cfg.Responder.Classifier = getEnvString("CLASSIFIER_MODE", "keyword")
	cfg.Responder.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")
	cfg.Responder.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "")
	cfg.Responder.MinLatency = getEnvDuration("RESPONDER_MIN_LATENCY", 2*time.Second)
	cfg.Responder.MaxLatency = getEnvDuration("RESPONDER_MAX_LATENCY", 4*time.Second)
	cfg.Responder.CacheTTL = getEnvDuration("CLASSIFIER_CACHE_TTL", 10*time.Minute)
	cfg.Responder.CacheMaxSize = getEnvInt("CLASSIFIER_CACHE_MAX_SIZE", 1000)
	cfg.Responder.OpenAPIPath = getEnvString("OPENAPI_SCHEMA_PATH", "")

	cfg.Vault.Enabled = getEnvBool("VAULT_ENABLED", false)
	cfg.Vault.Address = getEnvString("VAULT_ADDR", "")
	cfg.Vault.Token = getEnvString("VAULT_TOKEN", "")
	cfg.Vault.Namespace = getEnvString("VAULT_NAMESPACE", "")
	cfg.Vault.SecretsPath = getEnvString("VAULT_SECRETS_PATH", "langgraph-chat")

	return cfg
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
