package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/anonto42/campus-connect/backend/pkg/logger"
	"github.com/joho/godotenv"
)

const (
	TypingStorePostgres = "postgres"
	TypingStoreMongo    = "mongo"
)

type Config struct {
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	FirebaseProjectID       string
	FirebaseCheckRevoked    bool
	JWTSecret               string
	PostgresConnStr         string
	MongoURI                string
	MongoDatabase           string
	TypingStore             string
	RedisAddr               string
	RedisPassword           string
	MetricsPort             string

	TypingDebounce    time.Duration
	TypingTTL         time.Duration
	TypingRetention   time.Duration
	TypingJanitorSpec string
	SearchLimit       int
}

// Load reads .env when present, then the configuration from the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded, using process environment", "error", err)
	}

	cfg := &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCheckRevoked:    getEnvBool("FIREBASE_CHECK_REVOKED", false),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		PostgresConnStr:         getEnv("POSTGRES_CONN_STR", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "campusconnect"),
		TypingStore:             getEnv("TYPING_STORE", TypingStorePostgres),
		RedisAddr:               getEnv("REDIS_ADDR", ""), // keep empty to run single-instance without redis
		RedisPassword:           getEnv("REDIS_PASSWORD", ""),
		MetricsPort:             getEnv("METRICS_PORT", "9090"),

		TypingDebounce:    getEnvDuration("TYPING_DEBOUNCE", time.Second),
		TypingTTL:         getEnvDuration("TYPING_TTL", 5*time.Second),
		TypingRetention:   getEnvDuration("TYPING_RETENTION", time.Hour),
		TypingJanitorSpec: getEnv("TYPING_JANITOR_SPEC", "@every 10m"),
		SearchLimit:       getEnvInt("SEARCH_LIMIT", 5),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.PostgresConnStr == "" {
		return fmt.Errorf("POSTGRES_CONN_STR is required")
	}
	if c.FirebaseCredentialsPath == "" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required when FIREBASE_CREDENTIALS_PATH is not set")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters")
		}
	}
	switch c.TypingStore {
	case TypingStorePostgres:
	case TypingStoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when TYPING_STORE=mongo")
		}
	default:
		return fmt.Errorf("TYPING_STORE must be %q or %q", TypingStorePostgres, TypingStoreMongo)
	}
	if c.TypingTTL <= 0 || c.TypingDebounce < 0 {
		return fmt.Errorf("TYPING_TTL must be positive and TYPING_DEBOUNCE non-negative")
	}
	return nil
}

// UseFirebase reports whether ID tokens are verified by Firebase instead of local JWTs
func (c *Config) UseFirebase() bool {
	return c.FirebaseCredentialsPath != ""
}

// UseRedis reports whether the change feed and locks are shared across instances
func (c *Config) UseRedis() bool {
	return c.RedisAddr != ""
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
