package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zatekoja/mindcare-directory/pkg/secrets"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	OTEL     OTELConfig
	Booking  BookingConfig
	Contact  ContactConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Env      string
	LogLevel string
	// AdminToken guards administrative endpoints; empty disables them
	AdminToken string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// BookingConfig holds provider availability and booking session settings
type BookingConfig struct {
	// ProviderAPIURL is the directory back office; empty serves fixtures
	ProviderAPIURL     string
	ProviderAPIKey     string
	ProviderAPITimeout time.Duration
	FixturesPath       string
	// AvailabilityCacheTTL and SessionTTL are in seconds
	AvailabilityCacheTTL int
	SessionTTL           int
	BatchWait            time.Duration
	// WarmProviderIDs are reloaded into the cache every WarmInterval
	WarmProviderIDs []string
	WarmInterval    time.Duration
}

// ContactConfig holds contact quota settings
type ContactConfig struct {
	Allowance int
	// QuotaBackend is one of redis, postgres or memory
	QuotaBackend       string
	RateLimitPerMinute int
	RateLimitBurst     int
	// FlowTTL is how long an untouched contact request stays open
	FlowTTL time.Duration
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables
// take precedence over it. With VAULT_ENABLED=true the Vault secret at
// VAULT_PATH is exported into the environment before anything is read.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := secrets.Apply(ctx, secrets.ConfigFromEnv()); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Env:        getEnv("APP_ENV", "development"),
			LogLevel:   getEnv("LOG_LEVEL", "info"),
			AdminToken: getEnv("ADMIN_TOKEN", ""),
		},
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			CORSOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "mindcare_directory"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 25),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "mindcare-directory"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Booking: BookingConfig{
			ProviderAPIURL:       getEnv("PROVIDER_API_URL", ""),
			ProviderAPIKey:       getEnv("PROVIDER_API_KEY", ""),
			ProviderAPITimeout:   getEnvAsDuration("PROVIDER_API_TIMEOUT", 10*time.Second),
			FixturesPath:         getEnv("PROVIDER_FIXTURES_PATH", ""),
			AvailabilityCacheTTL: getEnvAsInt("AVAILABILITY_CACHE_TTL", 60),
			SessionTTL:           getEnvAsInt("BOOKING_SESSION_TTL", 86400),
			BatchWait:            getEnvAsDuration("PROVIDER_BATCH_WAIT", 5*time.Millisecond),
			WarmProviderIDs:      getEnvAsList("AVAILABILITY_WARM_PROVIDERS", nil),
			WarmInterval:         getEnvAsDuration("AVAILABILITY_WARM_INTERVAL", 5*time.Minute),
		},
		Contact: ContactConfig{
			Allowance:          getEnvAsInt("CONTACT_ALLOWANCE", 5),
			QuotaBackend:       strings.ToLower(getEnv("CONTACT_QUOTA_BACKEND", "redis")),
			RateLimitPerMinute: getEnvAsInt("CONTACT_RATE_LIMIT_PER_MINUTE", 30),
			RateLimitBurst:     getEnvAsInt("CONTACT_RATE_LIMIT_BURST", 10),
			FlowTTL:            getEnvAsDuration("CONTACT_FLOW_TTL", 30*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	switch c.Contact.QuotaBackend {
	case "redis", "postgres", "memory":
	default:
		return fmt.Errorf("invalid CONTACT_QUOTA_BACKEND %q: expected redis, postgres or memory", c.Contact.QuotaBackend)
	}
	if c.Contact.Allowance <= 0 {
		return fmt.Errorf("invalid CONTACT_ALLOWANCE %d: must be positive", c.Contact.Allowance)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP listen address
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
