package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Audit store backends
const (
	AuditStoreSQLite   = "sqlite"
	AuditStorePostgres = "postgres"
	AuditStoreMemory   = "memory"
)

// MaxEngineMemoryLimitMB is the 4GiB address space of a 32-bit
// WebAssembly memory (65536 pages of 64KiB)
const MaxEngineMemoryLimitMB = 4096

// Engine provider kinds
const (
	EngineProviderWasm     = "wasm"
	EngineProviderBuiltin  = "builtin"
	EngineProviderDisabled = "disabled"
)

// Config represents the complete application configuration
type Config struct {
	ProjectName   string
	Version       string
	Server        ServerConfig
	AuditStore    AuditStoreConfig
	Engine        EngineConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// AuditStoreConfig selects and configures the calculation audit store.
type AuditStoreConfig struct {
	Driver     string // sqlite, postgres or memory
	SQLitePath string
	Postgres   DatabaseConfig
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// EngineConfig holds native engine configuration
type EngineConfig struct {
	Provider       string // wasm, builtin or disabled
	WasmPath       string
	CallTimeout    time.Duration
	MaxConcurrency int
	MemoryLimitMB  int
}

// RateLimitConfig holds per-client rate limiting for engine routes.
// RequestsPerSecond <= 0 disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// CORSConfig holds allowed CORS origins
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel            string
	LogFormat           string // json or console
	MetricsEnabled      bool
	MetricsOTLPEndpoint string
	MetricsOTLPInsecure bool
	MetricsInterval     time.Duration
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		ProjectName: getEnv("PROJECT_NAME", "Engine Gateway"),
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
		},
		AuditStore: AuditStoreConfig{
			Driver:     strings.ToLower(getEnv("AUDIT_STORE", AuditStoreSQLite)),
			SQLitePath: getEnv("SQLITE_PATH", "./engine-gateway.db"),
			Postgres:   loadDatabaseConfig(),
		},
		Engine: EngineConfig{
			Provider:       strings.ToLower(getEnv("ENGINE_PROVIDER", EngineProviderWasm)),
			WasmPath:       getEnv("ENGINE_WASM_PATH", "engine/build/engine.wasm"),
			CallTimeout:    getEnvAsDuration("ENGINE_CALL_TIMEOUT", 5*time.Second),
			MaxConcurrency: getEnvAsInt("ENGINE_MAX_CONCURRENCY", 8),
			MemoryLimitMB:  getEnvAsInt("ENGINE_MEMORY_LIMIT_MB", 64),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 0),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:            getEnv("LOG_LEVEL", "info"),
			LogFormat:           getEnv("LOG_FORMAT", "json"),
			MetricsEnabled:      getEnvAsBool("METRICS_ENABLED", true),
			MetricsOTLPEndpoint: getEnv("METRICS_OTLP_ENDPOINT", ""),
			MetricsOTLPInsecure: getEnvAsBool("METRICS_OTLP_INSECURE", true),
			MetricsInterval:     getEnvAsDuration("METRICS_INTERVAL", 30*time.Second),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.AuditStore.Driver {
	case AuditStoreSQLite:
		if c.AuditStore.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required when AUDIT_STORE=sqlite")
		}
	case AuditStorePostgres:
		db := c.AuditStore.Postgres
		if db.ConnectionString == "" && db.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if db.ConnectionString == "" {
			if db.User == "" {
				return fmt.Errorf("database user is required")
			}
			if db.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	case AuditStoreMemory:
	default:
		return fmt.Errorf("unknown audit store %q (want sqlite, postgres or memory)", c.AuditStore.Driver)
	}

	switch c.Engine.Provider {
	case EngineProviderWasm:
		if c.Engine.WasmPath == "" {
			return fmt.Errorf("engine wasm path is required when ENGINE_PROVIDER=wasm")
		}
	case EngineProviderBuiltin, EngineProviderDisabled:
	default:
		return fmt.Errorf("unknown engine provider %q (want wasm, builtin or disabled)", c.Engine.Provider)
	}

	if c.Engine.CallTimeout <= 0 {
		return fmt.Errorf("engine call timeout must be positive")
	}
	if c.Engine.MaxConcurrency <= 0 {
		return fmt.Errorf("engine max concurrency must be at least 1")
	}
	if c.Engine.MemoryLimitMB < 0 || c.Engine.MemoryLimitMB > MaxEngineMemoryLimitMB {
		return fmt.Errorf("engine memory limit must be between 0 and %d MB", MaxEngineMemoryLimitMB)
	}

	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit burst must be positive when rate limiting is enabled")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "engine"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8000)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated value, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
