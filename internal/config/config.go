package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Server   ServerConfig
	Storage  StorageConfig
	Audit    AuditConfig
	Runner   RunnerConfig
	Slack    SlackConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // Redis connection config
	DB       int
}

// JWTConfig holds token authentication settings.
type JWTConfig struct {
	Secret    string //nolint:gosec // JWT signing secret config
	AccessTTL time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// StorageConfig selects and parameterizes the artifact store backend.
type StorageConfig struct {
	Backend          string // "local", "memory", or "redis"
	Root             string // base directory for the local backend
	RedisPrefix      string // key prefix for the redis backend
	MaxArtifactBytes int64
}

// AuditConfig holds audit log settings.
type AuditConfig struct {
	Dir string
}

// RunnerConfig holds run execution settings.
type RunnerConfig struct {
	Timeout time.Duration
	Workers int
	Queue   int
}

// SlackConfig holds notification settings. An empty token disables Slack
// delivery; notifications fall back to the process log.
type SlackConfig struct {
	BotToken string
	Channel  string
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("OPSLEDGER_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("OPSLEDGER_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("OPSLEDGER_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	accessTTL, err := getEnvDuration("OPSLEDGER_JWT_ACCESS_TTL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("OPSLEDGER_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("OPSLEDGER_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxArtifactMB, err := getEnvInt("OPSLEDGER_MAX_ARTIFACT_MB", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	runTimeout, err := getEnvDuration("OPSLEDGER_RUN_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	runWorkers, err := getEnvInt("OPSLEDGER_RUN_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	runQueue, err := getEnvInt("OPSLEDGER_RUN_QUEUE", 64)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("OPSLEDGER_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("OPSLEDGER_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("OPSLEDGER_DB_USER", "opsledger"),
			Password: getEnv("OPSLEDGER_DB_PASSWORD", ""),
			DBName:   getEnv("OPSLEDGER_DB_NAME", "opsledger_dev"),
			SSLMode:  getEnv("OPSLEDGER_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("OPSLEDGER_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("OPSLEDGER_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:    getEnv("OPSLEDGER_JWT_SECRET", ""),
			AccessTTL: accessTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("OPSLEDGER_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Storage: StorageConfig{
			Backend:          getEnv("OPSLEDGER_STORAGE_BACKEND", "local"),
			Root:             getEnv("OPSLEDGER_STORAGE_ROOT", "./data/artifacts"),
			RedisPrefix:      getEnv("OPSLEDGER_STORAGE_REDIS_PREFIX", "artifact:"),
			MaxArtifactBytes: int64(maxArtifactMB) * 1024 * 1024,
		},
		Audit: AuditConfig{
			Dir: getEnv("OPSLEDGER_AUDIT_DIR", "./data/audit"),
		},
		Runner: RunnerConfig{
			Timeout: runTimeout,
			Workers: runWorkers,
			Queue:   runQueue,
		},
		Slack: SlackConfig{
			BotToken: getEnv("OPSLEDGER_SLACK_BOT_TOKEN", ""),
			Channel:  getEnv("OPSLEDGER_SLACK_CHANNEL", ""),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("OPSLEDGER_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("OPSLEDGER_JWT_SECRET must be at least 32 characters")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("OPSLEDGER_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("OPSLEDGER_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("OPSLEDGER_JWT_ACCESS_TTL must be positive, got %s", c.JWT.AccessTTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("OPSLEDGER_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("OPSLEDGER_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}

	switch c.Storage.Backend {
	case "local", "memory", "redis":
	default:
		return fmt.Errorf("OPSLEDGER_STORAGE_BACKEND must be local, memory, or redis, got %q", c.Storage.Backend)
	}
	if c.Storage.MaxArtifactBytes < 1 {
		return fmt.Errorf("OPSLEDGER_MAX_ARTIFACT_MB must be >= 1, got %d", c.Storage.MaxArtifactBytes)
	}

	if c.Runner.Timeout <= 0 {
		return fmt.Errorf("OPSLEDGER_RUN_TIMEOUT must be positive, got %s", c.Runner.Timeout)
	}
	if c.Runner.Workers < 1 {
		return fmt.Errorf("OPSLEDGER_RUN_WORKERS must be >= 1, got %d", c.Runner.Workers)
	}
	if c.Runner.Queue < 1 {
		return fmt.Errorf("OPSLEDGER_RUN_QUEUE must be >= 1, got %d", c.Runner.Queue)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
