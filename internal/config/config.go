package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	Port        string
	LogLevel    slog.Level
	LogFile     string

	Database  DatabaseConfig
	RedisURL  string
	Casdoor   CasdoorConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	RateLimit RateLimitConfig

	// RegradeLockTTL bounds how long one essay re-grade may hold its submission lock
	RegradeLockTTL time.Duration
}

type DatabaseConfig struct {
	Driver          string // postgres or mysql
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type CasdoorConfig struct {
	Endpoint     string
	ClientID     string
	ClientSecret string
	Cert         string
	Organization string
	Application  string
}

type KafkaConfig struct {
	Brokers         []string
	Topic           string // xAPI statements
	SubmissionTopic string // submission lifecycle events
}

// Enabled reports whether statements are streamed to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type TelemetryConfig struct {
	BaseURL           string
	QueueSize         int
	Workers           int
	PersistStatements bool
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// LoadConfig reads configuration from the environment, loading .env first when present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		LogFile:     getEnv("LOG_FILE", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:    getEnv("DATABASE_URL", ""),
		},
		Casdoor: CasdoorConfig{
			Endpoint:     getEnv("CASDOOR_ENDPOINT", ""),
			ClientID:     getEnv("CASDOOR_CLIENT_ID", ""),
			ClientSecret: getEnv("CASDOOR_CLIENT_SECRET", ""),
			Cert:         getEnv("CASDOOR_CERT", ""),
			Organization: getEnv("CASDOOR_ORGANIZATION", ""),
			Application:  getEnv("CASDOOR_APPLICATION", ""),
		},
		Kafka: KafkaConfig{
			Brokers:         splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:           getEnv("KAFKA_XAPI_TOPIC", "lms.xapi.statements"),
			SubmissionTopic: getEnv("KAFKA_SUBMISSION_TOPIC", "lms.submissions"),
		},
		Telemetry: TelemetryConfig{
			BaseURL: getEnv("BASE_URL", "http://localhost:5000"),
		},
	}

	var err error
	if cfg.LogLevel, err = parseLogLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	if cfg.Database.MaxOpenConns, err = getEnvInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdleConns, err = getEnvInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.Database.ConnMaxLifetime, err = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate, err = getEnvBool("DB_AUTO_MIGRATE", true); err != nil {
		return nil, err
	}
	if cfg.Telemetry.QueueSize, err = getEnvInt("TELEMETRY_QUEUE_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.Telemetry.Workers, err = getEnvInt("TELEMETRY_WORKERS", 2); err != nil {
		return nil, err
	}
	if cfg.Telemetry.PersistStatements, err = getEnvBool("TELEMETRY_PERSIST", true); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Requests, err = getEnvInt("SUBMIT_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Window, err = getEnvDuration("SUBMIT_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.RegradeLockTTL, err = getEnvDuration("REGRADE_LOCK_TTL", 10*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and consistent.
func (c *Config) Validate() error {
	var problems []string

	if c.Database.DSN == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.Database.Driver != "postgres" && c.Database.Driver != "mysql" {
		problems = append(problems, fmt.Sprintf("unsupported DB_DRIVER %q", c.Database.Driver))
	}
	if c.Telemetry.QueueSize <= 0 {
		problems = append(problems, "TELEMETRY_QUEUE_SIZE must be positive")
	}
	if c.Telemetry.Workers <= 0 {
		problems = append(problems, "TELEMETRY_WORKERS must be positive")
	}
	if c.RateLimit.Requests < 0 || (c.RateLimit.Requests > 0 && c.RateLimit.Window <= 0) {
		problems = append(problems, "SUBMIT_RATE_LIMIT and SUBMIT_RATE_WINDOW must be positive")
	}
	if c.RegradeLockTTL <= 0 {
		problems = append(problems, "REGRADE_LOCK_TTL must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	return level, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
