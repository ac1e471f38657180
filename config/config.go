package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config конфигурация сервиса, собирается из переменных окружения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Metrics  MetricsConfig
	Links    LinksConfig
	Notify   NotifyConfig
}

type ServerConfig struct {
	Address string
	Env     string
}

type DatabaseConfig struct {
	ConnString      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type MetricsConfig struct {
	Prefix string
}

// LinksConfig параметры ссылок для партнёров
type LinksConfig struct {
	TTL           time.Duration
	WarnWithin    time.Duration
	PublicBaseURL string
}

// NotifyConfig куда отправлять уведомления: в лог или через SES
type NotifyConfig struct {
	Backend   string
	FromEmail string
	ToEmail   string
	Region    string
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", "0.0.0.0:8080"),
			Env:     getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			ConnString:      getEnv("POSTGRES_CONN", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", "bidtracker"),
		},
		Links: LinksConfig{
			TTL:           getEnvAsDuration("PARTNER_LINK_TTL", 30*24*time.Hour),
			WarnWithin:    getEnvAsDuration("PARTNER_LINK_WARN_WITHIN", 3*24*time.Hour),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Notify: NotifyConfig{
			Backend:   getEnv("NOTIFY_BACKEND", "log"),
			FromEmail: getEnv("SES_FROM_EMAIL", ""),
			ToEmail:   getEnv("NOTIFY_TO_EMAIL", ""),
			Region:    getEnv("AWS_REGION", "eu-central-1"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.Database.ConnString == "" {
		return errors.New("POSTGRES_CONN env variable is not set")
	}
	switch c.Notify.Backend {
	case "log":
	case "ses":
		if c.Notify.FromEmail == "" {
			return errors.New("SES_FROM_EMAIL is required for ses notify backend")
		}
	default:
		return errors.New("NOTIFY_BACKEND must be log or ses")
	}
	if c.Links.TTL <= 0 {
		return errors.New("PARTNER_LINK_TTL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
