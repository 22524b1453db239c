// Package config loads application settings from the environment and an
// optional .env / config.env file. Environment variables win.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config groups all settings.
type Config struct {
	App         AppConfig
	HTTP        HTTPConfig
	DB          DBConfig
	JWT         JWTConfig
	Ledger      LedgerConfig
	Idempotency IdempotencyConfig
	Worker      WorkerConfig
}

// AppConfig holds general settings.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// IsDevelopment reports whether the app runs in development mode.
func (c AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Addr returns host:port.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DBConfig holds PostgreSQL settings. DatabaseURL, when set, overrides the
// individual connection fields.
type DBConfig struct {
	Driver      string // postgres or memory
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int32
	MinConns    int32
	AutoMigrate bool
}

// ConnectionString returns DatabaseURL or the DSN built from the fields.
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN builds a postgres URL, escaping special characters in the password.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// JWTConfig holds access token settings.
type JWTConfig struct {
	Secret    string
	AccessTTL time.Duration
	Issuer    string
}

// LedgerConfig holds ledger transaction settings.
type LedgerConfig struct {
	StatementTimeout time.Duration
}

// IdempotencyConfig holds idempotency key settings.
type IdempotencyConfig struct {
	TTL time.Duration
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_NAME", "tsdstock")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 8080)
	v.SetDefault("HTTP_READ_TIMEOUT", 15*time.Second)
	v.SetDefault("HTTP_WRITE_TIMEOUT", 30*time.Second)

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "tsdstock")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_ACCESS_TTL", 12*time.Hour)
	v.SetDefault("JWT_ISSUER", "tsdstock")

	v.SetDefault("LEDGER_STATEMENT_TIMEOUT", 30*time.Second)
	v.SetDefault("IDEMPOTENCY_TTL", 24*time.Hour)

	v.SetDefault("WORKER_POLL_INTERVAL", 5*time.Second)
	v.SetDefault("WORKER_BATCH_SIZE", 100)
}

// Load reads the configuration. Missing config files are not an error.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	for _, name := range []string{".env", "config"} {
		v.SetConfigName(name)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read %s: %w", name, err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("APP_ENV"),
			Name:     v.GetString("APP_NAME"),
			LogLevel: v.GetString("LOG_LEVEL"),
		},
		HTTP: HTTPConfig{
			Host:         v.GetString("HTTP_HOST"),
			Port:         v.GetInt("HTTP_PORT"),
			ReadTimeout:  v.GetDuration("HTTP_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("HTTP_WRITE_TIMEOUT"),
		},
		DB: DBConfig{
			Driver:      v.GetString("DB_DRIVER"),
			DatabaseURL: v.GetString("DATABASE_URL"),
			Host:        v.GetString("DB_HOST"),
			Port:        v.GetInt("DB_PORT"),
			User:        v.GetString("DB_USER"),
			Password:    v.GetString("DB_PASSWORD"),
			DBName:      v.GetString("DB_NAME"),
			SSLMode:     v.GetString("DB_SSLMODE"),
			MaxConns:    v.GetInt32("DB_MAX_CONNS"),
			MinConns:    v.GetInt32("DB_MIN_CONNS"),
			AutoMigrate: v.GetBool("DB_AUTO_MIGRATE"),
		},
		JWT: JWTConfig{
			Secret:    v.GetString("JWT_SECRET"),
			AccessTTL: v.GetDuration("JWT_ACCESS_TTL"),
			Issuer:    v.GetString("JWT_ISSUER"),
		},
		Ledger: LedgerConfig{
			StatementTimeout: v.GetDuration("LEDGER_STATEMENT_TIMEOUT"),
		},
		Idempotency: IdempotencyConfig{
			TTL: v.GetDuration("IDEMPOTENCY_TTL"),
		},
		Worker: WorkerConfig{
			PollInterval: v.GetDuration("WORKER_POLL_INTERVAL"),
			BatchSize:    v.GetInt("WORKER_BATCH_SIZE"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" && !c.App.IsDevelopment() {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP_PORT %d is out of range", c.HTTP.Port)
	}
	if c.DB.Driver != "postgres" && c.DB.Driver != "memory" {
		return fmt.Errorf("DB_DRIVER %q is not supported", c.DB.Driver)
	}
	if c.Worker.BatchSize <= 0 {
		return fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}
	return nil
}
