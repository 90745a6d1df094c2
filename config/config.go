package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"praxis-billing/logger"
)

// Config holds all runtime configuration. Every field maps to one env var.
type Config struct {
	// Server
	Port                 int    `mapstructure:"PORT"`
	Env                  string `mapstructure:"APP_ENV"`
	AllowedOrigins       string `mapstructure:"ALLOWED_ORIGINS"`
	BodyLimitMB          int    `mapstructure:"BODY_LIMIT_MB"`
	RateLimitMax         int    `mapstructure:"RATE_LIMIT_MAX"`
	RateLimitWindowSecs  int    `mapstructure:"RATE_LIMIT_WINDOW_SECONDS"`
	WorkerPoolSize       int    `mapstructure:"WORKER_POOL_SIZE"`
	TariffAPIURL         string `mapstructure:"TARIFF_API_URL"`
	TariffAPITimeoutSecs int    `mapstructure:"TARIFF_API_TIMEOUT_SECONDS"`

	// Database
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      int    `mapstructure:"DB_PORT"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`

	// Redis (optional, enables the async email queue)
	RedisURL string `mapstructure:"REDIS_URL"`

	// Auth
	JWTSecretKey string `mapstructure:"JWT_SECRET_KEY"`
	JWTSecret    string `mapstructure:"JWT_SECRET"`

	// SMTP
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUser     string `mapstructure:"SMTP_USER"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`

	// Invoices
	PDFStoragePath string `mapstructure:"PDF_STORAGE_PATH"`
	Currency       string `mapstructure:"CURRENCY"`
	CreditorName   string `mapstructure:"CREDITOR_NAME"` // used when the clinic has no own name/IBAN on file
	CreditorIBAN   string `mapstructure:"CREDITOR_IBAN"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
	LogOutput string `mapstructure:"LOG_OUTPUT"`
}

var defaults = map[string]any{
	"PORT":                       8080,
	"APP_ENV":                    "development",
	"ALLOWED_ORIGINS":            "*",
	"BODY_LIMIT_MB":              4,
	"RATE_LIMIT_MAX":             60,
	"RATE_LIMIT_WINDOW_SECONDS":  60,
	"WORKER_POOL_SIZE":           2,
	"TARIFF_API_URL":             "",
	"TARIFF_API_TIMEOUT_SECONDS": 10,
	"DATABASE_URL":               "",
	"DB_HOST":                    "db",
	"DB_PORT":                    5432,
	"DB_USER":                    "",
	"DB_PASSWORD":                "",
	"DB_NAME":                    "",
	"REDIS_URL":                  "",
	"JWT_SECRET_KEY":             "",
	"JWT_SECRET":                 "",
	"SMTP_HOST":                  "",
	"SMTP_PORT":                  587,
	"SMTP_USER":                  "",
	"SMTP_PASSWORD":              "",
	"SMTP_FROM":                  "",
	"PDF_STORAGE_PATH":           "/tmp/praxis-billing/pdfs",
	"CURRENCY":                   "CHF",
	"CREDITOR_NAME":              "",
	"CREDITOR_IBAN":              "",
	"LOG_LEVEL":                  "info",
	"LOG_FORMAT":                 "console",
	"LOG_OUTPUT":                 "stdout",
}

// Load reads .env (when present) into the environment and unmarshals all keys.
func Load() (*Config, error) {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the HTTP server cannot start without.
func (c *Config) Validate() error {
	if c.Secret() == "" {
		return errors.New("JWT secret not configured (set JWT_SECRET_KEY or JWT_SECRET)")
	}
	if c.DatabaseURL == "" && (c.DBUser == "" || c.DBName == "") {
		return errors.New("database not configured (set DATABASE_URL or DB_USER/DB_NAME)")
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	return nil
}

// Secret prefers JWT_SECRET_KEY and falls back to JWT_SECRET.
func (c *Config) Secret() string {
	if s := strings.TrimSpace(c.JWTSecretKey); s != "" {
		return s
	}
	return strings.TrimSpace(c.JWTSecret)
}

// DSN returns DATABASE_URL or a key/value DSN built from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=Europe/Zurich",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// BodyLimitBytes converts BODY_LIMIT_MB for fiber.Config.
func (c *Config) BodyLimitBytes() int {
	if c.BodyLimitMB <= 0 {
		return 4 * 1024 * 1024
	}
	return c.BodyLimitMB * 1024 * 1024
}

// SMTPEnabled reports whether outgoing mail is configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// LoggerConfig maps the LOG_* keys onto logger.LogConfig.
func (c *Config) LoggerConfig() logger.LogConfig {
	lc := logger.DefaultConfig()
	if c.LogLevel != "" {
		lc.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		lc.Format = c.LogFormat
	}
	if c.LogOutput != "" {
		lc.Output = c.LogOutput
	}
	return lc
}
