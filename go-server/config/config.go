package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"golang.org/x/crypto/bcrypt"
)

// ConfigPathEnvVar points at an optional YAML file layered between defaults and the environment.
const ConfigPathEnvVar = "CONFIG_PATH"

var (
	ErrMissingSecretKey = errors.New("SECRET_KEY not set")
	ErrMissingAlgorithm = errors.New("ALGORITHM not set")
	ErrMissingDatabase  = errors.New("either DATABASE_URL or POSTGRES_HOST, POSTGRES_USER, and POSTGRES_DB must be set")
)

// Config represents the application settings. Keys match the lower-cased
// environment variable names so every field can be set from the environment.
type Config struct {
	Env           string `koanf:"env"`
	ServerAddr    string `koanf:"server_addr"`
	ServiceName   string `koanf:"service_name"`
	LogLevel      string `koanf:"log_level"`
	LokiURL       string `koanf:"loki_url"`
	OTLPEndpoint  string `koanf:"otel_exporter_otlp_endpoint"`
	PublicBaseURL string `koanf:"public_base_url"`

	SecretKey          string `koanf:"secret_key"`
	Algorithm          string `koanf:"algorithm"`
	AccessTokenMinutes int    `koanf:"access_token_expire_minutes"`
	BcryptCost         int    `koanf:"bcrypt_cost"`

	DatabaseURL      string        `koanf:"database_url"`
	PostgresHost     string        `koanf:"postgres_host"`
	PostgresPort     int           `koanf:"postgres_port"`
	PostgresDB       string        `koanf:"postgres_db"`
	PostgresUser     string        `koanf:"postgres_user"`
	PostgresPassword string        `koanf:"postgres_password"`
	PostgresSSLMode  string        `koanf:"postgres_sslmode"`
	DBTimeout        time.Duration `koanf:"db_timeout"`
	RunMigrations    bool          `koanf:"run_migrations"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`

	ShortKeyLength     int  `koanf:"short_key_length"`
	SecretSuffixLength int  `koanf:"secret_suffix_length"`
	KeygenMaxAttempts  int  `koanf:"keygen_max_attempts"`
	HideURLExistence   bool `koanf:"hide_url_existence"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

func defaultConfig() *Config {
	return &Config{
		Env:                "development",
		ServerAddr:         ":8080",
		ServiceName:        "linkkeep",
		LogLevel:           "info",
		PublicBaseURL:      "http://localhost:8080",
		AccessTokenMinutes: 30,
		BcryptCost:         bcrypt.DefaultCost,
		PostgresPort:       5432,
		PostgresSSLMode:    "prefer",
		DBTimeout:          5 * time.Second,
		RunMigrations:      true,
		ShortKeyLength:     8,
		SecretSuffixLength: 11,
		KeygenMaxAttempts:  10,
		RateLimitRequests:  20,
		RateLimitWindow:    time.Minute,
	}
}

// LoadConfig loads .env (if present), then layers defaults, an optional YAML
// file and the process environment, and validates the result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and fills the derived database URL.
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return ErrMissingSecretKey
	}
	if c.Algorithm == "" {
		return ErrMissingAlgorithm
	}
	if c.AccessTokenMinutes <= 0 {
		return fmt.Errorf("invalid ACCESS_TOKEN_EXPIRE_MINUTES: %d", c.AccessTokenMinutes)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("invalid BCRYPT_COST: %d", c.BcryptCost)
	}
	if c.ShortKeyLength < 4 {
		return fmt.Errorf("invalid SHORT_KEY_LENGTH: %d (minimum 4)", c.ShortKeyLength)
	}
	if c.SecretSuffixLength < 8 {
		return fmt.Errorf("invalid SECRET_SUFFIX_LENGTH: %d (minimum 8)", c.SecretSuffixLength)
	}
	if c.KeygenMaxAttempts <= 0 {
		return fmt.Errorf("invalid KEYGEN_MAX_ATTEMPTS: %d", c.KeygenMaxAttempts)
	}
	if c.DBTimeout <= 0 {
		return fmt.Errorf("invalid DB_TIMEOUT: %s", c.DBTimeout)
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per %s", c.RateLimitRequests, c.RateLimitWindow)
	}

	if c.DatabaseURL == "" {
		if c.PostgresHost == "" || c.PostgresUser == "" || c.PostgresDB == "" {
			return ErrMissingDatabase
		}
		c.DatabaseURL = buildPostgresURL(c)
	}
	return nil
}

// AccessTokenTTL is the lifetime of issued bearer tokens.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// buildPostgresURL constructs PostgreSQL connection URL from individual parameters
func buildPostgresURL(config *Config) string {
	password := ""
	if config.PostgresPassword != "" {
		password = ":" + config.PostgresPassword
	}

	return fmt.Sprintf("postgres://%s%s@%s:%d/%s?sslmode=%s",
		config.PostgresUser,
		password,
		config.PostgresHost,
		config.PostgresPort,
		config.PostgresDB,
		config.PostgresSSLMode,
	)
}
