package config

import (
	cryptoRand "crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported store drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Config holds application configuration
type Config struct {
	Port     int    `mapstructure:"port"`
	BaseURL  string `mapstructure:"base_url"`
	SiteFile string `mapstructure:"site_file"`

	Log       LogConfig       `mapstructure:"log"`
	BlogDB    StoreConfig     `mapstructure:"blog_db"`
	KeysDB    StoreConfig     `mapstructure:"keys_db"`
	Admin     AdminConfig     `mapstructure:"admin"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Relay     RelayConfig     `mapstructure:"relay"`
	Mailgun   MailgunConfig   `mapstructure:"mailgun"`
	PostHog   PostHogConfig   `mapstructure:"posthog"`

	// Encryption at rest for contact e-mails.
	// 64 hex chars = 32 bytes AES-256 key; empty = disabled
	EncryptionKey string `mapstructure:"encryption_key"`
}

// LogConfig controls the zerolog setup
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// StoreConfig describes one of the two databases
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// AdminConfig holds the shared secret for the administrative caller
type AdminConfig struct {
	APIKey     string `mapstructure:"api_key"`
	APIKeyHash string `mapstructure:"api_key_hash"` // bcrypt hash, preferred over APIKey when set
	JWTSecret  string `mapstructure:"jwt_secret"`
	Email      string `mapstructure:"email"` // receives new key request notifications
}

// RateLimitConfig limits the unauthenticated key endpoints per client IP
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

// RelayConfig configures the live event relay
type RelayConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	TCPAddr      string `mapstructure:"tcp_addr"`
	MaxLineBytes int    `mapstructure:"max_line_bytes"`
	ViewerBuffer int    `mapstructure:"viewer_buffer"`
	RedisURL     string `mapstructure:"redis_url"`
	Channel      string `mapstructure:"channel"`
}

// MailgunConfig holds notification e-mail settings
type MailgunConfig struct {
	Domain    string `mapstructure:"domain"`
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
	EU        bool   `mapstructure:"eu"`
}

// PostHogConfig holds analytics settings
type PostHogConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Host    string `mapstructure:"host"`
	Enabled bool   `mapstructure:"enabled"`
}

// envAliases maps config keys to the bare environment names accepted
// alongside the AGENTBLOG_ prefixed ones.
var envAliases = map[string][]string{
	"port":                           {"PORT"},
	"base_url":                       {"BASE_URL"},
	"site_file":                      {"SITE_FILE"},
	"log.level":                      {"LOG_LEVEL"},
	"log.format":                     {"LOG_FORMAT"},
	"log.file":                       {"LOG_FILE"},
	"blog_db.driver":                 {"BLOG_DB_DRIVER"},
	"blog_db.dsn":                    {"BLOG_DB_DSN"},
	"keys_db.driver":                 {"KEYS_DB_DRIVER"},
	"keys_db.dsn":                    {"KEYS_DB_DSN"},
	"admin.api_key":                  {"ADMIN_API_KEY"},
	"admin.api_key_hash":             {"ADMIN_API_KEY_HASH"},
	"admin.jwt_secret":               {"JWT_SECRET"},
	"admin.email":                    {"ADMIN_EMAIL"},
	"rate_limit.requests_per_minute": {"RATE_LIMIT_PER_MINUTE"},
	"rate_limit.burst":               {"RATE_LIMIT_BURST"},
	"relay.enabled":                  {"RELAY_ENABLED"},
	"relay.tcp_addr":                 {"RELAY_TCP_ADDR"},
	"relay.max_line_bytes":           {"RELAY_MAX_LINE_BYTES"},
	"relay.viewer_buffer":            {"RELAY_VIEWER_BUFFER"},
	"relay.redis_url":                {"REDIS_URL"},
	"relay.channel":                  {"RELAY_CHANNEL"},
	"mailgun.domain":                 {"MAILGUN_DOMAIN"},
	"mailgun.api_key":                {"MAILGUN_API_KEY"},
	"mailgun.from_email":             {"MAILGUN_FROM_EMAIL"},
	"mailgun.from_name":              {"MAILGUN_FROM_NAME"},
	"mailgun.eu":                     {"MAILGUN_EU"},
	"posthog.api_key":                {"POSTHOG_API_KEY"},
	"posthog.host":                   {"POSTHOG_HOST"},
	"posthog.enabled":                {"POSTHOG_ENABLED"},
	"encryption_key":                 {"ENCRYPTION_KEY"},
}

// Load reads .env (if present), then layers defaults < YAML file < environment.
// An empty configPath looks for config.yaml in the working directory.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("AGENTBLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Generate JWT secret if not provided
	if cfg.Admin.JWTSecret == "" {
		cfg.Admin.JWTSecret = generateRandomSecret(32)
	}

	return &cfg, nil
}

// bindEnvVars binds every key to its prefixed name and its bare alias.
// Unmarshal only sees env values for keys viper knows about.
func bindEnvVars(v *viper.Viper) error {
	for key, aliases := range envAliases {
		prefixed := "AGENTBLOG_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := append([]string{key, prefixed}, aliases...)
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("site_file", "site.yaml")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")

	v.SetDefault("blog_db.driver", DriverSQLite)
	v.SetDefault("blog_db.dsn", "blog.db")
	v.SetDefault("keys_db.driver", DriverSQLite)
	v.SetDefault("keys_db.dsn", "comment_keys.db")

	v.SetDefault("admin.api_key", "")
	v.SetDefault("admin.api_key_hash", "")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.email", "")

	v.SetDefault("rate_limit.requests_per_minute", 10)
	v.SetDefault("rate_limit.burst", 5)

	v.SetDefault("relay.enabled", true)
	v.SetDefault("relay.tcp_addr", ":9999")
	v.SetDefault("relay.max_line_bytes", 1<<20)
	v.SetDefault("relay.viewer_buffer", 64)
	v.SetDefault("relay.redis_url", "")
	v.SetDefault("relay.channel", "relay:agent_events")

	v.SetDefault("mailgun.domain", "")
	v.SetDefault("mailgun.api_key", "")
	v.SetDefault("mailgun.from_email", "noreply@localhost")
	v.SetDefault("mailgun.from_name", "Agent Blog")
	v.SetDefault("mailgun.eu", false)

	v.SetDefault("posthog.api_key", "")
	v.SetDefault("posthog.host", "https://eu.i.posthog.com")
	v.SetDefault("posthog.enabled", false)

	v.SetDefault("encryption_key", "")
}

// Validate checks the values that cannot be defaulted sensibly
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	for name, store := range map[string]StoreConfig{"blog_db": c.BlogDB, "keys_db": c.KeysDB} {
		if store.Driver != DriverSQLite && store.Driver != DriverPostgres {
			return fmt.Errorf("%s.driver must be %q or %q, got %q", name, DriverSQLite, DriverPostgres, store.Driver)
		}
		if store.DSN == "" {
			return fmt.Errorf("%s.dsn is required", name)
		}
	}
	if c.Admin.JWTSecret != "" && len(c.Admin.JWTSecret) < 32 {
		return fmt.Errorf("admin.jwt_secret must be at least 32 characters long")
	}
	if c.Relay.Enabled && c.Relay.TCPAddr == "" {
		return fmt.Errorf("relay.tcp_addr is required when the relay is enabled")
	}
	return nil
}

// HasAdminSecret reports whether administrative endpoints can be reached at all
func (c *Config) HasAdminSecret() bool {
	return c.Admin.APIKey != "" || c.Admin.APIKeyHash != ""
}

// generateRandomSecret generates a cryptographically secure random secret for JWT signing
func generateRandomSecret(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	if _, err := cryptoRand.Read(result); err != nil {
		panic("failed to generate random secret: " + err.Error())
	}
	for i := range result {
		result[i] = charset[result[i]%byte(len(charset))]
	}
	return string(result)
}
