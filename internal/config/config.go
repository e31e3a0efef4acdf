// Package config loads bootcamp settings from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all bootcamp configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	OIDC     OIDCConfig     `yaml:"oidc"`
	Client   ClientConfig   `yaml:"client"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr   string `yaml:"addr"`
	WebDir string `yaml:"web_dir"`
	APIKey string `yaml:"api_key"`
	// TrustForwardAuth accepts Remote-Email from a fronting proxy.
	TrustForwardAuth bool `yaml:"trust_forward_auth"`
}

// DatabaseConfig selects the record store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // memory, postgres
	URL    string `yaml:"url"`
}

// RedisConfig enables the Redis session store when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// AuthConfig configures sessions and the bootstrap admin.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	Issuer        string `yaml:"issuer"`
	SessionTTL    string `yaml:"session_ttl"`
	PurgeInterval string `yaml:"purge_interval"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

// OIDCConfig enables single sign-on when Issuer is set.
type OIDCConfig struct {
	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// ClientConfig configures the CLI's connection to a server.
type ClientConfig struct {
	ServerURL       string `yaml:"server_url"`
	CredentialsPath string `yaml:"credentials_path"`
	Timeout         string `yaml:"timeout"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Database drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:   ":8080",
			WebDir: "web",
		},
		Database: DatabaseConfig{
			Driver: DriverMemory,
		},
		Redis: RedisConfig{
			Prefix: "bootcamp",
		},
		Auth: AuthConfig{
			Issuer:        "bootcamp",
			SessionTTL:    "24h",
			PurgeInterval: "1h",
		},
		Client: ClientConfig{
			ServerURL:       "http://localhost:8080",
			CredentialsPath: filepath.Join(configDir(), "credentials.json"),
			Timeout:         "10s",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".bootcamp"
	}
	return filepath.Join(dir, "bootcamp")
}

// DefaultPath is where the CLI looks for its config file, unless
// BOOTCAMP_CONFIG names another.
func DefaultPath() string {
	if p := os.Getenv("BOOTCAMP_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(configDir(), "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file. The file may hold secrets, so
// it is readable by the owner only.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("WEB_DIR"); v != "" {
		c.Server.WebDir = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("TRUST_FORWARD_AUTH"); v != "" {
		c.Server.TrustForwardAuth, _ = strconv.ParseBool(v)
	}

	// A database URL implies postgres.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
		c.Database.Driver = DriverPostgres
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		c.Auth.AdminEmail = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		c.Auth.AdminPassword = v
	}

	if v := os.Getenv("OIDC_ISSUER"); v != "" {
		c.OIDC.Issuer = v
	}
	if v := os.Getenv("OIDC_CLIENT_ID"); v != "" {
		c.OIDC.ClientID = v
	}
	if v := os.Getenv("OIDC_CLIENT_SECRET"); v != "" {
		c.OIDC.ClientSecret = v
	}
	if v := os.Getenv("OIDC_REDIRECT_URL"); v != "" {
		c.OIDC.RedirectURL = v
	}

	if v := os.Getenv("BOOTCAMP_SERVER"); v != "" {
		c.Client.ServerURL = v
	}
}

func duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetSessionTTL returns the session lifetime.
func (c *Config) GetSessionTTL() time.Duration {
	return duration(c.Auth.SessionTTL, 24*time.Hour)
}

// GetPurgeInterval returns how often expired sessions are removed.
func (c *Config) GetPurgeInterval() time.Duration {
	return duration(c.Auth.PurgeInterval, time.Hour)
}

// GetClientTimeout returns the CLI's per-request timeout.
func (c *Config) GetClientTimeout() time.Duration {
	return duration(c.Client.Timeout, 10*time.Second)
}

// SSOEnabled reports whether single sign-on is configured.
func (c *Config) SSOEnabled() bool {
	return c.OIDC.Issuer != ""
}

// Validate checks the settings the server needs to start.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.URL == "" {
			return errors.New("postgres driver requires database.url (or DATABASE_URL)")
		}
	default:
		return fmt.Errorf("invalid database driver: %s (valid: memory, postgres)", c.Database.Driver)
	}

	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 bytes (or set JWT_SECRET)")
	}
	if _, err := time.ParseDuration(c.Auth.SessionTTL); err != nil {
		return fmt.Errorf("invalid auth.session_ttl: %w", err)
	}
	if (c.Auth.AdminEmail == "") != (c.Auth.AdminPassword == "") {
		return errors.New("auth.admin_email and auth.admin_password must be set together")
	}

	if c.SSOEnabled() && (c.OIDC.ClientID == "" || c.OIDC.RedirectURL == "") {
		return errors.New("oidc.issuer requires oidc.client_id and oidc.redirect_url")
	}
	return nil
}
