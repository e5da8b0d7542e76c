package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all gateway configuration
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"3000"`
	Env  string `envconfig:"ENV" default:"development"`

	// Remote school API. The base origin is the only required setting.
	API APIConfig

	// Token store backend selection
	TokenStore TokenStoreConfig

	// Database configuration (postgres token store)
	Database DatabaseConfig

	// Redis configuration (redis token store)
	RedisURL string `envconfig:"REDIS_URL" default:""`

	// Optional Google SSO
	Google GoogleConfig
}

// APIConfig holds the remote API client configuration
type APIConfig struct {
	BaseURL string        `envconfig:"API_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"API_TIMEOUT" default:"15s"`

	// RefreshSkew is how close to expiry the client proactively refreshes
	// before sending an authenticated request. The token store itself
	// applies no skew.
	RefreshSkew time.Duration `envconfig:"API_REFRESH_SKEW" default:"30s"`
}

// TokenStoreConfig selects and configures the credential persistence backend
type TokenStoreConfig struct {
	Backend   string `envconfig:"TOKEN_STORE" default:"file"`
	FilePath  string `envconfig:"TOKEN_STORE_FILE" default:".gatehouse-session.json"`
	Namespace string `envconfig:"TOKEN_STORE_NAMESPACE" default:"gatehouse"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:""`
	Password string `envconfig:"DB_PASSWORD" default:""`
	Name     string `envconfig:"DB_NAME" default:""`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"require"`
}

// ConnectionString returns the PostgreSQL connection string
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// GoogleConfig holds Google OAuth2 configuration; SSO is disabled when
// the client ID is empty.
type GoogleConfig struct {
	ClientID     string `envconfig:"GOOGLE_CLIENT_ID" default:""`
	ClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET" default:""`
	RedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL" default:""`
}

// Enabled reports whether Google SSO is configured
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.TokenStore.Backend {
	case "memory", "file":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("TOKEN_STORE=redis requires REDIS_URL")
		}
	case "postgres":
		if c.Database.User == "" || c.Database.Name == "" {
			return fmt.Errorf("TOKEN_STORE=postgres requires DB_USER and DB_NAME")
		}
	default:
		return fmt.Errorf("unknown token store backend %q", c.TokenStore.Backend)
	}
	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
