package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	App       AppConfig       `yaml:"app"`
	Auth      AuthConfig      `yaml:"auth"`
	Providers ProvidersConfig `yaml:"providers"`
	Worker    WorkerConfig    `yaml:"worker"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AppConfig holds application-wide settings.
type AppConfig struct {
	// BaseURL is the externally reachable URL, used to build OAuth redirect
	// URIs and unsubscribe links.
	BaseURL  string `yaml:"base_url"`
	FromName string `yaml:"from_name"`
}

type AuthConfig struct {
	SessionTTL time.Duration `yaml:"session_ttl"`
	OIDC       OIDCConfig    `yaml:"oidc"`
}

type OIDCConfig struct {
	Enabled       bool     `yaml:"enabled"`
	ClientID      string   `yaml:"client_id"`
	ClientSecret  string   `yaml:"client_secret"`
	IssuerURL     string   `yaml:"issuer_url"`
	RedirectURL   string   `yaml:"redirect_url"`
	Scopes        []string `yaml:"scopes"`
	AllowedEmails []string `yaml:"allowed_emails"`
}

type ProvidersConfig struct {
	Google    OAuthClientConfig `yaml:"google"`
	Microsoft OAuthClientConfig `yaml:"microsoft"`
	Yahoo     OAuthClientConfig `yaml:"yahoo"`
}

// OAuthClientConfig holds one vendor's OAuth client credentials.
type OAuthClientConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// Tenant is only used by Microsoft; defaults to "common".
	Tenant string `yaml:"tenant"`
}

// Configured reports whether client credentials are present.
func (c OAuthClientConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type WorkerConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	AutoSyncInterval time.Duration `yaml:"auto_sync_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(cfg)
	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8090"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/agentpost/app.db"
	}
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:8090"
	}
	if cfg.Auth.SessionTTL == 0 {
		cfg.Auth.SessionTTL = 24 * time.Hour
	}
	if len(cfg.Auth.OIDC.Scopes) == 0 {
		cfg.Auth.OIDC.Scopes = []string{"openid", "profile", "email"}
	}
	if cfg.Providers.Microsoft.Tenant == "" {
		cfg.Providers.Microsoft.Tenant = "common"
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 30 * time.Second
	}
	if cfg.Worker.AutoSyncInterval == 0 {
		cfg.Worker.AutoSyncInterval = 6 * time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// applyEnv fills vendor credentials from the environment when the config file
// leaves them empty, so secrets can stay out of the YAML.
func applyEnv(cfg *Config) {
	envDefault(&cfg.App.BaseURL, "APP_BASE_URL")
	envDefault(&cfg.Providers.Google.ClientID, "GOOGLE_CLIENT_ID")
	envDefault(&cfg.Providers.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	envDefault(&cfg.Providers.Microsoft.ClientID, "MS_CLIENT_ID")
	envDefault(&cfg.Providers.Microsoft.ClientSecret, "MS_CLIENT_SECRET")
	envDefault(&cfg.Providers.Microsoft.Tenant, "MS_TENANT_ID")
	envDefault(&cfg.Providers.Yahoo.ClientID, "YAHOO_CLIENT_ID")
	envDefault(&cfg.Providers.Yahoo.ClientSecret, "YAHOO_CLIENT_SECRET")
}

func envDefault(dst *string, key string) {
	if *dst == "" {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

func validate(cfg *Config) error {
	if cfg.App.BaseURL == "" {
		return fmt.Errorf("app.base_url is required")
	}
	if cfg.Auth.OIDC.Enabled {
		if cfg.Auth.OIDC.ClientID == "" {
			return fmt.Errorf("auth.oidc.client_id is required when OIDC is enabled")
		}
		if cfg.Auth.OIDC.ClientSecret == "" {
			return fmt.Errorf("auth.oidc.client_secret is required when OIDC is enabled")
		}
		if cfg.Auth.OIDC.IssuerURL == "" {
			return fmt.Errorf("auth.oidc.issuer_url is required when OIDC is enabled")
		}
	}
	return nil
}
