package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "INKWELL"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "inkwell.db"
	defaultLogLevel      = "info"
	defaultStorageDir    = "data/storage"
	defaultPublicBaseURL = "http://localhost:8080"
	defaultTokenTTL      = 60
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	SigningSecret     string
	TokenTTL          time.Duration
	AdminEmail        string
	AdminPasswordHash string
	StorageDir        string
	PublicBaseURL     string
	MailFunctionURL   string
	LogLevel          string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("storage.dir", defaultStorageDir)
	configViper.SetDefault("site.public_base_url", defaultPublicBaseURL)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTL)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		SigningSecret:     configViper.GetString("auth.signing_secret"),
		TokenTTL:          time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		AdminEmail:        configViper.GetString("admin.email"),
		AdminPasswordHash: configViper.GetString("admin.password_hash"),
		StorageDir:        configViper.GetString("storage.dir"),
		PublicBaseURL:     configViper.GetString("site.public_base_url"),
		MailFunctionURL:   configViper.GetString("mail.function_url"),
		LogLevel:          configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.AdminEmail) == "" {
		return fmt.Errorf("admin.email is required")
	}
	if strings.TrimSpace(c.AdminPasswordHash) == "" {
		return fmt.Errorf("admin.password_hash is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	return nil
}
