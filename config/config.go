package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds all configuration for the server.
// Tags use mapstructure for Viper unmarshalling.
type ServerConfig struct {
	HTTPPort    string `mapstructure:"HTTP_PORT"`
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	// RedisAddr is optional: when empty, the refresh lock is in-process only.
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// OAuth client registrations. RedirectBase is the externally reachable
	// origin the providers redirect back to; the callback path is appended.
	OAuthRedirectBase   string `mapstructure:"OAUTH_REDIRECT_BASE"`
	GoogleClientID      string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret  string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	OutlookClientID     string `mapstructure:"OUTLOOK_CLIENT_ID"`
	OutlookClientSecret string `mapstructure:"OUTLOOK_CLIENT_SECRET"`

	ProviderTimeoutSec int `mapstructure:"PROVIDER_TIMEOUT_SEC"`
	PendingAuthTTLMin  int `mapstructure:"PENDING_AUTH_TTL_MIN"`
}

// CallbackURL is the full OAuth redirect URI registered with the providers.
func (c *ServerConfig) CallbackURL() string {
	return strings.TrimRight(c.OAuthRedirectBase, "/") + "/integrations/callback"
}

// LoadConfig reads configuration from file, environment variables, and defaults.
func LoadConfig() (*ServerConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("/etc/slotgrid/")
	v.AddConfigPath("$HOME/.slotgrid")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/slotgrid_dev")
	v.SetDefault("MONGO_DB_NAME", "slotgrid_dev")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "slotgrid-server")
	v.SetDefault("OAUTH_REDIRECT_BASE", "http://localhost:8080")
	v.SetDefault("PROVIDER_TIMEOUT_SEC", 10)
	v.SetDefault("PENDING_AUTH_TTL_MIN", 10)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env vars apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
