package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take
// precedence over file values and use the TASKHIVE_ prefix with underscores
// for nesting (e.g. TASKHIVE_SERVER_PORT).
// Returns a populated Config or an error if loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TASKHIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults carry the load.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if !containsLocale(cfg.Locale.Supported, cfg.Locale.Fallback) {
		return nil, fmt.Errorf(
			"config validation failed: fallback locale %q is not in the supported set %v",
			cfg.Locale.Fallback, cfg.Locale.Supported)
	}

	return &cfg, nil
}

// setDefaults registers defaults for every setting that has a sensible one.
// Secrets and connection URLs deliberately have no default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_mins", 60)
	v.SetDefault("auth.refresh_lifetime_hrs", 72)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("cache.detail_ttl_secs", 300)
	v.SetDefault("cache.list_ttl_secs", 120)
	v.SetDefault("cache.aggregate_ttl_secs", 600)
	v.SetDefault("cache.translation_ttl_secs", 1800)
	v.SetDefault("cache.op_timeout_millis", 250)

	v.SetDefault("locale.supported", []string{"en"})
	v.SetDefault("locale.fallback", "en")

	v.SetDefault("gateway.port", 8081)
	v.SetDefault("gateway.send_queue_size", 64)
}

func containsLocale(supported []string, locale string) bool {
	for _, l := range supported {
		if l == locale {
			return true
		}
	}
	return false
}
