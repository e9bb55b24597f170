package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache"    validate:"required"`
	Locale   LocaleConfig   `mapstructure:"locale"   validate:"required"`
	Gateway  GatewayConfig  `mapstructure:"gateway"  validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database related settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication and token settings.
type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt_secret"           validate:"required,min=32"`
	TokenLifetimeMins  int    `mapstructure:"token_lifetime_mins"  validate:"required,gt=0"`
	BcryptCost         int    `mapstructure:"bcrypt_cost"          validate:"gte=0,lte=31"`
	RefreshLifetimeHrs int    `mapstructure:"refresh_lifetime_hrs" validate:"required,gt=0"`
}

// CacheConfig contains the cache backend address and the per-tier TTLs.
// Durations are expressed in seconds in configuration sources.
type CacheConfig struct {
	RedisURL           string `mapstructure:"redis_url"            validate:"required"`
	DetailTTLSecs      int    `mapstructure:"detail_ttl_secs"      validate:"required,gt=0"`
	ListTTLSecs        int    `mapstructure:"list_ttl_secs"        validate:"required,gt=0"`
	AggregateTTLSecs   int    `mapstructure:"aggregate_ttl_secs"   validate:"required,gt=0"`
	TranslationTTLSecs int    `mapstructure:"translation_ttl_secs" validate:"required,gt=0"`
	OpTimeoutMillis    int    `mapstructure:"op_timeout_millis"    validate:"required,gt=0"`
}

// DetailTTL returns the detail tier TTL as a duration.
func (c CacheConfig) DetailTTL() time.Duration { return time.Duration(c.DetailTTLSecs) * time.Second }

// ListTTL returns the list/query tier TTL as a duration.
func (c CacheConfig) ListTTL() time.Duration { return time.Duration(c.ListTTLSecs) * time.Second }

// AggregateTTL returns the aggregate tier TTL as a duration.
func (c CacheConfig) AggregateTTL() time.Duration {
	return time.Duration(c.AggregateTTLSecs) * time.Second
}

// TranslationTTL returns the translation-bundle tier TTL as a duration.
func (c CacheConfig) TranslationTTL() time.Duration {
	return time.Duration(c.TranslationTTLSecs) * time.Second
}

// OpTimeout returns the per-operation cache/bus timeout as a duration.
// A backend outage degrades to serving from the source of truth rather
// than hanging request handlers.
func (c CacheConfig) OpTimeout() time.Duration {
	return time.Duration(c.OpTimeoutMillis) * time.Millisecond
}

// LocaleConfig contains the supported locale set and the fallback locale.
type LocaleConfig struct {
	Supported []string `mapstructure:"supported" validate:"required,min=1,dive,required"`
	Fallback  string   `mapstructure:"fallback"  validate:"required"`
}

// GatewayConfig contains the websocket gateway settings.
type GatewayConfig struct {
	Port          int `mapstructure:"port"            validate:"required,gt=0,lt=65536"`
	SendQueueSize int `mapstructure:"send_queue_size" validate:"required,gt=0"`
}
