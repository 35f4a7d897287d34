package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Report   ReportConfig   `mapstructure:"report"`
}

// ServerConfig defines gateway and metrics listener settings
type ServerConfig struct {
	BindAddress string  `mapstructure:"bind_address"`
	GatewayPort int     `mapstructure:"gateway_port"`
	MetricsPort int     `mapstructure:"metrics_port"`
	AuthToken   string  `mapstructure:"auth_token"`   // optional bearer token for mutating routes
	RateLimit   float64 `mapstructure:"rate_limit"`   // events per second on mutating routes
	RateBurst   int     `mapstructure:"rate_burst"`
}

// TrackingConfig defines what is tracked and how days are bucketed
type TrackingConfig struct {
	ChannelName  string `mapstructure:"channel_name"` // display name used in reports
	Timezone     string `mapstructure:"timezone"`     // IANA zone for local-day bucketing
	TickInterval string `mapstructure:"tick_interval"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // sqlite, bolt or redis
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ReportConfig defines report delivery settings
type ReportConfig struct {
	Poster     string `mapstructure:"poster"` // log or webhook
	WebhookURL string `mapstructure:"webhook_url"`
	Cooldown   string `mapstructure:"cooldown"` // manual report cooldown
	NameCache  int    `mapstructure:"name_cache"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("VOICETIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.gateway_port", 8470)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.rate_limit", 50.0)
	v.SetDefault("server.rate_burst", 100)

	// Tracking defaults
	v.SetDefault("tracking.channel_name", "voice")
	v.SetDefault("tracking.timezone", "UTC")
	v.SetDefault("tracking.tick_interval", "30s")

	// Storage defaults
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.path", "/var/lib/voicetime/voicetime.db")
	v.SetDefault("storage.redis.host", "127.0.0.1")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 5)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Report defaults
	v.SetDefault("report.poster", "log")
	v.SetDefault("report.cooldown", "1h")
	v.SetDefault("report.name_cache", 512)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.GatewayPort <= 0 || cfg.Server.GatewayPort > 65535 {
		return fmt.Errorf("invalid gateway port: %d", cfg.Server.GatewayPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if _, err := cfg.Tracking.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Tracking.Timezone, err)
	}

	if _, err := time.ParseDuration(cfg.Tracking.TickInterval); err != nil {
		return fmt.Errorf("invalid tick_interval: %w", err)
	}
	if tick, _ := time.ParseDuration(cfg.Tracking.TickInterval); tick <= 0 || tick > time.Minute {
		return fmt.Errorf("tick_interval must be positive and at most one minute")
	}

	switch cfg.Storage.Type {
	case "sqlite", "bolt":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for %s backend", cfg.Storage.Type)
		}
		if dir := filepath.Dir(cfg.Storage.Path); dir == "" {
			return fmt.Errorf("invalid storage path: %s", cfg.Storage.Path)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("redis host is required for redis backend")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}

	switch cfg.Report.Poster {
	case "log":
	case "webhook":
		if cfg.Report.WebhookURL == "" {
			return fmt.Errorf("report webhook_url is required for webhook poster")
		}
	default:
		return fmt.Errorf("unknown report poster: %s", cfg.Report.Poster)
	}

	if _, err := time.ParseDuration(cfg.Report.Cooldown); err != nil {
		return fmt.Errorf("invalid report cooldown: %w", err)
	}

	return nil
}

// Location resolves the configured IANA timezone.
func (c TrackingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Tick returns the scheduler tick interval.
func (c TrackingConfig) Tick() time.Duration {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// CooldownDuration returns the manual-report cooldown.
func (c ReportConfig) CooldownDuration() time.Duration {
	d, err := time.ParseDuration(c.Cooldown)
	if err != nil {
		return time.Hour
	}
	return d
}
