package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Catalog    CatalogConfig
	Matching   MatchingConfig
	Classifier ClassifierConfig
	Dedupe     DedupeConfig
	Store      StoreConfig
	Storefront StorefrontConfig
	Cache      CacheConfig
	RateLimit  RateLimitConfig
	Watch      WatchConfig
	Log        LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	PreviewTimeout time.Duration `mapstructure:"preview_timeout"`
}

// CatalogConfig locates the product export and the photo directory
type CatalogConfig struct {
	Input          string `mapstructure:"input"`
	Format         string `mapstructure:"format"` // "json", "csv" or empty for by-extension
	PhotoDir       string `mapstructure:"photo_dir"`
	BackupDir      string `mapstructure:"backup_dir"`
	ImagePrefix    string `mapstructure:"image_prefix"`
	CategoryFormat string `mapstructure:"category_format"` // "slug" or "label"
	SampleSize     int    `mapstructure:"sample_size"`
}

// MatchingConfig tunes the photo matcher and the normalizer
type MatchingConfig struct {
	Threshold   float64  `mapstructure:"threshold"`
	Extensions  []string `mapstructure:"extensions"`
	LegacyPath  bool     `mapstructure:"legacy_path"`
	NumberStrip string   `mapstructure:"number_strip"`
	Debug       bool     `mapstructure:"debug"`
}

// ClassifierConfig points at an optional rules file replacing the built-in rules
type ClassifierConfig struct {
	RulesFile string `mapstructure:"rules_file"`
}

// DedupeConfig selects which duplicate groups delete mode removes
type DedupeConfig struct {
	DeleteKind string `mapstructure:"delete_kind"`
}

// StoreConfig selects where products are loaded from and written to
type StoreConfig struct {
	Driver   string `mapstructure:"driver"` // "file", "sqlite", "postgres" or "api"
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// StorefrontConfig holds admin API configuration
type StorefrontConfig struct {
	BaseURL string  `mapstructure:"base_url"`
	Token   string  `mapstructure:"token"`
	RPS     float64 `mapstructure:"rps"`
	Debug   bool    `mapstructure:"debug"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory" or "redis"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// WatchConfig holds photo directory watcher configuration
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// Load loads configuration from environment variables and config files.
// configFile overrides the search path when set.
func Load(configFile string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/provans/")
	}

	// Environment variable settings
	v.SetEnvPrefix("PROVANS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values. Every key needs a default
// so that AutomaticEnv can bind it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.preview_timeout", "60s")

	// Catalog defaults
	v.SetDefault("catalog.input", "")
	v.SetDefault("catalog.format", "")
	v.SetDefault("catalog.photo_dir", "")
	v.SetDefault("catalog.backup_dir", "")
	v.SetDefault("catalog.image_prefix", "")
	v.SetDefault("catalog.category_format", "slug")
	v.SetDefault("catalog.sample_size", 20)

	// Matching defaults
	v.SetDefault("matching.threshold", 0.90)
	v.SetDefault("matching.extensions", []string{".jpg", ".jpeg", ".png", ".webp", ".gif"})
	v.SetDefault("matching.legacy_path", false)
	v.SetDefault("matching.number_strip", "after_quotes")
	v.SetDefault("matching.debug", false)

	v.SetDefault("classifier.rules_file", "")
	v.SetDefault("dedupe.delete_kind", "strict")

	// Store defaults
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.migrate", false)

	// Storefront defaults
	v.SetDefault("storefront.base_url", "")
	v.SetDefault("storefront.token", "")
	v.SetDefault("storefront.rps", 5)
	v.SetDefault("storefront.debug", false)

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "720h") // 30 days

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)

	v.SetDefault("watch.debounce", "2s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Matching.Threshold <= 0 || config.Matching.Threshold > 1 {
		return fmt.Errorf("matching threshold must be in (0, 1], got: %v", config.Matching.Threshold)
	}

	switch config.Matching.NumberStrip {
	case "after_quotes", "before_quotes", "off":
	default:
		return fmt.Errorf("matching number_strip must be 'after_quotes', 'before_quotes' or 'off', got: %s", config.Matching.NumberStrip)
	}

	if config.Catalog.CategoryFormat != "slug" && config.Catalog.CategoryFormat != "label" {
		return fmt.Errorf("category format must be 'slug' or 'label', got: %s", config.Catalog.CategoryFormat)
	}

	switch config.Dedupe.DeleteKind {
	case "title", "strict", "photo":
	default:
		return fmt.Errorf("dedupe delete_kind must be 'title', 'strict' or 'photo', got: %s", config.Dedupe.DeleteKind)
	}

	switch config.Store.Driver {
	case "file":
	case "sqlite", "postgres":
		if config.Store.DSN == "" {
			return fmt.Errorf("store DSN is required for the %s driver (set PROVANS_STORE_DSN)", config.Store.Driver)
		}
	case "api":
		if config.Storefront.BaseURL == "" {
			return fmt.Errorf("storefront base URL is required for the api driver (set PROVANS_STOREFRONT_BASE_URL)")
		}
	default:
		return fmt.Errorf("store driver must be 'file', 'sqlite', 'postgres' or 'api', got: %s", config.Store.Driver)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	return nil
}

// loadEnvFile exports variables from ./.env without overriding the environment
func loadEnvFile() error {
	if _, err := os.Stat(".env"); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return err
	}

	for _, key := range v.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, v.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}
