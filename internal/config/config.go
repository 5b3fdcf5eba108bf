// Package config loads service configuration from defaults, an optional
// YAML file and FRIDGE_ environment variables, in increasing priority.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"fridgemonster/internal/assets"
	"fridgemonster/internal/validation"
)

const (
	// EnvPrefix prefixes every environment override, e.g. FRIDGE_SERVER_ADDR.
	EnvPrefix = "FRIDGE_"
	// PathEnvVar names the config file when no path is given explicitly.
	PathEnvVar = "FRIDGE_CONFIG"
	// DefaultPath is tried last and may be absent.
	DefaultPath = "config.yaml"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Assets    AssetsConfig    `koanf:"assets"`
	Favorites FavoritesConfig `koanf:"favorites"`
	Detector  DetectorConfig  `koanf:"detector"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Addr           string        `koanf:"addr" validate:"required"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	RequestTimeout time.Duration `koanf:"request_timeout" validate:"gt=0"`
	ScanTimeout    time.Duration `koanf:"scan_timeout" validate:"gt=0"`
	MaxUploadBytes int64         `koanf:"max_upload_bytes" validate:"gt=0"`
}

type CatalogConfig struct {
	// Path overrides the embedded catalog when set.
	Path string `koanf:"path"`
}

type AssetsConfig struct {
	Dir            string `koanf:"dir"`
	ThumbnailWidth uint   `koanf:"thumbnail_width"`
}

type FavoritesConfig struct {
	Backend     string `koanf:"backend" validate:"oneof=memory badger postgres"`
	BadgerPath  string `koanf:"badger_path" validate:"required_if=Backend badger"`
	DatabaseURL string `koanf:"database_url" validate:"required_if=Backend postgres"`
}

type DetectorConfig struct {
	Backend      string `koanf:"backend" validate:"oneof=none gemini local"`
	GeminiAPIKey string `koanf:"gemini_api_key" validate:"required_if=Backend gemini"`
	GeminiModel  string `koanf:"gemini_model"`
	LocalURL     string `koanf:"local_url" validate:"omitempty,url"`
	LocalModel   string `koanf:"local_model"`

	FailureThreshold uint32        `koanf:"failure_threshold" validate:"gt=0"`
	OpenTimeout      time.Duration `koanf:"open_timeout" validate:"gt=0"`
	ScansPerMinute   int           `koanf:"scans_per_minute" validate:"gte=0"`
}

type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:8081"},
			RequestTimeout: 5 * time.Second,
			ScanTimeout:    45 * time.Second,
			MaxUploadBytes: 10 << 20,
		},
		Assets: AssetsConfig{
			Dir:            "images",
			ThumbnailWidth: 400,
		},
		Favorites: FavoritesConfig{
			Backend: "memory",
		},
		Detector: DetectorConfig{
			Backend:          "none",
			FailureThreshold: 3,
			OpenTimeout:      30 * time.Second,
			ScansPerMinute:   10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// sliceKeys are split on commas when they arrive as a single string.
var sliceKeys = []string{"server.allowed_origins"}

// Load builds the configuration. An explicit path must exist; otherwise
// FRIDGE_CONFIG and then config.yaml are tried and may be absent.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSliceKeys(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validation.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Assets.ThumbnailWidth > assets.MaxThumbnailWidth {
		return nil, fmt.Errorf("invalid configuration: assets.thumbnail_width must be at most %d", assets.MaxThumbnailWidth)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

// envKey maps FRIDGE_FAVORITES_DATABASE_URL to favorites.database_url.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

func splitSliceKeys(k *koanf.Koanf) error {
	for _, key := range sliceKeys {
		raw, ok := k.Get(key).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(key, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}
