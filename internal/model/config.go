package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ServerConfig holds the connection settings of the mail server.
type ServerConfig struct {
	// BaseURL is the root URL of the web client (e.g., https://mail.example.com).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// Username is the account name used to log in.
	Username string `mapstructure:"username" yaml:"username"`

	// TimeoutSec bounds a single HTTP round trip.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// WaitSec is how long a notification long-poll may block on the server.
	WaitSec int `mapstructure:"wait_sec" yaml:"wait_sec"`
}

// CacheConfig holds settings for the local contacts cache.
type CacheConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// SearchConfig holds the paging defaults of contact searches.
type SearchConfig struct {
	Limit  int    `mapstructure:"limit" yaml:"limit"`
	SortBy string `mapstructure:"sort_by" yaml:"sort_by"`
}

// ImageConfig controls how contact pictures are addressed.
type ImageConfig struct {
	// Origin is prepended to the thumbnail path. Defaults to the server base URL.
	Origin string `mapstructure:"origin" yaml:"origin"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`
	Search SearchConfig `mapstructure:"search" yaml:"search"`
	Image  ImageConfig  `mapstructure:"image" yaml:"image"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// ImageOrigin returns the origin used in thumbnail URLs.
func (c *AppConfig) ImageOrigin() string {
	if c.Image.Origin != "" {
		return strings.TrimRight(c.Image.Origin, "/")
	}
	return strings.TrimRight(c.Server.BaseURL, "/")
}

// configDir returns ~/.config/contacts, or the working directory when the
// home directory cannot be resolved.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "contacts")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/contacts/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			TimeoutSec: 30,
			WaitSec:    60,
		},
		Cache: CacheConfig{
			DBPath: filepath.Join(configDir(), "cache.db"),
		},
		Search: SearchConfig{
			Limit:  100,
			SortBy: "nameAsc",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// NewViper returns a viper instance preloaded with defaults and the
// CONTACTS_ environment overrides (server.base_url => CONTACTS_SERVER_BASE_URL).
func NewViper() *viper.Viper {
	def := defaultAppConfig()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("contacts")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("server.base_url", def.Server.BaseURL)
	v.SetDefault("server.username", def.Server.Username)
	v.SetDefault("server.timeout_sec", def.Server.TimeoutSec)
	v.SetDefault("server.wait_sec", def.Server.WaitSec)
	v.SetDefault("cache.db_path", def.Cache.DBPath)
	v.SetDefault("search.limit", def.Search.Limit)
	v.SetDefault("search.sort_by", def.Search.SortBy)
	v.SetDefault("image.origin", def.Image.Origin)
	v.SetDefault("log.level", def.Log.Level)
	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults and environment overrides are used.
func LoadConfig(path string) (*AppConfig, error) {
	return LoadConfigWith(NewViper(), path)
}

// LoadConfigWith is LoadConfig on a caller-provided viper instance, so that
// command-line flags bound to it take part in the resolution.
func LoadConfigWith(v *viper.Viper, path string) (*AppConfig, error) {
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if _, ok := err.(*os.PathError); !ok && !notFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Search.Limit <= 0 {
		cfg.Search.Limit = 100
	}
	if cfg.Search.SortBy == "" {
		cfg.Search.SortBy = "nameAsc"
	}
	cfg.Server.BaseURL = strings.TrimRight(cfg.Server.BaseURL, "/")

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("cache", cfg.Cache)
	v.Set("search", cfg.Search)
	v.Set("image", cfg.Image)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
