package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Streaming StreamingConfig `mapstructure:"streaming"`
	Playback  PlaybackConfig  `mapstructure:"playback"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ProvidersConfig holds catalog metadata provider configuration.
type ProvidersConfig struct {
	MAL     MALConfig     `mapstructure:"mal"`
	AniList AniListConfig `mapstructure:"anilist"`
}

// MALConfig holds MyAnimeList API configuration.
type MALConfig struct {
	ClientID string `mapstructure:"client_id"`
	BaseURL  string `mapstructure:"base_url"`
	Timeout  int    `mapstructure:"timeout"` // seconds
}

// AniListConfig holds AniList GraphQL API configuration.
type AniListConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// StreamingConfig holds ranked streaming source configuration.
type StreamingConfig struct {
	BaseURL       string         `mapstructure:"base_url"`
	ListTimeout   int            `mapstructure:"list_timeout"`   // seconds, listing calls
	DetailTimeout int            `mapstructure:"detail_timeout"` // seconds, info/watch calls
	Sources       []SourceConfig `mapstructure:"sources"`
}

// SourceConfig describes one ranked streaming backend.
type SourceConfig struct {
	Name     string `mapstructure:"name"`
	Priority int    `mapstructure:"priority"`
	Enabled  bool   `mapstructure:"enabled"`
}

// PlaybackConfig holds playback link resolver configuration.
type PlaybackConfig struct {
	Kodik  KodikConfig  `mapstructure:"kodik"`
	Sibnet SibnetConfig `mapstructure:"sibnet"`
}

// KodikConfig holds Kodik API configuration.
type KodikConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// SibnetConfig holds Sibnet scraping configuration.
type SibnetConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // seconds
}

// Default returns a Config with default values.
func Default() *Config {
	cfg := &Config{}
	v := viper.New()
	setDefaults(v)
	_ = v.Unmarshal(cfg)
	cfg.Streaming.Sources = DefaultSources()
	return cfg
}

// DefaultSources returns the built-in ranked streaming source list.
// Priorities reset to these values on every process start.
func DefaultSources() []SourceConfig {
	return []SourceConfig{
		{Name: "gogoanime", Priority: 1, Enabled: true},
		{Name: "zoro", Priority: 2, Enabled: true},
		{Name: "animepahe", Priority: 3, Enabled: true},
		{Name: "9anime", Priority: 4, Enabled: true},
		{Name: "crunchyroll", Priority: 5, Enabled: false},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.aniflux")
	}

	// Environment variable settings
	v.SetEnvPrefix("ANIFLUX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	// Unmarshal into struct
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Streaming.Sources) == 0 {
		cfg.Streaming.Sources = DefaultSources()
	}

	// Secrets commonly arrive via plain env vars (.env files in dev)
	if cfg.Providers.MAL.ClientID == "" {
		cfg.Providers.MAL.ClientID = os.Getenv("MAL_CLIENT_ID")
	}
	if cfg.Playback.Kodik.APIKey == "" {
		cfg.Playback.Kodik.APIKey = os.Getenv("KODIK_API_KEY")
	}

	return cfg, nil
}

// setDefaults sets default values in viper
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Database defaults
	v.SetDefault("database.path", "./data/aniflux.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")

	// Provider defaults
	v.SetDefault("providers.mal.base_url", "https://api.myanimelist.net/v2")
	v.SetDefault("providers.mal.timeout", 10)
	v.SetDefault("providers.anilist.enabled", true)
	v.SetDefault("providers.anilist.base_url", "https://graphql.anilist.co")
	v.SetDefault("providers.anilist.timeout", 10)

	// Streaming defaults
	v.SetDefault("streaming.base_url", "https://api.consumet.org")
	v.SetDefault("streaming.list_timeout", 10)
	v.SetDefault("streaming.detail_timeout", 15)

	// Playback resolver defaults
	v.SetDefault("playback.kodik.base_url", "https://kodikapi.com")
	v.SetDefault("playback.kodik.timeout", 15)
	v.SetDefault("playback.sibnet.base_url", "https://video.sibnet.ru")
	v.SetDefault("playback.sibnet.timeout", 15)
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
