// Package config provides configuration management for go-sonic.
// It uses koanf for loading YAML files, then applies defaults and validation.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete configuration for go-sonic.
type Config struct {
	Subsonic SubsonicConfig `koanf:"subsonic"`
	Download DownloadConfig `koanf:"download"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// SubsonicConfig describes how to reach and authenticate against the server.
type SubsonicConfig struct {
	ServerURL         string        `koanf:"server_url"`
	Username          string        `koanf:"username"`
	Password          string        `koanf:"password"`
	ClientName        string        `koanf:"client_name"`
	APIVersion        string        `koanf:"api_version"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

// DownloadConfig controls where and how media files are written locally.
type DownloadConfig struct {
	Directory     string        `koanf:"directory"`
	Database      string        `koanf:"database"`
	Workers       int           `koanf:"workers"`
	RateLimitMbps int           `koanf:"rate_limit_mbps"` // 0 disables the limit
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	ShowProgress  bool          `koanf:"show_progress"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port               int           `koanf:"port"`
	Host               string        `koanf:"host"`
	ReadTimeout        time.Duration `koanf:"read_timeout"`
	WriteTimeout       time.Duration `koanf:"write_timeout"`
	EnableCompression  bool          `koanf:"enable_compression"`
	NowPlayingInterval time.Duration `koanf:"now_playing_interval"`
}

// LoggingConfig defines logging behavior and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads configuration from the specified YAML file and applies validation.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// applyDefaults fills in values that weren't specified.
func applyDefaults(config *Config) {
	if config.Subsonic.ClientName == "" {
		config.Subsonic.ClientName = "go-sonic"
	}
	if config.Subsonic.APIVersion == "" {
		config.Subsonic.APIVersion = "1.16.1"
	}
	if config.Subsonic.Timeout == 0 {
		config.Subsonic.Timeout = 30 * time.Second
	}
	if config.Subsonic.RequestsPerSecond == 0 {
		config.Subsonic.RequestsPerSecond = 10
	}

	if config.Download.Directory == "" {
		config.Download.Directory = "./downloads"
	}
	if config.Download.Database == "" {
		config.Download.Database = filepath.Join(config.Download.Directory, "go-sonic.db")
	}
	if config.Download.Workers == 0 {
		config.Download.Workers = 3
	}
	if config.Download.RetryAttempts == 0 {
		config.Download.RetryAttempts = 3
	}
	if config.Download.RetryDelay == 0 {
		config.Download.RetryDelay = 1 * time.Second
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 15 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 60 * time.Second
	}
	if config.Server.NowPlayingInterval == 0 {
		config.Server.NowPlayingInterval = 15 * time.Second
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
}

// GetLogLevel converts the string log level to slog.Level.
// Returns slog.LevelInfo for invalid or unknown levels.
func (c *LoggingConfig) GetLogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the logger described by the config, writing to w.
func (c *LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.GetLogLevel()}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// CreateDirectories ensures the download directory and the database's
// parent directory exist.
func (c *DownloadConfig) CreateDirectories() error {
	for _, dir := range []string{c.Directory, filepath.Dir(c.Database)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
