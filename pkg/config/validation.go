package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// validate returns an error describing the first validation failure found.
func validate(config *Config) error {
	if err := validateSubsonic(&config.Subsonic); err != nil {
		return fmt.Errorf("subsonic config: %w", err)
	}

	if err := validateDownload(&config.Download); err != nil {
		return fmt.Errorf("download config: %w", err)
	}

	if err := validateServer(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateLogging(&config.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func validateSubsonic(config *SubsonicConfig) error {
	if config.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}

	if !strings.HasPrefix(config.ServerURL, "http://") && !strings.HasPrefix(config.ServerURL, "https://") {
		return fmt.Errorf("server_url must start with http:// or https://")
	}

	if config.Username == "" {
		return fmt.Errorf("username is required")
	}

	if config.Password == "" {
		return fmt.Errorf("password is required")
	}

	if config.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}

	return nil
}

func validateDownload(config *DownloadConfig) error {
	if config.Directory == "" {
		return fmt.Errorf("directory is required")
	}

	if config.Workers <= 0 || config.Workers > 16 {
		return fmt.Errorf("workers must be between 1 and 16")
	}

	if config.RateLimitMbps < 0 {
		return fmt.Errorf("rate_limit_mbps must not be negative")
	}

	if config.RetryAttempts < 0 || config.RetryAttempts > 20 {
		return fmt.Errorf("retry_attempts must be between 0 and 20")
	}

	if config.RetryDelay < 100*time.Millisecond || config.RetryDelay > 60*time.Second {
		return fmt.Errorf("retry_delay must be between 100ms and 60s")
	}

	return nil
}

func validateServer(config *ServerConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if config.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if config.NowPlayingInterval < time.Second {
		return fmt.Errorf("now_playing_interval must be at least 1s")
	}

	return nil
}

func validateLogging(config *LoggingConfig) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, config.Level) {
		return fmt.Errorf("level must be one of: %s", strings.Join(validLevels, ", "))
	}

	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, config.Format) {
		return fmt.Errorf("format must be one of: %s", strings.Join(validFormats, ", "))
	}

	return nil
}
