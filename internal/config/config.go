package config

import "time"

// AvatarConfig holds credentials for the external AI-avatar video
// service. All three must be set for the integration to be enabled.
type AvatarConfig struct {
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"`
	URL       string `mapstructure:"url" yaml:"url"`
}

// Enabled reports whether the avatar integration is configured.
func (a AvatarConfig) Enabled() bool {
	return a.APIKey != "" && a.APISecret != "" && a.URL != ""
}

// Config holds server configuration values.
type Config struct {
	Addr               string        `mapstructure:"addr" yaml:"addr"`
	DatabasePath       string        `mapstructure:"database_path" yaml:"database_path"`
	LogLevel           string        `mapstructure:"log_level" yaml:"log_level"`
	ReadHeaderTimeout  time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxEventsPerMinute int           `mapstructure:"max_events_per_minute" yaml:"max_events_per_minute"`
	HistoryLimit       int           `mapstructure:"history_limit" yaml:"history_limit"`
	Avatar             AvatarConfig  `mapstructure:"avatar" yaml:"avatar"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:               ":8080",
		DatabasePath:       "echoroom.db",
		LogLevel:           "info",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		MaxEventsPerMinute: 600,
		HistoryLimit:       50,
	}
}
