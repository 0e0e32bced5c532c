package config

import "time"

// Config is the root configuration for the bytebot hub.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Hub       HubConfig       `yaml:"hub"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Tunnel    TunnelConfig    `yaml:"tunnel"`
}

type ServerConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	PublicURL string `yaml:"public_url"`
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
}

// HubConfig tunes the connection manager and its background loops.
type HubConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	SendTimeout       time.Duration `yaml:"send_timeout"`
}

// AuthConfig holds the static bearer token protecting admin endpoints.
// Client connections are authenticated upstream, not by the hub.
type AuthConfig struct {
	AdminToken string `yaml:"admin_token"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

type TunnelConfig struct {
	Enabled   bool   `yaml:"enabled"`
	AuthToken string `yaml:"authtoken"`
	Domain    string `yaml:"domain"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8439,
			LogLevel: "info",
		},
		Hub: HubConfig{
			HeartbeatInterval: 30 * time.Second,
			CleanupInterval:   60 * time.Second,
			StaleAfter:        5 * time.Minute,
			SendTimeout:       10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:          "~/.config/bytebot/bytebot.db",
			RetentionDays: 30,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
	}
}
