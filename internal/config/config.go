package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogDir            string        `mapstructure:"log_dir" yaml:"log_dir"`

	// Directory service used to verify credentials.
	Directory DirectoryConfig `mapstructure:"directory" yaml:"directory"`

	// Storage for the ban, nickname and bot credential tables.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Chat behaviour.
	Admins      []string `mapstructure:"admins" yaml:"admins"`
	MOTD        string   `mapstructure:"motd" yaml:"motd"`
	Channel     string   `mapstructure:"channel" yaml:"channel"`
	HistorySize int      `mapstructure:"history_size" yaml:"history_size"`
	RateLimit   int      `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// DirectoryConfig describes how to reach the directory service.
type DirectoryConfig struct {
	Host        string        `mapstructure:"host" yaml:"host"`
	Port        int           `mapstructure:"port" yaml:"port"`
	SSL         bool          `mapstructure:"ssl" yaml:"ssl"`
	BaseDN      string        `mapstructure:"base_dn" yaml:"base_dn"`
	UseProxy    bool          `mapstructure:"use_proxy" yaml:"use_proxy"`
	ProxyURL    string        `mapstructure:"proxy_url" yaml:"proxy_url"`
	AuthTimeout time.Duration `mapstructure:"auth_timeout" yaml:"auth_timeout"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is either "json" (three JSON object files under DataDir)
	// or "sqlite" (a single database file at DatabasePath).
	Backend      string `mapstructure:"backend" yaml:"backend"`
	DataDir      string `mapstructure:"data_dir" yaml:"data_dir"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogDir:            "logs",
		Directory: DirectoryConfig{
			Host:        "localhost",
			Port:        389,
			BaseDN:      "ou=people,dc=example,dc=org",
			AuthTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend:      "json",
			DataDir:      "data",
			DatabasePath: "relaychat.db",
		},
		Channel:     "#general",
		HistorySize: 50,
		RateLimit:   60,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.HistorySize != 0 {
		c.HistorySize = other.HistorySize
	}
}
