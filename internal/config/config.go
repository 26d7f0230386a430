// Package config loads and validates the paperchat client configuration.
package config

// Config is the root configuration for the paperchat client.
type Config struct {
	Server  ServerConfig  `yaml:"server,omitempty"`
	Notion  NotionConfig  `yaml:"notion,omitempty"`
	Storage StorageConfig `yaml:"storage,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
}

// ServerConfig points at the agent backend.
type ServerConfig struct {
	URL string `yaml:"url,omitempty"` // http(s) base URL; the websocket path is derived from it
}

// NotionConfig holds fallback values for the two user-configuration
// strings. Values saved through `paperchat settings` take precedence.
type NotionConfig struct {
	IntegrationSecret string `yaml:"integrationSecret,omitempty"`
	DatabaseID        string `yaml:"databaseId,omitempty"`
}

// StorageConfig selects the durable store backend.
type StorageConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "memory"
	Path   string `yaml:"path,omitempty"`   // sqlite file; defaults under the data dir
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
}

// ConfigError reports a configuration problem.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// Defaults returns a Config with all defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.URL == "" {
		cfg.Server.URL = "http://localhost:9997"
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
