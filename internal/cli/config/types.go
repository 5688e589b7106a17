// Package config provides configuration management for the manifestkit CLI
// and API server.
package config

import "time"

// Config holds all configuration options.
type Config struct {
	StatePath    string       `koanf:"state_path"`
	Vendor       string       `koanf:"vendor"`
	OutputFormat string       `koanf:"output"`
	Verbose      bool         `koanf:"verbose"`
	Workers      int          `koanf:"workers"`
	PreviewRows  int          `koanf:"preview_rows"`
	Server       ServerConfig `koanf:"server"`
}

// ServerConfig holds configuration for the HTTP API server.
type ServerConfig struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes      int64         `koanf:"max_body_bytes"`
}

// Default configuration values.
const (
	DefaultStateFile         = ".manifestkit/templates.db"
	DefaultOutput            = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultWorkers           = 4
	DefaultPreviewRows       = 20
	DefaultAddr              = ":8470"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 5 * time.Second
	DefaultMaxBodyBytes      = 32 << 20
)

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		StatePath:    DefaultStateFile,
		OutputFormat: DefaultOutput,
		Workers:      DefaultWorkers,
		PreviewRows:  DefaultPreviewRows,
		Server: ServerConfig{
			Addr:              DefaultAddr,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ShutdownTimeout:   DefaultShutdownTimeout,
			MaxBodyBytes:      DefaultMaxBodyBytes,
		},
	}
}
