// Package config assembles the server settings from defaults, an optional
// settings file (YAML or TOML), and environment variables, in that order.
package config

import (
	"strings"

	"github.com/rs/zerolog"
)

// Settings is the complete server configuration. Game fixtures live in
// their own files under ResourceDir; these are the knobs of the server
// process itself.
type Settings struct {
	Server  ServerConfig  `yaml:"server"  toml:"server"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ServerConfig holds listener and resource layout settings.
type ServerConfig struct {
	// Port the API listens on.
	Port int `yaml:"port" toml:"port"`
	// ResourceDir is the root for fixtures, password groups, inject
	// responses, and saves.
	ResourceDir string `yaml:"resource_dir" toml:"resource_dir"`
	// Fixture file names, relative to ResourceDir.
	TeamsFile    string `yaml:"teams_file"    toml:"teams_file"`
	ServicesFile string `yaml:"services_file" toml:"services_file"`
	InjectsFile  string `yaml:"injects_file"  toml:"injects_file"`
	// AdminPassword is the shared admin secret. Empty disables admin
	// login.
	AdminPassword string `yaml:"admin_password" toml:"admin_password"`
	// EnableHTTP2 turns on h2c support on the listener.
	EnableHTTP2 bool `yaml:"enable_http2" toml:"enable_http2"`
}

// LoggingConfig mirrors the zerolog setup knobs.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" toml:"level"`
	// Format is console, json, or pretty. Console auto-detects a
	// terminal.
	Format string `yaml:"format" toml:"format"`
	// Pretty forces the console writer regardless of Format.
	Pretty bool `yaml:"pretty" toml:"pretty"`
	// Output is stdout, stderr, or a file path.
	Output string `yaml:"output" toml:"output"`
}

// ParseLevel maps the configured level onto zerolog, defaulting to info.
func (l LoggingConfig) ParseLevel() zerolog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Default returns the settings used when nothing is configured.
func Default() *Settings {
	return &Settings{
		Server: ServerConfig{
			Port:         8000,
			ResourceDir:  "resources",
			TeamsFile:    "teams.yaml",
			ServicesFile: "services.yaml",
			InjectsFile:  "injects.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
	}
}
