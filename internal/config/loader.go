package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load builds Settings from defaults, an optional settings file, and the
// environment. path may be empty. ${VAR} references in the file are
// expanded before parsing.
func Load(path string) (*Settings, error) {
	settings := Default()
	if path != "" {
		if err := loadFile(settings, path); err != nil {
			return nil, err
		}
	}
	applyEnv(settings)
	return settings, nil
}

func loadFile(settings *Settings, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	expanded := []byte(os.ExpandEnv(string(content)))

	switch filepath.Ext(path) {
	case ".toml":
		if err := toml.Unmarshal(expanded, settings); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(expanded, settings); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return nil
}

// applyEnv overlays the SB_* environment variables. Environment wins over
// the settings file so containerized deployments can override per-host.
func applyEnv(settings *Settings) {
	if v := os.Getenv("SB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			settings.Server.Port = port
		}
	}
	if v := os.Getenv("SB_RESOURCE_DIR"); v != "" {
		settings.Server.ResourceDir = v
	}
	if v := os.Getenv("SB_TEAMS"); v != "" {
		settings.Server.TeamsFile = v
	}
	if v := os.Getenv("SB_SERVICES"); v != "" {
		settings.Server.ServicesFile = v
	}
	if v := os.Getenv("SB_INJECTS"); v != "" {
		settings.Server.InjectsFile = v
	}
	if v := os.Getenv("SB_ADMIN_PASSWORD"); v != "" {
		settings.Server.AdminPassword = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		settings.Logging.Level = v
	}
}
