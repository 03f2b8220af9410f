package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr            string `json:"addr" yaml:"addr" toml:"addr"`
	ManifestPath    string `json:"manifest_path" yaml:"manifest_path" toml:"manifest_path"`
	TierOverride    string `json:"tier_override" yaml:"tier_override" toml:"tier_override"`
	MarginMB        int    `json:"margin_mb" yaml:"margin_mb" toml:"margin_mb"`
	DebounceMS      int    `json:"debounce_ms" yaml:"debounce_ms" toml:"debounce_ms"`
	ProbeIntervalMS int    `json:"probe_interval_ms" yaml:"probe_interval_ms" toml:"probe_interval_ms"`
	CleanupEvery    int    `json:"cleanup_every" yaml:"cleanup_every" toml:"cleanup_every"`
	LogLevel        string `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
