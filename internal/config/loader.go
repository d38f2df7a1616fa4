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
	Addr              string `json:"addr" yaml:"addr" toml:"addr"`
	BackendURL        string `json:"backend_url" yaml:"backend_url" toml:"backend_url"`
	GameDir           string `json:"game_dir" yaml:"game_dir" toml:"game_dir"`
	ManifestURL       string `json:"manifest_url" yaml:"manifest_url" toml:"manifest_url"`
	ServerAddr        string `json:"server_addr" yaml:"server_addr" toml:"server_addr"`
	AudioURL          string `json:"audio_url" yaml:"audio_url" toml:"audio_url"`
	AudioFallback     string `json:"audio_fallback" yaml:"audio_fallback" toml:"audio_fallback"`
	RAMMB             int    `json:"ram_mb" yaml:"ram_mb" toml:"ram_mb"`
	KeepLauncherOpen  bool   `json:"keep_launcher_open" yaml:"keep_launcher_open" toml:"keep_launcher_open"`
	HealthIntervalSec int    `json:"health_interval_sec" yaml:"health_interval_sec" toml:"health_interval_sec"`
	ServerPollSec     int    `json:"server_poll_sec" yaml:"server_poll_sec" toml:"server_poll_sec"`
	UpdatePollSec     int    `json:"update_poll_sec" yaml:"update_poll_sec" toml:"update_poll_sec"`
	LogLevel          string `json:"log_level" yaml:"log_level" toml:"log_level"`
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
