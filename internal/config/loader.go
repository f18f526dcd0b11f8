package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/akaoio/rkllmd/pkg/types"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr          string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir     string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	DefaultModel  string `json:"default_model" yaml:"default_model" toml:"default_model"`
	// Runtime selects the generation backend: "npu" or "mock".
	Runtime       string `json:"runtime" yaml:"runtime" toml:"runtime"`
	MaxConcurrent int    `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	StreamBuffer  int    `json:"stream_buffer" yaml:"stream_buffer" toml:"stream_buffer"`
	LogLevel      string `json:"log_level" yaml:"log_level" toml:"log_level"`
	// Defaults are merged into requests that omit sampling parameters.
	Defaults *types.InferenceParams `json:"defaults,omitempty" yaml:"defaults" toml:"defaults"`
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
