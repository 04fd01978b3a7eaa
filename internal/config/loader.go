package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileLoader reads Config from a YAML file, defaulting to
// ~/.config/sentinel/config.yaml when no explicit path is given.
type FileLoader struct {
	path string
}

// NewFileLoader returns a Loader for path. An empty path resolves to the
// default config location under the user's home directory.
func NewFileLoader(path string) (*FileLoader, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("config: resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "sentinel", "config.yaml")
	}
	return &FileLoader{path: path}, nil
}

func (l *FileLoader) ConfigPath() string { return l.path }

// Load reads and parses the YAML file at ConfigPath, then validates it.
func (l *FileLoader) Load() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", l.path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", l.path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
