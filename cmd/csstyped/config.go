package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds the contents of .csstyped/config.yaml.
type ProjectConfig struct {
	Patterns            []string `yaml:"patterns"`
	Exclude             []string `yaml:"exclude"`
	OutDir              string   `yaml:"out_dir"`
	LocalsConvention    string   `yaml:"locals_convention"`
	DeclarationMap      *bool    `yaml:"declaration_map"`
	ArbitraryExtensions bool     `yaml:"arbitrary_extensions"`
	Workers             int      `yaml:"workers"`
	LogLevel            string   `yaml:"log_level"`
}

// loadProjectConfig reads .csstyped/config.yaml under dir.
// Returns nil (no error) if the file does not exist.
func loadProjectConfig(dir string) (*ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(dir, ".csstyped", "config.yaml"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
