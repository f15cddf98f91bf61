// Package config loads the optional per-project configuration file. CLI
// flags always win over file values.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up next to the
// compiled program.
const FileName = "wirthx.yaml"

// Config mirrors the wirthx.yaml schema.
type Config struct {
	// RTLDirectories are additional unit search paths, resolved relative
	// to the config file's directory.
	RTLDirectories []string `yaml:"rtl"`
	// Defines seeds the macro symbol table.
	Defines []string `yaml:"defines"`
	// BuildMode is "debug" or "release".
	BuildMode string `yaml:"buildMode"`
	// OutputDirectory receives the object file and executable.
	OutputDirectory string `yaml:"output"`
}

// Load reads the configuration next to the given source file. A missing
// file yields the zero config and no error.
func Load(sourcePath string) (Config, error) {
	var cfg Config
	dir := filepath.Dir(sourcePath)
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	for i, rtlDir := range cfg.RTLDirectories {
		if !filepath.IsAbs(rtlDir) {
			cfg.RTLDirectories[i] = filepath.Join(dir, rtlDir)
		}
	}
	return cfg, nil
}
