package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfigDir is the directory under the user config dir holding the
// global config.
const GlobalConfigDir = "mqttctl"

// LocalConfigFileNames are the names to search for local config (in order).
var LocalConfigFileNames = []string{".mqttctlrc.yaml", ".mqttctlrc.yml"}

// GlobalConfigFileNames are the names to search for global config (in order).
var GlobalConfigFileNames = []string{"config.yaml", "config.yml"}

// FindLocalConfig searches for a local config file in the current
// directory. Returns empty string when none exists.
func FindLocalConfig() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for _, name := range LocalConfigFileNames {
		path := filepath.Join(cwd, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// FindGlobalConfig returns the path to the global config file.
// Returns empty string if not found.
func FindGlobalConfig() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", nil
	}
	for _, name := range GlobalConfigFileNames {
		path := filepath.Join(configDir, GlobalConfigDir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// LoadFile loads a Config from a YAML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Sources = make(map[string]string)
	return &cfg, nil
}

// LoadAll loads configuration from all sources and merges them.
// Precedence: env > local config > global config > defaults. Flags are
// applied by the CLI on top of the result.
func LoadAll() (*Config, error) {
	cfg := NewDefault()

	if globalPath, err := FindGlobalConfig(); err == nil && globalPath != "" {
		if globalCfg, err := LoadFile(globalPath); err == nil {
			Merge(cfg, globalCfg, SourceGlobal)
		}
	}

	if localPath, err := FindLocalConfig(); err == nil && localPath != "" {
		if localCfg, err := LoadFile(localPath); err == nil {
			Merge(cfg, localCfg, SourceLocal)
		}
	}

	LoadEnv(cfg)

	return cfg, nil
}
