package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "HOSTPIN_CONFIG"
	// ConfigFileName is the default config file name
	ConfigFileName = "hostpin.yaml"
	// ConfigDirName is the config directory name under ~/.config and /etc
	ConfigDirName = "hostpin"
)

// FindConfigPath searches for the config file in priority order and
// returns "" when there is none.
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		if fileExists(path) {
			return path
		}
	}

	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	if home := os.Getenv("HOME"); home != "" {
		path := filepath.Join(home, ".config", ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}

	systemPath := filepath.Join("/etc", ConfigDirName, "config.yaml")
	if fileExists(systemPath) {
		return systemPath
	}

	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
