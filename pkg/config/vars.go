package config

import (
	"path/filepath"
)

var (
	// AppName is used in generating file system paths.
	AppName = "gmlas"
)

// MinIdentifierMaxLength is the smallest allowed non-zero limit of
// identifier length.
const MinIdentifierMaxLength = 10

// ConfigDir returns the directory path for configuration files.
// Returns ~/.config/gmlas by default.
func ConfigDir(homeDir string) string {
	return filepath.Join(homeDir, ".config", AppName)
}

// CacheDir returns the directory path for cache files.
// Returns ~/.cache/gmlas by default. Remote schemas and resolved xlink
// resources are kept there.
func CacheDir(homeDir string) string {
	return filepath.Join(homeDir, ".cache", AppName)
}

// LogDir returns the directory path for log files.
// Returns ~/.local/share/gmlas/logs by default.
func LogDir(homeDir string) string {
	return filepath.Join(homeDir, ".local", "share", AppName, "logs")
}

// ConfigFilePath returns the full path to the config.yaml file.
// Returns ~/.config/gmlas/config.yaml by default.
func ConfigFilePath(homeDir string) string {
	return filepath.Join(ConfigDir(homeDir), "config.yaml")
}
