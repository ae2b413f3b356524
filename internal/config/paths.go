// Package config loads Wayline settings from viper (config file, WAYLINE_*
// environment variables and flags) into the typed configs of each package.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigFileName is the config file searched in ./.wayline, $HOME and ".".
const ConfigFileName = ".wayline"

// GetDataDir returns the directory holding the database, policies and crash
// reports (~/.wayline). It's a variable to allow overriding in tests.
var GetDataDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".wayline"), nil
}

// MemoryPath returns the SQLite database path.
// Resolution order: memory.path, XDG_DATA_HOME/wayline, then the data dir.
func MemoryPath() string {
	if path := viper.GetString("memory.path"); path != "" {
		return expandHome(path)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "wayline", "wayline.db")
	}
	dir, err := GetDataDir()
	if err != nil {
		return "wayline.db"
	}
	return filepath.Join(dir, "wayline.db")
}

// PolicyDir returns the directory of user .rego policies.
func PolicyDir() string {
	if dir := viper.GetString("policy.dir"); dir != "" {
		return expandHome(dir)
	}
	dir, err := GetDataDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "policies")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
