package util

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// ConfigDirEnv overrides the directory holding config.yaml and the database.
const ConfigDirEnv = "BURROW_CONFIG_DIR"

// ConfigDir returns the directory burrow keeps its files in, creating it on
// first use: $BURROW_CONFIG_DIR, else burrow/ under the platform config
// directory (~/.config/burrow on Linux).
func ConfigDir() (string, error) {
	dir := os.Getenv(ConfigDirEnv)
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("locating user config directory: %w", err)
		}
		dir = filepath.Join(base, Name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}

// ResolveFilePath prefers name in the working directory and otherwise places
// it in ConfigDir, whether or not it exists there yet. Absolute paths and
// the sqlite in-memory name are returned unchanged.
func ResolveFilePath(name string) string {
	if name == ":memory:" || filepath.IsAbs(name) || isFile(name) {
		return name
	}
	dir, err := ConfigDir()
	if err != nil {
		log.Warnf("Keeping %s in the working directory: %v", name, err)
		return name
	}
	return filepath.Join(dir, name)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
