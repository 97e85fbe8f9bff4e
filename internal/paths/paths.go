// Package paths resolves configuration and data directory locations.
//
// Precedence for the config directory: --config-dir flag, CANVAS_CONFIG_DIR,
// then the platform default. For the data directory: --data-dir flag,
// data_dir in config.yaml, CANVAS_DATA_DIR, then $(CWD)/.canvas-db.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// appName names the per-user directories.
const appName = "canvas"

// DefaultDataDirName is the CWD-relative data directory.
const DefaultDataDirName = ".canvas-db"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "CANVAS_CONFIG_DIR"
	EnvDataDir   = "CANVAS_DATA_DIR"
)

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/canvas (fallback ~/.config/canvas)
// macOS:   ~/Library/Application Support/canvas
// Windows: %APPDATA%/canvas
func DefaultConfigDir() (string, error) {
	return userDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the platform-specific per-user data directory.
//
// Linux:   $XDG_DATA_HOME/canvas (fallback ~/.local/share/canvas)
// macOS and Windows: same as DefaultConfigDir
func DefaultDataDir() (string, error) {
	return userDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func userDir(xdgEnv, homeRel string) (string, error) {
	if platformDir.goos != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	if xdg := os.Getenv(xdgEnv); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, appName), nil
}

// ResolveConfigDir returns the configuration directory: flag, then
// CANVAS_CONFIG_DIR, then DefaultConfigDir(). Explicit values are made
// absolute.
func ResolveConfigDir(flag string) (string, error) {
	if dir := firstNonEmpty(flag, os.Getenv(EnvConfigDir)); dir != "" {
		return filepath.Abs(dir)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory: flag, then the config.yaml
// value, then CANVAS_DATA_DIR, then $(CWD)/.canvas-db.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if dir := firstNonEmpty(flag, configYAMLValue, os.Getenv(EnvDataDir)); dir != "" {
		return filepath.Abs(dir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
