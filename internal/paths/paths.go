// Package paths resolves the on-disk locations endpointd uses by default.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnvVar overrides the endpointd home directory.
const HomeEnvVar = "ENDPOINTD_HOME"

const homeDirName = ".endpointd"

// GetHome returns the endpointd home directory: $ENDPOINTD_HOME if set,
// otherwise ~/.endpointd.
func GetHome() (string, error) {
	if home := os.Getenv(HomeEnvVar); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return filepath.Join(userHome, homeDirName), nil
}

// EnsureHome creates the home directory if needed and returns it.
func EnsureHome() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", home, err)
	}
	return home, nil
}

// GetLogPath returns the default log file location.
func GetLogPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "logs", "endpointd.log"), nil
}

// GetPIDPath returns the default PID file location.
func GetPIDPath() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "endpointd.pid"), nil
}

// ResolveRelative makes p absolute against base unless it already is.
func ResolveRelative(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
