//go:build darwin
// +build darwin

package platform

import (
	"os"
	"path/filepath"
)

func getDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Library", "Application Support", AppDisplayName)
}

func getCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Library", "Caches", AppDisplayName)
}

func getTempDir() string {
	return filepath.Join(os.TempDir(), AppName)
}

func binaryExtension() string {
	return ""
}

func ensureExecutable(path string) error {
	return os.Chmod(path, 0755)
}
