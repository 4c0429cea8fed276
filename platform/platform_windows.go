//go:build windows
// +build windows

package platform

import (
	"os"
	"path/filepath"
)

func getDataDir() string {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		appData = filepath.Join(home, "AppData", "Roaming")
	}
	return filepath.Join(appData, AppDisplayName)
}

func getCacheDir() string {
	return getDataDir()
}

func getTempDir() string {
	return filepath.Join(os.TempDir(), AppName)
}

func binaryExtension() string {
	return ".exe"
}

func ensureExecutable(path string) error {
	// Windows determines executability by extension.
	return nil
}
