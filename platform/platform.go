// Package platform provides cross-platform utilities for directory paths,
// binary extensions, and OS-specific operations.
package platform

import (
	"os"
	"path/filepath"
)

// AppName is the application name used for directory naming
const AppName = "veery"

// AppDisplayName is the display name used on Windows
const AppDisplayName = "Veery"

// GetDataDir returns the application data directory.
// Windows: %APPDATA%\Veery
// Linux: ~/.local/share/veery
func GetDataDir() string {
	return getDataDir()
}

// GetCacheDir returns the cache directory for downloaded tools and previews.
// Windows: %APPDATA%\Veery
// Linux: ~/.cache/veery
func GetCacheDir() string {
	return getCacheDir()
}

// GetTempDir returns the scratch directory for import/export temp files.
func GetTempDir() string {
	return getTempDir()
}

// GetDownloadsDir returns the user's Downloads folder, falling back to the
// current directory when no home directory is available.
func GetDownloadsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

// BinaryExtension returns the executable file extension for the current platform.
// Windows: ".exe"
// Linux: ""
func BinaryExtension() string {
	return binaryExtension()
}

// EnsureExecutable ensures a file has executable permissions.
// On Windows, this is a no-op.
// On Linux, this sets the executable bit.
func EnsureExecutable(path string) error {
	return ensureExecutable(path)
}

// UserHomeDir returns the user's home directory with proper fallbacks.
func UserHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
