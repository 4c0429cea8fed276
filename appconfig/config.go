package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/veery/veery/platform"
)

// Config holds application configuration.
type Config struct {
	// Address the HTTP server listens on.
	ListenAddr string `toml:"listen_addr"`

	// Directory downloads are written to.
	DownloadPath string `toml:"download_path"`

	// Directory preview clips are cached in.
	PreviewCachePath string `toml:"preview_cache_path"`

	// Directory used for scratch files during tagging.
	TempPath string `toml:"temp_path"`

	// Number of downloads allowed to run at once.
	MaxConcurrentDownloads int `toml:"max_concurrent_downloads"`

	// Optional explicit tool paths. Empty means managed install or PATH.
	YtDlpPath  string `toml:"yt_dlp_path"`
	FFmpegPath string `toml:"ffmpeg_path"`

	// Open the UI in the default browser on startup.
	OpenBrowser bool `toml:"open_browser"`

	// Library database location.
	LibraryDBPath string `toml:"library_db_path"`

	// Authentication settings. Auth is off by default since the server
	// binds to loopback.
	RequireAuth bool   `toml:"require_auth"`
	JWTSecret   string `toml:"jwt_secret"`

	// Optional S3 archive settings. Uploads are enabled when Bucket is
	// set.
	S3 S3Config `toml:"s3"`
}

// S3Config holds settings for the optional S3 archive uploader.
type S3Config struct {
	Bucket          string `toml:"bucket"`
	Region          string `toml:"region"`
	Prefix          string `toml:"prefix"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
}

var (
	cfgMu sync.RWMutex
	cfg   Config
)

// defaultDownloadPath returns the default download directory.
func defaultDownloadPath() string {
	return filepath.Join(platform.GetDownloadsDir(), "veery")
}

// DefaultConfigDir returns the directory the config file lives in.
func DefaultConfigDir() string {
	return platform.GetDataDir()
}

// defaultConfig returns a Config populated with defaults.
func defaultConfig() Config {
	return Config{
		ListenAddr:             "127.0.0.1:47815",
		DownloadPath:           defaultDownloadPath(),
		PreviewCachePath:       filepath.Join(platform.GetCacheDir(), "previews"),
		TempPath:               platform.GetTempDir(),
		MaxConcurrentDownloads: 6,
		OpenBrowser:            true,
		LibraryDBPath:          filepath.Join(platform.GetDataDir(), "library.db"),
		JWTSecret:              uuid.New().String(),
	}
}

// Get returns a copy of the current in-memory config.
func Get() Config {
	cfgMu.RLock()
	defer cfgMu.RUnlock()
	return cfg
}

// Set replaces the in-memory config.
func Set(c Config) {
	cfgMu.Lock()
	cfg = c
	cfgMu.Unlock()
}

// getConfigPath returns the full path to the config.toml file.
func getConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.toml")
}

// Load reads the config from disk and updates the in-memory config. It
// returns the config and the path it was read from. A missing config
// file is created with default values.
func Load() (Config, string, error) {
	path := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return Config{}, "", fmt.Errorf("create config directory: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			def := defaultConfig()
			if saveErr := Save(def); saveErr != nil {
				return Config{}, path, fmt.Errorf("create default config: %w", saveErr)
			}
			Set(def)
			return def, path, nil
		}
		return Config{}, path, fmt.Errorf("read config file at %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, path, fmt.Errorf("parse config: %w", err)
	}

	c, needsSave := applyDefaults(c)
	if needsSave {
		if err := Save(c); err != nil {
			return Config{}, path, fmt.Errorf("update config: %w", err)
		}
	}

	Set(c)
	return c, path, nil
}

// applyDefaults fills in missing fields from the default config. It
// reports whether a field was filled that should be persisted.
func applyDefaults(c Config) (Config, bool) {
	def := defaultConfig()
	needsSave := false

	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.DownloadPath == "" {
		c.DownloadPath = def.DownloadPath
	}
	if c.PreviewCachePath == "" {
		c.PreviewCachePath = def.PreviewCachePath
	}
	if c.TempPath == "" {
		c.TempPath = def.TempPath
	}
	if c.MaxConcurrentDownloads <= 0 {
		c.MaxConcurrentDownloads = def.MaxConcurrentDownloads
	}
	if c.LibraryDBPath == "" {
		c.LibraryDBPath = def.LibraryDBPath
	}
	if c.JWTSecret == "" {
		c.JWTSecret = uuid.New().String()
		needsSave = true
	}

	return c, needsSave
}

// Save writes the config to disk and updates the in-memory copy.
func Save(c Config) error {
	path := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}

	Set(c)
	return nil
}
