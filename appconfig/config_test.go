package appconfig

import (
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
)

// TestDefaultConfig verifies default configuration values.
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.ListenAddr != "127.0.0.1:47815" {
		t.Errorf("Default ListenAddr = %q; want %q", cfg.ListenAddr, "127.0.0.1:47815")
	}

	if cfg.MaxConcurrentDownloads != 6 {
		t.Errorf("Default MaxConcurrentDownloads = %d; want 6", cfg.MaxConcurrentDownloads)
	}

	if !cfg.OpenBrowser {
		t.Error("Default OpenBrowser should be true")
	}

	if cfg.RequireAuth {
		t.Error("Default RequireAuth should be false")
	}

	if cfg.JWTSecret == "" {
		t.Error("Default JWTSecret should not be empty")
	}

	if filepath.Base(cfg.DownloadPath) != "veery" {
		t.Errorf("Default download path should end with 'veery'; got %q", cfg.DownloadPath)
	}
}

// TestGetSet verifies Get/Set functions for in-memory config.
func TestGetSet(t *testing.T) {
	original := Get()
	defer Set(original)

	testConfig := Config{
		ListenAddr:   "127.0.0.1:9999",
		DownloadPath: "/test/downloads",
		YtDlpPath:    "/test/yt-dlp",
	}

	Set(testConfig)

	retrieved := Get()

	if retrieved.ListenAddr != testConfig.ListenAddr {
		t.Errorf("Get().ListenAddr = %q; want %q", retrieved.ListenAddr, testConfig.ListenAddr)
	}
	if retrieved.DownloadPath != testConfig.DownloadPath {
		t.Errorf("Get().DownloadPath = %q; want %q", retrieved.DownloadPath, testConfig.DownloadPath)
	}
	if retrieved.YtDlpPath != testConfig.YtDlpPath {
		t.Errorf("Get().YtDlpPath = %q; want %q", retrieved.YtDlpPath, testConfig.YtDlpPath)
	}
}

// TestApplyDefaults verifies missing fields are filled in without
// touching fields the user set.
func TestApplyDefaults(t *testing.T) {
	partial := Config{
		DownloadPath:           "/keep/downloads",
		MaxConcurrentDownloads: 2,
	}

	filled, needsSave := applyDefaults(partial)

	if filled.DownloadPath != "/keep/downloads" {
		t.Errorf("applyDefaults() overwrote DownloadPath: %q", filled.DownloadPath)
	}
	if filled.MaxConcurrentDownloads != 2 {
		t.Errorf("applyDefaults() overwrote MaxConcurrentDownloads: %d", filled.MaxConcurrentDownloads)
	}
	if filled.ListenAddr == "" {
		t.Error("applyDefaults() should fill ListenAddr")
	}
	if filled.JWTSecret == "" {
		t.Error("applyDefaults() should generate JWTSecret")
	}
	if !needsSave {
		t.Error("applyDefaults() should request a save after generating JWTSecret")
	}

	filled2, needsSave2 := applyDefaults(filled)
	if needsSave2 {
		t.Error("applyDefaults() on a complete config should not request a save")
	}
	if filled2.JWTSecret != filled.JWTSecret {
		t.Error("applyDefaults() should not regenerate an existing JWTSecret")
	}
}

// TestApplyDefaultsZeroConcurrency verifies a nonsense concurrency
// value falls back to the default.
func TestApplyDefaultsZeroConcurrency(t *testing.T) {
	filled, _ := applyDefaults(Config{MaxConcurrentDownloads: -1})
	if filled.MaxConcurrentDownloads != 6 {
		t.Errorf("MaxConcurrentDownloads = %d; want 6", filled.MaxConcurrentDownloads)
	}
}

// TestTOMLRoundTrip verifies the config survives encode/decode with
// the S3 table intact.
func TestTOMLRoundTrip(t *testing.T) {
	in := defaultConfig()
	in.S3 = S3Config{
		Bucket: "veery-archive",
		Region: "us-east-1",
		Prefix: "music/",
	}

	data, err := toml.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var out Config
	if err := toml.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if out.ListenAddr != in.ListenAddr {
		t.Errorf("ListenAddr = %q; want %q", out.ListenAddr, in.ListenAddr)
	}
	if out.S3.Bucket != "veery-archive" || out.S3.Prefix != "music/" {
		t.Errorf("S3 settings did not round-trip: %+v", out.S3)
	}
}
