package deps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/veery/veery/fetch"
	"github.com/veery/veery/platform"
	"github.com/veery/veery/ytdlp"
)

func init() {
	Register(&Tool{
		ID:          "yt-dlp",
		Name:        "yt-dlp",
		Description: "Downloader for YouTube and other media platforms",
		TargetDir:   ToolsDir("yt-dlp"),
		DownloadURL: ytDlpDownloadURL(),
		Check:       checkYtDlp,
		Install:     installYtDlp,
	})
}

// checkYtDlp verifies the managed yt-dlp executable exists and runs.
func checkYtDlp(ctx context.Context) (bool, string, error) {
	tool, _ := Get("yt-dlp")
	exePath := installedPath(tool)
	if exePath == "" {
		return false, "", nil
	}

	version, err := ytdlp.NewClient(exePath).Version(ctx)
	if err != nil {
		// Executable is present but the version probe failed.
		return true, "", nil
	}
	return true, version, nil
}

// installYtDlp downloads the single-file yt-dlp binary.
func installYtDlp(ctx context.Context, progress fetch.ProgressFunc) error {
	tool, ok := Get("yt-dlp")
	if !ok {
		return fmt.Errorf("yt-dlp not registered")
	}

	if err := os.MkdirAll(tool.TargetDir, 0755); err != nil {
		return fmt.Errorf("create tool directory: %w", err)
	}

	exePath := filepath.Join(tool.TargetDir, ExecutableName("yt-dlp"))
	if err := fetch.File(ctx, exePath, tool.DownloadURL, progress); err != nil {
		return fmt.Errorf("download yt-dlp: %w", err)
	}

	if err := platform.EnsureExecutable(exePath); err != nil {
		return fmt.Errorf("set executable permissions: %w", err)
	}
	return nil
}
