package deps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/veery/veery/fetch"
	"github.com/veery/veery/platform"
)

var ffmpegVersionRe = regexp.MustCompile(`ffmpeg version (\S+)`)

func init() {
	Register(&Tool{
		ID:          "ffmpeg",
		Name:        "FFmpeg",
		Description: "Media toolkit used for tagging and remuxing downloads",
		TargetDir:   ToolsDir("ffmpeg"),
		DownloadURL: ffmpegDownloadURL(),
		Check:       checkFFmpeg,
		Install:     installFFmpeg,
	})
}

// checkFFmpeg verifies the managed FFmpeg executable exists and runs.
func checkFFmpeg(ctx context.Context) (bool, string, error) {
	tool, _ := Get("ffmpeg")
	exePath := installedPath(tool)
	if exePath == "" {
		return false, "", nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(probeCtx, exePath, "-version").CombinedOutput()
	if err != nil {
		return true, "", nil
	}
	return true, parseFFmpegVersion(string(output)), nil
}

// parseFFmpegVersion extracts the version token from FFmpeg's banner,
// e.g. "ffmpeg version N-122344-g649a4e98f4" or "ffmpeg version 6.0".
func parseFFmpegVersion(output string) string {
	matches := ffmpegVersionRe.FindStringSubmatch(output)
	if len(matches) > 1 {
		return matches[1]
	}
	return ""
}

// installFFmpeg downloads and extracts the FFmpeg release archive for
// the current platform.
func installFFmpeg(ctx context.Context, progress fetch.ProgressFunc) error {
	tool, ok := Get("ffmpeg")
	if !ok {
		return fmt.Errorf("ffmpeg not registered")
	}

	if err := os.MkdirAll(tool.TargetDir, 0755); err != nil {
		return fmt.Errorf("create tool directory: %w", err)
	}

	archivePath := filepath.Join(tool.TargetDir, ffmpegArchiveName())
	if err := fetch.File(ctx, archivePath, tool.DownloadURL, progress); err != nil {
		return fmt.Errorf("download ffmpeg: %w", err)
	}

	prefix := ffmpegStripPrefix()
	if strings.HasSuffix(archivePath, ".tar.xz") {
		if err := fetch.ExtractTarXz(archivePath, tool.TargetDir, strings.Count(prefix, "/")); err != nil {
			return fmt.Errorf("extract ffmpeg: %w", err)
		}
	} else {
		if err := fetch.ExtractArchive(archivePath, tool.TargetDir, prefix); err != nil {
			return fmt.Errorf("extract ffmpeg: %w", err)
		}
	}
	os.Remove(archivePath)

	exePath := filepath.Join(tool.TargetDir, ExecutableName("ffmpeg"))
	if _, err := os.Stat(exePath); err != nil {
		return fmt.Errorf("ffmpeg executable missing after extraction: %w", err)
	}
	if err := platform.EnsureExecutable(exePath); err != nil {
		return fmt.Errorf("set executable permissions: %w", err)
	}

	// BtbN archives ship ffprobe next to ffmpeg.
	if runtime.GOOS != "darwin" {
		probePath := filepath.Join(tool.TargetDir, ExecutableName("ffprobe"))
		if _, err := os.Stat(probePath); err == nil {
			if err := platform.EnsureExecutable(probePath); err != nil {
				return fmt.Errorf("set executable permissions: %w", err)
			}
		}
	}
	return nil
}
