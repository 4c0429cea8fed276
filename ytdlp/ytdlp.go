// Package ytdlp wraps the external yt-dlp executable: metadata probes,
// download command construction, preview fetches, and progress-line
// decoding. Nothing in here touches queue state.
package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/veery/veery/apperror"
)

// Environment variables honored on every invocation, matching the yt-dlp
// cookie passthrough contract.
const (
	EnvCookies            = "YTDLP_COOKIES"
	EnvCookiesFromBrowser = "YTDLP_COOKIES_FROM_BROWSER"
)

// VideoInfo is the distilled result of a metadata probe.
type VideoInfo struct {
	ID           string
	Title        string
	Artist       string
	ThumbnailURL string
	Duration     *int64 // whole seconds
}

// probeInfo mirrors the fields of yt-dlp's -J output that we consume.
type probeInfo struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Uploader   string  `json:"uploader"`
	Channel    string  `json:"channel"`
	Thumbnail  string  `json:"thumbnail"`
	Duration   float64 `json:"duration"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

// Client invokes a specific yt-dlp executable. Metadata probes are rate
// limited to stay under extractor throttling thresholds.
type Client struct {
	exe     string
	limiter *rate.Limiter
}

// NewClient returns a Client for the given executable path. An empty path
// falls back to "yt-dlp" on PATH.
func NewClient(exe string) *Client {
	if exe == "" {
		exe = "yt-dlp"
	}
	return &Client{
		exe:     exe,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 3),
	}
}

// commonArgs returns the arguments applied to every yt-dlp invocation.
func commonArgs() []string {
	args := []string{"--extractor-args", "youtube:player_client=default"}

	if cookies := strings.TrimSpace(os.Getenv(EnvCookies)); cookies != "" {
		return append(args, "--cookies", cookies)
	}
	if browser := strings.TrimSpace(os.Getenv(EnvCookiesFromBrowser)); browser != "" {
		return append(args, "--cookies-from-browser", browser)
	}
	return args
}

// FetchInfo probes a source URL for metadata without downloading anything.
func (c *Client) FetchInfo(ctx context.Context, url string) (VideoInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return VideoInfo{}, err
	}

	args := append([]string{"-J", "--no-playlist", url}, commonArgs()...)
	cmd := exec.CommandContext(ctx, c.exe, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if stderr.Len() > 0 {
			return VideoInfo{}, apperror.BadRequest(fmt.Sprintf("yt-dlp failed: %s", strings.TrimSpace(stderr.String())))
		}
		return VideoInfo{}, apperror.BadRequest(fmt.Sprintf("yt-dlp not available: %v", err))
	}

	var info probeInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return VideoInfo{}, apperror.Internal(fmt.Sprintf("parse yt-dlp output: %v", err))
	}

	title := info.Title
	if title == "" {
		title = "Unknown"
	}
	artist := info.Uploader
	if artist == "" {
		artist = info.Channel
	}
	if artist == "" {
		artist = "Unknown"
	}

	thumbnail := info.Thumbnail
	if thumbnail == "" && len(info.Thumbnails) > 0 {
		thumbnail = info.Thumbnails[len(info.Thumbnails)-1].URL
	}

	var duration *int64
	if info.Duration > 0 {
		seconds := int64(math.Round(info.Duration))
		duration = &seconds
	}

	return VideoInfo{
		ID:           info.ID,
		Title:        title,
		Artist:       artist,
		ThumbnailURL: thumbnail,
		Duration:     duration,
	}, nil
}

// DownloadCommand builds the audio-extraction invocation for one item. The
// caller owns the pipes and lifecycle of the returned command.
func (c *Client) DownloadCommand(ctx context.Context, url, format, outputTemplate string) *exec.Cmd {
	args := []string{
		"-x",
		"--audio-format", format,
		"--audio-quality", "0",
		"--no-playlist",
		"--progress",
		"--newline",
		"-o", outputTemplate,
		url,
	}
	args = append(args, commonArgs()...)
	return exec.CommandContext(ctx, c.exe, args...)
}

// DownloadPreview fetches the best audio stream for a quick in-browser
// preview, cached under dir keyed by item id. Returns the cached path.
func (c *Client) DownloadPreview(ctx context.Context, url, id, dir string) (string, error) {
	if existing := FindByPrefix(dir, id); existing != "" {
		return existing, nil
	}

	outputTemplate := filepath.Join(dir, id+".%(ext)s")
	args := []string{
		"-f", "bestaudio",
		"--no-playlist",
		"-o", outputTemplate,
		url,
	}
	args = append(args, commonArgs()...)

	cmd := exec.CommandContext(ctx, c.exe, args...)
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return "", apperror.Internal("yt-dlp preview download failed")
		}
		return "", apperror.BadRequest(fmt.Sprintf("yt-dlp not available: %v", err))
	}

	path := FindByPrefix(dir, id)
	if path == "" {
		return "", apperror.Internal("preview file missing")
	}
	return path, nil
}

// Version reports the tool's version string, or an error when the
// executable is missing or unresponsive.
func (c *Client) Version(ctx context.Context) (string, error) {
	versionCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	out, err := exec.CommandContext(versionCtx, c.exe, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("yt-dlp version check: %w", err)
	}
	return parseVersion(string(out)), nil
}

var versionRe = regexp.MustCompile(`(\d{4}\.\d{2}\.\d{2}(?:\.\d+)?)`)

// parseVersion extracts the version number from yt-dlp's version output,
// which looks like "2024.01.01" or "2024.01.01.123456".
func parseVersion(output string) string {
	matches := versionRe.FindStringSubmatch(output)
	if len(matches) > 1 {
		return matches[1]
	}
	return "unknown"
}

// FindByPrefix scans dir for the first file whose name starts with
// "prefix.". Used for cached previews and for locating tool output when
// the produced extension differs from the requested one.
func FindByPrefix(dir, prefix string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), prefix+".") {
			return filepath.Join(dir, entry.Name())
		}
	}
	return ""
}
