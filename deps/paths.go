package deps

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/veery/veery/platform"
)

// ToolsDir returns the installation directory for a bundled tool.
func ToolsDir(id string) string {
	return filepath.Join(platform.GetDataDir(), "tools", id)
}

// ExecutableName appends the platform executable extension to a base name.
func ExecutableName(base string) string {
	return base + platform.BinaryExtension()
}

// installedPath returns the managed install path for a tool, or "" if
// the executable is not there.
func installedPath(tool *Tool) string {
	path := filepath.Join(tool.TargetDir, ExecutableName(tool.ID))
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// ytDlpDownloadURL returns the release URL for the yt-dlp single binary.
func ytDlpDownloadURL() string {
	if runtime.GOOS == "windows" {
		return "https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp.exe"
	}
	return "https://github.com/yt-dlp/yt-dlp/releases/latest/download/yt-dlp"
}

// ffmpegDownloadURL returns the release archive URL for FFmpeg on the
// current platform. macOS builds come from evermeet.cz since the BtbN
// project only publishes Windows and Linux archives.
func ffmpegDownloadURL() string {
	switch runtime.GOOS {
	case "windows":
		return "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/ffmpeg-master-latest-win64-gpl.zip"
	case "darwin":
		return "https://evermeet.cx/ffmpeg/getrelease/zip"
	default:
		return "https://github.com/BtbN/FFmpeg-Builds/releases/download/latest/ffmpeg-master-latest-linux64-gpl.tar.xz"
	}
}

// ffmpegArchiveName returns the local filename the FFmpeg archive is
// saved under before extraction.
func ffmpegArchiveName() string {
	switch runtime.GOOS {
	case "windows", "darwin":
		return "ffmpeg.zip"
	default:
		return "ffmpeg.tar.xz"
	}
}

// ffmpegStripPrefix returns the top-level directory inside the FFmpeg
// archive that should be flattened away on extraction.
func ffmpegStripPrefix() string {
	switch runtime.GOOS {
	case "windows":
		return "ffmpeg-master-latest-win64-gpl/bin/"
	case "darwin":
		return ""
	default:
		return "ffmpeg-master-latest-linux64-gpl/bin/"
	}
}
