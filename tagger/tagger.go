// Package tagger writes artist and cover-art metadata onto downloaded
// audio files. Tagging is best-effort by contract: callers log failures
// and never let them affect a completed download.
package tagger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mp4tag "github.com/zhaarey/go-mp4tag"
)

// Tagger applies metadata to finished files. MP4-family containers are
// tagged in-process; everything else goes through an ffmpeg remux.
type Tagger struct {
	ffmpeg string
}

// New returns a Tagger that shells out to the given ffmpeg executable for
// non-MP4 containers. An empty path falls back to "ffmpeg" on PATH.
func New(ffmpeg string) *Tagger {
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &Tagger{ffmpeg: ffmpeg}
}

// Tag writes the artist (and album artist) plus optional cover art onto
// the file at path. The container is chosen by extension.
func (t *Tagger) Tag(ctx context.Context, path, artist string, cover []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m4a", ".mp4":
		return tagMP4(path, artist, cover)
	case ".wav":
		// WAV has no sane cover-art story; metadata only.
		return t.remux(ctx, path, artist, nil)
	default:
		return t.remux(ctx, path, artist, cover)
	}
}

func tagMP4(path, artist string, cover []byte) error {
	mp4, err := mp4tag.Open(path)
	if err != nil {
		return fmt.Errorf("open mp4: %w", err)
	}
	defer mp4.Close()

	tags := &mp4tag.MP4Tags{
		Artist:      artist,
		AlbumArtist: artist,
	}
	if len(cover) > 0 {
		tags.Pictures = []*mp4tag.MP4Picture{
			{Format: mp4tag.ImageTypeAuto, Data: NormalizeCover(cover)},
		}
	}
	if err := mp4.Write(tags, nil); err != nil {
		return fmt.Errorf("write mp4 tags: %w", err)
	}
	return nil
}

// remux rewrites the file through ffmpeg with metadata (and, when cover is
// non-nil, an attached picture stream), then replaces the original.
func (t *Tagger) remux(ctx context.Context, path, artist string, cover []byte) error {
	remuxCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	ext := filepath.Ext(path)
	tmpOut := strings.TrimSuffix(path, ext) + ".tagged" + ext

	args := []string{"-y", "-i", path}

	var coverPath string
	if len(cover) > 0 {
		normalized := NormalizeCover(cover)
		coverFile, err := os.CreateTemp(filepath.Dir(path), "cover-*."+DetectImageExt(normalized))
		if err != nil {
			return fmt.Errorf("cover temp file: %w", err)
		}
		coverPath = coverFile.Name()
		_, writeErr := coverFile.Write(normalized)
		closeErr := coverFile.Close()
		if writeErr != nil || closeErr != nil {
			os.Remove(coverPath)
			return fmt.Errorf("write cover temp file: %v", writeErr)
		}
		defer os.Remove(coverPath)

		args = append(args, "-i", coverPath, "-map", "0:a", "-map", "1:v")
	}

	args = append(args,
		"-c", "copy",
		"-metadata", "artist="+artist,
		"-metadata", "album_artist="+artist,
	)
	if strings.EqualFold(ext, ".mp3") {
		args = append(args, "-id3v2_version", "3")
	}
	if coverPath != "" {
		args = append(args, "-disposition:v:0", "attached_pic")
	}
	args = append(args, tmpOut)

	cmd := commandContext(remuxCtx, t.ffmpeg, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(tmpOut)
		return fmt.Errorf("ffmpeg remux: %v: %s", err, tail(string(out), 300))
	}

	if err := os.Rename(tmpOut, path); err != nil {
		os.Remove(tmpOut)
		return fmt.Errorf("replace original: %w", err)
	}
	return nil
}

// tail returns the last n bytes of s, for compact error reporting of
// ffmpeg's chatty stderr.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
