package tagger

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

// maxCoverEdge bounds embedded cover art. Thumbnails from yt-dlp can be
// full video stills; players choke on multi-megabyte art.
const maxCoverEdge = 1000

const maxCoverBytes = 20 << 20

// FetchThumbnail downloads raw thumbnail bytes. Callers treat any error as
// "no cover art", never as a download failure.
func FetchThumbnail(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("thumbnail fetch: %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// NormalizeCover decodes thumbnail bytes (jpeg, png, or webp), downscales
// anything larger than maxCoverEdge, and re-encodes as JPEG so every
// container gets a format it can embed. Undecodable input is returned
// unchanged; the tag writers pass it through as-is.
func NormalizeCover(data []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	bounds := img.Bounds()
	if bounds.Dx() > maxCoverEdge || bounds.Dy() > maxCoverEdge {
		img = resize.Thumbnail(maxCoverEdge, maxCoverEdge, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return data
	}
	return buf.Bytes()
}

// DetectImageExt sniffs the container of raw image bytes, defaulting to
// jpg. Used when a cover has to be written to a temp file for ffmpeg.
func DetectImageExt(data []byte) string {
	if bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}) {
		return "png"
	}
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "webp"
	}
	return "jpg"
}

// defaultTimeout bounds a single thumbnail fetch.
const defaultTimeout = 30 * time.Second

// NewThumbnailClient returns the HTTP client used for thumbnail fetches.
func NewThumbnailClient() *http.Client {
	return &http.Client{Timeout: defaultTimeout}
}
