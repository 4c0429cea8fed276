// Package fetch downloads tool binaries over HTTP with resume support and
// unpacks the archive formats upstream projects ship (zip, tar.gz, 7z).
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	// copyBufferSize is the copy buffer for file downloads.
	copyBufferSize = 32 * 1024
	// reportInterval throttles progress callbacks.
	reportInterval = 100 * time.Millisecond
)

// Progress is a snapshot of a running download. Total is -1 when the
// server does not report a length; Speed is a smoothed bytes-per-second
// rate.
type Progress struct {
	Downloaded int64
	Total      int64
	Speed      int64
}

// ProgressFunc receives throttled Progress snapshots during a download.
type ProgressFunc func(Progress)

// File downloads url to destPath. A pre-existing partial file is resumed
// via an HTTP Range request when the server supports it.
func File(ctx context.Context, destPath, url string, progress ProgressFunc) error {
	var offset int64
	if stat, err := os.Stat(destPath); err == nil {
		offset = stat.Size()
	}

	resp, err := request(ctx, url, offset)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	resumed := resp.StatusCode == http.StatusPartialContent
	if !resumed {
		// Server ignored the Range request; start over.
		offset = 0
	}
	total := resp.ContentLength
	if total > 0 {
		total += offset
	}

	out, err := openDest(destPath, resumed)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer out.Close()

	return copyBody(ctx, out, resp.Body, offset, total, progress)
}

// request issues the GET, asking for a byte range when offset is
// nonzero. Any status other than 200 or 206 is an error. Cancellation
// comes from ctx; large archives can legitimately take minutes.
func request(ctx context.Context, url string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return resp, nil
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
}

func openDest(path string, resume bool) (*os.File, error) {
	if resume {
		return os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	}
	return os.Create(path)
}

// copyBody streams the response body to out, emitting a progress
// snapshot roughly every reportInterval plus a final one at EOF.
func copyBody(ctx context.Context, out *os.File, body io.Reader, offset, total int64, progress ProgressFunc) error {
	meter := newSpeedMeter(offset)
	downloaded := offset
	buf := make([]byte, copyBufferSize)
	nextReport := time.Now().Add(reportInterval)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return fmt.Errorf("write to file: %w", err)
			}
			downloaded += int64(n)

			if progress != nil && time.Now().After(nextReport) {
				progress(Progress{Downloaded: downloaded, Total: total, Speed: meter.sample(downloaded)})
				nextReport = time.Now().Add(reportInterval)
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read response: %w", readErr)
		}
	}

	if progress != nil {
		progress(Progress{Downloaded: downloaded, Total: total, Speed: meter.sample(downloaded)})
	}
	return nil
}

// speedMeter smooths instantaneous transfer rates with an exponential
// moving average so the reported speed does not jump between ticks.
type speedMeter struct {
	lastBytes int64
	lastTime  time.Time
	avg       float64
}

func newSpeedMeter(startBytes int64) *speedMeter {
	return &speedMeter{lastBytes: startBytes, lastTime: time.Now()}
}

func (m *speedMeter) sample(downloaded int64) int64 {
	now := time.Now()
	elapsed := now.Sub(m.lastTime).Seconds()
	if elapsed <= 0 {
		return int64(m.avg)
	}
	instant := float64(downloaded-m.lastBytes) / elapsed
	m.lastBytes = downloaded
	m.lastTime = now

	if m.avg == 0 {
		m.avg = instant
	} else {
		m.avg = 0.7*m.avg + 0.3*instant
	}
	return int64(m.avg)
}
