// Package downloader runs the download pipeline: it drains eligible
// queue items through yt-dlp under a concurrency ceiling, streams
// progress back into the queue, and hands finished files to the
// tagging, library, and archive subsystems.
package downloader

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/veery/veery/apperror"
	"github.com/veery/veery/archive"
	"github.com/veery/veery/library"
	"github.com/veery/veery/queue"
	"github.com/veery/veery/tagger"
	"github.com/veery/veery/ytdlp"
)

// DefaultConcurrency is the download ceiling used when the config does
// not override it.
const DefaultConcurrency = 6

// validFormats are the audio formats accepted by StartAll.
var validFormats = map[string]bool{
	"flac": true,
	"mp3":  true,
	"m4a":  true,
	"wav":  true,
}

// Service coordinates downloads. Optional collaborators (Tagger,
// Library, Archive, Thumbs) may be nil; the corresponding step is then
// skipped.
type Service struct {
	store  *queue.Store
	client *ytdlp.Client
	sem    *semaphore.Weighted

	Tagger  *tagger.Tagger
	Library *library.Library
	Archive *archive.Uploader
	Thumbs  *http.Client
}

// New returns a Service with the given concurrency ceiling. A ceiling
// below one falls back to DefaultConcurrency.
func New(store *queue.Store, client *ytdlp.Client, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		store:  store,
		client: client,
		sem:    semaphore.NewWeighted(int64(concurrency)),
	}
}

// StartAll snapshots the eligible items and begins downloading them in
// the background. It returns the number of items that will be
// processed. Items enqueued after the snapshot wait for the next call.
func (s *Service) StartAll(ctx context.Context, format, dir string) (int, error) {
	if !validFormats[format] {
		return 0, apperror.BadRequest(fmt.Sprintf("unsupported format: %s", format))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, apperror.BadRequest(fmt.Sprintf("cannot create download directory: %v", err))
	}

	ids := s.store.EligibleIDs()
	go s.dispatch(ctx, ids, format, dir)
	return len(ids), nil
}

// dispatch acquires a permit per item before spawning its worker, so
// items start roughly in queue order and never more than the ceiling
// run at once. The permit is held for the worker's whole lifecycle.
func (s *Service) dispatch(ctx context.Context, ids []string, format, dir string) {
	for _, id := range ids {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}
		go func(id string) {
			defer s.sem.Release(1)
			s.download(ctx, id, format, dir)
		}(id)
	}
}

// download runs the full lifecycle for one item. Every exit path leaves
// the item in a terminal state; a panic counts as a failure rather than
// taking the process down.
func (s *Service) download(ctx context.Context, id, format, dir string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("download %s panicked: %v", id, r)
			s.store.Transition(id, queue.StateFailed, fmt.Sprintf("internal error: %v", r))
		}
	}()

	item, ok := s.store.Get(id)
	if !ok {
		return
	}
	s.store.Transition(id, queue.StateWorking, "")
	// A re-downloaded item must not carry its previous run's progress.
	s.store.SetProgress(id, 0)

	cover := s.fetchCover(ctx, item)

	title := tagger.SanitizeText(item.Title)
	if title == "" {
		title = item.ID
	}

	outputTemplate := filepath.Join(dir, title+".%(ext)s")
	cmd := s.client.DownloadCommand(ctx, item.SourceURL, format, outputTemplate)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.store.Transition(id, queue.StateFailed, fmt.Sprintf("start download: %v", err))
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		s.store.Transition(id, queue.StateFailed, fmt.Sprintf("start download: %v", err))
		return
	}
	if err := cmd.Start(); err != nil {
		s.store.Transition(id, queue.StateFailed, fmt.Sprintf("yt-dlp not available: %v", err))
		return
	}

	// yt-dlp writes progress to stdout normally but to stderr in some
	// configurations, so both streams feed the decoder.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if pct, ok := ytdlp.ParseProgress(scanner.Text()); ok {
				s.store.SetProgress(id, pct)
			}
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if pct, ok := ytdlp.ParseProgress(scanner.Text()); ok {
				s.store.SetProgress(id, pct)
			}
		}
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		s.store.Transition(id, queue.StateFailed, "download failed")
		return
	}

	path := filepath.Join(dir, title+"."+format)
	if _, err := os.Stat(path); err != nil {
		// The produced extension can differ from the requested format.
		path = ytdlp.FindByPrefix(dir, title)
	}
	if path == "" {
		s.store.Transition(id, queue.StateFailed, "downloaded file not found")
		return
	}

	if s.Tagger != nil {
		if err := s.Tagger.Tag(ctx, path, item.Artist, cover); err != nil {
			log.Printf("tagging %s failed: %v", filepath.Base(path), err)
		}
	}

	s.record(ctx, item, path, format)
	s.store.Transition(id, queue.StateComplete, "")
}

// fetchCover retrieves and normalizes the item's thumbnail. Failures
// only cost the embedded artwork, never the download.
func (s *Service) fetchCover(ctx context.Context, item queue.Item) []byte {
	if s.Thumbs == nil || item.ThumbnailURL == "" {
		return nil
	}
	data, err := tagger.FetchThumbnail(ctx, s.Thumbs, item.ThumbnailURL)
	if err != nil {
		log.Printf("thumbnail fetch for %s failed: %v", item.ID, err)
		return nil
	}
	return tagger.NormalizeCover(data)
}

// record stores the finished download in the library and uploads it to
// the archive, both best effort.
func (s *Service) record(ctx context.Context, item queue.Item, path, format string) {
	if s.Library != nil {
		rec := library.Record{
			ID:        item.ID,
			Title:     item.Title,
			Artist:    item.Artist,
			SourceURL: item.SourceURL,
			Path:      path,
			Format:    format,
		}
		if item.Duration != nil {
			rec.Duration = *item.Duration
		}
		if fi, err := os.Stat(path); err == nil {
			rec.Size = fi.Size()
		}
		if err := s.Library.Add(ctx, rec); err != nil {
			log.Printf("library record for %s failed: %v", item.ID, err)
		}
	}

	if s.Archive != nil {
		if err := s.Archive.Upload(ctx, path); err != nil {
			log.Printf("archive upload for %s failed: %v", item.ID, err)
		}
	}
}
