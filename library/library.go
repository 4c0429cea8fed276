package library

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Record is a completed download stored in the library.
type Record struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Artist       string    `json:"artist"`
	SourceURL    string    `json:"sourceUrl"`
	Path         string    `json:"path"`
	Format       string    `json:"format"`
	Size         int64     `json:"size"`
	Duration     int64     `json:"duration,omitempty"`
	DownloadedAt time.Time `json:"downloadedAt"`
}

// Library persists completed downloads in sqlite.
type Library struct {
	db *sql.DB
}

// Open opens (and if needed creates) the library database at path.
// Use ":memory:" for an ephemeral library.
func Open(path string) (*Library, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open library database: %w", err)
	}

	lib := &Library{db: db}
	if err := lib.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return lib, nil
}

// DB exposes the underlying handle so other subsystems can share the
// same database file.
func (l *Library) DB() *sql.DB {
	return l.db
}

// Close closes the underlying database.
func (l *Library) Close() error {
	return l.db.Close()
}

func (l *Library) ensureSchema() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS downloads (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT,
		source_url TEXT,
		path TEXT NOT NULL,
		format TEXT,
		size INTEGER,
		duration INTEGER,
		downloaded_at INTEGER NOT NULL
	);`
	if _, err := l.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("failed to create downloads table: %w", err)
	}
	return nil
}

// Add inserts a completed download. An existing record with the same ID
// is replaced, which covers retried downloads.
func (l *Library) Add(ctx context.Context, r Record) error {
	if r.DownloadedAt.IsZero() {
		r.DownloadedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO downloads
			(id, title, artist, source_url, path, format, size, duration, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Artist, r.SourceURL, r.Path, r.Format, r.Size, r.Duration,
		r.DownloadedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert download record: %w", err)
	}
	return nil
}

// List returns all records, newest first.
func (l *Library) List(ctx context.Context) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, title, artist, source_url, path, format, size, duration, downloaded_at
		FROM downloads
		ORDER BY downloaded_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		var downloadedAt int64
		if err := rows.Scan(&r.ID, &r.Title, &r.Artist, &r.SourceURL, &r.Path,
			&r.Format, &r.Size, &r.Duration, &downloadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan download record: %w", err)
		}
		r.DownloadedAt = time.Unix(downloadedAt, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Remove deletes a record by ID. Removing an unknown ID is not an
// error.
func (l *Library) Remove(ctx context.Context, id string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM downloads WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete download record: %w", err)
	}
	return nil
}
