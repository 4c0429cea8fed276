package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/browser"

	"github.com/veery/veery/appconfig"
	"github.com/veery/veery/apperror"
	"github.com/veery/veery/archive"
	"github.com/veery/veery/auth"
	depspkg "github.com/veery/veery/deps"
	"github.com/veery/veery/downloader"
	"github.com/veery/veery/library"
	"github.com/veery/veery/port"
	"github.com/veery/veery/queue"
	"github.com/veery/veery/tagger"
	"github.com/veery/veery/version"
	"github.com/veery/veery/ytdlp"
)

// Dependencies holds the shared collaborators the handlers close over.
type Dependencies struct {
	Config     appconfig.Config
	Store      *queue.Store
	Client     *ytdlp.Client
	Downloader *downloader.Service
	Library    *library.Library
	Auth       *auth.Service
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.BadRequest(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// corsMiddleware sets permissive CORS headers. The server binds to
// loopback, so the packaged frontend is the only expected caller.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func versionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.Check(r.Context(), http.DefaultClient))
	}
}

func defaultDirHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"path": deps.Config.DownloadPath})
	}
}

func listQueueHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Store.List())
	}
}

func addQueueHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL string `json:"url"`
		}
		if err := decodeJSON(r, &req); err != nil {
			apperror.Write(w, err)
			return
		}
		if strings.TrimSpace(req.URL) == "" {
			apperror.Write(w, apperror.BadRequest("url is required"))
			return
		}

		info, err := deps.Client.FetchInfo(r.Context(), req.URL)
		if err != nil {
			apperror.Write(w, err)
			return
		}

		item := queue.Item{
			ID:           info.ID,
			SourceURL:    req.URL,
			Title:        orUnknown(tagger.SanitizeText(info.Title)),
			Artist:       orUnknown(tagger.SanitizeText(info.Artist)),
			ThumbnailURL: info.ThumbnailURL,
			Duration:     info.Duration,
			State:        queue.StateWaiting,
		}

		stored, err := deps.Store.Insert(item)
		if err != nil {
			if errors.Is(err, queue.ErrDuplicateID) {
				apperror.Write(w, apperror.Conflict("queue already contains this video"))
				return
			}
			apperror.Write(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stored)
	}
}

func updateQueueHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     string  `json:"id"`
			Title  *string `json:"title"`
			Artist *string `json:"artist"`
		}
		if err := decodeJSON(r, &req); err != nil {
			apperror.Write(w, err)
			return
		}

		var patch queue.Patch
		if req.Title != nil {
			if clean := tagger.SanitizeText(*req.Title); clean != "" {
				patch.Title = &clean
			}
		}
		if req.Artist != nil {
			if clean := tagger.SanitizeText(*req.Artist); clean != "" {
				patch.Artist = &clean
			}
		}

		item, err := deps.Store.UpdateFields(req.ID, patch)
		if err != nil {
			if errors.Is(err, queue.ErrNotFound) {
				apperror.Write(w, apperror.NotFound("queue item not found"))
				return
			}
			apperror.Write(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func deleteQueueHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.Remove(r.PathValue("id")); err != nil {
			if errors.Is(err, queue.ErrNotFound) {
				apperror.Write(w, apperror.NotFound("queue item not found"))
				return
			}
			apperror.Write(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func clearQueueHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Mode string `json:"mode"`
		}
		if err := decodeJSON(r, &req); err != nil {
			apperror.Write(w, err)
			return
		}

		remaining, err := deps.Store.Clear(req.Mode)
		if err != nil {
			if errors.Is(err, queue.ErrUnknownClearMode) {
				apperror.Write(w, apperror.BadRequest("unknown clear mode"))
				return
			}
			apperror.Write(w, err)
			return
		}
		writeJSON(w, http.StatusOK, remaining)
	}
}

func downloadHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Format string `json:"format"`
		}
		if err := decodeJSON(r, &req); err != nil {
			apperror.Write(w, err)
			return
		}

		format := strings.ToLower(strings.TrimSpace(req.Format))
		started, err := deps.Downloader.StartAll(context.Background(), format, deps.Config.DownloadPath)
		if err != nil {
			apperror.Write(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"started": started})
	}
}

func previewHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		item, ok := deps.Store.Get(id)
		if !ok {
			apperror.Write(w, apperror.NotFound("queue item not found"))
			return
		}

		path, err := deps.Client.DownloadPreview(r.Context(), item.SourceURL, item.ID, deps.Config.PreviewCachePath)
		if err != nil {
			apperror.Write(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"url": "/preview/" + filepath.Base(path),
		})
	}
}

func libraryHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := deps.Library.List(r.Context())
		if err != nil {
			apperror.Write(w, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

func importHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			apperror.Write(w, apperror.BadRequest("no file uploaded"))
			return
		}
		defer file.Close()

		tempPath := filepath.Join(deps.Config.TempPath, fmt.Sprintf("%s-%s", uuid.New(), header.Filename))
		out, err := os.Create(tempPath)
		if err != nil {
			apperror.Write(w, err)
			return
		}
		if _, err := io.Copy(out, file); err != nil {
			out.Close()
			os.Remove(tempPath)
			apperror.Write(w, err)
			return
		}
		out.Close()
		defer os.Remove(tempPath)

		rows, err := port.Import(tempPath)
		if err != nil {
			apperror.Write(w, apperror.BadRequest(err.Error()))
			return
		}

		newItems := []queue.Item{}
		for _, row := range rows {
			item, err := queueItemFromRow(r.Context(), deps.Client, row)
			if err != nil {
				log.Printf("failed to import row %q: %v", row.URL, err)
				continue
			}
			if stored, err := deps.Store.Insert(item); err == nil {
				newItems = append(newItems, stored)
			}
		}
		writeJSON(w, http.StatusOK, newItems)
	}
}

// queueItemFromRow probes the row's URL and applies the spreadsheet's
// title/artist overrides when present.
func queueItemFromRow(ctx context.Context, client *ytdlp.Client, row port.Row) (queue.Item, error) {
	info, err := client.FetchInfo(ctx, row.URL)
	if err != nil {
		return queue.Item{}, err
	}

	title := row.Title
	if title == "" {
		title = info.Title
	}
	artist := row.Artist
	if artist == "" {
		artist = info.Artist
	}

	return queue.Item{
		ID:           info.ID,
		SourceURL:    row.URL,
		Title:        orUnknown(tagger.SanitizeText(title)),
		Artist:       orUnknown(tagger.SanitizeText(artist)),
		ThumbnailURL: info.ThumbnailURL,
		Duration:     info.Duration,
		State:        queue.StateWaiting,
	}, nil
}

func exportHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Format string `json:"format"`
		}
		if err := decodeJSON(r, &req); err != nil {
			apperror.Write(w, err)
			return
		}

		format := strings.ToLower(strings.TrimSpace(req.Format))
		if format != "csv" && format != "xlsx" {
			apperror.Write(w, apperror.BadRequest(fmt.Sprintf("unsupported export format: %s", req.Format)))
			return
		}

		rows := []port.Row{}
		for _, item := range deps.Store.List() {
			rows = append(rows, port.Row{
				Title:  item.Title,
				Artist: item.Artist,
				URL:    item.SourceURL,
			})
		}

		fileName := "veery_export." + format
		tempPath := filepath.Join(deps.Config.TempPath, fmt.Sprintf("%s-%s", uuid.New(), fileName))
		if err := port.Export(tempPath, rows); err != nil {
			apperror.Write(w, err)
			return
		}
		defer os.Remove(tempPath)

		streamFile(w, tempPath, fileName)
	}
}

func sampleHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := port.CreateSampleXLSX(deps.Config.TempPath)
		if err != nil {
			apperror.Write(w, err)
			return
		}
		defer os.Remove(path)

		streamFile(w, path, "Sample.xlsx")
	}
}

// streamFile sends a temp file as an attachment download.
func streamFile(w http.ResponseWriter, path, downloadName string) {
	file, err := os.Open(path)
	if err != nil {
		apperror.Write(w, err)
		return
	}
	defer file.Close()

	contentType := mime.TypeByExtension(filepath.Ext(downloadName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	if _, err := io.Copy(w, file); err != nil {
		log.Printf("stream %s: %v", downloadName, err)
	}
}

func toolStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, depspkg.Status(r.Context()))
	}
}

func toolInstallHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// The install outlives the request.
		if err := depspkg.StartInstall(context.Background(), r.PathValue("id")); err != nil {
			apperror.Write(w, apperror.BadRequest(err.Error()))
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "installing"})
	}
}

func loginHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := decodeJSON(r, &req); err != nil {
			apperror.Write(w, err)
			return
		}

		token, err := deps.Auth.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			apperror.Write(w, &apperror.Error{Status: http.StatusUnauthorized, Message: "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func buildMux(deps *Dependencies) *http.ServeMux {
	protect := func(h http.Handler) http.Handler {
		if deps.Config.RequireAuth && deps.Auth != nil {
			return deps.Auth.Middleware(h)
		}
		return h
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", healthHandler())
	mux.HandleFunc("GET /api/version", versionHandler())
	if deps.Config.RequireAuth && deps.Auth != nil {
		mux.HandleFunc("POST /api/login", loginHandler(deps))
	}

	mux.Handle("GET /api/default-dir", protect(defaultDirHandler(deps)))
	mux.Handle("GET /api/queue", protect(listQueueHandler(deps)))
	mux.Handle("POST /api/queue/add", protect(addQueueHandler(deps)))
	mux.Handle("POST /api/queue/update", protect(updateQueueHandler(deps)))
	mux.Handle("POST /api/queue/clear", protect(clearQueueHandler(deps)))
	mux.Handle("DELETE /api/queue/{id}", protect(deleteQueueHandler(deps)))
	mux.Handle("POST /api/download", protect(downloadHandler(deps)))
	mux.Handle("GET /api/preview/{id}", protect(previewHandler(deps)))
	mux.Handle("GET /api/library", protect(libraryHandler(deps)))
	mux.Handle("POST /api/import", protect(importHandler(deps)))
	mux.Handle("POST /api/export", protect(exportHandler(deps)))
	mux.Handle("GET /api/sample", protect(sampleHandler(deps)))
	mux.Handle("GET /api/tools", protect(toolStatusHandler()))
	mux.Handle("POST /api/tools/{id}/install", protect(toolInstallHandler()))

	mux.Handle("GET /preview/", protect(http.StripPrefix("/preview/",
		http.FileServer(http.Dir(deps.Config.PreviewCachePath)))))

	return mux
}

func main() {
	cfg, cfgPath, err := appconfig.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	log.Printf("Config loaded from %s", cfgPath)

	for _, dir := range []string{cfg.DownloadPath, cfg.PreviewCachePath, cfg.TempPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("create directory %s: %v", dir, err)
		}
	}

	lib, err := library.Open(cfg.LibraryDBPath)
	if err != nil {
		log.Fatalf("open library: %v", err)
	}
	defer lib.Close()

	var authSvc *auth.Service
	if cfg.RequireAuth {
		authSvc, err = auth.NewService(lib.DB(), cfg.JWTSecret)
		if err != nil {
			log.Fatalf("init auth: %v", err)
		}
		if err := authSvc.EnsureDefaultUser(context.Background()); err != nil {
			log.Fatalf("create default user: %v", err)
		}
	}

	uploader, err := archive.New(context.Background(), archive.Options{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Prefix:          cfg.S3.Prefix,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
	if err != nil {
		log.Printf("S3 archive disabled: %v", err)
	}
	if uploader != nil {
		log.Printf("Archiving completed downloads to s3://%s", cfg.S3.Bucket)
	}

	ytdlpPath := depspkg.Resolve("yt-dlp", cfg.YtDlpPath)
	ffmpegPath := depspkg.Resolve("ffmpeg", cfg.FFmpegPath)
	log.Printf("Using yt-dlp at %s, ffmpeg at %s", ytdlpPath, ffmpegPath)

	client := ytdlp.NewClient(ytdlpPath)
	store := queue.NewStore()

	svc := downloader.New(store, client, cfg.MaxConcurrentDownloads)
	svc.Tagger = tagger.New(ffmpegPath)
	svc.Library = lib
	svc.Archive = uploader
	svc.Thumbs = tagger.NewThumbnailClient()

	deps := &Dependencies{
		Config:     cfg,
		Store:      store,
		Client:     client,
		Downloader: svc,
		Library:    lib,
		Auth:       authSvc,
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: corsMiddleware(buildMux(deps)),
	}

	go func() {
		log.Printf("Listening on http://%s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("veery: %v", err)
		}
	}()

	if cfg.OpenBrowser {
		_ = browser.OpenURL("http://" + cfg.ListenAddr + "/")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
