// Package downloader saves media to local disk on top of the media model.
//
// It is the caller-level layer that adds what the model deliberately leaves
// out: a worker pool for fetching many items or segments at once, retries
// with backoff, bandwidth limiting and progress reporting.
package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"github.com/opd-ai/go-sonic/internal/media"
	"github.com/opd-ai/go-sonic/internal/storage"
	"github.com/opd-ai/go-sonic/pkg/config"
)

// Media kinds used in download records and file paths.
const (
	KindSong    = "song"
	KindVideo   = "video"
	KindEpisode = "episode"
)

// ProgressReporter receives download status updates, e.g. for WebSocket clients.
type ProgressReporter interface {
	BroadcastProgress(mediaID, status, message string, progress float64)
}

// Opener is implemented by sessions that can hand out a streaming response
// instead of a fully buffered body. Downloads use it when available.
type Opener interface {
	OpenStream(ctx context.Context, rawURL string) (*http.Response, error)
}

// Job describes one media item to download. Ext overrides the file
// extension, which otherwise follows Media.Encoding.
type Job struct {
	Kind  string
	ID    string
	Title string
	Ext   string
	Media media.Streamable
}

func (j Job) ext() string {
	if j.Ext != "" {
		return j.Ext
	}
	return j.Media.Encoding()
}

// Result is the outcome of one job in DownloadAll.
type Result struct {
	Job    Job
	Record *storage.DownloadRecord
	Err    error
}

// Manager runs downloads with a bounded number of workers.
type Manager struct {
	workers  int
	config   *config.DownloadConfig
	files    *storage.FileManager
	storage  *storage.Manager
	limiter  *rate.Limiter
	logger   *slog.Logger
	reporter ProgressReporter
	sleep    func(ctx context.Context, d time.Duration) error
	mu       sync.RWMutex
}

// New creates a download manager. A RateLimitMbps of 0 leaves bandwidth unlimited.
func New(cfg *config.DownloadConfig, files *storage.FileManager, store *storage.Manager, logger *slog.Logger) *Manager {
	var limiter *rate.Limiter
	if cfg.RateLimitMbps > 0 {
		limiter = newByteLimiter(cfg.RateLimitMbps)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Manager{
		workers: workers,
		config:  cfg,
		files:   files,
		storage: store,
		limiter: limiter,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// SetProgressReporter sets the receiver for progress updates.
func (m *Manager) SetProgressReporter(reporter ProgressReporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporter = reporter
}

// Download fetches the original file of job.Media, writes it atomically under
// the download directory and records it. Transient failures are retried.
func (m *Manager) Download(ctx context.Context, s media.Session, job Job) (*storage.DownloadRecord, error) {
	var record *storage.DownloadRecord
	err := m.withRetry(ctx, job.ID, func() error {
		var err error
		record, err = m.downloadOnce(ctx, s, job)
		return err
	})
	if err != nil {
		m.reportProgress(job.ID, 0, "failed", err.Error())
		return nil, err
	}
	m.reportProgress(job.ID, 100, "completed", "Download completed successfully")
	return record, nil
}

// DownloadAll runs jobs on the worker pool. Results are returned in job order.
func (m *Manager) DownloadAll(ctx context.Context, s media.Session, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	idx := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(m.workers, len(jobs)); w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			m.logger.Debug("Starting download worker", "worker_id", id)
			for i := range idx {
				rec, err := m.Download(ctx, s, jobs[i])
				results[i] = Result{Job: jobs[i], Record: rec, Err: err}
			}
		}(w)
	}

	for i := range jobs {
		idx <- i
	}
	close(idx)
	wg.Wait()

	return results
}

func (m *Manager) downloadOnce(ctx context.Context, s media.Session, job Job) (*storage.DownloadRecord, error) {
	start := time.Now()
	path := m.files.MediaPath(job.Kind, job.ID, job.Title, job.ext())

	m.logger.Info("Starting download",
		"media_kind", job.Kind,
		"media_id", job.ID,
		"local_path", path)
	m.reportProgress(job.ID, 0, "downloading", "Download started")

	body, total, err := m.openDownload(ctx, s, job.Media)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	bar := m.newBar(total, fmt.Sprintf("Downloading %s %s", job.Kind, job.ID))
	defer bar.Close()

	var r io.Reader = io.TeeReader(m.limitReader(ctx, body), bar)
	size, checksum, err := m.files.WriteAtomic(path, r)
	if err != nil {
		return nil, err
	}

	record := &storage.DownloadRecord{
		ID:           fmt.Sprintf("%s-%s-%d", job.Kind, job.ID, start.Unix()),
		MediaKind:    job.Kind,
		MediaID:      job.ID,
		Title:        job.Title,
		Encoding:     job.ext(),
		LocalPath:    path,
		Size:         size,
		Checksum:     checksum,
		DownloadedAt: time.Now(),
	}
	if m.storage != nil {
		if err := m.storage.AddDownloadRecord(record); err != nil {
			m.logger.Error("Failed to store download record",
				"media_id", job.ID, "error", err)
		}
	}

	m.logger.Info("Download completed successfully",
		"media_id", job.ID,
		"duration", time.Since(start),
		"bytes", size)
	return record, nil
}

// openDownload streams through the session when it supports it and falls
// back to the buffered Download otherwise.
func (m *Manager) openDownload(ctx context.Context, s media.Session, item media.Streamable) (io.ReadCloser, int64, error) {
	if o, ok := s.(Opener); ok {
		u, err := item.DownloadURL(s)
		if err != nil {
			return nil, 0, err
		}
		resp, err := o.OpenStream(ctx, u)
		if err != nil {
			return nil, 0, media.AsBackendError("download", err)
		}
		return resp.Body, resp.ContentLength, nil
	}

	b, err := item.Download(ctx, s)
	if err != nil {
		return nil, 0, err
	}
	return io.NopCloser(bytesReader(b)), int64(len(b)), nil
}

func (m *Manager) newBar(total int64, desc string) *progressbar.ProgressBar {
	if m.config.ShowProgress {
		return progressbar.DefaultBytes(total, desc)
	}
	return progressbar.DefaultBytesSilent(total, desc)
}

// reportProgress forwards a progress update to the reporter, if any.
func (m *Manager) reportProgress(mediaID string, progress float64, status, message string) {
	m.mu.RLock()
	r := m.reporter
	m.mu.RUnlock()
	if r != nil {
		r.BroadcastProgress(mediaID, status, message, progress)
	}
}
