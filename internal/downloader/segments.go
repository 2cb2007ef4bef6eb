package downloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/opd-ai/go-sonic/internal/hls"
	"github.com/opd-ai/go-sonic/internal/media"
	"github.com/opd-ai/go-sonic/internal/storage"
)

type segmentResult struct {
	data []byte
	err  error
}

// FetchSegments downloads every segment of pl through s and writes them to w
// in playlist order. Up to Workers segments are fetched at once and at most
// twice that many are held in memory. The first failure stops the transfer.
func (m *Manager) FetchSegments(ctx context.Context, s media.Session, pl *hls.Playlist, w io.Writer) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)

	n := pl.Len()
	results := make([]chan segmentResult, n)
	for i := range results {
		results[i] = make(chan segmentResult, 1)
	}

	inFlight := make(chan struct{}, m.workers*2)
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range min(m.workers, n) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				seg, _ := pl.At(i)
				var data []byte
				err := m.withRetry(ctx, seg.URL, func() error {
					var err error
					data, err = seg.Bytes(ctx, s)
					return err
				})
				results[i] <- segmentResult{data: data, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range n {
			select {
			case inFlight <- struct{}{}:
			case <-ctx.Done():
				return
			}
			select {
			case jobs <- i:
			case <-ctx.Done():
				<-inFlight
				return
			}
		}
	}()

	defer func() {
		cancel()
		wg.Wait()
	}()

	out := m.limitWriter(ctx, w)
	var written int64
	for i := range n {
		var res segmentResult
		select {
		case res = <-results[i]:
		case <-ctx.Done():
			return written, ctx.Err()
		}
		<-inFlight
		if res.err != nil {
			return written, fmt.Errorf("segment %d: %w", i, res.err)
		}
		k, err := out.Write(res.data)
		written += int64(k)
		if err != nil {
			return written, err
		}
		m.logger.Debug("Wrote segment", "index", i, "bytes", k)
	}
	return written, nil
}

// SaveSegments fetches pl and stores the joined segments as a .ts file for job.
func (m *Manager) SaveSegments(ctx context.Context, s media.Session, job Job, pl *hls.Playlist) (*storage.DownloadRecord, error) {
	start := time.Now()
	path := m.files.MediaPath(job.Kind, job.ID, job.Title, "ts")
	m.reportProgress(job.ID, 0, "downloading", fmt.Sprintf("Fetching %d segments", pl.Len()))

	pr, pw := io.Pipe()
	go func() {
		_, err := m.FetchSegments(ctx, s, pl, pw)
		pw.CloseWithError(err)
	}()

	size, checksum, err := m.files.WriteAtomic(path, pr)
	pr.Close()
	if err != nil {
		m.reportProgress(job.ID, 0, "failed", err.Error())
		return nil, err
	}

	record := &storage.DownloadRecord{
		ID:           fmt.Sprintf("%s-%s-%d", job.Kind, job.ID, start.Unix()),
		MediaKind:    job.Kind,
		MediaID:      job.ID,
		Title:        job.Title,
		Encoding:     "ts",
		LocalPath:    path,
		Size:         size,
		Checksum:     checksum,
		DownloadedAt: time.Now(),
	}
	if m.storage != nil {
		if err := m.storage.AddDownloadRecord(record); err != nil {
			m.logger.Error("Failed to store download record", "media_id", job.ID, "error", err)
		}
	}

	m.logger.Info("Segment download completed",
		"media_id", job.ID,
		"segments", pl.Len(),
		"duration", time.Since(start),
		"bytes", size)
	m.reportProgress(job.ID, 100, "completed", "Download completed successfully")
	return record, nil
}
