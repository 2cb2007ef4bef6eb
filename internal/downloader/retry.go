package downloader

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/opd-ai/go-sonic/internal/media"
	"github.com/opd-ai/go-sonic/internal/subsonic"
)

// withRetry runs op until it succeeds, fails permanently or runs out of attempts.
func (m *Manager) withRetry(ctx context.Context, mediaID string, op func() error) error {
	attempts := m.config.RetryAttempts
	if attempts < 0 {
		attempts = 0
	}

	var err error
	for attempt := 0; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if !m.isRetryableError(err, httpStatus(err)) || attempt == attempts {
			break
		}

		delay := backoff(m.config.RetryDelay, attempt)
		m.logger.Warn("Download failed, retrying",
			"media_id", mediaID,
			"attempt", attempt+1,
			"max_attempts", attempts+1,
			"delay", delay,
			"error", err)
		m.reportProgress(mediaID, 0, "retrying", err.Error())

		if serr := m.sleep(ctx, delay); serr != nil {
			return errors.Join(err, serr)
		}
	}
	return err
}

// isRetryableError reports whether a failure is worth another attempt.
// Client errors are permanent except 429; server and network errors are not.
func (m *Manager) isRetryableError(err error, status int) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *subsonic.APIError
	if errors.As(err, &apiErr) {
		return false
	}
	if errors.Is(err, media.ErrMalformedRecord) ||
		errors.Is(err, media.ErrKindMismatch) ||
		errors.Is(err, media.ErrNoCoverArt) {
		return false
	}

	switch {
	case status == http.StatusTooManyRequests:
		return true
	case status >= 400 && status < 500:
		return false
	default:
		return true
	}
}

// httpStatus extracts the HTTP status from a backend error, or 0.
func httpStatus(err error) int {
	var httpErr *subsonic.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// backoff doubles base per attempt and applies ±25% jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base << attempt
	return time.Duration(float64(d) * (0.75 + 0.5*rand.Float64()))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
