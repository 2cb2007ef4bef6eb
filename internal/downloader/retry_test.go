package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/opd-ai/go-sonic/internal/media"
	"github.com/opd-ai/go-sonic/internal/subsonic"
)

// TestIsRetryableError verifies error classification for retry logic
func TestIsRetryableError(t *testing.T) {
	m := &Manager{}

	tests := []struct {
		name       string
		err        error
		httpStatus int
		want       bool
	}{
		{"404 Not Found", errors.New("not found"), http.StatusNotFound, false},
		{"403 Forbidden", errors.New("forbidden"), http.StatusForbidden, false},
		{"401 Unauthorized", errors.New("unauthorized"), http.StatusUnauthorized, false},
		{"418 other 4xx", errors.New("teapot"), http.StatusTeapot, false},
		{"429 Too Many Requests", errors.New("rate limited"), http.StatusTooManyRequests, true},
		{"500 Internal Server Error", errors.New("server error"), http.StatusInternalServerError, true},
		{"503 Service Unavailable", errors.New("unavailable"), http.StatusServiceUnavailable, true},
		{"network error", errors.New("connection refused"), 0, true},
		{"no error", nil, 200, false},
		{"cancelled", fmt.Errorf("fetch: %w", context.Canceled), 0, false},
		{"api error", &media.BackendError{Op: "getSong", Err: &subsonic.APIError{Code: 70, Message: "not found"}}, 0, false},
		{"kind mismatch", &media.KindMismatchError{Want: "song"}, 0, false},
		{"malformed record", media.ErrMalformedRecord, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.isRetryableError(tt.err, tt.httpStatus))
		})
	}
}

func TestHTTPStatusFromBackendError(t *testing.T) {
	err := fmt.Errorf("segment 3: %w", &media.BackendError{
		Op:  "segment",
		Err: &subsonic.HTTPError{StatusCode: http.StatusBadGateway, Path: "/seg/3.ts"},
	})
	assert.Equal(t, http.StatusBadGateway, httpStatus(err))
	assert.Zero(t, httpStatus(errors.New("plain")))
}

// TestBackoffJitter verifies delays double per attempt within ±25%.
func TestBackoffJitter(t *testing.T) {
	base := 100 * time.Millisecond
	for attempt := range 4 {
		values := make(map[time.Duration]bool)
		nominal := base << attempt
		for range 100 {
			d := backoff(base, attempt)
			values[d] = true
			assert.GreaterOrEqual(t, d, time.Duration(float64(nominal)*0.75))
			assert.LessOrEqual(t, d, time.Duration(float64(nominal)*1.25))
		}
		assert.Greater(t, len(values), 10, "jitter should vary delays")
	}
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestByteLimiterBurst(t *testing.T) {
	l := newByteLimiter(8)
	assert.Equal(t, rate.Limit(1024*1024), l.Limit())
	assert.Equal(t, 5*1024*1024, l.Burst())

	assert.GreaterOrEqual(t, newByteLimiter(0).Burst(), 1)
}

func TestRateLimitedReaderSmallBurst(t *testing.T) {
	m := &Manager{limiter: rate.NewLimiter(rate.Inf, 1)}
	r := m.limitReader(context.Background(), strings.NewReader("abc"))

	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}
