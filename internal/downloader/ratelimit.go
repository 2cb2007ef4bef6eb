package downloader

import (
	"bytes"
	"context"
	"io"

	"golang.org/x/time/rate"
)

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

// newByteLimiter converts megabits per second into a byte limiter with five
// seconds of burst. The burst is at least one byte so reads always progress.
func newByteLimiter(mbps int) *rate.Limiter {
	bytesPerSecond := float64(mbps) * 1024 * 1024 / 8
	return rate.NewLimiter(rate.Limit(bytesPerSecond), max(1, int(bytesPerSecond*5)))
}

// limitReader wraps r with the manager's bandwidth limit, if one is set.
func (m *Manager) limitReader(ctx context.Context, r io.Reader) io.Reader {
	if m.limiter == nil {
		return r
	}
	return &rateLimitedReader{reader: r, limiter: m.limiter, ctx: ctx}
}

// limitWriter wraps w with the manager's bandwidth limit, if one is set.
func (m *Manager) limitWriter(ctx context.Context, w io.Writer) io.Writer {
	if m.limiter == nil {
		return w
	}
	return &rateLimitedWriter{writer: w, limiter: m.limiter, ctx: ctx}
}

// rateLimitedReader implements io.Reader with rate limiting. Reads are capped
// at the limiter's burst so WaitN never rejects them.
type rateLimitedReader struct {
	reader  io.Reader
	limiter *rate.Limiter
	ctx     context.Context
}

func (r *rateLimitedReader) Read(buf []byte) (int, error) {
	if burst := r.limiter.Burst(); len(buf) > burst {
		buf = buf[:burst]
	}
	n, err := r.reader.Read(buf)
	if n > 0 {
		if werr := r.limiter.WaitN(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// rateLimitedWriter implements io.Writer with rate limiting, splitting large
// writes into burst-sized chunks.
type rateLimitedWriter struct {
	writer  io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

func (w *rateLimitedWriter) Write(p []byte) (int, error) {
	written := 0
	burst := w.limiter.Burst()
	for len(p) > 0 {
		chunk := p
		if len(chunk) > burst {
			chunk = chunk[:burst]
		}
		if err := w.limiter.WaitN(w.ctx, len(chunk)); err != nil {
			return written, err
		}
		n, err := w.writer.Write(chunk)
		written += n
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}
