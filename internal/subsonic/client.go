// Package subsonic implements the backend session for Subsonic-compatible
// servers (Subsonic, Airsonic, Navidrome, Gonic). It satisfies media.Session
// and adds the few list endpoints the rest of go-sonic needs.
package subsonic

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/opd-ai/go-sonic/internal/media"
	"github.com/opd-ai/go-sonic/pkg/config"
)

// Client talks to one server as one user. Requests are paced by a token
// bucket limiter; there is no retry at this level.
type Client struct {
	config     *config.SubsonicConfig
	logger     *slog.Logger
	httpClient *http.Client
	// streamClient has no overall timeout so large bodies can be copied.
	streamClient *http.Client
	limiter      *rate.Limiter
	base         *url.URL

	// newSalt generates the per-request salt for token authentication.
	newSalt func() string
}

var _ media.Session = (*Client)(nil)

// New creates a client for the configured server. It does not contact the
// server; call Ping to verify credentials.
func New(cfg *config.SubsonicConfig, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", cfg.ServerURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: scheme and host are required", cfg.ServerURL)
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout

	return &Client{
		config:       cfg,
		logger:       logger,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{Transport: transport},
		limiter:      rate.NewLimiter(limit, 1),
		base:         base,
		newSalt:      randomSalt,
	}, nil
}

// BuildURL returns an authenticated URL for a REST endpoint.
func (c *Client) BuildURL(endpoint string, params url.Values) (string, error) {
	if endpoint == "" {
		return "", &media.BackendError{Op: "build url", Err: fmt.Errorf("empty endpoint")}
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	salt := c.newSalt()
	q.Set("u", c.config.Username)
	q.Set("t", token(c.config.Password, salt))
	q.Set("s", salt)
	q.Set("v", c.config.APIVersion)
	q.Set("c", c.config.ClientName)
	q.Set("f", "json")

	u := c.base.JoinPath("rest", endpoint)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// resolve turns server-relative paths, as found in playlists, into absolute URLs.
func (c *Client) resolve(rawURL string) (*url.URL, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if ref.IsAbs() {
		return ref, nil
	}
	if strings.HasPrefix(ref.Path, "/") {
		return c.base.ResolveReference(ref), nil
	}
	return c.base.JoinPath("rest", "/").ResolveReference(ref), nil
}

// FetchBytes downloads rawURL completely.
func (c *Client) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &media.BackendError{Op: "read body", Err: err}
	}
	if isEnvelope(resp.Header.Get("Content-Type")) {
		if _, err := decodeEnvelope(body); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// Open issues a GET for rawURL and returns the response with its body
// unread. Non-200 responses are turned into errors and closed.
func (c *Client) Open(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.do(ctx, c.httpClient, rawURL)
}

// OpenStream is Open for media bodies of any size: only the wait for response
// headers is bounded by the configured timeout. A JSON error envelope in place
// of the media is returned as an error.
func (c *Client) OpenStream(ctx context.Context, rawURL string) (*http.Response, error) {
	resp, err := c.do(ctx, c.streamClient, rawURL)
	if err != nil {
		return nil, err
	}
	if isEnvelope(resp.Header.Get("Content-Type")) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &media.BackendError{Op: "read body", Err: err}
		}
		if _, err := decodeEnvelope(body); err != nil {
			return nil, err
		}
		return nil, &media.BackendError{Op: "stream", Err: fmt.Errorf("expected media, got %s", resp.Header.Get("Content-Type"))}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, hc *http.Client, rawURL string) (*http.Response, error) {
	u, err := c.resolve(rawURL)
	if err != nil {
		return nil, &media.BackendError{Op: "resolve url", Err: err}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &media.BackendError{Op: "rate limit", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &media.BackendError{Op: "create request", Err: err}
	}

	c.logger.Debug("Subsonic request", "path", u.Path)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, &media.BackendError{Op: "request", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &media.BackendError{Op: "request", Err: &HTTPError{StatusCode: resp.StatusCode, Path: u.Path}}
	}
	return resp, nil
}

func token(password, salt string) string {
	sum := md5.Sum([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

func randomSalt() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("subsonic: crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

func isEnvelope(contentType string) bool {
	return strings.HasPrefix(contentType, "application/json") || strings.HasPrefix(contentType, "text/json")
}
