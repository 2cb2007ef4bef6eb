// Package media models the media kinds served by a Subsonic-compatible
// server and the capabilities they share: streaming and cover art.
//
// Nothing in this package performs I/O by itself. Every operation that needs
// the network takes a Session, so callers decide which connection, timeout
// and cancellation policy apply.
package media

import (
	"context"
	"encoding/json"
	"net/url"
)

// Session is the backend collaborator. BuildURL produces an authenticated URL
// for an API endpoint, FetchBytes downloads either such a URL or a
// server-relative path, and FetchRecordByID returns the decoded response body
// of an endpoint that takes an "id" parameter.
// All failures are expected to surface as *BackendError.
type Session interface {
	BuildURL(endpoint string, params url.Values) (string, error)
	FetchBytes(ctx context.Context, rawURL string) ([]byte, error)
	FetchRecordByID(ctx context.Context, endpoint, id string) (json.RawMessage, error)
}

// Streamable is implemented by media that can be played or downloaded.
type Streamable interface {
	// Stream returns the encoded content, honoring the streaming options.
	Stream(ctx context.Context, s Session) ([]byte, error)
	StreamURL(s Session) (string, error)
	// Download returns the original file.
	Download(ctx context.Context, s Session) ([]byte, error)
	DownloadURL(s Session) (string, error)
	// Encoding reports the expected encoding label without touching the network.
	Encoding() string
	SetMaxBitRate(kbps uint)
	SetTranscoding(format string)
}

// Coverable is implemented by media, leaf or collection, that may carry cover art.
type Coverable interface {
	HasCoverArt() bool
	CoverID() Identifier
	// CoverArt fetches the image. A size of 0 requests the original dimensions.
	CoverArt(ctx context.Context, s Session, size uint) ([]byte, error)
	CoverArtURL(s Session, size uint) (string, error)
}

// Endpoints used by the media kinds.
const (
	EndpointStream   = "stream"
	EndpointDownload = "download"
	EndpointCoverArt = "getCoverArt"
	EndpointGetSong  = "getSong"
	EndpointHLS      = "hls.m3u8"
)

// CoverRef is a bare cover-art reference. The media kinds delegate to it, and
// callers holding only a cover id can use it directly.
type CoverRef struct {
	ID Identifier
}

var _ Coverable = CoverRef{}

// HasCoverArt reports whether the item has a cover art id.
func (c CoverRef) HasCoverArt() bool { return !c.ID.IsAbsent() }

// CoverID returns the cover art id, which may be absent.
func (c CoverRef) CoverID() Identifier { return c.ID }

// CoverArtURL returns the URL of the cover image. A size of 0 requests the original.
func (c CoverRef) CoverArtURL(s Session, size uint) (string, error) {
	if c.ID.IsAbsent() {
		return "", ErrNoCoverArt
	}
	params := url.Values{"id": {c.ID.String()}}
	if size > 0 {
		params.Set("size", uintString(size))
	}
	u, err := s.BuildURL(EndpointCoverArt, params)
	if err != nil {
		return "", AsBackendError("cover art url", err)
	}
	return u, nil
}

// CoverArt fetches the cover image. A size of 0 requests the original.
// It fails with ErrNoCoverArt when there is no cover id.
func (c CoverRef) CoverArt(ctx context.Context, s Session, size uint) ([]byte, error) {
	u, err := c.CoverArtURL(s, size)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, "cover art", u)
}

// buildURL is the shared URL path for the leaf kinds.
func buildURL(s Session, op, endpoint string, id Identifier, opts *StreamingOptions) (string, error) {
	params := url.Values{"id": {id.String()}}
	if opts != nil {
		opts.apply(params)
	}
	u, err := s.BuildURL(endpoint, params)
	if err != nil {
		return "", AsBackendError(op, err)
	}
	return u, nil
}

func fetch(ctx context.Context, s Session, op, u string) ([]byte, error) {
	b, err := s.FetchBytes(ctx, u)
	if err != nil {
		return nil, AsBackendError(op, err)
	}
	return b, nil
}

// record is the response body of single-item lookups.
type record[T any] struct {
	Song *T `json:"song"`
}

// fetchChild looks up one child record (song or video) by id.
func fetchChild[T any](ctx context.Context, s Session, id string) (*T, error) {
	raw, err := s.FetchRecordByID(ctx, EndpointGetSong, id)
	if err != nil {
		return nil, AsBackendError("get record", err)
	}
	var rec record[T]
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &BackendError{Op: "decode record", Err: err}
	}
	if rec.Song == nil {
		return nil, &BackendError{Op: "decode record", Err: errMissingPayload}
	}
	return rec.Song, nil
}
