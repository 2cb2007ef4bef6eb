package media

import (
	"context"
	"errors"
	"time"
)

// Episode statuses reported by the server.
const (
	EpisodeNew         = "new"
	EpisodeDownloading = "downloading"
	EpisodeCompleted   = "completed"
	EpisodeError       = "error"
	EpisodeDeleted     = "deleted"
	EpisodeSkipped     = "skipped"
)

var errEpisodeNotStored = errors.New("episode has not been downloaded by the server")

// Episode is a podcast episode. It is played through its stream id, which the
// server only assigns once the episode file is stored locally.
type Episode struct {
	ID          Identifier `json:"id"`
	StreamID    Identifier `json:"streamId"`
	ChannelID   Identifier `json:"channelId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	PublishDate time.Time  `json:"publishDate"`
	Status      string     `json:"status"`
	CoverArtID  Identifier `json:"coverArt"`
	Size        uint64     `json:"size,omitempty"`
	ContentType string     `json:"contentType,omitempty"`
	Suffix      string     `json:"suffix,omitempty"`
	Duration    uint       `json:"duration,omitempty"`
	BitRate     uint       `json:"bitRate,omitempty"`

	StreamingOptions `json:"-"`
}

var (
	_ Streamable = (*Episode)(nil)
	_ Coverable  = (*Episode)(nil)
)

func (m *Episode) streamID(op string) (Identifier, error) {
	if m.StreamID.IsAbsent() {
		return Identifier{}, &BackendError{Op: op, Err: errEpisodeNotStored}
	}
	return m.StreamID, nil
}

// StreamURL returns the URL of the episode stream. Episodes are addressed
// by their stream id, so an episode the server has not stored fails.
func (m *Episode) StreamURL(s Session) (string, error) {
	id, err := m.streamID("stream url")
	if err != nil {
		return "", err
	}
	return buildURL(s, "stream url", EndpointStream, id, &m.StreamingOptions)
}

// Stream fetches the episode as encoded by the server, honoring the streaming options.
func (m *Episode) Stream(ctx context.Context, s Session) ([]byte, error) {
	u, err := m.StreamURL(s)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, "stream", u)
}

// DownloadURL returns the URL of the original episode file.
func (m *Episode) DownloadURL(s Session) (string, error) {
	id, err := m.streamID("download url")
	if err != nil {
		return "", err
	}
	return buildURL(s, "download url", EndpointDownload, id, nil)
}

// Download fetches the original episode file without transcoding.
func (m *Episode) Download(ctx context.Context, s Session) ([]byte, error) {
	u, err := m.DownloadURL(s)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, "download", u)
}

// Encoding reports the expected encoding label without a network call.
func (m *Episode) Encoding() string {
	return m.effectiveEncoding("", m.Suffix)
}

// HasCoverArt reports whether the episode has a cover art id.
func (m *Episode) HasCoverArt() bool { return CoverRef{ID: m.CoverArtID}.HasCoverArt() }

// CoverID returns the cover art id, which may be absent.
func (m *Episode) CoverID() Identifier { return m.CoverArtID }

// CoverArt fetches the cover image. A size of 0 requests the original.
// It fails with ErrNoCoverArt when there is no cover id.
func (m *Episode) CoverArt(ctx context.Context, s Session, size uint) ([]byte, error) {
	return CoverRef{ID: m.CoverArtID}.CoverArt(ctx, s, size)
}

// CoverArtURL returns the URL of the cover image. A size of 0 requests the original.
func (m *Episode) CoverArtURL(s Session, size uint) (string, error) {
	return CoverRef{ID: m.CoverArtID}.CoverArtURL(s, size)
}
