package media

import (
	"context"
	"time"
)

// Song is an audio track.
type Song struct {
	ID                    Identifier `json:"id"`
	Parent                string     `json:"parent,omitempty"`
	Title                 string     `json:"title"`
	Album                 string     `json:"album,omitempty"`
	Artist                string     `json:"artist,omitempty"`
	Track                 uint       `json:"track,omitempty"`
	Year                  uint       `json:"year,omitempty"`
	Genre                 string     `json:"genre,omitempty"`
	CoverArtID            Identifier `json:"coverArt"`
	Size                  uint64     `json:"size,omitempty"`
	ContentType           string     `json:"contentType,omitempty"`
	Suffix                string     `json:"suffix,omitempty"`
	TranscodedContentType string     `json:"transcodedContentType,omitempty"`
	TranscodedSuffix      string     `json:"transcodedSuffix,omitempty"`
	Duration              uint       `json:"duration,omitempty"`
	BitRate               uint       `json:"bitRate,omitempty"`
	Path                  string     `json:"path,omitempty"`
	Created               time.Time  `json:"created"`

	StreamingOptions `json:"-"`
}

var (
	_ Streamable = (*Song)(nil)
	_ Coverable  = (*Song)(nil)
)

// GetSong fetches a song by id.
func GetSong(ctx context.Context, s Session, id string) (*Song, error) {
	return fetchChild[Song](ctx, s, id)
}

// StreamURL returns the URL of the song stream with the current streaming options.
func (m *Song) StreamURL(s Session) (string, error) {
	return buildURL(s, "stream url", EndpointStream, m.ID, &m.StreamingOptions)
}

// Stream fetches the song as encoded by the server, honoring the streaming options.
func (m *Song) Stream(ctx context.Context, s Session) ([]byte, error) {
	u, err := m.StreamURL(s)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, "stream", u)
}

// DownloadURL returns the URL of the original song file.
func (m *Song) DownloadURL(s Session) (string, error) {
	return buildURL(s, "download url", EndpointDownload, m.ID, nil)
}

// Download fetches the original song file without transcoding.
func (m *Song) Download(ctx context.Context, s Session) ([]byte, error) {
	u, err := m.DownloadURL(s)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, "download", u)
}

// Encoding reports the expected encoding label without a network call.
func (m *Song) Encoding() string {
	return m.effectiveEncoding(m.TranscodedSuffix, m.Suffix)
}

// HasCoverArt reports whether the song has a cover art id.
func (m *Song) HasCoverArt() bool { return CoverRef{ID: m.CoverArtID}.HasCoverArt() }

// CoverID returns the cover art id, which may be absent.
func (m *Song) CoverID() Identifier { return m.CoverArtID }

// CoverArt fetches the cover image. A size of 0 requests the original.
// It fails with ErrNoCoverArt when there is no cover id.
func (m *Song) CoverArt(ctx context.Context, s Session, size uint) ([]byte, error) {
	return CoverRef{ID: m.CoverArtID}.CoverArt(ctx, s, size)
}

// CoverArtURL returns the URL of the cover image. A size of 0 requests the original.
func (m *Song) CoverArtURL(s Session, size uint) (string, error) {
	return CoverRef{ID: m.CoverArtID}.CoverArtURL(s, size)
}
