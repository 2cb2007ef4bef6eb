package media

import (
	"context"
	"net/url"
	"time"
)

// Video is a movie or clip. The server transcodes video streams by default,
// so downloads explicitly ask for the raw file.
type Video struct {
	ID                    Identifier `json:"id"`
	Parent                string     `json:"parent,omitempty"`
	Title                 string     `json:"title"`
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
	_ Streamable = (*Video)(nil)
	_ Coverable  = (*Video)(nil)
)

// GetVideo fetches a video by id.
func GetVideo(ctx context.Context, s Session, id string) (*Video, error) {
	return fetchChild[Video](ctx, s, id)
}

// StreamURL returns the URL of the video stream with the current streaming options.
func (m *Video) StreamURL(s Session) (string, error) {
	return buildURL(s, "stream url", EndpointStream, m.ID, &m.StreamingOptions)
}

// Stream fetches the video as encoded by the server, honoring the streaming options.
func (m *Video) Stream(ctx context.Context, s Session) ([]byte, error) {
	u, err := m.StreamURL(s)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, "stream", u)
}

// DownloadURL returns the URL of the original video file. The raw format is
// requested explicitly since the server transcodes video by default.
func (m *Video) DownloadURL(s Session) (string, error) {
	u, err := s.BuildURL(EndpointDownload, url.Values{
		"id":     {m.ID.String()},
		"format": {"raw"},
	})
	if err != nil {
		return "", AsBackendError("download url", err)
	}
	return u, nil
}

// Download fetches the original video file without transcoding.
func (m *Video) Download(ctx context.Context, s Session) ([]byte, error) {
	u, err := m.DownloadURL(s)
	if err != nil {
		return nil, err
	}
	return fetch(ctx, s, "download", u)
}

// Encoding reports the expected encoding label without a network call.
func (m *Video) Encoding() string {
	return m.effectiveEncoding(m.TranscodedSuffix, m.Suffix)
}

// HLSPlaylistURL returns the URL of the segmented playlist for this video.
// A zero bit rate lets the server pick.
func (m *Video) HLSPlaylistURL(s Session) (string, error) {
	params := url.Values{"id": {m.ID.String()}}
	if br := m.MaxBitRate(); br > 0 {
		params.Set("bitRate", uintString(br))
	}
	u, err := s.BuildURL(EndpointHLS, params)
	if err != nil {
		return "", AsBackendError("hls url", err)
	}
	return u, nil
}

// HasCoverArt reports whether the video has a cover art id.
func (m *Video) HasCoverArt() bool { return CoverRef{ID: m.CoverArtID}.HasCoverArt() }

// CoverID returns the cover art id, which may be absent.
func (m *Video) CoverID() Identifier { return m.CoverArtID }

// CoverArt fetches the cover image. A size of 0 requests the original.
// It fails with ErrNoCoverArt when there is no cover id.
func (m *Video) CoverArt(ctx context.Context, s Session, size uint) ([]byte, error) {
	return CoverRef{ID: m.CoverArtID}.CoverArt(ctx, s, size)
}

// CoverArtURL returns the URL of the cover image. A size of 0 requests the original.
func (m *Video) CoverArtURL(s Session, size uint) (string, error) {
	return CoverRef{ID: m.CoverArtID}.CoverArtURL(s, size)
}
