package media

import (
	"context"
	"strconv"
)

// NowPlayingEntry is one element of the server's now-playing list as it
// appears on the wire. Only the first five fields survive normalization.
type NowPlayingEntry struct {
	Username   string `json:"username"`
	MinutesAgo uint   `json:"minutesAgo"`
	PlayerID   uint   `json:"playerId"`
	ID         string `json:"id"`
	IsVideo    bool   `json:"isVideo"`

	IsDir                 bool   `json:"isDir"`
	Title                 string `json:"title"`
	Size                  uint64 `json:"size"`
	ContentType           string `json:"contentType"`
	Suffix                string `json:"suffix"`
	TranscodedContentType string `json:"transcodedContentType,omitempty"`
	TranscodedSuffix      string `json:"transcodedSuffix,omitempty"`
	Path                  string `json:"path"`
	Created               string `json:"created"`
	Type                  string `json:"type"`
}

// NowPlaying is a normalized now-playing entry. It only knows the id and kind
// of the media; SongInfo and VideoInfo make the extra round trip for details.
type NowPlaying struct {
	user       string
	minutesAgo uint
	playerID   uint
	mediaID    uint64
	isVideo    bool
}

// NewNowPlaying normalizes a wire entry. The id must be a non-negative integer.
func NewNowPlaying(e NowPlayingEntry) (*NowPlaying, error) {
	id, err := strconv.ParseUint(e.ID, 10, 64)
	if err != nil {
		return nil, &recordError{&NumericError{Field: "now playing id", Value: e.ID, Err: err}}
	}
	return &NowPlaying{
		user:       e.Username,
		minutesAgo: e.MinutesAgo,
		playerID:   e.PlayerID,
		mediaID:    id,
		isVideo:    e.IsVideo,
	}, nil
}

// User is the name of the listening user.
func (n *NowPlaying) User() string { return n.user }

// MinutesAgo is how long ago playback was reported.
func (n *NowPlaying) MinutesAgo() uint { return n.minutesAgo }

// PlayerID identifies the user's player.
func (n *NowPlaying) PlayerID() uint { return n.playerID }

// MediaID is the numeric id of the song or video.
func (n *NowPlaying) MediaID() uint64 { return n.mediaID }

// IsVideo reports whether the entry refers to a video.
func (n *NowPlaying) IsVideo() bool { return n.isVideo }

// IsSong reports whether the entry refers to a song.
func (n *NowPlaying) IsSong() bool { return !n.isVideo }

func (n *NowPlaying) id() string { return strconv.FormatUint(n.mediaID, 10) }

// SongInfo fetches the full song record.
func (n *NowPlaying) SongInfo(ctx context.Context, s Session) (*Song, error) {
	if n.isVideo {
		return nil, &KindMismatchError{Want: "song"}
	}
	return GetSong(ctx, s, n.id())
}

// VideoInfo fetches the full video record.
func (n *NowPlaying) VideoInfo(ctx context.Context, s Session) (*Video, error) {
	if !n.isVideo {
		return nil, &KindMismatchError{Want: "video"}
	}
	return GetVideo(ctx, s, n.id())
}

// recordError marks a construction failure as ErrMalformedRecord while
// keeping the numeric cause reachable.
type recordError struct {
	err error
}

func (e *recordError) Error() string { return "malformed record: " + e.err.Error() }

func (e *recordError) Unwrap() []error { return []error{ErrMalformedRecord, e.err} }
