// Package hls parses the segmented playlists served for adaptive streaming
// and models them as an ordered list of timed segments.
package hls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/samber/lo"

	"github.com/opd-ai/go-sonic/internal/media"
)

// ErrIndexOutOfRange is returned by Playlist.At for positions past the end.
var ErrIndexOutOfRange = errors.New("segment index out of range")

// Segment is one timed chunk of a playlist.
type Segment struct {
	Increment uint   `json:"duration"` // seconds of playback
	URL       string `json:"url"`      // server-relative path, may embed a session token
}

// Bytes fetches the segment through s. The URL may carry a token tied to the
// session that produced the playlist, so another session failing here is a
// normal backend error.
func (seg Segment) Bytes(ctx context.Context, s media.Session) ([]byte, error) {
	b, err := s.FetchBytes(ctx, seg.URL)
	if err != nil {
		return nil, media.AsBackendError("segment", err)
	}
	return b, nil
}

// Playlist is an immutable parsed playlist. It is safe for concurrent readers.
type Playlist struct {
	extension      string
	version        uint
	targetDuration uint
	segments       []Segment
}

// Extension is the text following "#EXT" on the header line, e.g. "M3U".
func (p *Playlist) Extension() string { return p.extension }

// Version is the protocol version from #EXT-X-VERSION.
func (p *Playlist) Version() uint { return p.version }

// TargetDuration is the maximum segment length in seconds.
func (p *Playlist) TargetDuration() uint { return p.targetDuration }

// Len returns the number of segments.
func (p *Playlist) Len() int { return len(p.segments) }

// Duration sums the segment increments. It is recomputed on every call.
func (p *Playlist) Duration() uint {
	return lo.SumBy(p.segments, func(s Segment) uint { return s.Increment })
}

// At returns the segment at zero-based position i.
func (p *Playlist) At(i int) (Segment, error) {
	if i < 0 || i >= len(p.segments) {
		return Segment{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(p.segments))
	}
	return p.segments[i], nil
}

// All yields the segments in playback order with their positions. Each call
// starts a new pass, so the playlist is never spent.
func (p *Playlist) All() iter.Seq2[int, Segment] {
	return func(yield func(int, Segment) bool) {
		for i, s := range p.segments {
			if !yield(i, s) {
				return
			}
		}
	}
}

// Segments returns a copy of the segment list.
func (p *Playlist) Segments() []Segment {
	return slices.Clone(p.segments)
}

type playlistJSON struct {
	Extension      string    `json:"extension"`
	Version        uint      `json:"version"`
	TargetDuration uint      `json:"target_duration"`
	Duration       uint      `json:"duration"`
	Segments       []Segment `json:"segments"`
}

// MarshalJSON encodes the header fields, the total duration and the segments.
func (p *Playlist) MarshalJSON() ([]byte, error) {
	segs := p.segments
	if segs == nil {
		segs = []Segment{}
	}
	return json.Marshal(playlistJSON{
		Extension:      p.extension,
		Version:        p.version,
		TargetDuration: p.targetDuration,
		Duration:       p.Duration(),
		Segments:       segs,
	})
}
