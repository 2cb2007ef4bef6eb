package media

import (
	"context"
	"time"
)

// Album is a collection. It has no stream of its own, only cover art,
// and its ids are usually composite ("al-17").
type Album struct {
	ID         Identifier `json:"id"`
	Name       string     `json:"name"`
	Artist     string     `json:"artist,omitempty"`
	ArtistID   Identifier `json:"artistId"`
	CoverArtID Identifier `json:"coverArt"`
	SongCount  uint       `json:"songCount"`
	Duration   uint       `json:"duration"`
	Created    time.Time  `json:"created"`
	Songs      []Song     `json:"song,omitempty"`
}

var _ Coverable = (*Album)(nil)

// HasCoverArt reports whether the album has a cover art id.
func (a *Album) HasCoverArt() bool { return CoverRef{ID: a.CoverArtID}.HasCoverArt() }

// CoverID returns the cover art id, which may be absent.
func (a *Album) CoverID() Identifier { return a.CoverArtID }

// CoverArt fetches the cover image. A size of 0 requests the original.
// It fails with ErrNoCoverArt when there is no cover id.
func (a *Album) CoverArt(ctx context.Context, s Session, size uint) ([]byte, error) {
	return CoverRef{ID: a.CoverArtID}.CoverArt(ctx, s, size)
}

// CoverArtURL returns the URL of the cover image. A size of 0 requests the original.
func (a *Album) CoverArtURL(s Session, size uint) (string, error) {
	return CoverRef{ID: a.CoverArtID}.CoverArtURL(s, size)
}
