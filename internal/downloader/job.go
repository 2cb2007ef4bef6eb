package downloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/opd-ai/go-sonic/internal/media"
)

// ErrUnknownKind is returned for media kinds that cannot be downloaded.
var ErrUnknownKind = errors.New("unknown media kind")

// ResolveJob looks up the metadata needed to download kind/id. Episodes are
// addressed by their stream id, since the server has no single-episode lookup.
func ResolveJob(ctx context.Context, s media.Session, kind, id string) (Job, error) {
	switch kind {
	case KindSong:
		song, err := media.GetSong(ctx, s, id)
		if err != nil {
			return Job{}, err
		}
		return Job{Kind: kind, ID: id, Title: song.Title, Ext: song.Suffix, Media: song}, nil
	case KindVideo:
		video, err := media.GetVideo(ctx, s, id)
		if err != nil {
			return Job{}, err
		}
		return Job{Kind: kind, ID: id, Title: video.Title, Ext: video.Suffix, Media: video}, nil
	case KindEpisode:
		ep := &media.Episode{StreamID: media.ParseID(id)}
		if ep.StreamID.IsAbsent() {
			return Job{}, fmt.Errorf("episode stream id is required")
		}
		return Job{Kind: kind, ID: id, Media: ep}, nil
	default:
		return Job{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
