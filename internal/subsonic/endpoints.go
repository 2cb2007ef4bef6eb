package subsonic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/opd-ai/go-sonic/internal/hls"
	"github.com/opd-ai/go-sonic/internal/media"
)

// call performs a JSON API request and returns the unwrapped response body.
func (c *Client) call(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	u, err := c.BuildURL(endpoint, params)
	if err != nil {
		return nil, err
	}
	resp, err := c.Open(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &media.BackendError{Op: endpoint, Err: err}
	}
	return decodeEnvelope(body)
}

// FetchRecordByID calls endpoint with the given id.
func (c *Client) FetchRecordByID(ctx context.Context, endpoint, id string) (json.RawMessage, error) {
	return c.call(ctx, endpoint, url.Values{"id": {id}})
}

// Ping checks connectivity and credentials.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.call(ctx, "ping", nil); err != nil {
		return err
	}
	c.logger.Info("Subsonic server reachable", "server_url", c.config.ServerURL)
	return nil
}

type nowPlayingResponse struct {
	NowPlaying struct {
		Entry []media.NowPlayingEntry `json:"entry"`
	} `json:"nowPlaying"`
}

// NowPlaying polls what every user is currently playing. A single malformed
// entry fails the whole poll.
func (c *Client) NowPlaying(ctx context.Context) ([]*media.NowPlaying, error) {
	raw, err := c.call(ctx, "getNowPlaying", nil)
	if err != nil {
		return nil, err
	}
	var resp nowPlayingResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &media.BackendError{Op: "getNowPlaying", Err: err}
	}

	out := make([]*media.NowPlaying, 0, len(resp.NowPlaying.Entry))
	for _, e := range resp.NowPlaying.Entry {
		np, err := media.NewNowPlaying(e)
		if err != nil {
			return nil, fmt.Errorf("now playing entry for %s: %w", e.Username, err)
		}
		out = append(out, np)
	}
	return out, nil
}

// Album fetches an album with its songs.
func (c *Client) Album(ctx context.Context, id string) (*media.Album, error) {
	raw, err := c.FetchRecordByID(ctx, "getAlbum", id)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Album *media.Album `json:"album"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &media.BackendError{Op: "getAlbum", Err: err}
	}
	if resp.Album == nil {
		return nil, &media.BackendError{Op: "getAlbum", Err: fmt.Errorf("album %s missing from response", id)}
	}
	return resp.Album, nil
}

// NewestEpisodes lists the most recently published podcast episodes.
func (c *Client) NewestEpisodes(ctx context.Context, count int) ([]*media.Episode, error) {
	params := url.Values{}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}
	raw, err := c.call(ctx, "getNewestPodcasts", params)
	if err != nil {
		return nil, err
	}
	var resp struct {
		NewestPodcasts struct {
			Episode []*media.Episode `json:"episode"`
		} `json:"newestPodcasts"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &media.BackendError{Op: "getNewestPodcasts", Err: err}
	}
	return resp.NewestPodcasts.Episode, nil
}

// HLSPlaylist fetches and parses the segmented playlist for a video. The
// segment URLs are only valid for this client.
func (c *Client) HLSPlaylist(ctx context.Context, v *media.Video) (*hls.Playlist, error) {
	u, err := v.HLSPlaylistURL(c)
	if err != nil {
		return nil, err
	}
	body, err := c.FetchBytes(ctx, u)
	if err != nil {
		return nil, err
	}
	pl, err := hls.Parse(string(body))
	if err != nil {
		return nil, fmt.Errorf("playlist for video %s: %w", v.ID, err)
	}
	c.logger.Debug("Fetched segmented playlist",
		"video_id", v.ID.String(),
		"segment_count", pl.Len(),
		"duration", pl.Duration())
	return pl, nil
}
