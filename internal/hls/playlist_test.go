package hls

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-sonic/internal/media"
)

type tokenSession struct {
	token string
}

func (s *tokenSession) BuildURL(endpoint string, params url.Values) (string, error) {
	return "/rest/" + endpoint + "?" + params.Encode(), nil
}

func (s *tokenSession) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Query().Get("token") != s.token {
		return nil, &media.BackendError{Op: "fetch", Err: errors.New("401 unauthorized")}
	}
	return []byte(u.Path), nil
}

func (s *tokenSession) FetchRecordByID(ctx context.Context, endpoint, id string) (json.RawMessage, error) {
	return nil, errors.New("unsupported")
}

func TestPlaylistDurationEmpty(t *testing.T) {
	pl, err := Parse("#EXTM3U\n#EXT-X-VERSION:1\n#EXT-X-TARGETDURATION:10\n#EXT-X-ENDLIST\n")
	require.NoError(t, err)
	assert.Equal(t, 0, pl.Len())
	assert.Equal(t, uint(0), pl.Duration())

	n := 0
	for range pl.All() {
		n++
	}
	assert.Zero(t, n)
}

func TestPlaylistAtOutOfRange(t *testing.T) {
	pl, err := Parse(samplePlaylist)
	require.NoError(t, err)

	for _, i := range []int{2, 3, 100, -1} {
		_, err := pl.At(i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}
}

func TestPlaylistSegmentsIsACopy(t *testing.T) {
	pl, err := Parse(samplePlaylist)
	require.NoError(t, err)

	segs := pl.Segments()
	segs[0].Increment = 1000
	assert.Equal(t, uint(17), pl.Duration())
}

func TestPlaylistAllStopsEarly(t *testing.T) {
	pl, err := Parse(samplePlaylist)
	require.NoError(t, err)

	var seen []string
	for _, seg := range pl.All() {
		seen = append(seen, seg.URL)
		break
	}
	assert.Equal(t, []string{"/a"}, seen)
}

func TestPlaylistAllRestarts(t *testing.T) {
	pl, err := Parse(samplePlaylist)
	require.NoError(t, err)

	collect := func() []Segment {
		var out []Segment
		for _, seg := range pl.All() {
			out = append(out, seg)
		}
		return out
	}

	first := collect()
	second := collect()
	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, pl.Len())
	assert.Equal(t, uint(17), pl.Duration())
}

func TestPlaylistConcurrentReaders(t *testing.T) {
	pl, err := Parse(samplePlaylist)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, uint(17), pl.Duration())
			_, err := pl.At(1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestPlaylistJSON(t *testing.T) {
	pl, err := Parse(samplePlaylist)
	require.NoError(t, err)

	b, err := json.Marshal(pl)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"extension": "M3U",
		"version": 1,
		"target_duration": 10,
		"duration": 17,
		"segments": [{"duration": 10, "url": "/a"}, {"duration": 7, "url": "/b"}]
	}`, string(b))
}

func TestSegmentBytesSessionBound(t *testing.T) {
	pl, err := Parse("#EXTM3U\n#EXT-X-VERSION:1\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,\n/seg/0.ts?token=abc\n#EXT-X-ENDLIST")
	require.NoError(t, err)
	seg, err := pl.At(0)
	require.NoError(t, err)

	b, err := seg.Bytes(context.Background(), &tokenSession{token: "abc"})
	require.NoError(t, err)
	assert.Equal(t, []byte("/seg/0.ts"), b)

	_, err = seg.Bytes(context.Background(), &tokenSession{token: "other"})
	assert.ErrorIs(t, err, media.ErrBackend)
	assert.NotErrorIs(t, err, media.ErrMalformedPlaylist)
}
