package media

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession records built URLs and serves canned responses.
type fakeSession struct {
	base     string
	bytes    map[string][]byte
	records  map[string]string
	fetchErr error
	buildErr error
	fetched  []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		base:    "https://music.example.com/rest/",
		bytes:   map[string][]byte{},
		records: map[string]string{},
	}
}

func (f *fakeSession) BuildURL(endpoint string, params url.Values) (string, error) {
	if f.buildErr != nil {
		return "", f.buildErr
	}
	return f.base + endpoint + "?" + params.Encode(), nil
}

func (f *fakeSession) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	f.fetched = append(f.fetched, rawURL)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	b, ok := f.bytes[rawURL]
	if !ok {
		return nil, &BackendError{Op: "fetch", Err: errors.New("404 not found")}
	}
	return b, nil
}

func (f *fakeSession) FetchRecordByID(ctx context.Context, endpoint, id string) (json.RawMessage, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	body, ok := f.records[endpoint+"/"+id]
	if !ok {
		return nil, &BackendError{Op: endpoint, Err: errors.New("data not found")}
	}
	return json.RawMessage(body), nil
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in   string
		kind IDKind
		str  string
	}{
		{"", IDAbsent, ""},
		{"42", IDNumeric, "42"},
		{"al-42", IDComposite, "al-42"},
		{"-1", IDComposite, "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			id := ParseID(tt.in)
			assert.Equal(t, tt.kind, id.Kind())
			assert.Equal(t, tt.str, id.String())
		})
	}
}

func TestIdentifierJSON(t *testing.T) {
	var v struct {
		A Identifier `json:"a"`
		B Identifier `json:"b"`
		C Identifier `json:"c"`
		D Identifier `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12","b":7,"c":"ar-3","d":null}`), &v))

	n, ok := v.A.Numeric()
	assert.True(t, ok)
	assert.Equal(t, uint64(12), n)
	n, ok = v.B.Numeric()
	assert.True(t, ok)
	assert.Equal(t, uint64(7), n)
	assert.Equal(t, IDComposite, v.C.Kind())
	assert.True(t, v.D.IsAbsent())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":12,"b":7,"c":"ar-3","d":null}`, string(out))

	err = json.Unmarshal([]byte(`{"a":-3}`), &v)
	assert.ErrorIs(t, err, ErrNumericParse)
}

func TestStreamingOptions(t *testing.T) {
	var o StreamingOptions
	assert.Equal(t, uint(0), o.MaxBitRate())
	_, ok := o.Transcoding()
	assert.False(t, ok)

	o.SetMaxBitRate(320)
	o.SetTranscoding("not-a-real-codec")
	assert.Equal(t, uint(320), o.MaxBitRate())
	f, ok := o.Transcoding()
	assert.True(t, ok)
	assert.Equal(t, "not-a-real-codec", f)

	params := url.Values{}
	o.apply(params)
	assert.Equal(t, "320", params.Get("maxBitRate"))
	assert.Equal(t, "not-a-real-codec", params.Get("format"))

	o.SetMaxBitRate(0)
	o.SetTranscoding("")
	params = url.Values{}
	o.apply(params)
	assert.Empty(t, params)
}

func TestSongStreaming(t *testing.T) {
	s := newFakeSession()
	song := &Song{ID: NumericID(11), Suffix: "flac", TranscodedSuffix: "mp3"}

	u, err := song.StreamURL(s)
	require.NoError(t, err)
	assert.Equal(t, "https://music.example.com/rest/stream?id=11", u)

	song.SetMaxBitRate(128)
	song.SetTranscoding("opus")
	u, err = song.StreamURL(s)
	require.NoError(t, err)
	assert.Equal(t, "https://music.example.com/rest/stream?format=opus&id=11&maxBitRate=128", u)
	assert.Equal(t, "opus", song.Encoding())

	s.bytes[u] = []byte("opus-bytes")
	b, err := song.Stream(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []byte("opus-bytes"), b)

	du, err := song.DownloadURL(s)
	require.NoError(t, err)
	assert.Equal(t, "https://music.example.com/rest/download?id=11", du)
	s.bytes[du] = []byte("flac-bytes")
	b, err = song.Download(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []byte("flac-bytes"), b)
}

func TestEncodingFallbacks(t *testing.T) {
	song := &Song{Suffix: "flac"}
	assert.Equal(t, "flac", song.Encoding())
	song.TranscodedSuffix = "mp3"
	assert.Equal(t, "mp3", song.Encoding())
	song.SetTranscoding("raw")
	assert.Equal(t, "flac", song.Encoding())
	song.SetTranscoding("opus")
	assert.Equal(t, "opus", song.Encoding())

	video := &Video{Suffix: "mkv", TranscodedSuffix: "mp4"}
	assert.Equal(t, "mp4", video.Encoding())

	ep := &Episode{Suffix: "mp3"}
	assert.Equal(t, "mp3", ep.Encoding())
}

func TestBackendErrorPassThrough(t *testing.T) {
	s := newFakeSession()
	cause := &BackendError{Op: "fetch", Err: errors.New("connection reset")}
	s.fetchErr = cause

	song := &Song{ID: NumericID(1)}
	_, err := song.Stream(context.Background(), s)
	require.Error(t, err)
	assert.Same(t, cause, err)

	s.fetchErr = errors.New("raw failure")
	_, err = song.Download(context.Background(), s)
	assert.ErrorIs(t, err, ErrBackend)

	s.fetchErr = nil
	s.buildErr = errors.New("no server configured")
	_, err = song.StreamURL(s)
	assert.ErrorIs(t, err, ErrBackend)
}

func TestVideoDownloadRequestsRaw(t *testing.T) {
	s := newFakeSession()
	v := &Video{ID: NumericID(5)}
	v.SetTranscoding("mp4")

	u, err := v.DownloadURL(s)
	require.NoError(t, err)
	assert.Equal(t, "https://music.example.com/rest/download?format=raw&id=5", u)

	v.SetMaxBitRate(2000)
	u, err = v.HLSPlaylistURL(s)
	require.NoError(t, err)
	assert.Equal(t, "https://music.example.com/rest/hls.m3u8?bitRate=2000&id=5", u)
}

func TestEpisodeUsesStreamID(t *testing.T) {
	s := newFakeSession()
	ep := &Episode{ID: NumericID(3), StreamID: NumericID(900)}

	u, err := ep.StreamURL(s)
	require.NoError(t, err)
	assert.Equal(t, "https://music.example.com/rest/stream?id=900", u)

	pending := &Episode{ID: NumericID(4), Status: EpisodeNew}
	_, err = pending.Stream(context.Background(), s)
	assert.ErrorIs(t, err, ErrBackend)
	_, err = pending.DownloadURL(s)
	assert.ErrorIs(t, err, ErrBackend)
}

func TestCoverArt(t *testing.T) {
	s := newFakeSession()

	album := &Album{ID: CompositeID("al-9"), CoverArtID: CompositeID("al-9")}
	require.True(t, album.HasCoverArt())
	u, err := album.CoverArtURL(s, 300)
	require.NoError(t, err)
	assert.Equal(t, "https://music.example.com/rest/getCoverArt?id=al-9&size=300", u)

	s.bytes[u] = []byte("png")
	b, err := album.CoverArt(context.Background(), s, 300)
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), b)

	u, err = album.CoverArtURL(s, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://music.example.com/rest/getCoverArt?id=al-9", u)

	bare := &Song{ID: NumericID(2)}
	assert.False(t, bare.HasCoverArt())
	assert.True(t, bare.CoverID().IsAbsent())
	_, err = bare.CoverArt(context.Background(), s, 0)
	assert.ErrorIs(t, err, ErrNoCoverArt)
	_, err = bare.CoverArtURL(s, 0)
	assert.ErrorIs(t, err, ErrNoCoverArt)
	assert.Empty(t, s.fetched[1:])
}

func TestCapabilitySets(t *testing.T) {
	var items []any = []any{&Song{}, &Video{}, &Episode{}, &Album{}}
	streamable := 0
	for _, it := range items {
		if _, ok := it.(Streamable); ok {
			streamable++
		}
		_, ok := it.(Coverable)
		assert.True(t, ok)
	}
	assert.Equal(t, 3, streamable)
}

func TestNewNowPlaying(t *testing.T) {
	np, err := NewNowPlaying(NowPlayingEntry{
		Username:   "alice",
		MinutesAgo: 2,
		PlayerID:   7,
		ID:         "314",
		Title:      "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", np.User())
	assert.Equal(t, uint(2), np.MinutesAgo())
	assert.Equal(t, uint(7), np.PlayerID())
	assert.Equal(t, uint64(314), np.MediaID())
	assert.True(t, np.IsSong())
	assert.False(t, np.IsVideo())

	for _, bad := range []string{"abc", "", "-5", "1.5"} {
		_, err := NewNowPlaying(NowPlayingEntry{ID: bad})
		assert.ErrorIs(t, err, ErrMalformedRecord, bad)
		assert.ErrorIs(t, err, ErrNumericParse, bad)
		var numErr *strconv.NumError
		assert.ErrorAs(t, err, &numErr, bad)
	}
}

func TestNowPlayingResolveSong(t *testing.T) {
	s := newFakeSession()
	s.records["getSong/314"] = `{"song":{"id":"314","title":"Blue","coverArt":"al-2","suffix":"mp3"}}`

	np, err := NewNowPlaying(NowPlayingEntry{ID: "314"})
	require.NoError(t, err)

	song, err := np.SongInfo(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "Blue", song.Title)
	assert.Equal(t, "al-2", song.CoverID().String())

	_, err = np.VideoInfo(context.Background(), s)
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.EqualError(t, err, "not a video")
}

func TestNowPlayingResolveVideo(t *testing.T) {
	s := newFakeSession()
	s.records["getSong/8"] = `{"song":{"id":"8","title":"Clip","isVideo":true,"suffix":"mkv"}}`

	np, err := NewNowPlaying(NowPlayingEntry{ID: "8", IsVideo: true})
	require.NoError(t, err)
	assert.True(t, np.IsVideo())

	v, err := np.VideoInfo(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "Clip", v.Title)

	_, err = np.SongInfo(context.Background(), s)
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.EqualError(t, err, "not a song")
}

func TestNowPlayingBackendFailure(t *testing.T) {
	s := newFakeSession()
	np, err := NewNowPlaying(NowPlayingEntry{ID: "99"})
	require.NoError(t, err)

	_, err = np.SongInfo(context.Background(), s)
	assert.ErrorIs(t, err, ErrBackend)

	s.records["getSong/99"] = `{"status":"ok"}`
	_, err = np.SongInfo(context.Background(), s)
	assert.ErrorIs(t, err, ErrBackend)
}
