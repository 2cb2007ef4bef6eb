package hls

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-sonic/internal/media"
)

const samplePlaylist = `#EXTM3U
#EXT-X-VERSION:1
#EXT-X-TARGETDURATION:10
#EXTINF:10,
/a
#EXTINF:7,
/b
#EXT-X-ENDLIST`

func TestParseSample(t *testing.T) {
	pl, err := Parse(samplePlaylist)
	require.NoError(t, err)

	assert.Equal(t, "M3U", pl.Extension())
	assert.Equal(t, uint(1), pl.Version())
	assert.Equal(t, uint(10), pl.TargetDuration())
	assert.Equal(t, 2, pl.Len())
	assert.Equal(t, uint(17), pl.Duration())

	first, err := pl.At(0)
	require.NoError(t, err)
	assert.Equal(t, Segment{Increment: 10, URL: "/a"}, first)
	second, err := pl.At(1)
	require.NoError(t, err)
	assert.Equal(t, Segment{Increment: 7, URL: "/b"}, second)
}

func TestParseWellFormed(t *testing.T) {
	tests := []struct {
		name      string
		ext       string
		version   uint
		target    uint
		durations []uint
	}{
		{"empty", "M3U", 3, 6, nil},
		{"single", "M3U", 1, 10, []uint{10}},
		{"many", "M3U8", 4, 12, []uint{12, 12, 12, 3}},
		{"zero increments", "M3U", 1, 0, []uint{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			b.WriteString("#EXT" + tt.ext + "\n")
			b.WriteString("#EXT-X-VERSION:" + strconv.Itoa(int(tt.version)) + "\n")
			b.WriteString("#EXT-X-TARGETDURATION:" + strconv.Itoa(int(tt.target)) + "\n")
			var sum uint
			for i, d := range tt.durations {
				b.WriteString("#EXTINF:" + strconv.Itoa(int(d)) + ",\n")
				b.WriteString("/rest/hls/" + strconv.Itoa(i) + ".ts?token=x\n")
				sum += d
			}
			b.WriteString("#EXT-X-ENDLIST\n")

			pl, err := Parse(b.String())
			require.NoError(t, err)
			assert.Equal(t, tt.ext, pl.Extension())
			assert.Equal(t, tt.version, pl.Version())
			assert.Equal(t, tt.target, pl.TargetDuration())
			assert.Equal(t, len(tt.durations), pl.Len())
			assert.Equal(t, sum, pl.Duration())

			for i, seg := range pl.All() {
				assert.Equal(t, tt.durations[i], seg.Increment)
				assert.Equal(t, "/rest/hls/"+strconv.Itoa(i)+".ts?token=x", seg.URL)
			}
		})
	}
}

func TestParseKeepsURLVerbatim(t *testing.T) {
	pl, err := Parse("#EXTM3U\n#EXT-X-VERSION:1\n#EXT-X-TARGETDURATION:10\n#EXTINF:5,\n  not a url at all  \n#EXT-X-ENDLIST")
	require.NoError(t, err)
	seg, err := pl.At(0)
	require.NoError(t, err)
	assert.Equal(t, "  not a url at all  ", seg.URL)
}

func TestParseAcceptsCRLF(t *testing.T) {
	pl, err := Parse(strings.ReplaceAll(samplePlaylist, "\n", "\r\n"))
	require.NoError(t, err)
	assert.Equal(t, uint(17), pl.Duration())
	seg, err := pl.At(1)
	require.NoError(t, err)
	assert.Equal(t, "/b", seg.URL)
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"empty input", "", media.ErrMalformedPlaylist},
		{"missing header", "#EXT-X-VERSION:1\n", media.ErrMalformedPlaylist},
		{"missing version", "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-ENDLIST", media.ErrMalformedPlaylist},
		{"misprefixed version", "#EXTM3U\n#EXT-X-VERSON:1\n#EXT-X-TARGETDURATION:10\n#EXT-X-ENDLIST", media.ErrMalformedPlaylist},
		{"non-numeric version", "#EXTM3U\n#EXT-X-VERSION:one\n#EXT-X-TARGETDURATION:10\n#EXT-X-ENDLIST", media.ErrNumericParse},
		{"non-numeric target duration", "#EXTM3U\n#EXT-X-VERSION:1\n#EXT-X-TARGETDURATION:ten\n#EXT-X-ENDLIST", media.ErrNumericParse},
		{"negative target duration", "#EXTM3U\n#EXT-X-VERSION:1\n#EXT-X-TARGETDURATION:-1\n#EXT-X-ENDLIST", media.ErrNumericParse},
		{"fractional increment", "#EXTM3U\n#EXT-X-VERSION:1\n#EXT-X-TARGETDURATION:10\n#EXTINF:9.5,\n/a\n#EXT-X-ENDLIST", media.ErrNumericParse},
		{"titled increment", "#EXTM3U\n#EXT-X-VERSION:1\n#EXT-X-TARGETDURATION:10\n#EXTINF:9,title\n/a\n#EXT-X-ENDLIST", media.ErrNumericParse},
		{"unexpected line between segments", "#EXTM3U\n#EXT-X-VERSION:1\n#EXT-X-TARGETDURATION:10\n#EXTINF:9,\n/a\n#EXT-X-DISCONTINUITY\n#EXT-X-ENDLIST", media.ErrMalformedPlaylist},
		{"content after end", samplePlaylist + "\n#EXTINF:1,\n/c", media.ErrMalformedPlaylist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl, err := Parse(tt.input)
			assert.Nil(t, pl)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseTruncated(t *testing.T) {
	lines := strings.Split(samplePlaylist, "\n")
	// Every proper prefix of the sample must fail without panicking.
	for n := 0; n < len(lines); n++ {
		input := strings.Join(lines[:n], "\n")
		pl, err := Parse(input)
		assert.Nil(t, pl, "prefix of %d lines", n)
		assert.ErrorIs(t, err, media.ErrMalformedPlaylist, "prefix of %d lines", n)
	}

	_, err := Parse("#EXTM3U\n#EXT-X-VERSION:1\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,")
	var perr *media.PlaylistError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Reason, "unexpected end of input")
}

func TestParseErrorLocatesLine(t *testing.T) {
	_, err := Parse("#EXTM3U\n#EXT-X-VERSION:1\nnope\n")
	var perr *media.PlaylistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 3, perr.Line)
	assert.Equal(t, prefixTargetDuration, perr.Field)
	assert.Equal(t, "missing required field", perr.Reason)
}

func TestParseReader(t *testing.T) {
	pl, err := ParseReader(strings.NewReader(samplePlaylist))
	require.NoError(t, err)
	assert.Equal(t, 2, pl.Len())
}
