package hls

import (
	"io"
	"strconv"
	"strings"

	"github.com/opd-ai/go-sonic/internal/media"
)

const (
	prefixHeader         = "#EXT"
	prefixVersion        = "#EXT-X-VERSION:"
	prefixTargetDuration = "#EXT-X-TARGETDURATION:"
	prefixInfo           = "#EXTINF:"
	tagEndList           = "#EXT-X-ENDLIST"
)

type state int

const (
	expectHeader state = iota
	expectVersion
	expectTargetDuration
	expectInfOrEnd
	expectURL
	done
)

// String names the parser state for error messages.
func (s state) String() string {
	switch s {
	case expectHeader:
		return "header"
	case expectVersion:
		return "version"
	case expectTargetDuration:
		return "target duration"
	case expectInfOrEnd:
		return "segment info or end of list"
	case expectURL:
		return "segment url"
	default:
		return "done"
	}
}

// Parse reads a complete playlist. Structure is strict:
//
//	#EXT<extension>
//	#EXT-X-VERSION:<uint>
//	#EXT-X-TARGETDURATION:<uint>
//	(#EXTINF:<uint>, NEWLINE <url>)*
//	#EXT-X-ENDLIST
//
// Any deviation, including input that stops before the end tag, fails the
// whole parse and no playlist is returned.
func Parse(text string) (*Playlist, error) {
	p := &parser{pl: &Playlist{}}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		p.line = i + 1
		line = strings.TrimSuffix(line, "\r")
		if p.state == done {
			if line == "" {
				continue
			}
			return nil, &media.PlaylistError{Line: p.line, Reason: "content after end of list"}
		}
		if err := p.step(line); err != nil {
			return nil, err
		}
	}
	if p.state != done {
		return nil, &media.PlaylistError{
			Line:   p.line,
			Reason: "unexpected end of input, expected " + p.state.String(),
		}
	}
	return p.pl, nil
}

// ParseReader reads r to the end and parses it.
func ParseReader(r io.Reader) (*Playlist, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(string(b))
}

type parser struct {
	state   state
	line    int
	pl      *Playlist
	pending uint
}

func (p *parser) step(line string) error {
	switch p.state {
	case expectHeader:
		ext, err := p.chew(line, prefixHeader)
		if err != nil {
			return err
		}
		p.pl.extension = ext
		p.state = expectVersion
	case expectVersion:
		v, err := p.chewUint(line, prefixVersion, "version", "")
		if err != nil {
			return err
		}
		p.pl.version = v
		p.state = expectTargetDuration
	case expectTargetDuration:
		v, err := p.chewUint(line, prefixTargetDuration, "target duration", "")
		if err != nil {
			return err
		}
		p.pl.targetDuration = v
		p.state = expectInfOrEnd
	case expectInfOrEnd:
		if line == tagEndList {
			p.state = done
			return nil
		}
		v, err := p.chewUint(line, prefixInfo, "segment duration", ",")
		if err != nil {
			return err
		}
		p.pending = v
		p.state = expectURL
	case expectURL:
		p.pl.segments = append(p.pl.segments, Segment{Increment: p.pending, URL: line})
		p.state = expectInfOrEnd
	}
	return nil
}

// chew strips a required prefix from line.
func (p *parser) chew(line, prefix string) (string, error) {
	rest, ok := strings.CutPrefix(line, prefix)
	if !ok {
		return "", &media.PlaylistError{Line: p.line, Field: prefix, Reason: "missing required field"}
	}
	return rest, nil
}

// chewUint strips prefix and an optional trailing suffix, then parses the
// remainder as an unsigned integer.
func (p *parser) chewUint(line, prefix, field, suffix string) (uint, error) {
	rest, err := p.chew(line, prefix)
	if err != nil {
		return 0, err
	}
	if suffix != "" {
		rest = strings.TrimSuffix(rest, suffix)
	}
	v, err := strconv.ParseUint(rest, 10, 0)
	if err != nil {
		return 0, &media.NumericError{Field: field, Value: rest, Err: err}
	}
	return uint(v), nil
}
