package media

import (
	"net/url"
	"strconv"

	"github.com/samber/mo"
)

// StreamingOptions holds the per-instance transcoding knobs sent along with
// stream requests. Values are not checked locally; the server ignores what it
// cannot honor. Writers must not race each other.
type StreamingOptions struct {
	maxBitRate  mo.Option[uint]
	transcoding mo.Option[string]
}

// SetMaxBitRate caps the stream bit rate in kbps. Zero removes the cap.
func (o *StreamingOptions) SetMaxBitRate(kbps uint) {
	if kbps == 0 {
		o.maxBitRate = mo.None[uint]()
		return
	}
	o.maxBitRate = mo.Some(kbps)
}

// SetTranscoding asks the server to transcode to format. An empty format
// restores the server default.
func (o *StreamingOptions) SetTranscoding(format string) {
	if format == "" {
		o.transcoding = mo.None[string]()
		return
	}
	o.transcoding = mo.Some(format)
}

// MaxBitRate returns the configured cap, 0 when unconstrained.
func (o *StreamingOptions) MaxBitRate() uint {
	return o.maxBitRate.OrElse(0)
}

// Transcoding returns the requested format, if any.
func (o *StreamingOptions) Transcoding() (string, bool) {
	return o.transcoding.Get()
}

func (o *StreamingOptions) apply(params url.Values) {
	if v, ok := o.maxBitRate.Get(); ok {
		params.Set("maxBitRate", uintString(v))
	}
	if v, ok := o.transcoding.Get(); ok {
		params.Set("format", v)
	}
}

// effectiveEncoding picks the label a stream would carry: the requested
// transcoding first, then the server's own transcode target, then the
// original suffix. "raw" asks for the original file.
func (o *StreamingOptions) effectiveEncoding(transcodedSuffix, suffix string) string {
	if v, ok := o.transcoding.Get(); ok {
		if v == "raw" {
			return suffix
		}
		return v
	}
	if transcodedSuffix != "" {
		return transcodedSuffix
	}
	return suffix
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
