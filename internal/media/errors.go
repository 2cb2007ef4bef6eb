package media

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by the media model and the playlist parser.
// Callers match them with errors.Is; the concrete error types below carry
// the detail.
var (
	ErrMalformedPlaylist = errors.New("malformed playlist")
	ErrMalformedRecord   = errors.New("malformed record")
	ErrNumericParse      = errors.New("numeric parse error")
	ErrKindMismatch      = errors.New("kind mismatch")
	ErrNoCoverArt        = errors.New("no cover art")
	ErrBackend           = errors.New("backend error")

	errMissingPayload = errors.New("response carries no record")
)

// PlaylistError reports a structural problem in segmented playlist text.
type PlaylistError struct {
	Line   int    // 1-based line number, 0 when unknown
	Field  string // the prefix that was expected, if any
	Reason string
}

// Error reports the line and the failed field.
func (e *PlaylistError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("malformed playlist: line %d: %s %q", e.Line, e.Reason, e.Field)
	}
	return fmt.Sprintf("malformed playlist: line %d: %s", e.Line, e.Reason)
}

// Is matches ErrMalformedPlaylist.
func (e *PlaylistError) Is(target error) bool {
	return target == ErrMalformedPlaylist
}

// NumericError reports a field that should hold an unsigned integer but does not.
// It matches both ErrNumericParse and the underlying *strconv.NumError.
type NumericError struct {
	Field string
	Value string
	Err   error
}

// Error reports the field and the rejected value.
func (e *NumericError) Error() string {
	return fmt.Sprintf("%s: invalid unsigned integer %q", e.Field, e.Value)
}

// Unwrap exposes ErrNumericParse and the strconv cause.
func (e *NumericError) Unwrap() []error {
	return []error{ErrNumericParse, e.Err}
}

// KindMismatchError is returned when a now-playing record is resolved with the
// accessor for the other media kind.
type KindMismatchError struct {
	Want string
}

// Error returns "not a <kind>".
func (e *KindMismatchError) Error() string {
	return "not a " + e.Want
}

// Is matches ErrKindMismatch.
func (e *KindMismatchError) Is(target error) bool {
	return target == ErrKindMismatch
}

// BackendError wraps any failure coming out of a Session. The cause is kept
// intact and reachable through errors.As / errors.Unwrap.
type BackendError struct {
	Op  string
	Err error
}

// Error prefixes the cause with the failed operation.
func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

// Unwrap returns the session's original error.
func (e *BackendError) Unwrap() error { return e.Err }

// Is matches ErrBackend.
func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

// AsBackendError returns err unchanged when it already is a *BackendError and
// wraps it otherwise. A nil err yields nil.
func AsBackendError(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}
