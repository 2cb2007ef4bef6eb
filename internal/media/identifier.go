package media

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// IDKind tells which variant an Identifier holds.
type IDKind int

const (
	IDAbsent IDKind = iota
	IDNumeric
	IDComposite
)

// Identifier is a media id as the server hands it out: either a plain number
// (tracks, videos) or a composite string such as "al-42" used for collections.
// The zero value is the absent id.
type Identifier struct {
	kind IDKind
	num  uint64
	str  string
}

// NumericID returns a numeric identifier.
func NumericID(n uint64) Identifier {
	return Identifier{kind: IDNumeric, num: n}
}

// CompositeID returns a composite identifier. An empty string yields the absent id.
func CompositeID(s string) Identifier {
	if s == "" {
		return Identifier{}
	}
	return Identifier{kind: IDComposite, str: s}
}

// ParseID classifies a wire id. Strings made only of digits become numeric ids,
// anything else non-empty is composite.
func ParseID(s string) Identifier {
	if s == "" {
		return Identifier{}
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return NumericID(n)
	}
	return CompositeID(s)
}

// Kind reports which form the identifier takes.
func (id Identifier) Kind() IDKind { return id.kind }

// IsAbsent reports whether no identifier was given.
func (id Identifier) IsAbsent() bool { return id.kind == IDAbsent }

// Numeric returns the numeric value and whether the id is numeric.
func (id Identifier) Numeric() (uint64, bool) {
	return id.num, id.kind == IDNumeric
}

// String renders the id the way the server expects it in query parameters.
func (id Identifier) String() string {
	switch id.kind {
	case IDNumeric:
		return strconv.FormatUint(id.num, 10)
	case IDComposite:
		return id.str
	default:
		return ""
	}
}

// MarshalJSON encodes numeric ids as numbers, composite ids as strings and
// absent ids as null.
func (id Identifier) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case IDNumeric:
		return []byte(strconv.FormatUint(id.num, 10)), nil
	case IDComposite:
		return json.Marshal(id.str)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (id *Identifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = Identifier{}
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ParseID(s)
	default:
		n, err := strconv.ParseUint(string(data), 10, 64)
		if err != nil {
			return &NumericError{Field: "id", Value: string(data), Err: err}
		}
		*id = NumericID(n)
	}
	return nil
}
