package cache

import (
	"encoding/json"
	"errors"
)

// Kind tells how a stored value was decoded
type Kind int

const (
	KindRaw Kind = iota + 1
	KindJSON
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindRaw:
		return "raw"
	case KindJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ErrNotJSON is returned when decoding a raw value into anything but a string
var ErrNotJSON = errors.New("cache: value is not JSON")

/* Value is the tagged result of reading a cache entry.
 * Values written by this package are always JSON; anything else found in the
 * store (written by another system) comes back as KindRaw instead of failing.
 */
type Value struct {
	raw  string
	kind Kind
}

func decodeValue(raw string) Value {
	if json.Valid([]byte(raw)) {
		return Value{raw: raw, kind: KindJSON}
	}
	return Value{raw: raw, kind: KindRaw}
}

// Kind returns how the value was decoded
func (v Value) Kind() Kind {
	return v.kind
}

// Raw returns the stored string exactly as read
func (v Value) Raw() string {
	return v.raw
}

// IsJSON reports whether the stored string is valid JSON
func (v Value) IsJSON() bool {
	return v.kind == KindJSON
}

// Decode unmarshals the value into dst. A raw value can only be decoded into
// a *string, which receives the stored string unchanged.
func (v Value) Decode(dst any) error {
	if v.kind == KindJSON {
		return json.Unmarshal([]byte(v.raw), dst)
	}
	if s, ok := dst.(*string); ok {
		*s = v.raw
		return nil
	}
	return ErrNotJSON
}
