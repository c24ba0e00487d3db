package cache

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies a cached query: an ordered tuple such as
// ("products", "list", params) or ("products", "detail", id).
// Two keys are equal when their parts encode to the same JSON.
type Key struct {
	parts []string
	id    string
}

// NewKey builds a key from parts. Each part must be JSON-encodable; maps are
// encoded with sorted keys, so structurally equal parts yield equal keys.
func NewKey(parts ...any) Key {
	enc := make([]string, len(parts))
	for i, p := range parts {
		b, err := json.Marshal(p)
		if err != nil {
			panic(fmt.Sprintf("cache: key part %d (%T) is not encodable: %v", i, p, err))
		}
		enc[i] = string(b)
	}
	return Key{parts: enc, id: strings.Join(enc, "\x1f")}
}

// Append returns a new key extended by parts.
func (k Key) Append(parts ...any) Key {
	tail := NewKey(parts...)
	joined := make([]string, 0, len(k.parts)+len(tail.parts))
	joined = append(joined, k.parts...)
	joined = append(joined, tail.parts...)
	return Key{parts: joined, id: strings.Join(joined, "\x1f")}
}

// HasPrefix reports whether every part of prefix matches the start of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix.parts) > len(k.parts) {
		return false
	}
	for i, p := range prefix.parts {
		if k.parts[i] != p {
			return false
		}
	}
	return true
}

// Decode unmarshals part i of k into v.
func (k Key) Decode(i int, v any) error {
	if i < 0 || i >= len(k.parts) {
		return fmt.Errorf("cache: key %s has no part %d", k, i)
	}
	return json.Unmarshal([]byte(k.parts[i]), v)
}

func (k Key) Equal(other Key) bool { return k.id == other.id }

// ID is a canonical string form of the key, suitable as a map key.
func (k Key) ID() string { return k.id }

func (k Key) Len() int     { return len(k.parts) }
func (k Key) IsZero() bool { return len(k.parts) == 0 }

func (k Key) String() string {
	return "[" + strings.Join(k.parts, ",") + "]"
}

// MarshalText lets keys appear in structured logs and JSON.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
