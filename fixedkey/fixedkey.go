// Package fixedkey provides a ready-to-use fixed-width byte-array Key
// and Value implementation, for tests and the debug command that don't
// need a domain-specific codec of their own.
package fixedkey

import (
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// Key is a fixed-width key. It is a Go string (not []byte) specifically
// so it satisfies the comparable constraint the engine's mirror and
// search code require for use as a map key and in == comparisons; the
// bytes are still arbitrary binary data, not meant to be printed as
// text directly.
type Key string

// Value is a fixed-width N-byte value.
type Value []byte

// KeyCodec is an entry.KeyCodec[Key] for a fixed width n.
type KeyCodec struct {
	n int
}

// NewKeyCodec returns a KeyCodec for n-byte keys.
func NewKeyCodec(n int) KeyCodec {
	return KeyCodec{n: n}
}

func (c KeyCodec) Size() int { return c.n }

// Encode returns k's bytes unchanged. A key whose length is not n keeps
// that length, so Codec.ValidateKey rejects it rather than it being
// padded or cut to fit.
func (c KeyCodec) Encode(k Key) []byte {
	return []byte(k)
}

func (c KeyCodec) Decode(b []byte) (Key, error) {
	if len(b) != c.n {
		return "", fmt.Errorf("fixedkey: decode key: want %d bytes, got %d", c.n, len(b))
	}
	return Key(string(b)), nil
}

// Hash uses FNV-1a over the encoded key. FNV is not cryptographically
// strong but is cheap, deterministic and spreads fixed-width keys well
// enough for interpolation search's uniformity assumption.
func (c KeyCodec) Hash(k Key) uint64 {
	h := fnv.New64a()
	h.Write(c.Encode(k))
	return h.Sum64()
}

func (c KeyCodec) String(k Key) string {
	return hex.EncodeToString([]byte(k))
}

// ValueCodec is an entry.ValueCodec[Value] for a fixed width n.
type ValueCodec struct {
	n int
}

// NewValueCodec returns a ValueCodec for n-byte values.
func NewValueCodec(n int) ValueCodec {
	return ValueCodec{n: n}
}

func (c ValueCodec) Size() int { return c.n }

// Encode returns a copy of v's bytes. A value whose length is not n keeps
// that length, so Codec.ValidateValue rejects it.
func (c ValueCodec) Encode(v Value) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (c ValueCodec) Decode(b []byte) (Value, error) {
	if len(b) != c.n {
		return nil, fmt.Errorf("fixedkey: decode value: want %d bytes, got %d", c.n, len(b))
	}
	out := make(Value, c.n)
	copy(out, b)
	return out, nil
}
