// Package entry defines the codec contracts for keys and values and the
// fixed-size on-disk record that pairs them.
package entry

import "fmt"

// KeyCodec describes a fixed-size, hashable key type. Implementations are
// supplied by the caller; the engine never constructs a K on its own, only
// encodes, decodes, hashes and compares values handed to it.
type KeyCodec[K comparable] interface {
	// Size is the fixed encoded length of every key, in bytes.
	Size() int

	// Encode returns the on-disk representation of k. A valid key encodes
	// to exactly Size() bytes; Codec.ValidateKey rejects any other length.
	Encode(k K) []byte

	// Decode parses a key from exactly Size() bytes.
	Decode(b []byte) (K, error)

	// Hash returns a value in [0, 2^64) used to order and locate entries.
	// It must be deterministic: Hash(k) is the same every time for the
	// same k.
	Hash(k K) uint64

	// String renders k for diagnostics.
	String(k K) string
}

// ValueCodec describes a fixed-size value type.
type ValueCodec[V any] interface {
	// Size is the fixed encoded length of every value, in bytes.
	Size() int

	// Encode returns the on-disk representation of v.
	Encode(v V) []byte

	// Decode parses a value from exactly Size() bytes.
	Decode(b []byte) (V, error)
}

// Entry is a decoded (key, value) pair together with the key's hash. The
// hash is never persisted; it is always recomputed from the decoded key.
type Entry[K comparable, V any] struct {
	Key     K
	Hash    uint64
	Value   V
}

// Codec bundles a KeyCodec and ValueCodec and knows the fixed on-disk size
// of one record: Size() == KeyCodec.Size() + ValueCodec.Size().
type Codec[K comparable, V any] struct {
	Keys   KeyCodec[K]
	Values ValueCodec[V]
}

// Size returns E, the fixed byte length of one encoded entry.
func (c Codec[K, V]) Size() int {
	return c.Keys.Size() + c.Values.Size()
}

// Encode writes k++v into a freshly allocated Size()-byte buffer.
func (c Codec[K, V]) Encode(k K, v V) []byte {
	buf := make([]byte, c.Size())
	copy(buf, c.Keys.Encode(k))
	copy(buf[c.Keys.Size():], c.Values.Encode(v))
	return buf
}

// Decode parses an Entry from exactly Size() bytes.
func (c Codec[K, V]) Decode(b []byte) (Entry[K, V], error) {
	var zero Entry[K, V]
	if len(b) != c.Size() {
		return zero, fmt.Errorf("entry: decode: want %d bytes, got %d", c.Size(), len(b))
	}
	k, err := c.Keys.Decode(b[:c.Keys.Size()])
	if err != nil {
		return zero, fmt.Errorf("entry: decode key: %w", err)
	}
	v, err := c.Values.Decode(b[c.Keys.Size():])
	if err != nil {
		return zero, fmt.Errorf("entry: decode value: %w", err)
	}
	return Entry[K, V]{Key: k, Hash: c.Keys.Hash(k), Value: v}, nil
}

// ValidateKey reports whether k encodes to exactly Size() bytes, as required
// before a Replace is allowed to reach the log.
func (c Codec[K, V]) ValidateKey(k K) error {
	if n := len(c.Keys.Encode(k)); n != c.Keys.Size() {
		return fmt.Errorf("entry: key encodes to %d bytes, want %d", n, c.Keys.Size())
	}
	return nil
}

// ValidateValue reports whether v encodes to exactly Size() bytes.
func (c Codec[K, V]) ValidateValue(v V) error {
	if n := len(c.Values.Encode(v)); n != c.Values.Size() {
		return fmt.Errorf("entry: value encodes to %d bytes, want %d", n, c.Values.Size())
	}
	return nil
}
