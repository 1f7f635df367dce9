// Package array provides random access into a kvfile.File's payload
// region as a dense array of fixed-size entries, using an entry.Codec to
// decode each slot.
package array

import (
	"fmt"

	"github.com/haldi/kvindex/entry"
	"github.com/haldi/kvindex/kvfile"
)

// Array is a read-oriented view over a kvfile.File whose payload is a
// contiguous run of codec.Size()-byte entries.
type Array[K comparable, V any] struct {
	file  *kvfile.File
	codec *entry.Codec[K, V]
}

// New wraps file for entry access via codec.
func New[K comparable, V any](file *kvfile.File, codec *entry.Codec[K, V]) *Array[K, V] {
	return &Array[K, V]{file: file, codec: codec}
}

// Len returns the number of whole entries currently in the payload.
func (a *Array[K, V]) Len() int64 {
	return a.file.WriteOffset() / int64(a.codec.Size())
}

// Get decodes the entry at index i (0-based, in units of entry size).
func (a *Array[K, V]) Get(i int64) (entry.Entry[K, V], error) {
	size := int64(a.codec.Size())
	buf := make([]byte, size)
	if _, err := a.file.ReadAt(buf, i*size); err != nil {
		var zero entry.Entry[K, V]
		return zero, fmt.Errorf("array: read entry %d: %w", i, err)
	}
	return a.codec.Decode(buf)
}

// GetRange decodes every whole entry in [lowByte, highByte] inclusive,
// where both bounds are entry-aligned byte offsets as produced by a
// fanout search. An empty or inverted range (highByte < lowByte) yields
// no entries.
func (a *Array[K, V]) GetRange(lowByte, highByte int64) ([]entry.Entry[K, V], error) {
	if highByte < lowByte {
		return nil, nil
	}
	size := int64(a.codec.Size())
	lo := lowByte / size
	hi := highByte / size
	out := make([]entry.Entry[K, V], 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		e, err := a.Get(i)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// File returns the underlying kvfile.File.
func (a *Array[K, V]) File() *kvfile.File {
	return a.file
}
