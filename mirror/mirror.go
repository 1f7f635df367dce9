// Package mirror holds the in-memory log mirror: a key -> value map kept
// in sync with the log file on every write, consulted before the sorted
// index on every read. Two backing implementations are provided, mapped
// from the teacher's own map/ART index pair: a built-in Go map and an
// adaptive radix tree.
package mirror

import (
	"github.com/haldi/kvindex/entry"
)

// Mirror is the abstract in-memory log mirror. The map backing keys
// directly on K; the ART backing keys on the codec-encoded bytes of K.
type Mirror[K comparable, V any] interface {
	// Put records the last-write-wins value for k.
	Put(k K, v V)

	// Get returns the value for k and whether it was present.
	Get(k K) (V, bool)

	// Delete removes k, reporting whether it was present.
	Delete(k K) bool

	// Len returns the number of distinct keys held.
	Len() int

	// Each calls f for every (key, value) pair. f returning false stops
	// iteration early.
	Each(f func(k K, v V) bool)

	// Clear drops every entry.
	Clear()
}

// NewMap constructs a Mirror backed by a built-in Go map, keyed directly
// on K since K is constrained to comparable.
func NewMap[K comparable, V any]() Mirror[K, V] {
	return &mapMirror[K, V]{data: make(map[K]V)}
}

type mapMirror[K comparable, V any] struct {
	data map[K]V
}

func (m *mapMirror[K, V]) Put(k K, v V) {
	m.data[k] = v
}

func (m *mapMirror[K, V]) Get(k K) (V, bool) {
	v, ok := m.data[k]
	return v, ok
}

func (m *mapMirror[K, V]) Delete(k K) bool {
	_, ok := m.data[k]
	if ok {
		delete(m.data, k)
	}
	return ok
}

func (m *mapMirror[K, V]) Len() int {
	return len(m.data)
}

func (m *mapMirror[K, V]) Each(f func(k K, v V) bool) {
	for k, v := range m.data {
		if !f(k, v) {
			return
		}
	}
}

func (m *mapMirror[K, V]) Clear() {
	m.data = make(map[K]V)
}

// Snapshot drains a Mirror into a slice of entries, computing each
// entry's hash via codec. Used by merge to build the sorted log
// snapshot.
func Snapshot[K comparable, V any](m Mirror[K, V], codec *entry.Codec[K, V]) []entry.Entry[K, V] {
	out := make([]entry.Entry[K, V], 0, m.Len())
	m.Each(func(k K, v V) bool {
		out = append(out, entry.Entry[K, V]{Key: k, Hash: codec.Keys.Hash(k), Value: v})
		return true
	})
	return out
}
