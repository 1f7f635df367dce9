package mirror

import (
	art "github.com/plar/go-adaptive-radix-tree"

	"github.com/haldi/kvindex/entry"
)

// artEntry is the value stored in the radix tree: the original key
// (kept so Each doesn't need a K decode) and the mirrored value.
type artEntry[K comparable, V any] struct {
	key   K
	value V
}

// artMirror backs Mirror with an adaptive radix tree, keyed on the
// codec-encoded bytes of K, matching the teacher's ARTIndex but carrying
// a full value instead of a file position.
type artMirror[K comparable, V any] struct {
	tree  art.Tree
	codec *entry.Codec[K, V]
	size  int
}

// NewART constructs a Mirror backed by github.com/plar/go-adaptive-radix-tree.
// codec supplies the key encoding used as the tree's byte key.
func NewART[K comparable, V any](codec *entry.Codec[K, V]) Mirror[K, V] {
	return &artMirror[K, V]{tree: art.New(), codec: codec}
}

func (m *artMirror[K, V]) Put(k K, v V) {
	key := art.Key(m.codec.Keys.Encode(k))
	_, replaced := m.tree.Insert(key, artEntry[K, V]{key: k, value: v})
	if !replaced {
		m.size++
	}
}

func (m *artMirror[K, V]) Get(k K) (V, bool) {
	key := art.Key(m.codec.Keys.Encode(k))
	v, found := m.tree.Search(key)
	if !found {
		var zero V
		return zero, false
	}
	return v.(artEntry[K, V]).value, true
}

func (m *artMirror[K, V]) Delete(k K) bool {
	key := art.Key(m.codec.Keys.Encode(k))
	_, deleted := m.tree.Delete(key)
	if deleted {
		m.size--
	}
	return deleted
}

func (m *artMirror[K, V]) Len() int {
	return m.size
}

func (m *artMirror[K, V]) Each(f func(k K, v V) bool) {
	for it := m.tree.Iterator(); it.HasNext(); {
		node, err := it.Next()
		if err != nil {
			return
		}
		e := node.Value().(artEntry[K, V])
		if !f(e.key, e.value) {
			return
		}
	}
}

func (m *artMirror[K, V]) Clear() {
	m.tree = art.New()
	m.size = 0
}
