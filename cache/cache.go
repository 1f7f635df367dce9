// Package cache is the process-wide, reference-counted instance cache
// mapping (root, readonly) to a single shared engine handle, so that
// repeated opens against the same path and mode reuse one Engine instead
// of contending over the same files from separate in-process handles.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/haldi/kvindex/engine"
	"github.com/haldi/kvindex/entry"
)

type key struct {
	root     string
	readOnly bool
}

type entryRef[K comparable, V any] struct {
	eng  *engine.Engine[K, V]
	refs int
}

// Cache is a process-wide (root, readonly) -> engine instance table. The
// zero value is not usable; construct with New.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[key]*entryRef[K, V]
}

// New constructs an empty Cache.
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[key]*entryRef[K, V])}
}

// Open returns a shared Engine for (root, mode), opening a fresh one if
// none is cached. Every successful Open must be matched by exactly one
// Release call.
func (c *Cache[K, V]) Open(root string, codec *entry.Codec[K, V], hashBits int, opt ...engine.Option) (*engine.Engine[K, V], error) {
	canon, err := canonicalize(root)
	if err != nil {
		return nil, err
	}

	options := &engine.Options{}
	for _, o := range opt {
		o(options)
	}
	k := key{root: canon, readOnly: options.ReadOnly}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := os.Stat(engine.IndexDir(canon)); os.IsNotExist(err) {
		delete(c.entries, key{root: canon, readOnly: true})
		delete(c.entries, key{root: canon, readOnly: false})
	}

	if ref, ok := c.entries[k]; ok && ref.refs > 0 {
		ref.refs++
		if options.Fresh {
			if err := ref.eng.Clear(context.Background()); err != nil {
				ref.refs--
				return nil, err
			}
		}
		return ref.eng, nil
	}

	eng, err := engine.Open(canon, codec, hashBits, opt...)
	if err != nil {
		return nil, err
	}
	c.entries[k] = &entryRef[K, V]{eng: eng, refs: 1}
	return eng, nil
}

// Release decrements the reference count for the engine previously
// returned by Open against (root, readOnly). On reaching zero it closes
// the engine (flushing first if writable) and drops it from the cache.
// The count is kept per (root, readOnly) slot, not per caller: a Release
// call for a slot with no cached engine, including repeated calls past
// zero, is a no-op.
func (c *Cache[K, V]) Release(root string, readOnly bool) error {
	canon, err := canonicalize(root)
	if err != nil {
		return err
	}
	k := key{root: canon, readOnly: readOnly}

	c.mu.Lock()
	defer c.mu.Unlock()

	ref, ok := c.entries[k]
	if !ok || ref.refs <= 0 {
		return nil
	}

	ref.refs--
	if ref.refs > 0 {
		return nil
	}

	delete(c.entries, k)
	if !readOnly {
		_ = ref.eng.Flush(context.Background())
	}
	return ref.eng.Close()
}

func canonicalize(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}
