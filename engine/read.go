package engine

import (
	"context"
	"errors"

	"github.com/haldi/kvindex/search"
)

// Find returns the value for k, or ErrNotFound if absent from both the
// mirror and the index.
func (e *Engine[K, V]) Find(ctx context.Context, k K) (V, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.findLocked(k)
}

func (e *Engine[K, V]) findLocked(k K) (V, error) {
	var zero V
	if e.closed {
		return zero, ErrClosed
	}
	if e.opts.ReadOnly {
		if err := e.syncLog(); err != nil {
			return zero, err
		}
	}

	if !e.logPresent {
		e.observeFind(false)
		return zero, ErrNotFound
	}
	if v, ok := e.logMirror.Get(k); ok {
		e.observeFind(true)
		return v, nil
	}
	if !e.indexPresent {
		e.observeFind(false)
		return zero, ErrNotFound
	}

	if e.bloom != nil && !e.bloom.Test(e.codec.Keys.Encode(k)) {
		e.observeFind(false)
		return zero, ErrNotFound
	}

	v, err := search.Find(e.indexArray, e.fan, e.codec, k)
	if err != nil {
		if errors.Is(err, search.ErrNotFound) {
			e.observeFind(false)
			return zero, ErrNotFound
		}
		return zero, err
	}
	e.observeFind(true)
	return v, nil
}

func (e *Engine[K, V]) observeFind(hit bool) {
	if e.metrics != nil {
		e.metrics.FindObserved(hit)
	}
}

// Mem reports whether k is present. Find with not found mapped to
// false; any other error (closed, I/O) is also reported as absent.
func (e *Engine[K, V]) Mem(ctx context.Context, k K) bool {
	_, err := e.Find(ctx, k)
	return err == nil
}

// Visitor is called once per (key, value) pair during Iter. Returning
// false stops iteration early.
type Visitor[K comparable, V any] func(k K, v V) bool

// Iter calls f for every (key, value) in the mirror, then for every
// entry in the index file in file order. No deduplication: a key
// shadowed by the mirror is still visited again via its stale index
// entry. Callers that need deduplication must accumulate externally.
func (e *Engine[K, V]) Iter(ctx context.Context, f Visitor[K, V]) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.opts.ReadOnly {
		if err := e.syncLog(); err != nil {
			return err
		}
	}

	stop := false
	if e.logPresent {
		e.logMirror.Each(func(k K, v V) bool {
			if !f(k, v) {
				stop = true
				return false
			}
			return true
		})
	}
	if stop || !e.indexPresent {
		return nil
	}

	n := e.indexArray.Len()
	for i := int64(0); i < n; i++ {
		ent, err := e.indexArray.Get(i)
		if err != nil {
			return err
		}
		if !f(ent.Key, ent.Value) {
			return nil
		}
	}
	return nil
}
