package engine

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// bloomGuard is a concurrency-safe wrapper around a bloom filter, used
// as a fast-negative short-circuit before paying for an interpolation
// search: a Test miss proves the key cannot be in the index, while a
// hit only means "maybe, go check."
type bloomGuard struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

func newBloomGuard(n uint, fp float64) *bloomGuard {
	if n == 0 {
		n = 1
	}
	return &bloomGuard{filter: bloom.NewWithEstimates(n, fp)}
}

func (b *bloomGuard) Add(key []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter.Add(key)
}

func (b *bloomGuard) Test(key []byte) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.Test(key)
}
