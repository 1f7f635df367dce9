// Package engine owns the log/index pair that backs one fixed-key,
// fixed-value index: the in-memory log mirror, the generation counter,
// the merge algorithm, the read-only sync algorithm and the public
// open/clear/find/mem/replace/iter/force_merge/flush/close operations.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/haldi/kvindex/array"
	"github.com/haldi/kvindex/entry"
	"github.com/haldi/kvindex/fanout"
	"github.com/haldi/kvindex/kvfile"
	"github.com/haldi/kvindex/metrics"
	"github.com/haldi/kvindex/mirror"
)

const (
	indexDirName  = "index"
	logFileName   = "log"
	indexFileName = "data"
	mergeFileName = "merge"
	lockFileName  = "lock"
)

// Engine owns one root directory's log file, index file, in-memory
// mirror and advisory lock. It is safe for concurrent use by multiple
// goroutines; mutation methods serialize via mu, matching the
// single-writer-per-handle model the instance cache relies on.
type Engine[K comparable, V any] struct {
	mu sync.RWMutex

	root     string
	codec    *entry.Codec[K, V]
	opts     *Options
	metrics  *metrics.Metrics
	hashBits int

	lock *kvfile.Lock

	logFile    *kvfile.File
	logPresent bool
	logMirror  mirror.Mirror[K, V]

	indexFile    *kvfile.File
	indexPresent bool
	indexArray   *array.Array[K, V]
	fan          *fanout.Fan
	bloom        *bloomGuard

	generation uint64
	closed     bool
}

// IndexDir returns the subdirectory under root that holds the log,
// index, merge and lock files. Its existence (or absence) is what the
// instance cache checks to decide whether a cached handle for root is
// still backed by a real on-disk index.
func IndexDir(root string) string { return filepath.Join(root, indexDirName) }

func logPath(root string) string   { return filepath.Join(IndexDir(root), logFileName) }
func indexPath(root string) string { return filepath.Join(IndexDir(root), indexFileName) }
func mergePath(root string) string { return filepath.Join(IndexDir(root), mergeFileName) }
func lockPath(root string) string  { return filepath.Join(IndexDir(root), lockFileName) }

// Open opens or creates the index rooted at root. hashBits is the width
// of codec.Keys.Hash's output domain (64 for a plain uint64 hash).
func Open[K comparable, V any](root string, codec *entry.Codec[K, V], hashBits int, opt ...Option) (*Engine[K, V], error) {
	options := defaultOptions()
	for _, o := range opt {
		o(options)
	}

	if err := os.MkdirAll(IndexDir(root), 0755); err != nil {
		return nil, fmt.Errorf("engine: create index dir under %s: %w", root, err)
	}

	e := &Engine[K, V]{
		root:     root,
		codec:    codec,
		opts:     options,
		metrics:  options.Metrics,
		hashBits: hashBits,
	}

	if !options.ReadOnly {
		lk, err := kvfile.AcquireLock(lockPath(root))
		if err != nil {
			if err == kvfile.ErrLocked {
				return nil, ErrLocked
			}
			return nil, err
		}
		e.lock = lk
	}

	if options.Fresh && !options.ReadOnly {
		_ = os.Remove(indexPath(root))
		_ = os.Remove(mergePath(root))
	}

	if err := e.openLog(options); err != nil {
		e.releaseLockOnFailure()
		return nil, err
	}

	if err := e.openIndex(options); err != nil {
		_ = e.logFile.Close()
		e.releaseLockOnFailure()
		return nil, err
	}

	e.reportGauges()
	return e, nil
}

func (e *Engine[K, V]) releaseLockOnFailure() {
	if e.lock != nil {
		_ = e.lock.Release()
	}
}

func (e *Engine[K, V]) newMirror() mirror.Mirror[K, V] {
	if e.opts.Mirror == MirrorART {
		return mirror.NewART(e.codec)
	}
	return mirror.NewMap[K, V]()
}

func (e *Engine[K, V]) openLog(options *Options) error {
	path := logPath(e.root)

	if options.ReadOnly {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			e.logPresent = false
			e.logMirror = e.newMirror()
			return nil
		}
	}

	f, err := kvfile.Open(path, kvfile.OpenOptions{Fresh: options.Fresh && !options.ReadOnly, ReadOnly: options.ReadOnly})
	if err != nil {
		return err
	}
	e.logFile = f
	e.logPresent = true
	e.generation = f.Generation()
	e.logMirror = e.newMirror()
	return e.loadLogIntoMirror()
}

// loadLogIntoMirror replays every entry currently in the log file into
// the mirror, last write wins.
func (e *Engine[K, V]) loadLogIntoMirror() error {
	size := int64(e.codec.Size())
	n := e.logFile.WriteOffset() / size
	buf := make([]byte, size)
	for i := int64(0); i < n; i++ {
		if _, err := e.logFile.ReadAt(buf, i*size); err != nil {
			return fmt.Errorf("engine: replay log entry %d: %w", i, err)
		}
		ent, err := e.codec.Decode(buf)
		if err != nil {
			return fmt.Errorf("engine: decode log entry %d: %w", i, err)
		}
		e.logMirror.Put(ent.Key, ent.Value)
	}
	return nil
}

func (e *Engine[K, V]) openIndex(options *Options) error {
	path := indexPath(e.root)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		e.indexPresent = false
		return nil
	}

	f, err := kvfile.Open(path, kvfile.OpenOptions{ReadOnly: true})
	if err != nil {
		return err
	}
	return e.adoptIndexFile(f)
}

// adoptIndexFile installs f as the current index handle: parses its
// fan-out blob, wraps it in an array view and rebuilds the bloom filter
// with one sequential scan.
func (e *Engine[K, V]) adoptIndexFile(f *kvfile.File) error {
	fan, err := fanout.Deserialize(f.FanoutBlob())
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("engine: parse fanout: %w", err)
	}

	e.indexFile = f
	e.indexPresent = true
	e.indexArray = array.New(f, e.codec)
	e.fan = fan

	return e.rebuildBloomLocked()
}

func (e *Engine[K, V]) rebuildBloomLocked() error {
	n := e.indexArray.Len()
	guard := newBloomGuard(uint(n)+1, e.opts.BloomFP)
	for i := int64(0); i < n; i++ {
		ent, err := e.indexArray.Get(i)
		if err != nil {
			return fmt.Errorf("engine: scan index for bloom: %w", err)
		}
		guard.Add(e.codec.Keys.Encode(ent.Key))
	}
	e.bloom = guard
	return nil
}

func (e *Engine[K, V]) reportGauges() {
	if e.metrics == nil {
		return
	}
	e.metrics.SetGeneration(e.generation)
	if e.logFile != nil {
		e.metrics.SetLogBytes(e.logFile.WriteOffset())
	}
	if e.indexArray != nil {
		e.metrics.SetIndexEntries(e.indexArray.Len())
	}
}

// Close releases the engine's file handles and advisory lock. Callers
// that obtained the engine through the cache package should call
// cache.Release instead of this directly.
func (e *Engine[K, V]) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	if e.logFile != nil {
		if err := e.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.indexFile != nil {
		if err := e.indexFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.lock != nil {
		if err := e.lock.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Root returns the directory this engine was opened against.
func (e *Engine[K, V]) Root() string {
	return e.root
}

// ReadOnly reports whether the engine was opened read-only.
func (e *Engine[K, V]) ReadOnly() bool {
	return e.opts.ReadOnly
}

// Generation returns the engine's current generation counter.
func (e *Engine[K, V]) Generation() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.generation
}
