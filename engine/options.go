package engine

import "github.com/haldi/kvindex/metrics"

// MirrorKind selects the in-memory log mirror implementation.
type MirrorKind int

const (
	// MirrorMap backs the mirror with a built-in Go map.
	MirrorMap MirrorKind = iota
	// MirrorART backs the mirror with an adaptive radix tree.
	MirrorART
)

// Options holds an Engine's configuration. Use the With* functions with
// Open rather than constructing this directly.
type Options struct {
	// Fresh truncates any existing log and discards any existing index
	// instead of reusing them.
	Fresh bool

	// ReadOnly opens the engine without taking the advisory write lock
	// and rejects mutating operations.
	ReadOnly bool

	// LogSize is the soft log budget, in entries; exceeding
	// LogSize*E bytes on a write triggers a merge.
	LogSize int64

	// Mirror selects the in-memory log mirror implementation.
	Mirror MirrorKind

	// BloomFP is the desired false-positive rate of the index's bloom
	// filter, used to short-circuit misses before interpolation search.
	BloomFP float64

	// Metrics, if set, receives counters and gauges for engine
	// operations. Nil is safe; no metrics are recorded.
	Metrics *metrics.Metrics
}

// Option configures Options.
type Option func(*Options)

// WithFresh truncates any existing log and drops any existing index.
func WithFresh() Option {
	return func(o *Options) { o.Fresh = true }
}

// WithReadOnly opens the engine as a read-only observer.
func WithReadOnly() Option {
	return func(o *Options) { o.ReadOnly = true }
}

// WithLogSize sets the soft log budget in entries.
func WithLogSize(entries int64) Option {
	return func(o *Options) { o.LogSize = entries }
}

// WithARTMirror selects the adaptive-radix-tree mirror backing.
func WithARTMirror() Option {
	return func(o *Options) { o.Mirror = MirrorART }
}

// WithBloomFP sets the index bloom filter's target false-positive rate.
func WithBloomFP(fp float64) Option {
	return func(o *Options) { o.BloomFP = fp }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

func defaultOptions() *Options {
	return &Options{
		LogSize: 4096,
		Mirror:  MirrorMap,
		BloomFP: 0.01,
	}
}
