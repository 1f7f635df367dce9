// Package metrics wires engine activity into Prometheus collectors. A
// nil *Metrics is always safe to call methods on; every method is a
// no-op when the receiver is nil, so engines that don't care about
// metrics can simply never construct one.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the counters and gauges one engine instance reports.
type Metrics struct {
	replaceTotal prometheus.Counter
	findTotal    *prometheus.CounterVec
	mergeTotal   prometheus.Counter
	generation   prometheus.Gauge
	logBytes     prometheus.Gauge
	indexEntries prometheus.Gauge
}

// New constructs a Metrics bound to root (used as the "root" label) and
// registers its collectors with reg. Pass prometheus.DefaultRegisterer
// for the global registry, or a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer, root string) *Metrics {
	labels := prometheus.Labels{"root": root}

	m := &Metrics{
		replaceTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "kvindex_replace_total",
			Help:        "Total number of replace operations.",
			ConstLabels: labels,
		}),
		findTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kvindex_find_total",
			Help:        "Total number of find operations, by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		mergeTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "kvindex_merge_total",
			Help:        "Total number of completed merges.",
			ConstLabels: labels,
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kvindex_generation",
			Help:        "Current generation counter.",
			ConstLabels: labels,
		}),
		logBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kvindex_log_bytes",
			Help:        "Current size of the log file payload, in bytes.",
			ConstLabels: labels,
		}),
		indexEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kvindex_index_entries",
			Help:        "Current number of entries in the sorted index.",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.replaceTotal, m.findTotal, m.mergeTotal, m.generation, m.logBytes, m.indexEntries)
	}
	return m
}

func (m *Metrics) ReplaceObserved() {
	if m == nil {
		return
	}
	m.replaceTotal.Inc()
}

func (m *Metrics) FindObserved(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.findTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) MergeObserved() {
	if m == nil {
		return
	}
	m.mergeTotal.Inc()
}

func (m *Metrics) SetGeneration(gen uint64) {
	if m == nil {
		return
	}
	m.generation.Set(float64(gen))
}

func (m *Metrics) SetLogBytes(n int64) {
	if m == nil {
		return
	}
	m.logBytes.Set(float64(n))
}

func (m *Metrics) SetIndexEntries(n int64) {
	if m == nil {
		return
	}
	m.indexEntries.Set(float64(n))
}
