package limiter

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder adapts a Prometheus registry to the MetricsRecorder
// interface. Counters and histograms are created lazily per metric name,
// with dots rewritten to underscores ("ratelimit.allowed" becomes
// "ratelimit_allowed"). A given name must always be used with the same set
// of tag keys.
type PrometheusRecorder struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusRecorder builds a recorder registering against reg. Pass
// prometheus.DefaultRegisterer to use the process-wide registry.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	return &PrometheusRecorder{
		registerer: reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

// Add increments the counter identified by name.
func (p *PrometheusRecorder) Add(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: sanitizeMetricName(name) + "_total",
			Help: "Counter emitted by the rate limiter.",
		}, sortedKeys(tags))
		p.registerer.MustRegister(vec)
		p.counters[name] = vec
	}
	p.mu.Unlock()

	vec.With(prometheus.Labels(tags)).Add(value)
}

// Observe records value into the histogram identified by name.
func (p *PrometheusRecorder) Observe(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    sanitizeMetricName(name),
			Help:    "Observation emitted by the rate limiter.",
			Buckets: prometheus.DefBuckets,
		}, sortedKeys(tags))
		p.registerer.MustRegister(vec)
		p.histograms[name] = vec
	}
	p.mu.Unlock()

	vec.With(prometheus.Labels(tags)).Observe(value)
}

func sanitizeMetricName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

func sortedKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
