package limiter

// Metric names emitted through a MetricsRecorder.
const (
	MetricAllowed = "ratelimit.allowed"
	MetricDenied  = "ratelimit.denied"
	MetricEvicted = "ratelimit.evicted"
	MetricLevel   = "ratelimit.level"
	MetricCall    = "ratelimit.call"
	MetricLatency = "ratelimit.latency"
)

// MetricsRecorder receives counters and observations from a limiter. Inject
// one with WithRecorder; implementations must be safe for concurrent use.
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

// NoOpMetricsRecorder is a placeholder that does nothing.
// It ensures we never have to check 'if r.recorder != nil' in our hot path.
type NoOpMetricsRecorder struct{}

func (n *NoOpMetricsRecorder) Add(name string, value float64, tags map[string]string)     {}
func (n *NoOpMetricsRecorder) Observe(name string, value float64, tags map[string]string) {}
