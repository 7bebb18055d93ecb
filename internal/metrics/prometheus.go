package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/slok/luabox/internal/model"
)

const namespace = "luabox"

// Prometheus is a recorder backed by Prometheus collectors.
type Prometheus struct {
	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	runInstructions  prometheus.Histogram
	runPeakMemory    prometheus.Histogram
	checksTotal      *prometheus.CounterVec
	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// NewPrometheus returns a new Prometheus recorder with its collectors registered
// on reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total program runs by outcome status.",
		}, []string{"status"}),

		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Program run duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}, []string{"status"}),

		runInstructions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "instructions",
			Help:      "VM instructions executed per run.",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
		}),

		runPeakMemory: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "peak_memory_bytes",
			Help:      "Approximate peak memory growth per run.",
			Buckets:   prometheus.ExponentialBuckets(1024*1024, 4, 6),
		}),

		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "check",
			Name:      "total",
			Help:      "Total program checks by result.",
		}, []string{"result"}),

		toolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Total tool calls made by programs.",
		}, []string{"tool", "status"}),

		toolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "call_duration_seconds",
			Help:      "Tool call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"path", "status_code"}),

		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
	}

	for _, c := range []prometheus.Collector{
		p.runsTotal,
		p.runDuration,
		p.runInstructions,
		p.runPeakMemory,
		p.checksTotal,
		p.toolCallsTotal,
		p.toolCallDuration,
		p.httpRequests,
		p.httpDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Prometheus) ObserveRun(_ context.Context, o model.ExecutionOutcome) {
	status := string(o.Status)
	p.runsTotal.WithLabelValues(status).Inc()
	p.runDuration.WithLabelValues(status).Observe(o.Duration.Seconds())
	p.runInstructions.Observe(float64(o.Instructions))
	p.runPeakMemory.Observe(float64(o.PeakMemory))
}

func (p *Prometheus) ObserveCheck(_ context.Context, ok bool) {
	result := "ok"
	if !ok {
		result = "rejected"
	}
	p.checksTotal.WithLabelValues(result).Inc()
}

func (p *Prometheus) ObserveToolCall(_ context.Context, tool string, success bool, duration time.Duration) {
	status := "ok"
	if !success {
		status = "error"
	}
	p.toolCallsTotal.WithLabelValues(tool, status).Inc()
	p.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func (p *Prometheus) ObserveHTTPRequest(_ context.Context, path string, code int, duration time.Duration) {
	p.httpRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
	p.httpDuration.WithLabelValues(path).Observe(duration.Seconds())
}
