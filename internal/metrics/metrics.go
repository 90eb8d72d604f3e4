package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry agrupa los contadores del servicio y expone el handler de
// /metrics. Una instancia por proceso, creada en el arranque.
type Registry struct {
	reg       *prometheus.Registry
	startedAt time.Time

	requestsTotal   *prometheus.CounterVec
	errorsTotal     prometheus.Counter
	requestDuration *prometheus.HistogramVec
	llmDuration     prometheus.Histogram
	breakerState    *prometheus.GaugeVec

	mu            sync.Mutex
	totalRequests int64
	totalErrors   int64
	totalDuration time.Duration
}

// New registra los colectores. cacheSizes alimenta los gauges de caché.
func New(cacheSizes func() map[string]int) *Registry {
	reg := prometheus.NewRegistry()

	m := &Registry{
		reg:       reg,
		startedAt: time.Now(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lifesync_requests_total",
			Help: "HTTP requests by method, path and status code.",
		}, []string{"method", "path", "code"}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lifesync_errors_total",
			Help: "HTTP responses with status >= 500.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifesync_request_duration_seconds",
			Help:    "Request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"}),
		llmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifesync_llm_generation_seconds",
			Help:    "LLM explanation generation latency.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lifesync_circuit_breaker_open",
			Help: "1 when the provider circuit is open.",
		}, []string{"provider"}),
	}

	reg.MustRegister(m.requestsTotal, m.errorsTotal, m.requestDuration, m.llmDuration, m.breakerState)

	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "lifesync_uptime_seconds",
		Help: "Seconds since process start.",
	}, func() float64 { return time.Since(m.startedAt).Seconds() }))

	if cacheSizes != nil {
		for _, name := range []string{"personas", "assessments", "history"} {
			name := name
			reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name:        "lifesync_cache_entries",
				Help:        "Entries currently cached.",
				ConstLabels: prometheus.Labels{"cache": name},
			}, func() float64 { return float64(cacheSizes()[name]) }))
		}
	}

	return m
}

// RecordRequest acumula una request terminada.
func (m *Registry) RecordRequest(method, path string, code int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(path).Observe(duration.Seconds())
	if code >= 500 {
		m.errorsTotal.Inc()
	}

	m.mu.Lock()
	m.totalRequests++
	m.totalDuration += duration
	if code >= 500 {
		m.totalErrors++
	}
	m.mu.Unlock()
}

// RecordLLMGeneration acumula una generación de explicación.
func (m *Registry) RecordLLMGeneration(duration time.Duration) {
	m.llmDuration.Observe(duration.Seconds())
}

// SetBreakerOpen refleja el estado del breaker de un proveedor.
func (m *Registry) SetBreakerOpen(provider string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	m.breakerState.WithLabelValues(provider).Set(v)
}

// Snapshot devuelve los agregados simples que /health incluye.
func (m *Registry) Snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	avgMS := 0.0
	if m.totalRequests > 0 {
		avgMS = float64(m.totalDuration.Milliseconds()) / float64(m.totalRequests)
	}
	return map[string]any{
		"uptime_seconds": int(time.Since(m.startedAt).Seconds()),
		"requests":       m.totalRequests,
		"errors":         m.totalErrors,
		"avg_latency_ms": avgMS,
	}
}

// Handler sirve el registro en formato prometheus.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
