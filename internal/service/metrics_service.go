package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation and a small JSON snapshot.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	cacheLatency     prometheus.Observer
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	dbQueryDuration  *prometheus.HistogramVec
	sessionsOpen     prometheus.Gauge
	sessionsTotal    *prometheus.CounterVec
	commandsTotal    *prometheus.CounterVec
	flushesTotal     *prometheus.CounterVec
	deliveriesTotal  *prometheus.CounterVec
	deliveryDuration prometheus.Observer

	sessionCount   int64
	commandCount   uint64
	flushCount     uint64
	deliveryFailed uint64
	cacheHitCount  uint64
	cacheMissCount uint64
}

// MetricsSnapshot is the JSON view of the monitor counters.
type MetricsSnapshot struct {
	OpenSessions     int64     `json:"openSessions"`
	Commands         uint64    `json:"commands"`
	Flushes          uint64    `json:"flushes"`
	FailedDeliveries uint64    `json:"failedDeliveries"`
	CacheHitRatio    float64   `json:"cacheHitRatio"`
	Goroutines       int       `json:"goroutines"`
	GeneratedAt      time.Time `json:"generatedAt"`
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheme_cache_latency_seconds",
		Help:    "Latency for scheme cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheme_cache_hits_total",
		Help: "Total scheme cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheme_cache_misses_total",
		Help: "Total scheme cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	sessionsOpen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "monitor_sessions_open",
		Help: "Monitor sessions currently held in memory",
	})

	sessionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_sessions_total",
		Help: "Monitor session lifecycle events",
	}, []string{"event"})

	commandsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_commands_total",
		Help: "Edit commands applied to monitor sessions",
	}, []string{"type", "outcome"})

	flushesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_flushes_total",
		Help: "Change-sets flushed from monitor sessions",
	}, []string{"trigger"})

	deliveriesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "monitor_deliveries_total",
		Help: "Change-set deliveries to storage",
	}, []string{"outcome"})

	deliveryDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "monitor_delivery_duration_seconds",
		Help:    "Time spent persisting one change-set",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses, dbQueryDuration,
		sessionsOpen, sessionsTotal, commandsTotal, flushesTotal, deliveriesTotal, deliveryDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:         registry,
		handler:          handler,
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		cacheLatency:     cacheLatency,
		cacheHits:        cacheHits,
		cacheMisses:      cacheMisses,
		dbQueryDuration:  dbQueryDuration,
		sessionsOpen:     sessionsOpen,
		sessionsTotal:    sessionsTotal,
		commandsTotal:    commandsTotal,
		flushesTotal:     flushesTotal,
		deliveriesTotal:  deliveriesTotal,
		deliveryDuration: deliveryDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a scheme cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// SessionOpened counts a new in-memory session.
func (m *MetricsService) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOpen.Inc()
	m.sessionsTotal.WithLabelValues("opened").Inc()
	atomic.AddInt64(&m.sessionCount, 1)
}

// SessionClosed counts a session leaving memory; reason is closed, idle or shutdown.
func (m *MetricsService) SessionClosed(reason string) {
	if m == nil {
		return
	}
	m.sessionsOpen.Dec()
	m.sessionsTotal.WithLabelValues(reason).Inc()
	atomic.AddInt64(&m.sessionCount, -1)
}

// ObserveCommand counts an applied or rejected command.
func (m *MetricsService) ObserveCommand(commandType string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	m.commandsTotal.WithLabelValues(commandType, outcome).Inc()
	atomic.AddUint64(&m.commandCount, 1)
}

// ObserveFlush counts a change-set leaving a session.
func (m *MetricsService) ObserveFlush(trigger string) {
	if m == nil {
		return
	}
	m.flushesTotal.WithLabelValues(trigger).Inc()
	atomic.AddUint64(&m.flushCount, 1)
}

// ObserveDelivery records the outcome of persisting a change-set.
func (m *MetricsService) ObserveDelivery(err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
		atomic.AddUint64(&m.deliveryFailed, 1)
	}
	m.deliveriesTotal.WithLabelValues(outcome).Inc()
	m.deliveryDuration.Observe(duration.Seconds())
}

// ObserveDroppedDelivery counts a change-set that never reached the queue.
func (m *MetricsService) ObserveDroppedDelivery() {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues("dropped").Inc()
	atomic.AddUint64(&m.deliveryFailed, 1)
}

// Snapshot returns aggregated counters for the JSON status endpoint.
func (m *MetricsService) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	var ratio float64
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return MetricsSnapshot{
		OpenSessions:     atomic.LoadInt64(&m.sessionCount),
		Commands:         atomic.LoadUint64(&m.commandCount),
		Flushes:          atomic.LoadUint64(&m.flushCount),
		FailedDeliveries: atomic.LoadUint64(&m.deliveryFailed),
		CacheHitRatio:    ratio,
		Goroutines:       runtime.NumGoroutine(),
		GeneratedAt:      time.Now().UTC(),
	}
}
