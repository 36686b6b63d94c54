package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	sessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deskd",
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Number of sessions created.",
		},
	)
	sessionsDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskd",
			Subsystem: "session",
			Name:      "deleted_total",
			Help:      "Number of sessions torn down, by trigger.",
		}, []string{"reason"},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deskd",
			Subsystem: "session",
			Name:      "active",
			Help:      "Current number of live sessions.",
		},
	)
	createDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "deskd",
			Subsystem: "session",
			Name:      "create_duration_seconds",
			Help:      "Time from create request to registry insertion.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	stageStartFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskd",
			Subsystem: "pipeline",
			Name:      "stage_start_failures_total",
			Help:      "Pipeline stages that failed to start.",
		}, []string{"stage"},
	)
	stageProbeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskd",
			Subsystem: "pipeline",
			Name:      "stage_probe_failures_total",
			Help:      "Pipeline stages that never became ready within the probe budget.",
		}, []string{"stage"},
	)
	teardownErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "deskd",
			Subsystem: "session",
			Name:      "teardown_errors_total",
			Help:      "Absorbed errors during session teardown.",
		},
	)
	proxyActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deskd",
			Subsystem: "proxy",
			Name:      "active_connections",
			Help:      "Streaming connections currently being relayed.",
		},
	)
	proxyBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deskd",
			Subsystem: "proxy",
			Name:      "bytes_total",
			Help:      "Bytes relayed through the gateway proxy, by direction.",
		}, []string{"direction"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{
		sessionsCreated, sessionsDeleted, activeSessions, createDuration,
		stageStartFailures, stageProbeFailures, teardownErrors,
		proxyActive, proxyBytes,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler exposes the default registry for mounting at /metrics.
func Handler() http.Handler { return promhttp.Handler() }

func SessionCreated(d time.Duration) {
	sessionsCreated.Inc()
	activeSessions.Inc()
	createDuration.Observe(d.Seconds())
}

func SessionDeleted(reason string) {
	sessionsDeleted.WithLabelValues(reason).Inc()
	activeSessions.Dec()
}

func StageStartFailure(stage string) { stageStartFailures.WithLabelValues(stage).Inc() }
func StageProbeFailure(stage string) { stageProbeFailures.WithLabelValues(stage).Inc() }
func TeardownError()                 { teardownErrors.Inc() }

func ProxyConnOpened() { proxyActive.Inc() }
func ProxyConnClosed() { proxyActive.Dec() }

func ProxyBytes(direction string, n int64) {
	proxyBytes.WithLabelValues(direction).Add(float64(n))
}
