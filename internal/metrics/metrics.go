package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles prometheus collectors used by the watcher.
type Metrics struct {
	LinesRead          prometheus.Counter
	ParseSkips         prometheus.Counter
	ServerErrors       prometheus.Counter
	AlertsDispatched   *prometheus.CounterVec
	AlertsSuppressed   prometheus.Counter
	DeliveryFailures   prometheus.Counter
	RequestDurationSec prometheus.Histogram
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watcher_lines_total",
			Help: "Total number of access log lines read.",
		}),
		ParseSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watcher_parse_skips_total",
			Help: "Total number of access log lines skipped as unparseable.",
		}),
		ServerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watcher_server_errors_total",
			Help: "Total number of requests counted as 5xx errors.",
		}),
		AlertsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watcher_alerts_total",
			Help: "Total number of alerts accepted for delivery.",
		}, []string{"kind", "pool"}),
		AlertsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watcher_alerts_suppressed_total",
			Help: "Total number of alerts suppressed by maintenance, cooldown, or backpressure.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watcher_alert_delivery_failures_total",
			Help: "Total number of alerts whose webhook delivery failed after retries.",
		}),
		RequestDurationSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "watcher_request_duration_seconds",
			Help:    "Upstream request duration observed from the access log.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.LinesRead,
		m.ParseSkips,
		m.ServerErrors,
		m.AlertsDispatched,
		m.AlertsSuppressed,
		m.DeliveryFailures,
		m.RequestDurationSec,
	)

	return m
}
