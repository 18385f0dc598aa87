package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var IngressRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gsm",
		Subsystem: "ingress",
		Name:      "requests_total",
		Help:      "Total number of ingress requests by platform and status.",
	},
	[]string{"platform", "status"},
)

var IngressDuplicatesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gsm",
		Subsystem: "ingress",
		Name:      "duplicates_total",
		Help:      "Total number of inbound events suppressed by the idempotency guard.",
	},
	[]string{"platform"},
)

var IdempotencyFailOpenTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "gsm",
		Subsystem: "idempotency",
		Name:      "failopen_total",
		Help:      "Total number of idempotency checks that failed open on store errors.",
	},
)

var EgressDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gsm",
		Subsystem: "egress",
		Name:      "deliveries_total",
		Help:      "Total number of egress delivery attempts by platform and outcome.",
	},
	[]string{"platform", "outcome"},
)

var EgressDeliveryDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "gsm",
		Subsystem: "egress",
		Name:      "delivery_duration_seconds",
		Help:      "Outbound platform HTTP delivery duration in seconds.",
		Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"platform"},
)

var DLQRecordsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gsm",
		Subsystem: "dlq",
		Name:      "records_total",
		Help:      "Total number of deliveries routed to the dead-letter queue.",
	},
	[]string{"stage", "code"},
)

var CardWarningsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gsm",
		Subsystem: "cards",
		Name:      "warnings_total",
		Help:      "Total number of renderer downgrade warnings by platform.",
	},
	[]string{"platform", "warning"},
)

var RateLimitRejectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gsm",
		Subsystem: "ratelimit",
		Name:      "rejections_total",
		Help:      "Total number of rate-limit rejections by scope.",
	},
	[]string{"scope"},
)

// All returns all gateway-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		IngressRequestsTotal,
		IngressDuplicatesTotal,
		IdempotencyFailOpenTotal,
		EgressDeliveriesTotal,
		EgressDeliveryDuration,
		DLQRecordsTotal,
		CardWarningsTotal,
		RateLimitRejectionsTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors
// and any additional service-specific collectors passed as arguments.
func NewMetricsRegistry(extra ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, c := range extra {
		reg.MustRegister(c)
	}
	return reg
}
