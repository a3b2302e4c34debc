package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CaseMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verify_case_mutations_total",
			Help: "Case mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	TimelineEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verify_timeline_events_total",
			Help: "Timeline events appended by event type",
		},
		[]string{"event_type"},
	)

	// No vendor label: the vendor name is unauthenticated webhook input.
	VendorUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verify_vendor_updates_total",
			Help: "Vendor updates ingested by result",
		},
		[]string{"result"},
	)

	SLARiskCases = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "verify_sla_risk_cases",
			Help: "Cases flagged at SLA risk after the last refresh sweep",
		},
	)

	ExceptionsDerived = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "verify_exceptions",
			Help: "Exception records produced by the last derivation, by kind",
		},
		[]string{"kind"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verify_http_request_duration_seconds",
			Help:    "HTTP request duration by route pattern and status code",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)
)
