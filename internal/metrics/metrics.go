package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ONSAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gendash_ons_api_calls_total",
			Help: "Total ONS integration API calls",
		},
		[]string{"endpoint", "status"},
	)

	ONSAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gendash_ons_api_latency_seconds",
			Help:    "ONS API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ONSResponseBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gendash_ons_response_bytes",
			Help:    "Size of ONS proposal responses",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 6),
		},
	)

	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gendash_imports_total",
			Help: "Scheduled-value imports by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	ScheduledValuesImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gendash_scheduled_values_imported_total",
			Help: "Total scheduled values written by importers",
		},
		[]string{"source"},
	)

	IntervalSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gendash_interval_saves_total",
			Help: "Interval writes by operation",
		},
		[]string{"operation"},
	)

	DashboardRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gendash_dashboard_renders_total",
			Help: "Dashboard page renders by data state",
		},
		[]string{"state"},
	)
)
