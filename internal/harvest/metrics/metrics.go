package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RemoteCalls tracks remote API calls per endpoint
	RemoteCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_remote_calls_total",
			Help: "Total number of remote API calls",
		},
		[]string{"endpoint"},
	)

	// RemoteErrors tracks failed remote API calls per endpoint
	RemoteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_remote_errors_total",
			Help: "Total number of failed remote API calls",
		},
		[]string{"endpoint"},
	)

	// RemoteLatency tracks remote call latency, excluding the throttle delay
	RemoteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvester_remote_latency_seconds",
			Help:    "Remote call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// BackoffDelay is the delay that will precede the next remote call
	BackoffDelay = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_backoff_delay_seconds",
			Help: "Current pre-call throttle delay in seconds",
		},
	)

	// UnitsProcessed tracks fetch units by kind and outcome
	UnitsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_units_processed_total",
			Help: "Total number of fetch units processed",
		},
		[]string{"kind", "outcome"},
	)

	// RowsAppended tracks rows merged into local tables
	RowsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvester_rows_appended_total",
			Help: "Total number of rows appended to local tables",
		},
		[]string{"table"},
	)

	// TableRows tracks the current size of each local table
	TableRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harvester_table_rows",
			Help: "Number of rows in each local table",
		},
		[]string{"table"},
	)

	// CallBudgetRemaining tracks the remaining daily call budget
	CallBudgetRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_call_budget_remaining",
			Help: "Remote calls left in today's budget (-1 when unlimited)",
		},
	)

	// StorePoolUsage tracks database connection pool usage percentage
	StorePoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "harvester_store_pool_usage_percent",
			Help: "Percentage of database pool connections in use",
		},
	)
)
