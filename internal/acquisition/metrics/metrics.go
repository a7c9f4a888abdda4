package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksTotal tracks finished tasks per destination and terminal status
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farewatch_tasks_total",
			Help: "Total number of tasks by final status",
		},
		[]string{"destination", "status"},
	)

	// AttemptsTotal tracks acquisition attempts by outcome
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farewatch_attempts_total",
			Help: "Total number of acquisition attempts",
		},
		[]string{"outcome"},
	)

	// AttemptDuration tracks how long a browser attempt takes
	AttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "farewatch_attempt_duration_seconds",
			Help:    "Acquisition attempt duration in seconds",
			Buckets: []float64{1, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"outcome"},
	)

	// RecordsExtracted tracks records persisted per destination
	RecordsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farewatch_records_extracted_total",
			Help: "Total number of records extracted and stored",
		},
		[]string{"destination"},
	)

	// ProxiesByState tracks the size of the active and blacklisted sets
	ProxiesByState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "farewatch_proxies",
			Help: "Number of proxies in each pool state",
		},
		[]string{"state"},
	)

	// ProxyBlacklistTotal tracks proxy demotions
	ProxyBlacklistTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farewatch_proxy_blacklist_total",
			Help: "Total number of times a proxy was blacklisted",
		},
		[]string{"proxy"},
	)

	// ProxyProbeTotal tracks health probe results
	ProxyProbeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farewatch_proxy_probe_total",
			Help: "Total number of proxy health probes",
		},
		[]string{"result"},
	)

	// StoreWriteErrors tracks failed artifact writes
	StoreWriteErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farewatch_store_write_errors_total",
			Help: "Total number of failed result store writes",
		},
		[]string{"store"},
	)

	// DBConnectionPoolUsage tracks the percentage of DB connections in use
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "farewatch_db_connection_pool_usage_percent",
			Help: "Percentage of database connection pool in use",
		},
	)
)
