package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sophon_task_cycles_total",
			Help: "Number of task cycles by task and outcome",
		},
		[]string{"task", "action"},
	)
	metricFetchFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sophon_fetch_failed_total",
			Help: "Number of failed source fetches",
		},
		[]string{"source"},
	)
	metricIndexingErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sophon_indexing_errors_total",
			Help: "Number of event snapshots discarded because of indexing errors",
		},
	)
	metricAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sophon_alerts_total",
			Help: "Number of alerts enqueued by rule",
		},
		[]string{"rule"},
	)
	metricDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sophon_deliveries_total",
			Help: "Number of delivery attempts by kind and result",
		},
		[]string{"kind", "result"},
	)
	metricQueueLen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sophon_pending_alerts",
			Help: "Number of alerts waiting for delivery",
		},
	)
	metricLastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sophon_last_success_timestamp_seconds",
			Help: "Time of the last successful task cycle",
		},
		[]string{"task"},
	)
)

func init() {
	prometheus.MustRegister(metricCycles)
	prometheus.MustRegister(metricFetchFailed)
	prometheus.MustRegister(metricIndexingErrors)
	prometheus.MustRegister(metricAlerts)
	prometheus.MustRegister(metricDeliveries)
	prometheus.MustRegister(metricQueueLen)
	prometheus.MustRegister(metricLastSuccess)
}
