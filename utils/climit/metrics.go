package climit

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricLimit = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sophon_climit_limit",
			Help: "Configured maximum number of tokens that can be active at once",
		},
		[]string{"limit_name"},
	)
	metricWaiting = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sophon_climit_waiting",
			Help: "Number of calls waiting to acquire a token",
		},
		[]string{"limit_name"},
	)
	metricActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sophon_climit_active",
			Help: "Number of calls currently holding a token",
		},
		[]string{"limit_name"},
	)
	metricActiveSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sophon_climit_active_seconds",
			Help: "Histogram of how long calls held the token",
		},
		[]string{"limit_name"},
	)
	metricWaitingSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sophon_climit_waiting_seconds",
			Help: "Histogram of how long calls had to wait for a token",
		},
		[]string{"limit_name"},
	)
)

func init() {
	prometheus.MustRegister(metricLimit)
	prometheus.MustRegister(metricWaiting)
	prometheus.MustRegister(metricActive)
	prometheus.MustRegister(metricActiveSeconds)
	prometheus.MustRegister(metricWaitingSeconds)
}
