package state

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sophon_state_loads_total",
			Help: "Number of state loads by result",
		},
		[]string{"result"},
	)
	metricSaves = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sophon_state_saves_total",
			Help: "Number of state save calls",
		},
	)
	metricSaveFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sophon_state_save_failed_total",
			Help: "Number of failed state saves",
		},
	)
)

func init() {
	prometheus.MustRegister(metricLoads)
	prometheus.MustRegister(metricSaves)
	prometheus.MustRegister(metricSaveFailed)
}
