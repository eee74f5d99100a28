package utils

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const MonitoredMutexDefaultLimit = time.Second

var metricLockHeld = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "sophon_lock_held_seconds",
		Help:    "Time a monitored lock was held",
		Buckets: []float64{.001, .01, .1, .5, 1, 5, 30, 120},
	},
	[]string{"lock"},
)

func init() {
	prometheus.MustRegister(metricLockHeld)
}

// MonitoredMutex warns on unlocking when a lock was held too long, and
// records every hold time in a histogram.
// Locks guarding remote calls (like the delivery pump) are expected to take
// longer, so the Limit can be raised per mutex.
type MonitoredMutex struct {
	mu       sync.Mutex
	lockTime time.Time

	Logger logrus.FieldLogger
	Name   string
	Limit  time.Duration // defaults to MonitoredMutexDefaultLimit
}

func (m *MonitoredMutex) Lock() {
	m.mu.Lock()
	m.lockTime = time.Now()
}

func (m *MonitoredMutex) Unlock() {
	timeHeld := time.Since(m.lockTime)
	m.lockTime = time.Time{}
	m.mu.Unlock()

	metricLockHeld.WithLabelValues(m.Name).Observe(timeHeld.Seconds())

	limit := m.Limit
	if limit <= 0 {
		limit = MonitoredMutexDefaultLimit
	}
	if timeHeld > limit {
		// No panic, because time jumps, paused processes and slow remote
		// endpoints may cause spikes.
		var caller string
		pc, fileName, fileLine, ok := runtime.Caller(1)
		if ok {
			details := runtime.FuncForPC(pc)
			if details != nil {
				caller = fmt.Sprintf("%s:%d (%s)", fileName, fileLine, details.Name())
			}
		}
		m.logger().WithFields(logrus.Fields{
			"lock_held": timeHeld.Round(time.Millisecond),
			"limit":     limit,
			"lock_name": m.Name,
			"caller":    caller,
		}).Warn("Lock time limit exceeded")
	}
}

func (m *MonitoredMutex) logger() logrus.FieldLogger {
	if m.Logger != nil {
		return m.Logger
	}
	return logrus.StandardLogger()
}
