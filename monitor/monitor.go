// Package monitor owns the monitor state and runs the periodic tasks that
// feed and drain it: the event log and ledger pollers, the delivery pump and
// the aggregate counts reporter.
//
// All state access is serialized by a single lock. Pollers fetch without
// holding the lock and only take it to evaluate, mutate and persist. The
// delivery pump holds it for the duration of one delivery attempt, so at most
// one queued alert is in flight at any time.
package monitor

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/darkforest-tools/sophon/config"
	"github.com/darkforest-tools/sophon/config/logger"
	"github.com/darkforest-tools/sophon/delivery"
	"github.com/darkforest-tools/sophon/evaluator"
	"github.com/darkforest-tools/sophon/snapshot"
	"github.com/darkforest-tools/sophon/state"
	"github.com/darkforest-tools/sophon/status/healthtracker"
	"github.com/darkforest-tools/sophon/status/starttracker"
	"github.com/darkforest-tools/sophon/utils"
)

// Task names, also used as source names in metrics and health trackers
const (
	TaskEvents  = "eventlog"
	TaskLedger  = "ledger"
	TaskDeliver = "deliver"
	TaskCounts  = "counts"

	// PhaseLoad is the startup phase that loads the persisted state
	PhaseLoad = "load"
)

// EventSource fetches event log snapshots
type EventSource interface {
	FetchEvents(ctx context.Context, minRank, minTier uint64) (snapshot.Events, error)
}

// LedgerSource fetches ledger snapshots
type LedgerSource interface {
	FetchMetrics(ctx context.Context) (snapshot.Ledger, error)
	FetchCounts(ctx context.Context) (snapshot.Counts, error)
}

// Options are the collaborators of a Monitor. The health trackers are optional.
type Options struct {
	Events   EventSource
	Ledger   LedgerSource
	Store    *state.Store
	Delivery *delivery.Backend

	FetchHealth    map[string]*healthtracker.HealthTracker // by source name
	DeliveryHealth *healthtracker.HealthTracker
	Startup        *starttracker.StartTracker

	Logger logrus.FieldLogger
}

// New creates a Monitor with an empty state. Call Load before running it.
func New(c config.Config, opt Options) *Monitor {
	l := opt.Logger
	if l == nil {
		l = logrus.StandardLogger()
	}
	m := &Monitor{
		c:              c,
		events:         opt.Events,
		ledger:         opt.Ledger,
		store:          opt.Store,
		delivery:       opt.Delivery,
		fetchTrackers:  opt.FetchHealth,
		deliveryHealth: opt.DeliveryHealth,
		startup:        opt.Startup,
		l:              l,
	}
	m.mu.Logger = l
	m.mu.Name = "monitor"
	// The pump holds the lock during a delivery attempt
	m.mu.Limit = c.Delivery.Timeout + utils.MonitoredMutexDefaultLimit
	return m
}

// Monitor owns the MonitorState
type Monitor struct {
	c        config.Config
	events   EventSource
	ledger   LedgerSource
	store    *state.Store
	delivery *delivery.Backend

	fetchTrackers  map[string]*healthtracker.HealthTracker
	deliveryHealth *healthtracker.HealthTracker
	startup        *starttracker.StartTracker

	l logrus.FieldLogger

	mu utils.MonitoredMutex // protects the fields below
	st state.MonitorState
}

// Load replaces the in-memory state with the persisted state
func (m *Monitor) Load(ctx context.Context) {
	ms := m.store.Load(ctx)
	m.mu.Lock()
	m.st = ms
	metricQueueLen.Set(float64(m.st.QueueLen()))
	m.mu.Unlock()
	m.startup.SetPassed(PhaseLoad)
}

// Marks returns a copy of the current high-water marks
func (m *Monitor) Marks() state.Marks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Marks
}

// Snapshot returns a deep copy of the current state
func (m *Monitor) Snapshot() state.MonitorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Clone()
}

// Enqueue appends texts to the alert queue as they are and persists the state.
func (m *Monitor) Enqueue(ctx context.Context, texts ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.Enqueue(texts...)
	return m.saveLocked(ctx)
}

// Decorate adds the configured prefix and suffix to an alert text
func (m *Monitor) Decorate(text string) string {
	return Decorate(m.c.Delivery, text)
}

// Decorate adds the prefix and suffix of dc to an alert text
func Decorate(dc config.Delivery, text string) string {
	parts := lo.Compact([]string{dc.Prefix, text, dc.Suffix})
	return strings.Join(parts, " ")
}

// applyLocked enqueues the alerts of an evaluation and advances the marks.
// The state is only persisted if something changed.
func (m *Monitor) applyLocked(ctx context.Context, task string, prev state.Marks, res evaluator.Result) error {
	if !res.Changed(prev) {
		return nil
	}
	l := m.l.WithField(logger.TaskField, task)

	marks := prev.Advance(res.Marks)
	if marks != res.Marks {
		l.WithFields(logrus.Fields{
			"previous":  prev,
			"evaluated": res.Marks,
		}).Error("Evaluation moved marks backwards, keeping the highest values")
	}

	for _, a := range res.Alerts {
		text := m.Decorate(a.Text)
		m.st.Enqueue(text)
		metricAlerts.WithLabelValues(a.Rule).Inc()
		l.WithFields(logrus.Fields{
			"rule":      a.Rule,
			"alert":     utils.DisplayText(text, 140),
			"queue_len": m.st.QueueLen(),
		}).Info("Alert enqueued")
	}
	m.st.Marks = marks
	return m.saveLocked(ctx)
}

// saveLocked persists the state. A shutdown in progress does not interrupt
// the write.
func (m *Monitor) saveLocked(ctx context.Context) error {
	metricQueueLen.Set(float64(m.st.QueueLen()))
	return m.store.Save(context.WithoutCancel(ctx), m.st)
}

func (m *Monitor) fetchHealth(source string) *healthtracker.HealthTracker {
	return m.fetchTrackers[source]
}
