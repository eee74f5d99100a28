package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/darkforest-tools/sophon/config/logger"
	"github.com/darkforest-tools/sophon/evaluator"
	"github.com/darkforest-tools/sophon/state"
	"github.com/darkforest-tools/sophon/utils"
)

// Task is a periodic task. RunOnce performs a single cycle and must not
// sleep; the task loop does the sleeping.
type Task struct {
	Name     string
	Interval time.Duration
	RunOnce  func(ctx context.Context) error
}

// Run calls RunOnce every Interval until the context is canceled or a cycle
// returns an error classified as ActionFatal. With onlyOnce, a single cycle
// is run.
func (t Task) Run(ctx context.Context, l logrus.FieldLogger, onlyOnce bool) error {
	l = l.WithField(logger.TaskField, t.Name)
	l.WithField("interval", t.Interval).Info("Task started")
	for {
		t0 := time.Now()
		err := t.RunOnce(ctx)
		action := Classify(err)
		switch {
		case err == nil:
			metricCycles.WithLabelValues(t.Name, "ok").Inc()
			metricLastSuccess.WithLabelValues(t.Name).SetToCurrentTime()
			l.WithField("time", utils.TimeDiff(time.Now(), t0)).Debug("Cycle done")
		case action == ActionStop:
			l.Debug("Task canceled")
			return err
		case action == ActionFatal:
			metricCycles.WithLabelValues(t.Name, action.String()).Inc()
			l.WithError(err).Error("Task failed")
			return err
		case action == ActionSkipCycle:
			metricCycles.WithLabelValues(t.Name, action.String()).Inc()
			l.WithError(err).Warn("Cycle skipped")
		default:
			metricCycles.WithLabelValues(t.Name, action.String()).Inc()
			l.WithError(err).Error("Cycle error")
		}

		if onlyOnce {
			l.Info("Task done, because OnlyOnce is set")
			return nil
		}
		if err := utils.SleepContext(ctx, t.Interval); err != nil {
			l.Debug("Task canceled")
			return err
		}
	}
}

// FetchFunc fetches a snapshot. It receives a copy of the current marks so
// that sources can restrict their results to records above a floor.
type FetchFunc[T any] func(ctx context.Context, marks state.Marks) (T, error)

// EvaluateFunc evaluates a snapshot against the current marks
type EvaluateFunc[T any] func(snap T, marks state.Marks) (evaluator.Result, error)

// NewPoller returns a Task that fetches a snapshot every interval and applies
// the evaluation to the state owned by m.
//
// The fetch runs without holding the monitor lock. The evaluation runs under
// the lock against the marks as they are at that moment, so an update made by
// another task while the fetch was in progress is never overwritten.
func NewPoller[T any](m *Monitor, name string, interval time.Duration, fetch FetchFunc[T], evaluate EvaluateFunc[T]) Task {
	return Task{
		Name:     name,
		Interval: interval,
		RunOnce: func(ctx context.Context) error {
			return poll(ctx, m, name, fetch, evaluate)
		},
	}
}

func poll[T any](ctx context.Context, m *Monitor, name string, fetch FetchFunc[T], evaluate EvaluateFunc[T]) error {
	snap, err := fetch(ctx, m.Marks())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metricFetchFailed.WithLabelValues(name).Inc()
		m.fetchHealth(name).AddFailure()
		return &FetchError{Source: name, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.st.Marks
	res, err := evaluate(snap, prev)
	if err != nil {
		if errors.Is(err, evaluator.ErrIndexingErrors) {
			m.fetchHealth(name).AddFailure()
		}
		return err
	}
	m.fetchHealth(name).AddSuccess()
	m.startup.SetPassed(name)
	return m.applyLocked(ctx, name, prev, res)
}
