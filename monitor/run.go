package monitor

import (
	"context"
	"errors"
	"strconv"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/darkforest-tools/sophon/config/logger"
	"github.com/darkforest-tools/sophon/evaluator"
	"github.com/darkforest-tools/sophon/snapshot"
	"github.com/darkforest-tools/sophon/state"
)

// Tasks returns the periodic tasks of the monitor. The counts reporter is
// omitted when its interval is zero.
func (m *Monitor) Tasks() []Task {
	tasks := []Task{
		m.eventsTask(),
		m.ledgerTask(),
		{
			Name:     TaskDeliver,
			Interval: m.c.Delivery.Interval,
			RunOnce:  m.DeliverOnce,
		},
	}
	if m.c.Sources.Ledger.CountsInterval > 0 {
		tasks = append(tasks, Task{
			Name:     TaskCounts,
			Interval: m.c.Sources.Ledger.CountsInterval,
			RunOnce:  m.ReportCounts,
		})
	}
	return tasks
}

// PollEvents runs a single event log poll cycle
func (m *Monitor) PollEvents(ctx context.Context) error {
	return m.eventsTask().RunOnce(ctx)
}

// PollLedger runs a single ledger poll cycle
func (m *Monitor) PollLedger(ctx context.Context) error {
	return m.ledgerTask().RunOnce(ctx)
}

func (m *Monitor) eventsTask() Task {
	fetch := func(ctx context.Context, marks state.Marks) (snapshot.Events, error) {
		return m.events.FetchEvents(ctx, marks.AchievementRank, marks.ArtifactTier)
	}
	evaluate := func(ev snapshot.Events, marks state.Marks) (evaluator.Result, error) {
		res, err := evaluator.EvaluateEvents(ev, marks)
		if errors.Is(err, evaluator.ErrIndexingErrors) {
			metricIndexingErrors.Inc()
			return res, &indexingError{block: ev.Block.Number}
		}
		return res, err
	}
	return NewPoller(m, TaskEvents, m.c.Sources.EventLog.Interval, fetch, evaluate)
}

func (m *Monitor) ledgerTask() Task {
	fetch := func(ctx context.Context, _ state.Marks) (snapshot.Ledger, error) {
		return m.ledger.FetchMetrics(ctx)
	}
	evaluate := func(l snapshot.Ledger, marks state.Marks) (evaluator.Result, error) {
		return evaluator.EvaluateLedger(l, marks), nil
	}
	return NewPoller(m, TaskLedger, m.c.Sources.Ledger.Interval, fetch, evaluate)
}

// indexingError adds the block number to evaluator.ErrIndexingErrors
type indexingError struct {
	block uint64
}

func (e *indexingError) Error() string {
	return evaluator.ErrIndexingErrors.Error() + " at block " + strconv.FormatUint(e.block, 10)
}

func (e *indexingError) Unwrap() error {
	return evaluator.ErrIndexingErrors
}

// Run runs all tasks until the context is canceled.
//
// With OnlyOnce set, the pollers run a single cycle, after which the queue is
// drained and the counts are reported once. The tasks then run one after the
// other, so that the alerts of this run are delivered by this run.
func (m *Monitor) Run(ctx context.Context) error {
	if m.c.OnlyOnce {
		return m.runOnce(ctx)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, t := range m.Tasks() {
		eg.Go(func() error {
			return t.Run(ctx, m.l, false)
		})
	}
	m.l.Info("All tasks running")
	return eg.Wait()
}

func (m *Monitor) runOnce(ctx context.Context) error {
	for _, t := range m.Tasks() {
		if t.Name == TaskDeliver {
			t.RunOnce = m.Drain
		}
		if err := t.Run(ctx, m.l, true); err != nil {
			return err
		}
	}
	m.l.WithFields(logrus.Fields{
		logger.TaskField: "once",
		"queue_len":      m.QueueLen(),
	}).Info("Single run completed")
	return nil
}
