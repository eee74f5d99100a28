package monitor

import (
	"context"

	"github.com/darkforest-tools/sophon/config/logger"
	"github.com/darkforest-tools/sophon/evaluator"
)

// ReportCounts fetches the per-level totals from the ledger and delivers a
// summary directly, without going through the alert queue. A failed report
// is not retried before the next scheduled run.
func (m *Monitor) ReportCounts(ctx context.Context) error {
	counts, err := m.ledger.FetchCounts(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metricFetchFailed.WithLabelValues(TaskCounts).Inc()
		return &FetchError{Source: TaskCounts, Err: err}
	}

	text := m.Decorate(evaluator.FormatCounts(counts))
	if err := m.delivery.Deliver(ctx, text); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metricDeliveries.WithLabelValues("counts", "failed").Inc()
		return err
	}
	metricDeliveries.WithLabelValues("counts", "ok").Inc()
	m.l.WithField(logger.TaskField, TaskCounts).WithField("counts", counts).Info("Counts reported")
	return nil
}
