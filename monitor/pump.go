package monitor

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/darkforest-tools/sophon/config/logger"
	"github.com/darkforest-tools/sophon/utils"
)

// DeliverOnce attempts to deliver the head of the alert queue. On success the
// head is removed and the state persisted. On failure the queue is left
// untouched and the same alert is attempted again on the next call, so a
// permanently failing alert blocks all alerts behind it.
func (m *Monitor) DeliverOnce(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	text, ok := m.st.Head()
	if !ok {
		return nil
	}
	l := m.l.WithFields(logrus.Fields{
		logger.TaskField: TaskDeliver,
		"alert":          utils.DisplayText(text, 140),
	})

	if err := m.delivery.Deliver(ctx, text); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		metricDeliveries.WithLabelValues("alert", "failed").Inc()
		m.deliveryHealth.AddFailure()
		return err
	}
	metricDeliveries.WithLabelValues("alert", "ok").Inc()
	m.deliveryHealth.AddSuccess()

	m.st.PopHead()
	l.WithField("queue_len", m.st.QueueLen()).Info("Alert delivered")
	return m.saveLocked(ctx)
}

// Drain calls DeliverOnce until the queue is empty or a delivery fails.
func (m *Monitor) Drain(ctx context.Context) error {
	for m.QueueLen() > 0 {
		if utils.IsCanceled(ctx) {
			return ctx.Err()
		}
		if err := m.DeliverOnce(ctx); err != nil {
			return err
		}
	}
	return nil
}

// QueueLen returns the number of pending alerts
func (m *Monitor) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.QueueLen()
}
