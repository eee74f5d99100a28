// Package logsink implements a delivery backend that writes alerts to the log.
// It is the default backend and useful for dry runs.
package logsink

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/darkforest-tools/sophon/config"
	"github.com/darkforest-tools/sophon/delivery"
)

type Backend struct {
	l logrus.FieldLogger
}

func (b *Backend) Deliver(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.l.WithField("text", text).Info("ALERT")
	return nil
}

func New(l logrus.FieldLogger) *Backend {
	return &Backend{l: l}
}

func init() {
	delivery.RegisterBackend("log", func(dc config.Delivery, l logrus.FieldLogger) (delivery.Interface, error) {
		return New(l), nil
	})
}
