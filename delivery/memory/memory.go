// Package memory implements a delivery backend that keeps the delivered
// alerts in memory. Failures can be injected for testing.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/darkforest-tools/sophon/config"
	"github.com/darkforest-tools/sophon/delivery"
)

// ErrInjected is returned by Deliver while failures are pending
var ErrInjected = errors.New("injected delivery failure")

type Backend struct {
	mu        sync.Mutex
	delivered []string

	failures atomic.Int32
	attempts atomic.Int32
}

// FailNext makes the next n delivery attempts fail
func (b *Backend) FailNext(n int) {
	b.failures.Store(int32(n))
}

func (b *Backend) Deliver(ctx context.Context, text string) error {
	b.attempts.Inc()
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.takeFailure() {
		return ErrInjected
	}
	b.mu.Lock()
	b.delivered = append(b.delivered, text)
	b.mu.Unlock()
	return nil
}

func (b *Backend) takeFailure() bool {
	for {
		n := b.failures.Load()
		if n <= 0 {
			return false
		}
		if b.failures.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// Delivered returns a copy of all texts delivered so far, in order
func (b *Backend) Delivered() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.delivered...)
}

// Attempts returns the number of Deliver calls, including failed ones
func (b *Backend) Attempts() int {
	return int(b.attempts.Load())
}

func New() *Backend {
	return &Backend{}
}

func init() {
	delivery.RegisterBackend("memory", func(dc config.Delivery, l logrus.FieldLogger) (delivery.Interface, error) {
		return New(), nil
	})
}
