// Package climit limits the number of concurrent calls to a remote endpoint.
package climit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// New creates a new ConcurrencyLimit with a given limit.
// The name is used as the Prometheus metrics label.
func New(name string, limit int, logger logrus.FieldLogger) *ConcurrencyLimit {
	if logger == nil {
		lr := logrus.New()
		lr.SetLevel(logrus.PanicLevel) // never reached
		logger = lr
	}
	logger = logger.WithField("limit_name", name)
	if limit < 1 {
		logger.Warnf(
			"Increasing concurrency limit from configured %d to minimum of 1", limit)
		limit = 1
	}
	l := &ConcurrencyLimit{
		name: name,
		ch:   make(chan struct{}, limit),
		log:  logger,
	}
	for i := 0; i < limit; i++ {
		l.ch <- struct{}{}
	}
	metricLimit.WithLabelValues(name).Set(float64(limit))
	return l
}

// ConcurrencyLimit enforces a concurrency limit with tokens that need to be
// held while calling.
// A Token is acquired with Acquire() and MUST be released with Token.Release().
type ConcurrencyLimit struct {
	name string
	ch   chan struct{}
	log  logrus.FieldLogger
}

// Acquire blocks until a Token is available or the context is done.
func (cl *ConcurrencyLimit) Acquire(ctx context.Context) (*Token, error) {
	metricWaiting.WithLabelValues(cl.name).Inc()
	defer metricWaiting.WithLabelValues(cl.name).Dec()

	t0 := time.Now()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-cl.ch:
	}
	dt := time.Since(t0)

	metricActive.WithLabelValues(cl.name).Inc()
	metricWaitingSeconds.WithLabelValues(cl.name).Observe(dt.Seconds())
	if dt > time.Second {
		cl.log.WithField("time_to_acquire", dt).Debug("Acquired token after waiting")
	}
	return &Token{cl: cl, time: time.Now()}, nil
}

// Do calls f while holding a Token
func (cl *ConcurrencyLimit) Do(ctx context.Context, f func() error) error {
	t, err := cl.Acquire(ctx)
	if err != nil {
		return err
	}
	defer t.Release()
	return f()
}

// Token allows the holder to proceed with a limited call
type Token struct {
	mu   sync.Mutex
	cl   *ConcurrencyLimit // nil once released
	time time.Time
}

// Release releases the Token.
// It can safely be called more than once, even from different goroutines.
// It returns how long the Token was held, or 0 if it had already been released.
func (t *Token) Release() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cl == nil {
		return 0
	}
	t.cl.ch <- struct{}{}
	dt := time.Since(t.time)
	metricActive.WithLabelValues(t.cl.name).Dec()
	metricActiveSeconds.WithLabelValues(t.cl.name).Observe(dt.Seconds())
	t.cl = nil
	return dt
}
