// Package delivery defines the outbound alert channel and a registry of
// delivery backends selected by the delivery.type config option.
package delivery

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/darkforest-tools/sophon/config"
)

// Interface defines the interface delivery backends need to implement.
// Deliver must return nil only when the text was accepted by the channel.
type Interface interface {
	Deliver(ctx context.Context, text string) error
}

// Closer is implemented by backends that hold connections
type Closer interface {
	Close() error
}

// Error is returned for every failed delivery attempt. The alert stays at the
// head of the queue and is retried on the next pump cycle.
type Error struct {
	Backend string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("deliver via %s: %v", e.Backend, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type InitFunc func(dc config.Delivery, l logrus.FieldLogger) (Interface, error)

var backends = make(map[string]InitFunc)

func RegisterBackend(typeName string, initFunc InitFunc) {
	backends[typeName] = initFunc
}

// Backends returns the sorted names of all registered backends
func Backends() []string {
	names := lo.Keys(backends)
	sort.Strings(names)
	return names
}

// GetBackend creates the backend configured in dc. The returned backend
// applies the configured timeout to every attempt and wraps failures in *Error.
func GetBackend(dc config.Delivery, l logrus.FieldLogger) (*Backend, error) {
	if dc.Type == "" {
		return nil, fmt.Errorf("no delivery.type configured")
	}
	initFunc, exists := backends[dc.Type]
	if !exists {
		return nil, fmt.Errorf("delivery.type %q not found or registered (available: %v)",
			dc.Type, Backends())
	}
	impl, err := initFunc(dc, l.WithField("delivery", dc.Type))
	if err != nil {
		return nil, fmt.Errorf("delivery.type %q: %w", dc.Type, err)
	}
	return Wrap(dc.Type, impl, dc), nil
}

// Wrap returns a Backend for an already constructed implementation
func Wrap(name string, impl Interface, dc config.Delivery) *Backend {
	return &Backend{
		name:    name,
		impl:    impl,
		timeout: dc.Timeout,
	}
}

// Backend is a named delivery backend. Calls to Deliver are serialized, so
// at most one alert is in flight at any time.
type Backend struct {
	mu      sync.Mutex
	name    string
	impl    Interface
	timeout time.Duration
}

// Name returns the backend type name
func (b *Backend) Name() string {
	return b.name
}

// Deliver sends one alert text. A failure is always an *Error.
func (b *Backend) Deliver(ctx context.Context, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	if err := b.impl.Deliver(ctx, text); err != nil {
		return &Error{Backend: b.name, Err: err}
	}
	return nil
}

// Close closes the underlying backend if it holds resources
func (b *Backend) Close() error {
	if c, ok := b.impl.(Closer); ok {
		return c.Close()
	}
	return nil
}
