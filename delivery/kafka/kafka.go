// Package kafka implements a delivery backend that publishes every alert as
// a message to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/darkforest-tools/sophon/config"
	"github.com/darkforest-tools/sophon/delivery"
)

// Message is the JSON value of every published message
type Message struct {
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// writer is the subset of *kafka.Writer used by the Backend
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Backend struct {
	w     writer
	topic string
	l     logrus.FieldLogger
	now   func() time.Time
}

func (b *Backend) Deliver(ctx context.Context, text string) error {
	value, err := json.Marshal(Message{Text: text, Time: b.now().UTC()})
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}
	if err := b.w.WriteMessages(ctx, kafka.Message{Value: value}); err != nil {
		return errors.Wrapf(err, "write to topic %s", b.topic)
	}
	b.l.WithField("topic", b.topic).Debug("Published alert")
	return nil
}

func (b *Backend) Close() error {
	return b.w.Close()
}

// New returns a Backend publishing to topic on the given brokers. The
// connection is established lazily on the first delivery.
func New(kc config.Kafka, timeout time.Duration, l logrus.FieldLogger) (*Backend, error) {
	if len(kc.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if kc.Topic == "" {
		return nil, errors.New("topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(kc.Brokers...),
		Topic:        kc.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: timeout,
		// One alert at a time, so do not wait for a batch to fill up
		BatchSize: 1,
	}
	return newWithWriter(w, kc.Topic, l), nil
}

func newWithWriter(w writer, topic string, l logrus.FieldLogger) *Backend {
	return &Backend{
		w:     w,
		topic: topic,
		l:     l,
		now:   time.Now,
	}
}

func init() {
	delivery.RegisterBackend("kafka", func(dc config.Delivery, l logrus.FieldLogger) (delivery.Interface, error) {
		return New(dc.Kafka, dc.Timeout, l)
	})
}
