// Package webhook implements a delivery backend that posts every alert as a
// JSON document to a webhook URL. The {"text": ...} payload is accepted by the
// common chat service incoming webhooks.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/darkforest-tools/sophon/config"
	"github.com/darkforest-tools/sophon/delivery"
)

// Payload is the JSON document posted for every alert
type Payload struct {
	Text string `json:"text"`
}

type Backend struct {
	url string
	hc  *http.Client
	l   logrus.FieldLogger
}

func (b *Backend) Deliver(ctx context.Context, text string) error {
	body, err := json.Marshal(Payload{Text: text})
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.hc.Do(req)
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	// Drain a bit of the body so the connection can be reused
	_, _ = io.CopyN(io.Discard, resp.Body, 4096)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	b.l.WithField("status", resp.StatusCode).Debug("Webhook accepted alert")
	return nil
}

// New returns a webhook Backend posting to url
func New(url string, timeout time.Duration, l logrus.FieldLogger) (*Backend, error) {
	if url == "" {
		return nil, errors.New("webhook url is required")
	}
	return &Backend{
		url: url,
		hc: &http.Client{
			Timeout: timeout,
		},
		l: l,
	}, nil
}

func init() {
	delivery.RegisterBackend("webhook", func(dc config.Delivery, l logrus.FieldLogger) (delivery.Interface, error) {
		return New(dc.Webhook.URL, dc.Timeout, l)
	})
}
