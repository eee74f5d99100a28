// Package ledger reads the scalar universe metrics from the ledger contract
// through a JSON-RPC endpoint.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/darkforest-tools/sophon/config"
	"github.com/darkforest-tools/sophon/snapshot"
	"github.com/darkforest-tools/sophon/utils/climit"
)

const maxResponseSize = 1 << 20

// New returns a Client that calls the configured contract through the
// JSON-RPC endpoint.
func New(lc config.Ledger, l logrus.FieldLogger) (*Client, error) {
	addr, err := normalizeAddress(lc.Contract)
	if err != nil {
		return nil, err
	}
	l = l.WithField("source", "ledger")
	return &Client{
		url:      lc.URL,
		contract: addr,
		hc: &http.Client{
			Timeout: lc.Timeout,
		},
		limit: climit.New("ledger_rpc", lc.MaxConcurrentCalls, l),
		l:     l,
	}, nil
}

// Client performs read-only contract calls
type Client struct {
	url      string
	contract string
	hc       *http.Client
	limit    *climit.ConcurrencyLimit
	l        logrus.FieldLogger
	lastID   atomic.Uint64
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type callParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

type rpcResponse struct {
	ID     uint64    `json:"id"`
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// FetchMetrics reads the world radius and the player count.
func (c *Client) FetchMetrics(ctx context.Context) (snapshot.Ledger, error) {
	radius, err := c.callUint64(ctx, methodWorldRadius)
	if err != nil {
		return snapshot.Ledger{}, err
	}
	players, err := c.callUint64(ctx, methodPlayerCount)
	if err != nil {
		return snapshot.Ledger{}, err
	}
	c.l.WithFields(logrus.Fields{
		"world_radius": radius,
		"players":      players,
	}).Debug("Fetched ledger metrics")
	return snapshot.Ledger{
		WorldRadius: radius,
		PlayerCount: players,
	}, nil
}

// FetchCounts reads the number of initialized objects for every level.
// The calls run concurrently; any failure fails the whole fetch.
func (c *Client) FetchCounts(ctx context.Context) (snapshot.Counts, error) {
	var counts snapshot.Counts
	eg, ctx := errgroup.WithContext(ctx)
	for level := range counts {
		eg.Go(func() error {
			var result string
			err := c.limit.Do(ctx, func() (err error) {
				result, err = c.call(ctx, callData(methodCountByLevel, uint64(level)))
				return err
			})
			if err != nil {
				return errors.Wrapf(err, "level %d", level)
			}
			n, err := decodeLow64(result)
			if err != nil {
				return errors.Wrapf(err, "level %d", level)
			}
			counts[level] = n // each goroutine owns its own index
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return snapshot.Counts{}, err
	}
	return counts, nil
}

func (c *Client) callUint64(ctx context.Context, method string) (uint64, error) {
	result, err := c.call(ctx, callData(method))
	if err != nil {
		return 0, errors.Wrap(err, method)
	}
	v, err := decodeUint64(result)
	if err != nil {
		return 0, errors.Wrap(err, method)
	}
	return v, nil
}

// call performs an eth_call against the latest block and returns the hex
// encoded result.
func (c *Client) call(ctx context.Context, data string) (string, error) {
	id := c.lastID.Inc()
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "eth_call",
		Params: []any{
			callParams{To: c.contract, Data: data},
			"latest",
		},
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "eth_call")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", errors.Wrap(err, "read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rpc endpoint returned status %d", resp.StatusCode)
	}

	var r rpcResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return "", errors.Wrap(err, "decode response")
	}
	if r.Error != nil {
		return "", r.Error
	}
	if r.ID != id {
		return "", fmt.Errorf("rpc response id %d does not match request id %d", r.ID, id)
	}
	return r.Result, nil
}
