package ledger

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkforest-tools/sophon/config"
	"github.com/darkforest-tools/sophon/snapshot"
)

const testContract = "0x678ACb78948Be7F354B28DaAb79B1ABD81574c1B"

func testConfig(url string) config.Ledger {
	return config.Ledger{
		URL:                url,
		Contract:           testContract,
		Timeout:            5 * time.Second,
		MaxConcurrentCalls: 3,
	}
}

func word(v uint64) string {
	return fmt.Sprintf("0x%064x", v)
}

type rpcHandler func(method string, args []byte) (result string, rpcErr *rpcError)

func newRPCServer(t *testing.T, h rpcHandler) *httptest.Server {
	radius := "0x" + hex.EncodeToString(selector(methodWorldRadius))
	players := "0x" + hex.EncodeToString(selector(methodPlayerCount))
	counts := "0x" + hex.EncodeToString(selector(methodCountByLevel))

	var mu sync.Mutex
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "eth_call", req.Method)
		if !assert.Len(t, req.Params, 2) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var p callParams
		assert.NoError(t, json.Unmarshal(req.Params[0], &p))
		assert.Equal(t, strings.ToLower(testContract), p.To)

		var method string
		switch {
		case strings.HasPrefix(p.Data, radius):
			method = methodWorldRadius
		case strings.HasPrefix(p.Data, players):
			method = methodPlayerCount
		case strings.HasPrefix(p.Data, counts):
			method = methodCountByLevel
		default:
			t.Errorf("unexpected call data %s", p.Data)
		}
		args, err := hex.DecodeString(p.Data[len(radius):])
		assert.NoError(t, err)

		mu.Lock()
		result, rpcErr := h(method, args)
		mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestSelector(t *testing.T) {
	assert.Equal(t, "a9059cbb", hex.EncodeToString(selector("transfer(address,uint256)")))
}

func TestFetchMetrics(t *testing.T) {
	ts := newRPCServer(t, func(method string, args []byte) (string, *rpcError) {
		switch method {
		case methodWorldRadius:
			return word(12345), nil
		case methodPlayerCount:
			return word(42), nil
		}
		return "", &rpcError{Code: -32000, Message: "unexpected"}
	})

	c, err := New(testConfig(ts.URL), logrus.New())
	require.NoError(t, err)
	l, err := c.FetchMetrics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snapshot.Ledger{WorldRadius: 12345, PlayerCount: 42}, l)
}

func TestFetchMetricsOverflow(t *testing.T) {
	ts := newRPCServer(t, func(method string, args []byte) (string, *rpcError) {
		return "0x" + strings.Repeat("f", 64), nil
	})
	c, err := New(testConfig(ts.URL), logrus.New())
	require.NoError(t, err)
	_, err = c.FetchMetrics(context.Background())
	assert.ErrorContains(t, err, "overflows")
}

func TestFetchMetricsRPCError(t *testing.T) {
	ts := newRPCServer(t, func(method string, args []byte) (string, *rpcError) {
		return "", &rpcError{Code: -32000, Message: "execution reverted"}
	})
	c, err := New(testConfig(ts.URL), logrus.New())
	require.NoError(t, err)
	_, err = c.FetchMetrics(context.Background())
	assert.ErrorContains(t, err, "execution reverted")
}

func TestFetchCounts(t *testing.T) {
	ts := newRPCServer(t, func(method string, args []byte) (string, *rpcError) {
		if method != methodCountByLevel || len(args) != wordSize {
			return "", &rpcError{Code: -32602, Message: "invalid params"}
		}
		level := uint64(args[wordSize-1])
		return word(1000 - level*100), nil
	})

	c, err := New(testConfig(ts.URL), logrus.New())
	require.NoError(t, err)
	counts, err := c.FetchCounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snapshot.Counts{1000, 900, 800, 700, 600, 500, 400, 300}, counts)
}

func TestFetchCountsPartialFailure(t *testing.T) {
	ts := newRPCServer(t, func(method string, args []byte) (string, *rpcError) {
		if args[wordSize-1] == 5 {
			return "", &rpcError{Code: -32000, Message: "header not found"}
		}
		return word(1), nil
	})

	c, err := New(testConfig(ts.URL), logrus.New())
	require.NoError(t, err)
	counts, err := c.FetchCounts(context.Background())
	assert.ErrorContains(t, err, "level 5")
	assert.Equal(t, snapshot.Counts{}, counts)
}

func TestNewInvalidContract(t *testing.T) {
	lc := testConfig("http://localhost")
	lc.Contract = "0x1234"
	_, err := New(lc, logrus.New())
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	v, err := decodeUint64(word(7))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), v)

	// Only the low 64 bits are kept for level counts
	v, err = decodeLow64("0x" + strings.Repeat("0", 46) + "01" + fmt.Sprintf("%016x", uint64(9)))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v)

	_, err = decodeUint64("0x01")
	assert.Error(t, err)
	_, err = decodeUint64("0xzz")
	assert.Error(t, err)
}
