package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Check())
	assert.Equal(t, DefaultStateBlobName, c.State.BlobName)
	assert.Equal(t, 10*time.Minute, c.Sources.EventLog.Interval)
	assert.Equal(t, time.Hour, c.Sources.Ledger.Interval)
	assert.Equal(t, 5*time.Minute, c.Delivery.Interval)
}

const testYAML = `
state:
  blob_name: test-state.json
storage:
  type: memory
sources:
  eventlog:
    url: https://graph.example.com/subgraphs/df
    interval: 1m
  ledger:
    url: ${TEST_SOPHON_RPC}
    contract: "0x0000000000000000000000000000000000000001"
    counts_interval: 0s
delivery:
  type: webhook
  prefix: ""
  webhook:
    url: https://hooks.example.com/services/T000/B000/secret
http:
  address: ":8500"
log:
  level: debug
`

func TestLoadYAML(t *testing.T) {
	t.Setenv("TEST_SOPHON_RPC", "https://rpc.example.com")

	c := Default()
	require.NoError(t, c.LoadYAML([]byte(testYAML), true))
	require.NoError(t, c.Check())

	assert.Equal(t, "test-state.json", c.State.BlobName)
	assert.Equal(t, "memory", c.Storage.Type)
	assert.Equal(t, time.Minute, c.Sources.EventLog.Interval)
	assert.Equal(t, 30*time.Second, c.Sources.EventLog.Timeout, "omitted keys keep their defaults")
	assert.Equal(t, "https://rpc.example.com", c.Sources.Ledger.URL)
	assert.Equal(t, time.Duration(0), c.Sources.Ledger.CountsInterval)
	assert.Equal(t, "", c.Delivery.Prefix)
	assert.Equal(t, "#darkforest", c.Delivery.Suffix)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoadYAMLStrict(t *testing.T) {
	c := Default()
	assert.Error(t, c.LoadYAML([]byte("unknown_key: 1\n"), false))
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	fpath := filepath.Join(dir, "sophon.yaml")
	require.NoError(t, os.WriteFile(fpath, []byte("delivery:\n  interval: 1m\n"), 0o644))

	c := Default()
	require.NoError(t, c.LoadYAMLFile(fpath, false))
	assert.Equal(t, time.Minute, c.Delivery.Interval)

	err := c.LoadYAMLFile(filepath.Join(dir, "missing.yaml"), false)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		errStr string
	}{
		{"empty blob name", func(c *Config) { c.State.BlobName = "" }, "state.blob_name"},
		{"slash in blob name", func(c *Config) { c.State.BlobName = "a/b" }, "state.blob_name"},
		{"no storage", func(c *Config) { c.Storage.Type = "" }, "storage.type"},
		{"bad eventlog url", func(c *Config) { c.Sources.EventLog.URL = "ftp://x" }, "sources.eventlog.url"},
		{"no ledger url", func(c *Config) { c.Sources.Ledger.URL = "" }, "sources.ledger.url"},
		{"bad contract", func(c *Config) { c.Sources.Ledger.Contract = "0x1234" }, "sources.ledger.contract"},
		{"fast poll", func(c *Config) { c.Sources.EventLog.Interval = time.Millisecond }, "sources.eventlog.interval"},
		{"fast counts", func(c *Config) { c.Sources.Ledger.CountsInterval = time.Millisecond }, "counts_interval"},
		{"no ledger concurrency", func(c *Config) { c.Sources.Ledger.MaxConcurrentCalls = 0 }, "max_concurrent_calls"},
		{"no delivery", func(c *Config) { c.Delivery.Type = "" }, "delivery.type"},
		{"webhook without url", func(c *Config) { c.Delivery.Type = "webhook" }, "delivery.webhook.url"},
		{"kafka without brokers", func(c *Config) {
			c.Delivery.Type = "kafka"
			c.Delivery.Kafka.Topic = "alerts"
		}, "delivery.kafka.brokers"},
		{"kafka without topic", func(c *Config) {
			c.Delivery.Type = "kafka"
			c.Delivery.Kafka.Brokers = []string{"localhost:9092"}
		}, "delivery.kafka.topic"},
		{"bad http address", func(c *Config) { c.HTTP.Address = "8500" }, "http.address"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			assert.ErrorContains(t, c.Check(), tt.errStr)
		})
	}
}

func TestStringMasksWebhookURL(t *testing.T) {
	c := Default()
	c.Delivery.Webhook.URL = "https://hooks.example.com/services/T000/B000/secret"
	s := c.String()
	assert.NotContains(t, s, "secret")
	assert.Contains(t, s, "https://hooks.example.com/***")
	assert.Equal(t, "https://hooks.example.com/services/T000/B000/secret", c.Delivery.Webhook.URL,
		"String does not modify the config")
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("SOPHON_DELIVERY_URL", "https://hooks.example.com/env")
	t.Setenv("SOPHON_LEDGER_URL", "https://rpc.example.com/env")
	t.Setenv("SOPHON_KAFKA_BROKERS", "k1:9092,k2:9092")

	c := Default()
	require.NoError(t, c.LoadEnv())
	assert.Equal(t, "https://hooks.example.com/env", c.Delivery.Webhook.URL)
	assert.Equal(t, "https://rpc.example.com/env", c.Sources.Ledger.URL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Delivery.Kafka.Brokers)
	assert.Equal(t, Default().Sources.EventLog.URL, c.Sources.EventLog.URL, "unset variables change nothing")
}
