// Package config implements the YAML config file parser
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/darkforest-tools/sophon/config/logger"
)

// MinPollInterval is the shortest interval allowed for any periodic task.
// The sources are public rate-limited services, so polling faster than this
// is almost certainly a configuration mistake.
const MinPollInterval = 100 * time.Millisecond

// DefaultStateBlobName is the name of the blob holding the persisted monitor state
const DefaultStateBlobName = "sophon-state.json"

// Config is the config root object
type Config struct {
	State    State         `yaml:"state"`
	Storage  Storage       `yaml:"storage"`
	Sources  Sources       `yaml:"sources"`
	Delivery Delivery      `yaml:"delivery"`
	HTTP     HTTP          `yaml:"http"`
	Health   Health        `yaml:"health"`
	Log      logger.Config `yaml:"log"`

	// OnlyOnce makes every periodic task run a single time before exiting.
	// Set by the --only-once flag.
	OnlyOnce bool `yaml:"only_once"`

	// Set to current version by main
	Version string `yaml:"-"`
}

// State configures where the monitor state is persisted
type State struct {
	BlobName string `yaml:"blob_name"`
}

// Storage configures the simpleblob backend used for state persistence
type Storage struct {
	Type    string                 `yaml:"type"`
	Options map[string]interface{} `yaml:"options"`
}

// Sources configures the two remote snapshot sources
type Sources struct {
	EventLog EventLog `yaml:"eventlog"`
	Ledger   Ledger   `yaml:"ledger"`
}

// EventLog configures the indexed event-log (GraphQL) source
type EventLog struct {
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Ledger configures the ledger contract (JSON-RPC) source
type Ledger struct {
	URL            string        `yaml:"url"`
	Contract       string        `yaml:"contract"` // hex address, with or without 0x
	Interval       time.Duration `yaml:"interval"`
	CountsInterval time.Duration `yaml:"counts_interval"` // 0 disables the counts report
	Timeout        time.Duration `yaml:"timeout"`
	// MaxConcurrentCalls limits the parallel contract calls of a counts fetch
	MaxConcurrentCalls int `yaml:"max_concurrent_calls"`
}

// Delivery configures the outbound alert channel
type Delivery struct {
	Type     string        `yaml:"type"` // One of the registered delivery backends
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Prefix   string        `yaml:"prefix"` // Prepended to every alert text
	Suffix   string        `yaml:"suffix"` // Appended to every alert text
	Webhook  Webhook       `yaml:"webhook"`
	Kafka    Kafka         `yaml:"kafka"`
}

// Webhook configures the webhook delivery backend
type Webhook struct {
	URL string `yaml:"url"`
}

// Kafka configures the kafka delivery backend
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// HTTP configures the HTTP server with Prometheus metrics and status page
type HTTP struct {
	Address string `yaml:"address"` // Address like ":8500"
}

// Health configures the healthz trackers
type Health struct {
	Fetch    HealthTracker `yaml:"fetch"`
	Delivery HealthTracker `yaml:"delivery"`
	Startup  StartTracker  `yaml:"startup"`
}

// HealthTracker configures when consecutive failures turn into healthz warnings
// or errors.
type HealthTracker struct {
	ErrorDuration      time.Duration `yaml:"error_duration"`
	WarnDuration       time.Duration `yaml:"warn_duration"`
	ErrorSequence      uint32        `yaml:"error_sequence"`
	WarnSequence       uint32        `yaml:"warn_sequence"`
	EvaluationInterval time.Duration `yaml:"interval"`
}

// StartTracker configures the startup phase tracker
type StartTracker struct {
	EvaluationInterval time.Duration `yaml:"interval"`
	ErrorDuration      time.Duration `yaml:"error_duration"`
	WarnDuration       time.Duration `yaml:"warn_duration"`
	ReportHealthz      bool          `yaml:"report_healthz"`
	ReportMetadata     bool          `yaml:"report_metadata"`
}

// EnvOverrides holds settings that are usually secret and therefore
// preferably passed through the environment instead of the config file.
type EnvOverrides struct {
	DeliveryURL  string   `env:"SOPHON_DELIVERY_URL"`
	EventLogURL  string   `env:"SOPHON_EVENTLOG_URL"`
	LedgerURL    string   `env:"SOPHON_LEDGER_URL"`
	KafkaBrokers []string `env:"SOPHON_KAFKA_BROKERS" envSeparator:","`
}

// Check validates a Config instance
func (c Config) Check() error {
	if err := c.Log.Check(); err != nil {
		return err
	}
	if c.State.BlobName == "" {
		return fmt.Errorf("state.blob_name: must not be empty")
	}
	if strings.Contains(c.State.BlobName, "/") {
		return fmt.Errorf("state.blob_name: must not contain a slash")
	}
	if c.Storage.Type == "" {
		return fmt.Errorf("storage.type: must be set")
	}
	if err := checkURL("sources.eventlog.url", c.Sources.EventLog.URL); err != nil {
		return err
	}
	if err := checkURL("sources.ledger.url", c.Sources.Ledger.URL); err != nil {
		return err
	}
	contract := strings.TrimPrefix(c.Sources.Ledger.Contract, "0x")
	if len(contract) != 40 {
		return fmt.Errorf("sources.ledger.contract: expected a 20 byte hex address, got %q",
			c.Sources.Ledger.Contract)
	}
	if c.Sources.EventLog.Interval < MinPollInterval {
		return fmt.Errorf("sources.eventlog.interval: too short interval")
	}
	if c.Sources.Ledger.Interval < MinPollInterval {
		return fmt.Errorf("sources.ledger.interval: too short interval")
	}
	if c.Sources.Ledger.CountsInterval != 0 && c.Sources.Ledger.CountsInterval < MinPollInterval {
		return fmt.Errorf("sources.ledger.counts_interval: too short interval")
	}
	if c.Sources.Ledger.MaxConcurrentCalls < 1 {
		return fmt.Errorf("sources.ledger.max_concurrent_calls: must be at least 1")
	}
	if c.Delivery.Type == "" {
		return fmt.Errorf("delivery.type: must be set")
	}
	if c.Delivery.Interval < MinPollInterval {
		return fmt.Errorf("delivery.interval: too short interval")
	}
	switch c.Delivery.Type {
	case "webhook":
		if err := checkURL("delivery.webhook.url", c.Delivery.Webhook.URL); err != nil {
			return err
		}
	case "kafka":
		if len(c.Delivery.Kafka.Brokers) == 0 {
			return fmt.Errorf("delivery.kafka.brokers: at least one broker is required")
		}
		if c.Delivery.Kafka.Topic == "" {
			return fmt.Errorf("delivery.kafka.topic: must be set")
		}
	}
	if c.HTTP.Address != "" {
		if _, _, err := net.SplitHostPort(c.HTTP.Address); err != nil {
			return fmt.Errorf("http.address: %v", err)
		}
	}
	return nil
}

func checkURL(name, s string) error {
	if s == "" {
		return fmt.Errorf("%s: must be set", name)
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("%s: %v", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s: must be a http or https URL", name)
	}
	return nil
}

// String returns the config as a YAML string with secrets masked.
func (c Config) String() string {
	if c.Delivery.Webhook.URL != "" {
		c.Delivery.Webhook.URL = maskURL(c.Delivery.Webhook.URL)
	}
	y, err := yaml.Marshal(c)
	if err != nil {
		logrus.Panicf("YAML marshal of config failed: %v", err) // Should never happen
	}
	return string(y)
}

// maskURL hides the path and query of a URL, which for webhooks usually
// contain the access token.
func maskURL(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Scheme + "://" + u.Host + "/***"
}

// LoadYAML loads config from YAML. Any set value overwrites any existing value,
// but omitted keys are untouched.
func (c *Config) LoadYAML(yamlContents []byte, expandEnv bool) error {
	if expandEnv {
		yamlContents = []byte(os.ExpandEnv(string(yamlContents)))
	}
	return yaml.UnmarshalStrict(yamlContents, c)
}

// LoadYAMLFile loads config from a YAML file. Any set value overwrites any existing value,
// but omitted keys are untouched.
func (c *Config) LoadYAMLFile(fpath string, expandEnv bool) error {
	contents, err := os.ReadFile(fpath)
	if err != nil {
		return errors.Wrap(err, "open yaml file")
	}
	return c.LoadYAML(contents, expandEnv)
}

// LoadEnv applies the EnvOverrides found in the environment.
func (c *Config) LoadEnv() error {
	var o EnvOverrides
	if err := env.Parse(&o); err != nil {
		return errors.Wrap(err, "parse env")
	}
	c.ApplyOverrides(o)
	return nil
}

// ApplyOverrides merges the non-empty values of o into the Config.
func (c *Config) ApplyOverrides(o EnvOverrides) {
	if o.DeliveryURL != "" {
		c.Delivery.Webhook.URL = o.DeliveryURL
	}
	if o.EventLogURL != "" {
		c.Sources.EventLog.URL = o.EventLogURL
	}
	if o.LedgerURL != "" {
		c.Sources.Ledger.URL = o.LedgerURL
	}
	if len(o.KafkaBrokers) > 0 {
		c.Delivery.Kafka.Brokers = o.KafkaBrokers
	}
}

// Default returns a Config with default settings
func Default() Config {
	return Config{
		Log: logger.DefaultConfig,
		State: State{
			BlobName: DefaultStateBlobName,
		},
		Storage: Storage{
			Type:    "fs",
			Options: map[string]interface{}{"root_path": "."},
		},
		Sources: Sources{
			EventLog: EventLog{
				URL:      "https://api.thegraph.com/subgraphs/name/jacobrosenthal/dark-forest-v05",
				Interval: 10 * time.Minute,
				Timeout:  30 * time.Second,
			},
			Ledger: Ledger{
				URL:                "https://rpc.xdaichain.com",
				Contract:           "0x678ACb78948Be7F354B28DaAb79B1ABD81574c1B",
				Interval:           time.Hour,
				CountsInterval:     24 * time.Hour,
				Timeout:            30 * time.Second,
				MaxConcurrentCalls: 4,
			},
		},
		Delivery: Delivery{
			Type:     "log",
			Interval: 5 * time.Minute,
			Timeout:  30 * time.Second,
			Prefix:   "Sophon TX:",
			Suffix:   "#darkforest",
		},
		Health: Health{
			Fetch: HealthTracker{
				ErrorDuration:      6 * time.Hour,
				WarnDuration:       time.Hour,
				ErrorSequence:      10,
				WarnSequence:       3,
				EvaluationInterval: 30 * time.Second,
			},
			Delivery: HealthTracker{
				ErrorDuration:      6 * time.Hour,
				WarnDuration:       time.Hour,
				ErrorSequence:      20,
				WarnSequence:       5,
				EvaluationInterval: 30 * time.Second,
			},
			Startup: StartTracker{
				EvaluationInterval: 5 * time.Second,
				ErrorDuration:      30 * time.Minute,
				WarnDuration:       5 * time.Minute,
				ReportHealthz:      true,
				ReportMetadata:     true,
			},
		},
	}
}
