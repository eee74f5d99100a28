package logger

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var (
	LogLevels     = []string{"trace", "debug", "info", "warning", "error", "fatal"}
	LogFormats    = []string{"human", "logfmt", "json"}
	LogTimestamps = []string{"short", "disable", "full"}
)

// Config configures logging
type Config struct {
	Level     string `yaml:"level"`     // One of LogLevels
	Format    string `yaml:"format"`    // One of LogFormats
	Timestamp string `yaml:"timestamp"` // One of LogTimestamps
}

// DefaultConfig defines the default configuration
var DefaultConfig = Config{
	Level:     "info",
	Format:    "human",
	Timestamp: "short",
}

// FlagConfig captures flag values and defaults to zero values
var FlagConfig = Config{}

// StringVarFlagFunc has the signature of pflag's FlagSet.StringVar
type StringVarFlagFunc func(*string, string, string, string)

// RegisterFlagsWith registers the log flags with the given function.
// The default values are set to their zero value to allow detecting when
// the flag has been set. This allows the use of a config file for logging
// and overriding it with these flags.
func RegisterFlagsWith(stringVar StringVarFlagFunc) {
	stringVar(&FlagConfig.Level, "log-level", "", "Log level "+
		describeOptions(DefaultConfig.Level, LogLevels))
	stringVar(&FlagConfig.Format, "log-format", "", "Log format "+
		describeOptions(DefaultConfig.Format, LogFormats))
	stringVar(&FlagConfig.Timestamp, "log-timestamp", "", "Log timestamp "+
		describeOptions(DefaultConfig.Timestamp, LogTimestamps))
}

// Check validates a Config instance
func (c Config) Check() error {
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("log.level: must be one of: %s", strings.Join(LogLevels, ", "))
	}
	if !lo.Contains(LogFormats, c.Format) {
		return fmt.Errorf("log.format: must be one of: %s", strings.Join(LogFormats, ", "))
	}
	if c.Timestamp != "" && !lo.Contains(LogTimestamps, c.Timestamp) {
		return fmt.Errorf("log.timestamp: must be one of: %s", strings.Join(LogTimestamps, ", "))
	}
	return nil
}

// Merge merges a Config with another Config, returning the new combined Config.
// This is useful for merging in values set by flags.
func (c Config) Merge(o Config) Config {
	c.Level = lo.Ternary(o.Level != "", o.Level, c.Level)
	c.Format = lo.Ternary(o.Format != "", o.Format, c.Format)
	c.Timestamp = lo.Ternary(o.Timestamp != "", o.Timestamp, c.Timestamp)
	return c
}

// Formatter returns the logrus.Formatter described by the Config
func (c Config) Formatter() logrus.Formatter {
	noTimestamp := c.Timestamp == "disable"
	fullTimestamp := c.Timestamp == "full"

	switch c.Format {
	case "json":
		return &logrus.JSONFormatter{DisableTimestamp: noTimestamp}
	case "logfmt":
		return &logrus.TextFormatter{
			DisableColors:    true, // this sets logfmt
			DisableTimestamp: noTimestamp,
			FullTimestamp:    fullTimestamp,
		}
	default:
		return &NamespaceFormatter{
			Parent: &logrus.TextFormatter{
				DisableTimestamp: noTimestamp,
				FullTimestamp:    fullTimestamp,
			},
		}
	}
}

// Configure configures the standard logrus logger according to Config
func Configure(c Config) {
	logrus.SetFormatter(c.Formatter())

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		// Should have been validated before calling this
		logrus.Warnf("Ignoring invalid log level: %s", c.Level)
		return
	}
	logrus.SetLevel(level)
}

func describeOptions(def string, options []string) string {
	return fmt.Sprintf("(default: %s; options: %s)", def, strings.Join(options, ", "))
}
