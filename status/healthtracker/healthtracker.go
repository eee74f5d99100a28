// Package healthtracker turns consecutive failures of a recurring activity
// into healthz warnings and errors.
package healthtracker

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wojas/go-healthz"
	"go.uber.org/atomic"

	"github.com/darkforest-tools/sophon/config"
)

const (
	// MinEvaluationInterval is the minimum interval allowed between healthz evaluation
	MinEvaluationInterval = time.Second
)

// Validated returns hc with the evaluation interval raised to the minimum
func Validated(hc config.HealthTracker) config.HealthTracker {
	if hc.EvaluationInterval < MinEvaluationInterval {
		hc.EvaluationInterval = MinEvaluationInterval
	}
	return hc
}

type HealthTracker struct {
	Config   config.HealthTracker
	sequence atomic.Uint32
	since    atomic.Time
	prefix   string
	activity string
	logger   logrus.FieldLogger
}

// New creates a HealthTracker and registers its checks with healthz.
// The prefix must be unique within the process.
func New(hc config.HealthTracker, prefix string, activity string) *HealthTracker {
	ht := &HealthTracker{
		Config:   Validated(hc),
		prefix:   prefix,
		activity: activity,
		logger:   logrus.WithField("healthtracker", prefix),
	}

	healthz.Register(fmt.Sprintf("%s_failed_attempts", ht.prefix), ht.Config.EvaluationInterval, ht.CheckSequence)
	healthz.Register(fmt.Sprintf("%s_failed_duration", ht.prefix), ht.Config.EvaluationInterval, ht.CheckDuration)
	ht.logger.Debug("registered trackers for consecutive failures and failure duration")

	return ht
}

// CheckSequence evaluates the number of consecutive failures
func (ht *HealthTracker) CheckSequence() error {
	conseqFails := ht.sequence.Load()

	if conseqFails >= ht.Config.ErrorSequence {
		ht.logger.Warnf("%d consecutive failures is violating the error threshold (%d)", conseqFails, ht.Config.ErrorSequence)

		return fmt.Errorf("failed to %s %d consecutive times", ht.activity, conseqFails)
	} else if conseqFails >= ht.Config.WarnSequence {
		ht.logger.Warnf("%d consecutive failures is violating the warning threshold (%d)", conseqFails, ht.Config.WarnSequence)

		return healthz.Warnf("failed to %s %d consecutive times", ht.activity, conseqFails)
	}

	return nil
}

// CheckDuration evaluates how long the activity has been failing
func (ht *HealthTracker) CheckDuration() error {
	if ht.sequence.Load() == 0 {
		return nil
	}

	failingFor := time.Since(ht.since.Load())

	if failingFor >= ht.Config.ErrorDuration {
		ht.logger.Warnf("failure for %s is violating the error threshold (%s)", failingFor.Round(time.Second), ht.Config.ErrorDuration)

		return fmt.Errorf("failed to %s for %s", ht.activity, failingFor.Round(time.Second))
	} else if failingFor >= ht.Config.WarnDuration {
		ht.logger.Warnf("failure for %s is violating the warning threshold (%s)", failingFor.Round(time.Second), ht.Config.WarnDuration)

		return healthz.Warnf("failed to %s for %s", ht.activity, failingFor.Round(time.Second))
	}

	return nil
}

// AddFailure records a failed attempt. Safe to call on a nil tracker.
func (ht *HealthTracker) AddFailure() {
	if ht == nil {
		return
	}
	if ht.sequence.Load() == 0 {
		ht.since.Store(time.Now())
	}

	failures := ht.sequence.Inc()

	ht.logger.Debugf("incremented consecutive failures to %d", failures)
}

// AddSuccess resets the failure sequence. Safe to call on a nil tracker.
func (ht *HealthTracker) AddSuccess() {
	if ht == nil {
		return
	}
	if ht.sequence.Swap(0) > 0 {
		ht.logger.Infof("%s recovered", ht.activity)
	}
}

// Failures returns the number of consecutive failures
func (ht *HealthTracker) Failures() uint32 {
	if ht == nil {
		return 0
	}
	return ht.sequence.Load()
}
