// Package starttracker reports through healthz whether all startup phases
// have completed.
package starttracker

import (
	"fmt"
	"sort"
	"strings"
	"sync"
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

// Validated returns sc with the evaluation interval raised to the minimum
func Validated(sc config.StartTracker) config.StartTracker {
	if sc.EvaluationInterval < MinEvaluationInterval {
		sc.EvaluationInterval = MinEvaluationInterval
	}
	return sc
}

type StartTracker struct {
	Config config.StartTracker

	mu      sync.Mutex
	pending map[string]bool // phase names still to pass

	completed atomic.Bool
	since     atomic.Time
	prefix    string
	logger    logrus.FieldLogger
}

// New creates a StartTracker that waits for all given phases to pass.
func New(sc config.StartTracker, prefix string, phases ...string) *StartTracker {
	st := &StartTracker{
		Config:  Validated(sc),
		pending: make(map[string]bool),
		prefix:  prefix,
		logger:  logrus.WithField("starttracker", prefix),
	}
	for _, p := range phases {
		st.pending[p] = true
	}

	// Set current time as begin of startup phase
	st.since.Store(time.Now())

	st.RegisterTracker()

	return st
}

func (st *StartTracker) trackerName() string {
	return fmt.Sprintf("%s_startup_in_progress", st.prefix)
}

func (st *StartTracker) RegisterTracker() {
	if st.Config.ReportMetadata {
		healthz.SetMeta("startupCompleted", false)
	}
	healthz.Register(st.trackerName(), st.Config.EvaluationInterval, st.Check)
	st.logger.Info("registered tracker for startup phase")
}

// Check evaluates the startup progress. Once all phases passed, the tracker
// deregisters itself.
func (st *StartTracker) Check() error {
	if pending := st.Pending(); len(pending) > 0 {
		if !st.Config.ReportHealthz {
			return nil
		}
		failingFor := time.Since(st.since.Load())
		if failingFor >= st.Config.ErrorDuration {
			st.logger.Debugf("succesful startup pending after %s is violating the error threshold (%s)", failingFor.Round(time.Second), st.Config.ErrorDuration)

			return fmt.Errorf("startup pending after %s, waiting for: %s",
				failingFor.Round(time.Second), strings.Join(pending, ", "))
		} else if failingFor >= st.Config.WarnDuration {
			st.logger.Debugf("succesful startup pending after %s is violating the warning threshold (%s)", failingFor.Round(time.Second), st.Config.WarnDuration)

			return healthz.Warnf("startup pending after %s, waiting for: %s",
				failingFor.Round(time.Second), strings.Join(pending, ", "))
		}
		return nil
	}

	if st.completed.CompareAndSwap(false, true) {
		if st.Config.ReportMetadata {
			healthz.SetMeta("startupCompleted", true)
		}
		st.logger.Info("startup phase completed succesfully")
		// Startup phase is irrelevant after passing once
		healthz.Deregister(st.trackerName())
	}

	return nil
}

// SetPassed marks a startup phase as passed. Unknown phases and repeated
// calls are ignored. Safe to call on a nil tracker.
func (st *StartTracker) SetPassed(phase string) {
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.pending[phase] {
		delete(st.pending, phase)
		st.logger.WithField("phase", phase).Debug("tracked succesful startup phase")
	}
}

// Pending returns the sorted names of the phases that did not pass yet
func (st *StartTracker) Pending() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	var names []string
	for name := range st.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
