package state

import (
	"context"
	"encoding/json"
	"os"

	"github.com/PowerDNS/simpleblob"
	"github.com/c2h5oh/datasize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SaveError is returned by Store.Save. Persistence failures are never fatal:
// the in-memory state stays authoritative until the next successful write.
type SaveError struct {
	Name string
	Err  error
}

func (e *SaveError) Error() string {
	return "save state " + e.Name + ": " + e.Err.Error()
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// NewStore returns a Store that keeps the state in blob name of st.
func NewStore(st simpleblob.Interface, name string, l logrus.FieldLogger) *Store {
	return &Store{
		st:   st,
		name: name,
		l:    l.WithField("blob", name),
	}
}

// Store loads and saves the MonitorState as a single JSON document.
type Store struct {
	st   simpleblob.Interface
	name string
	l    logrus.FieldLogger
}

// Load returns the persisted state. It never fails: a missing, unreadable or
// corrupt document results in a zero state, so that the monitor starts fresh.
func (s *Store) Load(ctx context.Context) MonitorState {
	data, err := s.st.Load(ctx, s.name)
	if err != nil {
		if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
			s.l.Info("No persisted state found, starting fresh")
			metricLoads.WithLabelValues("missing").Inc()
		} else {
			s.l.WithError(err).Warn("Could not read persisted state, starting fresh")
			metricLoads.WithLabelValues("error").Inc()
		}
		return MonitorState{}
	}

	var ms MonitorState
	if err := json.Unmarshal(data, &ms); err != nil {
		s.l.WithError(err).Warn("Persisted state is corrupt, starting fresh")
		metricLoads.WithLabelValues("corrupt").Inc()
		return MonitorState{}
	}

	metricLoads.WithLabelValues("loaded").Inc()
	s.l.WithFields(logrus.Fields{
		"size":           datasize.ByteSize(len(data)).HumanReadable(),
		"pending_alerts": ms.QueueLen(),
	}).Info("Loaded persisted state")
	return ms
}

// Save overwrites the persisted state with ms. The write is synchronous.
func (s *Store) Save(ctx context.Context, ms MonitorState) error {
	if ms.PendingAlerts == nil {
		ms.PendingAlerts = []string{} // "[]" instead of "null"
	}
	data, err := json.MarshalIndent(ms, "", "  ")
	if err != nil {
		metricSaveFailed.Inc()
		return &SaveError{Name: s.name, Err: errors.Wrap(err, "marshal")}
	}
	metricSaves.Inc()
	if err := s.st.Store(ctx, s.name, data); err != nil {
		metricSaveFailed.Inc()
		return &SaveError{Name: s.name, Err: err}
	}
	s.l.WithField("size", datasize.ByteSize(len(data)).HumanReadable()).Debug("Saved state")
	return nil
}
