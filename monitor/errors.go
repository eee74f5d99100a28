package monitor

import (
	"context"
	"errors"

	"github.com/darkforest-tools/sophon/delivery"
	"github.com/darkforest-tools/sophon/evaluator"
	"github.com/darkforest-tools/sophon/state"
)

// FetchError is returned when a source could not produce a snapshot
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return "fetch " + e.Source + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Action is what a Task does with an error returned by a cycle
type Action int

const (
	// ActionLogOnly logs the error and continues with the next cycle as usual
	ActionLogOnly Action = iota
	// ActionSkipCycle logs the error as a skipped cycle. Nothing was mutated.
	ActionSkipCycle
	// ActionStop ends the task without logging, because it was canceled
	ActionStop
	// ActionFatal ends the task and with it the process.
	// No error kind is classified as fatal: a monitor keeps running until it
	// is shut down.
	ActionFatal
)

func (a Action) String() string {
	switch a {
	case ActionLogOnly:
		return "log-only"
	case ActionSkipCycle:
		return "skip-cycle"
	case ActionStop:
		return "stop"
	case ActionFatal:
		return "fatal"
	}
	return "unknown"
}

// Classify maps a cycle error to an Action
func Classify(err error) Action {
	var (
		fetchErr    *FetchError
		saveErr     *state.SaveError
		deliveryErr *delivery.Error
	)
	switch {
	case err == nil:
		return ActionLogOnly
	case errors.Is(err, context.Canceled):
		return ActionStop
	case errors.As(err, &fetchErr):
		return ActionSkipCycle
	case errors.Is(err, evaluator.ErrIndexingErrors):
		return ActionSkipCycle
	case errors.As(err, &saveErr):
		return ActionLogOnly
	case errors.As(err, &deliveryErr):
		return ActionLogOnly
	}
	return ActionLogOnly
}
