// Package evaluator decides which observations are significant enough to
// become alerts.
//
// The evaluator is pure: it compares a snapshot against the current
// high-water marks and returns the alerts plus the advanced marks. It never
// touches the persisted state itself. Every rule produces at most one alert
// per snapshot.
package evaluator

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/darkforest-tools/sophon/snapshot"
	"github.com/darkforest-tools/sophon/state"
)

const (
	// TransferMilestoneStep is the step size for transfer id milestones
	TransferMilestoneStep = 100_000
	// RadiusMilestoneStep is the step size for world radius milestones
	RadiusMilestoneStep = 1000
	// PlayerMilestoneStep is the step size for player count milestones
	PlayerMilestoneStep = 10
	// ArtifactTierStep is how far the artifact tier floor moves per alert.
	// The floor does not jump to the observed tier.
	ArtifactTierStep = 1
	// NormalSpeed is the origin speed at which durations are not scaled
	NormalSpeed = 100
	// ValueUnit converts the smallest currency unit to the display unit
	ValueUnit = 1000
)

// Rule names, used in logs and metric labels
const (
	RuleTransferMilestone = "transfer_milestone"
	RuleCongestion        = "congestion"
	RuleAchievement       = "achievement"
	RuleArtifact          = "artifact"
	RuleLongestTransfer   = "longest_transfer"
	RuleLargestValue      = "largest_value"
	RuleWorldRadius       = "world_radius"
	RulePlayerCount       = "player_count"
)

// ErrIndexingErrors is returned for an events snapshot that the indexer
// flagged as inconsistent. The whole snapshot must be discarded.
var ErrIndexingErrors = errors.New("event log reports indexing errors")

// Alert is a single alert produced by a rule
type Alert struct {
	Rule string
	Text string
}

// Result is the outcome of evaluating one snapshot
type Result struct {
	Alerts []Alert
	Marks  state.Marks
}

// Changed reports if the evaluation produced alerts or moved any mark
func (r Result) Changed(prev state.Marks) bool {
	return len(r.Alerts) > 0 || r.Marks != prev
}

// Texts returns the alert texts in rule order
func (r Result) Texts() []string {
	return lo.Map(r.Alerts, func(a Alert, _ int) string {
		return a.Text
	})
}

// EvaluateEvents applies the event log rules to an events snapshot.
// A snapshot with indexing errors returns ErrIndexingErrors and a Result that
// carries the unchanged marks.
func EvaluateEvents(ev snapshot.Events, m state.Marks) (Result, error) {
	res := Result{Marks: m}
	if ev.HasIndexingErrors {
		return res, ErrIndexingErrors
	}
	res.apply(transferMilestone(ev, &res.Marks))
	res.apply(congestion(ev, &res.Marks))
	res.apply(achievement(ev, &res.Marks))
	res.apply(artifact(ev, &res.Marks))
	res.apply(longestTransfer(ev, &res.Marks))
	res.apply(largestValue(ev, &res.Marks))
	return res, nil
}

// EvaluateLedger applies the ledger rules to a ledger snapshot.
func EvaluateLedger(l snapshot.Ledger, m state.Marks) Result {
	res := Result{Marks: m}
	res.apply(worldRadius(l, &res.Marks))
	res.apply(playerCount(l, &res.Marks))
	return res
}

func (r *Result) apply(a *Alert) {
	if a != nil {
		r.Alerts = append(r.Alerts, *a)
	}
}

// Milestone rounds v down to a multiple of step
func Milestone(v, step uint64) uint64 {
	return v / step * step
}

// NormalizedDuration returns the travel time of a transfer scaled to normal
// speed. The second return value is false if the transfer has no usable
// duration: the arrival precedes the departure, or the origin is so slow
// that the speed factor rounds down to zero.
func NormalizedDuration(t snapshot.Transfer) (uint64, bool) {
	factor := t.OriginSpeed / NormalSpeed
	if factor == 0 || t.ArrivalTime < t.DepartureTime {
		return 0, false
	}
	return (t.ArrivalTime - t.DepartureTime) / factor, true
}

// FormatCounts formats the per-level object counts summary
func FormatCounts(c snapshot.Counts) string {
	parts := lo.Map(c[:], func(n uint64, level int) string {
		return fmt.Sprintf("lvl%d:%d", level, n)
	})
	return "Universe planet totals: " + strings.Join(parts, ", ")
}
