package evaluator

import (
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"

	"github.com/darkforest-tools/sophon/snapshot"
	"github.com/darkforest-tools/sophon/state"
)

// transferMilestone alerts when the most recent transfer id crosses a new
// multiple of TransferMilestoneStep.
func transferMilestone(ev snapshot.Events, m *state.Marks) *Alert {
	last, ok := ev.Last()
	if !ok {
		return nil
	}
	milestone := Milestone(last.ID, TransferMilestoneStep)
	if milestone <= m.SignificantTransferID {
		return nil
	}
	m.SignificantTransferID = milestone
	return &Alert{
		Rule: RuleTransferMilestone,
		Text: fmt.Sprintf("%dth transfer detected", milestone),
	}
}

// congestion alerts when more transfers are in flight than ever before.
func congestion(ev snapshot.Events, m *state.Marks) *Alert {
	n := uint64(len(ev.Transfers))
	if n <= m.MostPendingTransfers {
		return nil
	}
	m.MostPendingTransfers = n
	return &Alert{
		Rule: RuleCongestion,
		Text: fmt.Sprintf("Unusually high activity, %d transfers in motion", n),
	}
}

func achievement(ev snapshot.Events, m *state.Marks) *Alert {
	a := ev.Achievement
	if a == nil || a.Rank <= m.AchievementRank {
		return nil
	}
	m.AchievementRank = a.Rank
	return &Alert{
		Rule: RuleAchievement,
		Text: fmt.Sprintf("%s reached rank %d at %s", a.Actor, a.Rank, a.Location),
	}
}

// artifact alerts for a newly found artifact above the tracked tier floor.
// The source is asked for records above the floor already; the tier is
// compared again because the floor may have moved since the fetch.
func artifact(ev snapshot.Events, m *state.Marks) *Alert {
	a := ev.Artifact
	if a == nil || a.Tier <= m.ArtifactTier {
		return nil
	}
	m.ArtifactTier += ArtifactTierStep
	return &Alert{
		Rule: RuleArtifact,
		Text: fmt.Sprintf("%s artifact (tier %d) discovered by %s at %s",
			a.Rarity, a.Tier, a.Discoverer, a.Location),
	}
}

// longestTransfer emits a single alert for the longest normalized duration
// in the batch, if it beats the record.
func longestTransfer(ev snapshot.Events, m *state.Marks) *Alert {
	var (
		longest uint64
		actor   string
		found   bool
	)
	for _, t := range ev.Transfers {
		d, ok := NormalizedDuration(t)
		if !ok {
			continue
		}
		if !found || d > longest {
			longest, actor, found = d, t.Actor, true
		}
	}
	if !found || longest <= m.LongestTransferDuration {
		return nil
	}
	m.LongestTransferDuration = longest
	return &Alert{
		Rule: RuleLongestTransfer,
		Text: fmt.Sprintf("Longest journey yet, %s has a transfer in motion for %s",
			actor, formatSeconds(longest)),
	}
}

// largestValue emits a single alert for the largest value moved in the
// batch, if it beats the record.
// formatSeconds formats s as a duration, or as plain seconds when it does
// not fit in a time.Duration.
func formatSeconds(s uint64) string {
	if s > uint64(math.MaxInt64/int64(time.Second)) {
		return fmt.Sprintf("%ds", s)
	}
	return (time.Duration(s) * time.Second).String()
}

func largestValue(ev snapshot.Events, m *state.Marks) *Alert {
	if len(ev.Transfers) == 0 {
		return nil
	}
	biggest := lo.MaxBy(ev.Transfers, func(a, b snapshot.Transfer) bool {
		return a.Value > b.Value
	})
	if biggest.Value <= m.MostValueMoved {
		return nil
	}
	m.MostValueMoved = biggest.Value
	return &Alert{
		Rule: RuleLargestValue,
		Text: fmt.Sprintf("Whale alert, %s moved %d silver", biggest.Actor, biggest.Value/ValueUnit),
	}
}

func worldRadius(l snapshot.Ledger, m *state.Marks) *Alert {
	milestone := Milestone(l.WorldRadius, RadiusMilestoneStep)
	if milestone <= m.SignificantRadius {
		return nil
	}
	m.SignificantRadius = milestone
	return &Alert{
		Rule: RuleWorldRadius,
		Text: fmt.Sprintf("The universe has expanded to %d, adjust accordingly", milestone),
	}
}

func playerCount(l snapshot.Ledger, m *state.Marks) *Alert {
	milestone := Milestone(l.PlayerCount, PlayerMilestoneStep)
	if milestone <= m.SignificantPlayerCount {
		return nil
	}
	m.SignificantPlayerCount = milestone
	return &Alert{
		Rule: RulePlayerCount,
		Text: fmt.Sprintf("%d civilizations have achieved ftl travel", milestone),
	}
}
