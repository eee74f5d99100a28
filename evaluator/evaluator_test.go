package evaluator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkforest-tools/sophon/snapshot"
	"github.com/darkforest-tools/sophon/state"
)

func transfer(id, value uint64) snapshot.Transfer {
	return snapshot.Transfer{
		ID:            id,
		Actor:         "0xplayer",
		OriginSpeed:   100,
		DepartureTime: 1000,
		ArrivalTime:   1010,
		Value:         value,
	}
}

func rules(res Result) []string {
	var names []string
	for _, a := range res.Alerts {
		names = append(names, a.Rule)
	}
	return names
}

func TestLargestValueOneAlertPerBatch(t *testing.T) {
	m := state.Marks{
		MostPendingTransfers:    5,
		MostValueMoved:          1000,
		LongestTransferDuration: 1000,
	}
	a := transfer(1, 500)
	b := transfer(2, 1500)
	b.Actor = "0xwhale"
	res, err := EvaluateEvents(snapshot.Events{Transfers: []snapshot.Transfer{a, b}}, m)
	require.NoError(t, err)

	assert.Equal(t, []string{RuleLargestValue}, rules(res))
	assert.Contains(t, res.Alerts[0].Text, "0xwhale")
	assert.Contains(t, res.Alerts[0].Text, "1 silver") // 1500 / 1000
	assert.Equal(t, uint64(1500), res.Marks.MostValueMoved)
}

func TestLargestValueManyRecords(t *testing.T) {
	// Every transfer beats the previous record, still only one alert
	var ts []snapshot.Transfer
	for i := uint64(1); i <= 10; i++ {
		ts = append(ts, transfer(i, i*10_000))
	}
	res, err := EvaluateEvents(snapshot.Events{Transfers: ts}, state.Marks{
		MostPendingTransfers:    100,
		LongestTransferDuration: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{RuleLargestValue}, rules(res))
	assert.Equal(t, uint64(100_000), res.Marks.MostValueMoved)
	assert.Contains(t, res.Alerts[0].Text, "100 silver")
}

func TestTransferMilestone(t *testing.T) {
	m := state.Marks{
		SignificantTransferID: 300000,
		MostPendingTransfers:  10,
		MostValueMoved:        1_000_000,
		// the test transfers take 10s
		LongestTransferDuration: 10,
	}

	// 305000 rounds down to 300000, which was already alerted
	ev := snapshot.Events{Transfers: []snapshot.Transfer{transfer(305000, 1)}}
	res, err := EvaluateEvents(ev, m)
	require.NoError(t, err)
	assert.Empty(t, res.Alerts)
	assert.Equal(t, uint64(300000), res.Marks.SignificantTransferID)

	// Only the last transfer counts
	ev = snapshot.Events{Transfers: []snapshot.Transfer{transfer(999999, 1), transfer(410000, 1)}}
	res, err = EvaluateEvents(ev, m)
	require.NoError(t, err)
	assert.Equal(t, []string{RuleTransferMilestone}, rules(res))
	assert.Equal(t, "400000th transfer detected", res.Alerts[0].Text)
	assert.Equal(t, uint64(400000), res.Marks.SignificantTransferID)

	// A milestone is alerted even when it skips several steps
	m.SignificantTransferID = 200000
	res, err = EvaluateEvents(snapshot.Events{Transfers: []snapshot.Transfer{transfer(305000, 1)}}, m)
	require.NoError(t, err)
	assert.Equal(t, []string{RuleTransferMilestone}, rules(res))
	assert.Equal(t, uint64(300000), res.Marks.SignificantTransferID)
}

func TestCongestion(t *testing.T) {
	m := state.Marks{MostPendingTransfers: 2, MostValueMoved: 100, LongestTransferDuration: 100}
	ev := snapshot.Events{Transfers: []snapshot.Transfer{transfer(1, 1), transfer(2, 1)}}
	res, err := EvaluateEvents(ev, m)
	require.NoError(t, err)
	assert.Empty(t, res.Alerts, "equal is not more")

	ev.Transfers = append(ev.Transfers, transfer(3, 1))
	res, err = EvaluateEvents(ev, m)
	require.NoError(t, err)
	assert.Equal(t, []string{RuleCongestion}, rules(res))
	assert.Equal(t, uint64(3), res.Marks.MostPendingTransfers)
	assert.Contains(t, res.Alerts[0].Text, "3 transfers")
}

func TestAchievement(t *testing.T) {
	m := state.Marks{AchievementRank: 2}

	res, err := EvaluateEvents(snapshot.Events{}, m)
	require.NoError(t, err)
	assert.Empty(t, res.Alerts, "no achievement record")

	ev := snapshot.Events{Achievement: &snapshot.Achievement{Rank: 2, Actor: "0xa", Location: "0xloc"}}
	res, err = EvaluateEvents(ev, m)
	require.NoError(t, err)
	assert.Empty(t, res.Alerts, "rank not exceeded")

	ev.Achievement.Rank = 3
	res, err = EvaluateEvents(ev, m)
	require.NoError(t, err)
	assert.Equal(t, []string{RuleAchievement}, rules(res))
	assert.Equal(t, "0xa reached rank 3 at 0xloc", res.Alerts[0].Text)
	assert.Equal(t, uint64(3), res.Marks.AchievementRank)
}

func TestArtifactAdvancesByStep(t *testing.T) {
	m := state.Marks{ArtifactTier: 1}
	ev := snapshot.Events{Artifact: &snapshot.Artifact{
		Rarity:     "LEGENDARY",
		Tier:       5,
		Discoverer: "0xd",
		Location:   "0xloc",
	}}
	res, err := EvaluateEvents(ev, m)
	require.NoError(t, err)
	assert.Equal(t, []string{RuleArtifact}, rules(res))
	assert.Contains(t, res.Alerts[0].Text, "LEGENDARY")
	assert.Contains(t, res.Alerts[0].Text, "0xloc")
	// Sliding floor: moves by one step, not to the observed tier
	assert.Equal(t, uint64(1+ArtifactTierStep), res.Marks.ArtifactTier)

	// A record at or below the floor is ignored
	ev.Artifact.Tier = res.Marks.ArtifactTier
	res, err = EvaluateEvents(ev, res.Marks)
	require.NoError(t, err)
	assert.Empty(t, res.Alerts)
}

func TestLongestTransfer(t *testing.T) {
	slow := snapshot.Transfer{ID: 1, Actor: "0xslow", OriginSpeed: 100, DepartureTime: 0, ArrivalTime: 600}
	fast := snapshot.Transfer{ID: 2, Actor: "0xfast", OriginSpeed: 300, DepartureTime: 0, ArrivalTime: 1500}
	broken := snapshot.Transfer{ID: 3, Actor: "0xbroken", OriginSpeed: 50, DepartureTime: 0, ArrivalTime: 9999}
	backwards := snapshot.Transfer{ID: 4, Actor: "0xback", OriginSpeed: 100, DepartureTime: 9999, ArrivalTime: 1}

	m := state.Marks{MostPendingTransfers: 10, MostValueMoved: 10}
	ev := snapshot.Events{Transfers: []snapshot.Transfer{slow, fast, broken, backwards}}
	res, err := EvaluateEvents(ev, m)
	require.NoError(t, err)
	assert.Equal(t, []string{RuleLongestTransfer}, rules(res))
	assert.Equal(t, uint64(600), res.Marks.LongestTransferDuration) // fast: 1500/3 = 500
	assert.Contains(t, res.Alerts[0].Text, "0xslow")
	assert.Contains(t, res.Alerts[0].Text, "10m0s")
}

func TestLongestTransferBeyondDurationRange(t *testing.T) {
	huge := snapshot.Transfer{ID: 1, Actor: "0xfar", OriginSpeed: 100, DepartureTime: 0, ArrivalTime: math.MaxUint64}
	res, err := EvaluateEvents(snapshot.Events{Transfers: []snapshot.Transfer{huge}},
		state.Marks{MostPendingTransfers: 10, MostValueMoved: 10})
	require.NoError(t, err)
	require.Equal(t, []string{RuleLongestTransfer}, rules(res))
	assert.Equal(t, uint64(math.MaxUint64), res.Marks.LongestTransferDuration)
	assert.Contains(t, res.Alerts[0].Text, "18446744073709551615s")
	assert.Equal(t, "2562047h47m16s", formatSeconds(math.MaxInt64/uint64(time.Second)))
}

func TestNormalizedDuration(t *testing.T) {
	d, ok := NormalizedDuration(snapshot.Transfer{OriginSpeed: 200, DepartureTime: 100, ArrivalTime: 300})
	assert.True(t, ok)
	assert.Equal(t, uint64(100), d)

	_, ok = NormalizedDuration(snapshot.Transfer{OriginSpeed: 99, DepartureTime: 100, ArrivalTime: 300})
	assert.False(t, ok)

	_, ok = NormalizedDuration(snapshot.Transfer{OriginSpeed: 100, DepartureTime: 300, ArrivalTime: 100})
	assert.False(t, ok)
}

func TestWorldRadius(t *testing.T) {
	m := state.Marks{SignificantRadius: 12000}

	res := EvaluateLedger(snapshot.Ledger{WorldRadius: 12345}, m)
	assert.Empty(t, res.Alerts)
	assert.Equal(t, uint64(12000), res.Marks.SignificantRadius)

	res = EvaluateLedger(snapshot.Ledger{WorldRadius: 13500}, m)
	assert.Equal(t, []string{RuleWorldRadius}, rules(res))
	assert.Equal(t, uint64(13000), res.Marks.SignificantRadius)
	assert.Contains(t, res.Alerts[0].Text, "13000")
}

func TestPlayerCount(t *testing.T) {
	m := state.Marks{SignificantPlayerCount: 120}

	res := EvaluateLedger(snapshot.Ledger{PlayerCount: 129}, m)
	assert.Empty(t, res.Alerts)

	res = EvaluateLedger(snapshot.Ledger{PlayerCount: 131}, m)
	assert.Equal(t, []string{RulePlayerCount}, rules(res))
	assert.Equal(t, uint64(130), res.Marks.SignificantPlayerCount)
	assert.Equal(t, "130 civilizations have achieved ftl travel", res.Alerts[0].Text)
}

func TestIndexingErrorsShortCircuit(t *testing.T) {
	m := state.Marks{}
	ev := snapshot.Events{
		HasIndexingErrors: true,
		Transfers:         []snapshot.Transfer{transfer(500000, 1_000_000)},
		Achievement:       &snapshot.Achievement{Rank: 10},
		Artifact:          &snapshot.Artifact{Tier: 10},
	}
	res, err := EvaluateEvents(ev, m)
	assert.ErrorIs(t, err, ErrIndexingErrors)
	assert.Empty(t, res.Alerts)
	assert.Equal(t, m, res.Marks)
	assert.False(t, res.Changed(m))
}

func TestIdempotence(t *testing.T) {
	ev := snapshot.Events{
		Transfers: []snapshot.Transfer{
			transfer(100001, 5000),
			transfer(200002, 9000),
		},
		Achievement: &snapshot.Achievement{Rank: 1, Actor: "0xa", Location: "0xl"},
	}
	first, err := EvaluateEvents(ev, state.Marks{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		RuleTransferMilestone, RuleCongestion, RuleAchievement, RuleLongestTransfer, RuleLargestValue,
	}, rules(first))
	assert.True(t, first.Changed(state.Marks{}))

	second, err := EvaluateEvents(ev, first.Marks)
	require.NoError(t, err)
	assert.Empty(t, second.Alerts)
	assert.Equal(t, first.Marks, second.Marks)
	assert.False(t, second.Changed(first.Marks))

	l := snapshot.Ledger{WorldRadius: 5500, PlayerCount: 42}
	lfirst := EvaluateLedger(l, state.Marks{})
	assert.Len(t, lfirst.Alerts, 2)
	lsecond := EvaluateLedger(l, lfirst.Marks)
	assert.Empty(t, lsecond.Alerts)
}

func TestMonotonicity(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	var m state.Marks
	for i := 0; i < 1000; i++ {
		var ts []snapshot.Transfer
		for j := 0; j < r.Intn(20); j++ {
			dep := uint64(r.Intn(10_000))
			ts = append(ts, snapshot.Transfer{
				ID:            uint64(r.Intn(2_000_000)),
				OriginSpeed:   uint64(r.Intn(500)),
				DepartureTime: dep,
				ArrivalTime:   dep + uint64(r.Intn(100_000)) - 50,
				Value:         uint64(r.Intn(10_000_000)),
			})
		}
		ev := snapshot.Events{
			Transfers:         ts,
			HasIndexingErrors: r.Intn(10) == 0,
		}
		if r.Intn(3) == 0 {
			ev.Achievement = &snapshot.Achievement{Rank: uint64(r.Intn(10))}
		}
		if r.Intn(3) == 0 {
			ev.Artifact = &snapshot.Artifact{Tier: uint64(r.Intn(10))}
		}
		res, _ := EvaluateEvents(ev, m)
		require.True(t, res.Marks.AtLeast(m), "events step %d decreased a mark", i)
		m = res.Marks

		lres := EvaluateLedger(snapshot.Ledger{
			WorldRadius: uint64(r.Intn(100_000)),
			PlayerCount: uint64(r.Intn(1000)),
		}, m)
		require.True(t, lres.Marks.AtLeast(m), "ledger step %d decreased a mark", i)
		m = lres.Marks
	}
}

func TestFormatCounts(t *testing.T) {
	c := snapshot.Counts{10, 20, 30, 40, 50, 60, 70, 80}
	assert.Equal(t,
		"Universe planet totals: lvl0:10, lvl1:20, lvl2:30, lvl3:40, lvl4:50, lvl5:60, lvl6:70, lvl7:80",
		FormatCounts(c))
}
