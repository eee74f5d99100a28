// Package state holds the persisted monitor state: the high-water marks that
// gate alerts and the queue of alerts that still need to be delivered.
package state

// Marks are the high-water marks. Every field is non-decreasing over the
// lifetime of the state: once an alert fired for a value, it must never fire
// again for the same or a smaller value.
type Marks struct {
	// MostPendingTransfers is the largest number of simultaneous in-flight
	// transfers observed.
	MostPendingTransfers uint64 `json:"most_pending_transfers"`
	// SignificantTransferID is the largest transfer id milestone (multiple of
	// 100,000) that was alerted.
	SignificantTransferID uint64 `json:"significant_transfer_id"`
	// LongestTransferDuration is in speed-normalized seconds.
	LongestTransferDuration uint64 `json:"longest_transfer_duration"`
	// MostValueMoved is in the smallest currency unit.
	MostValueMoved uint64 `json:"most_value_moved"`
	// AchievementRank is the highest rank that was alerted.
	AchievementRank uint64 `json:"achievement_rank"`
	// ArtifactTier is a sliding floor, advanced by a fixed step per alert.
	ArtifactTier uint64 `json:"artifact_tier"`
	// SignificantRadius is the largest world radius milestone (multiple of
	// 1,000) that was alerted.
	SignificantRadius uint64 `json:"significant_radius"`
	// SignificantPlayerCount is the largest player count milestone
	// (multiple of 10) that was alerted.
	SignificantPlayerCount uint64 `json:"significant_player_count"`
}

// Advance returns the field-wise maximum of m and n. Using it for every
// update guarantees that no mark ever moves backwards.
func (m Marks) Advance(n Marks) Marks {
	return Marks{
		MostPendingTransfers:    max(m.MostPendingTransfers, n.MostPendingTransfers),
		SignificantTransferID:   max(m.SignificantTransferID, n.SignificantTransferID),
		LongestTransferDuration: max(m.LongestTransferDuration, n.LongestTransferDuration),
		MostValueMoved:          max(m.MostValueMoved, n.MostValueMoved),
		AchievementRank:         max(m.AchievementRank, n.AchievementRank),
		ArtifactTier:            max(m.ArtifactTier, n.ArtifactTier),
		SignificantRadius:       max(m.SignificantRadius, n.SignificantRadius),
		SignificantPlayerCount:  max(m.SignificantPlayerCount, n.SignificantPlayerCount),
	}
}

// AtLeast reports whether every mark in m is greater than or equal to the
// corresponding mark in prev.
func (m Marks) AtLeast(prev Marks) bool {
	return m.Advance(prev) == m
}

// MonitorState is the single persisted record. It is owned by the monitor
// and must only be mutated while holding the monitor lock.
type MonitorState struct {
	Marks

	// PendingAlerts is a FIFO of alert texts that were not delivered yet.
	PendingAlerts []string `json:"pending_alerts"`
}

// Clone returns a deep copy that can be used outside the lock.
func (s MonitorState) Clone() MonitorState {
	c := s
	c.PendingAlerts = append([]string(nil), s.PendingAlerts...)
	return c
}
