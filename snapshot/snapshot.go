// Package snapshot defines the point-in-time views returned by the remote
// sources. A snapshot is immutable once fetched; the evaluator compares it
// against the persisted monitor state.
package snapshot

// NumLevels is the number of object levels reported by the ledger counts
const NumLevels = 8

// Transfer is a pending (not yet processed) transfer between two locations.
type Transfer struct {
	ID            uint64 // Sequence id, increases with every transfer
	Actor         string // Id of the player that sent it
	Origin        string // Id of the departure location
	OriginSpeed   uint64 // Speed of the departure location, 100 is normal speed
	DepartureTime uint64 // UNIX seconds
	ArrivalTime   uint64 // UNIX seconds
	Value         uint64 // Value moved, in the smallest currency unit
}

// Achievement is the first achievement record above the requested rank.
type Achievement struct {
	Rank     uint64
	Actor    string
	Location string
}

// Artifact is the first artifact record above the requested tier.
type Artifact struct {
	ID         string
	Rarity     string
	Tier       uint64
	Discoverer string
	Location   string
}

// Block identifies the indexed block a snapshot was taken at
type Block struct {
	Number uint64
	Hash   string
}

// Events is a snapshot of the indexed event log.
type Events struct {
	// Transfers are the pending transfers, ordered by arrival time.
	// The last one is the most recent.
	Transfers []Transfer

	// Achievement and Artifact are nil when no record exceeds the floors
	// passed in the query.
	Achievement *Achievement
	Artifact    *Artifact

	// HasIndexingErrors is set when the indexer reports that it is behind
	// or inconsistent. Such a snapshot must not be evaluated.
	HasIndexingErrors bool
	Deployment        string
	Block             Block
}

// Last returns the most recent transfer, if any.
func (e Events) Last() (Transfer, bool) {
	if len(e.Transfers) == 0 {
		return Transfer{}, false
	}
	return e.Transfers[len(e.Transfers)-1], true
}

// Ledger holds the scalar metrics read from the ledger contract.
type Ledger struct {
	WorldRadius uint64
	PlayerCount uint64
}

// Counts holds the number of initialized objects per level.
type Counts [NumLevels]uint64
