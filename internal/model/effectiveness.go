package model

// Effectiveness is a point-in-time copy of the refresher counters.
type Effectiveness struct {
	BlocksProcessed      uint64 `json:"blocks_processed"`
	TrueNegatives        uint64 `json:"true_negatives"`
	BlocksWithCandidates uint64 `json:"blocks_with_candidates"`
	NeededCalls          uint64 `json:"needed_calls"`
	UnnecessaryCalls     uint64 `json:"unnecessary_calls"`
	ErrorCalls           uint64 `json:"error_calls"`
	MalformedBlocks      uint64 `json:"malformed_blocks"`
	StaleDiscards        uint64 `json:"stale_discards"`
	PairsUpdated         uint64 `json:"pairs_updated"`
	TakenAt              string `json:"taken_at"`
}

// Calls returns the number of batched fetches issued.
func (e Effectiveness) Calls() uint64 {
	return e.NeededCalls + e.UnnecessaryCalls + e.ErrorCalls
}

// HitRate is the share of completed calls that produced at least one update.
func (e Effectiveness) HitRate() float64 {
	done := e.NeededCalls + e.UnnecessaryCalls
	if done == 0 {
		return 0
	}
	return float64(e.NeededCalls) / float64(done)
}
