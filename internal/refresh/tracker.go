package refresh

import (
	"sync/atomic"
	"time"

	"bloomCache/internal/model"
)

// Tracker counts how well the bloom gate avoids wasted fetches.
// Counters only grow; they reset with the process.
type Tracker struct {
	blocksProcessed      atomic.Uint64
	trueNegatives        atomic.Uint64
	blocksWithCandidates atomic.Uint64
	neededCalls          atomic.Uint64
	unnecessaryCalls     atomic.Uint64
	errorCalls           atomic.Uint64
	malformedBlocks      atomic.Uint64
	staleDiscards        atomic.Uint64
	pairsUpdated         atomic.Uint64
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// BlockProcessed counts a received block and returns the new total.
func (t *Tracker) BlockProcessed() uint64 { return t.blocksProcessed.Add(1) }

func (t *Tracker) TrueNegative() { t.trueNegatives.Add(1) }
func (t *Tracker) CandidatesFound() { t.blocksWithCandidates.Add(1) }
func (t *Tracker) NeededCall() { t.neededCalls.Add(1) }
func (t *Tracker) UnnecessaryCall() { t.unnecessaryCalls.Add(1) }
func (t *Tracker) ErrorCall() { t.errorCalls.Add(1) }
func (t *Tracker) MalformedBlock() { t.malformedBlocks.Add(1) }
func (t *Tracker) StaleDiscards(n uint64) { t.staleDiscards.Add(n) }
func (t *Tracker) PairsUpdated(n uint64) { t.pairsUpdated.Add(n) }

// Snapshot copies the current counter values. Counters are read one by one,
// so a snapshot taken mid-pipeline may be a few increments apart.
func (t *Tracker) Snapshot() model.Effectiveness {
	return model.Effectiveness{
		BlocksProcessed:      t.blocksProcessed.Load(),
		TrueNegatives:        t.trueNegatives.Load(),
		BlocksWithCandidates: t.blocksWithCandidates.Load(),
		NeededCalls:          t.neededCalls.Load(),
		UnnecessaryCalls:     t.unnecessaryCalls.Load(),
		ErrorCalls:           t.errorCalls.Load(),
		MalformedBlocks:      t.malformedBlocks.Load(),
		StaleDiscards:        t.staleDiscards.Load(),
		PairsUpdated:         t.pairsUpdated.Load(),
		TakenAt:              time.Now().UTC().Format(time.RFC3339Nano),
	}
}
