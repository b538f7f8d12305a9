package refresh

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"bloomCache/internal/metrics"
	"bloomCache/internal/model"
	"bloomCache/internal/pairs"
)

// Reconciliation summarizes how one block's fetch results were merged.
type Reconciliation struct {
	Block      uint64
	Candidates int
	Updated    int
	Unchanged  int
	Stale      int
	Absent     int
}

// Outcome classifies the fetch: needed when at least one pair changed.
func (r Reconciliation) Outcome() model.Outcome {
	if r.Updated == 0 {
		return model.OutcomeUnnecessary
	}
	return model.OutcomeNeeded
}

// Unnecessary is the number of candidates the fetch did not need to include.
func (r Reconciliation) Unnecessary() int {
	return r.Candidates - r.Updated
}

// Reconciler merges fetched reserves into the store and classifies the call.
type Reconciler struct {
	store   *pairs.Store
	tracker *Tracker
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewReconciler(store *pairs.Store, tracker *Tracker, m *metrics.Metrics, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil, "")
	}
	return &Reconciler{
		store:   store,
		tracker: tracker,
		metrics: m,
		logger:  logger,
	}
}

// Reconcile applies results[i] to candidates[i] as observed at height.
// A nil result means that pair's call failed and is skipped. Every call is
// counted as exactly one of needed or unnecessary.
func (r *Reconciler) Reconcile(height uint64, candidates []common.Address, results []*model.Reserves) Reconciliation {
	rec := Reconciliation{Block: height, Candidates: len(candidates)}

	for i, addr := range candidates {
		if i >= len(results) || results[i] == nil {
			rec.Absent++
			r.metrics.PairUpdates.WithLabelValues("absent").Inc()
			continue
		}

		result, previous := r.store.Apply(addr, height, *results[i])
		switch result {
		case pairs.Applied:
			rec.Updated++
		case pairs.Unchanged:
			rec.Unchanged++
		case pairs.Stale:
			rec.Stale++
			r.logger.Debug("stale reserves discarded",
				zap.String("pair", addr.Hex()),
				zap.Uint64("block", height),
				zap.Uint64("updated_at", previous.UpdatedAtBlock),
			)
		default:
			rec.Absent++
			r.metrics.PairUpdates.WithLabelValues("absent").Inc()
			continue
		}
		r.metrics.PairUpdates.WithLabelValues(result.String()).Inc()
	}

	if rec.Updated == 0 {
		r.tracker.UnnecessaryCall()
	} else {
		r.tracker.NeededCall()
	}
	r.tracker.PairsUpdated(uint64(rec.Updated))
	r.tracker.StaleDiscards(uint64(rec.Stale))

	return rec
}
