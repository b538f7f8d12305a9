package refresh

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bloomCache/internal/model"
	"bloomCache/internal/pairs"
)

func reserves(r0, r1 int64) *model.Reserves {
	return &model.Reserves{Reserve0: big.NewInt(r0), Reserve1: big.NewInt(r1)}
}

func seededStore(t *testing.T, height uint64) *pairs.Store {
	t.Helper()
	store := pairs.NewStore([]common.Address{pairA, pairB, pairC})
	for _, addr := range store.Addresses() {
		require.NoError(t, store.Seed(addr, *reserves(100, 200), height))
	}
	return store
}

func TestReconcile(t *testing.T) {
	testCases := []struct {
		name       string
		height     uint64
		candidates []common.Address
		results    []*model.Reserves
		want       Reconciliation
		outcome    model.Outcome
	}{
		{
			name:       "identical reserves",
			height:     11,
			candidates: []common.Address{pairA},
			results:    []*model.Reserves{reserves(100, 200)},
			want:       Reconciliation{Block: 11, Candidates: 1, Unchanged: 1},
			outcome:    model.OutcomeUnnecessary,
		},
		{
			name:       "new reserves",
			height:     11,
			candidates: []common.Address{pairA, pairB},
			results:    []*model.Reserves{reserves(101, 199), reserves(100, 200)},
			want:       Reconciliation{Block: 11, Candidates: 2, Updated: 1, Unchanged: 1},
			outcome:    model.OutcomeNeeded,
		},
		{
			name:       "absent results",
			height:     11,
			candidates: []common.Address{pairA, pairB},
			results:    []*model.Reserves{nil, nil},
			want:       Reconciliation{Block: 11, Candidates: 2, Absent: 2},
			outcome:    model.OutcomeUnnecessary,
		},
		{
			name:       "short result slice",
			height:     11,
			candidates: []common.Address{pairA, pairB},
			results:    []*model.Reserves{reserves(1, 1)},
			want:       Reconciliation{Block: 11, Candidates: 2, Updated: 1, Absent: 1},
			outcome:    model.OutcomeNeeded,
		},
		{
			name:       "older block is stale",
			height:     9,
			candidates: []common.Address{pairA},
			results:    []*model.Reserves{reserves(5, 5)},
			want:       Reconciliation{Block: 9, Candidates: 1, Stale: 1},
			outcome:    model.OutcomeUnnecessary,
		},
		{
			name:       "same block applies",
			height:     10,
			candidates: []common.Address{pairA},
			results:    []*model.Reserves{reserves(5, 5)},
			want:       Reconciliation{Block: 10, Candidates: 1, Updated: 1},
			outcome:    model.OutcomeNeeded,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := seededStore(t, 10)
			tracker := NewTracker()
			r := NewReconciler(store, tracker, nil, nil)

			got := r.Reconcile(tc.height, tc.candidates, tc.results)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.outcome, got.Outcome())
			assert.Equal(t, tc.want.Candidates-tc.want.Updated, got.Unnecessary())

			snap := tracker.Snapshot()
			if tc.outcome == model.OutcomeNeeded {
				assert.Equal(t, uint64(1), snap.NeededCalls)
				assert.Zero(t, snap.UnnecessaryCalls)
			} else {
				assert.Zero(t, snap.NeededCalls)
				assert.Equal(t, uint64(1), snap.UnnecessaryCalls)
			}
			assert.Equal(t, uint64(tc.want.Updated), snap.PairsUpdated)
			assert.Equal(t, uint64(tc.want.Stale), snap.StaleDiscards)
		})
	}
}

func TestReconcileIdempotent(t *testing.T) {
	store := seededStore(t, 10)
	tracker := NewTracker()
	r := NewReconciler(store, tracker, nil, nil)

	candidates := []common.Address{pairA, pairC}
	results := []*model.Reserves{reserves(1, 2), reserves(3, 4)}

	first := r.Reconcile(12, candidates, results)
	second := r.Reconcile(12, candidates, results)

	assert.Equal(t, model.OutcomeNeeded, first.Outcome())
	assert.Equal(t, model.OutcomeUnnecessary, second.Outcome())
	assert.Equal(t, 2, second.Unchanged)

	snap := tracker.Snapshot()
	assert.Equal(t, uint64(1), snap.NeededCalls)
	assert.Equal(t, uint64(1), snap.UnnecessaryCalls)

	pair, ok := store.Get(pairA)
	require.True(t, ok)
	assert.Equal(t, uint64(12), pair.UpdatedAtBlock)
}

func TestReconcileLogsStaleAtDebug(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	store := seededStore(t, 50)
	r := NewReconciler(store, NewTracker(), nil, zap.New(core))

	r.Reconcile(49, []common.Address{pairB}, []*model.Reserves{reserves(7, 7)})

	entries := logs.FilterMessage("stale reserves discarded").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, uint64(50), entries[0].ContextMap()["updated_at"])
}

func TestReconcileDoesNotAliasResults(t *testing.T) {
	store := seededStore(t, 1)
	r := NewReconciler(store, NewTracker(), nil, nil)

	fetched := reserves(8, 9)
	r.Reconcile(2, []common.Address{pairA}, []*model.Reserves{fetched})
	fetched.Reserve0.SetInt64(1000)

	pair, ok := store.Get(pairA)
	require.True(t, ok)
	assert.Equal(t, int64(8), pair.Reserve0.Int64())
}
