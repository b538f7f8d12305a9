package pairs

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/puzpuzpuz/xsync/v4"

	"bloomCache/internal/model"
)

// ErrUnknownPair is returned for addresses outside the tracked set.
var ErrUnknownPair = errors.New("pair is not tracked")

// ApplyResult describes what Apply did with a fetched value.
type ApplyResult int

const (
	// Applied means the cached reserves and height were overwritten.
	Applied ApplyResult = iota
	// Unchanged means the fetched reserves equal the cached ones.
	Unchanged
	// Stale means the pair was already updated at a later block.
	Stale
	// Unknown means the address is not tracked.
	Unknown
)

func (r ApplyResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case Unchanged:
		return "unchanged"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Store is the in-memory reserve cache for a fixed set of pairs.
// Every per-pair read-check-write is atomic; nothing spans more than one pair.
type Store struct {
	order []common.Address
	pairs *xsync.Map[common.Address, model.TrackedPair]
}

// NewStore creates a store holding the given addresses with zero reserves
// at height 0. Duplicate addresses are tracked once, in first-seen order.
func NewStore(addresses []common.Address) *Store {
	s := &Store{
		order: make([]common.Address, 0, len(addresses)),
		pairs: xsync.NewMap[common.Address, model.TrackedPair](),
	}
	for _, addr := range addresses {
		if _, loaded := s.pairs.LoadOrStore(addr, model.TrackedPair{
			Address:  addr,
			Reserve0: new(big.Int),
			Reserve1: new(big.Int),
		}); loaded {
			continue
		}
		s.order = append(s.order, addr)
	}
	return s
}

// Addresses returns the tracked addresses in configuration order.
func (s *Store) Addresses() []common.Address {
	out := make([]common.Address, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of tracked pairs.
func (s *Store) Len() int {
	return len(s.order)
}

// Get returns a copy of the cached pair.
func (s *Store) Get(addr common.Address) (model.TrackedPair, bool) {
	pair, ok := s.pairs.Load(addr)
	if !ok {
		return model.TrackedPair{}, false
	}
	return clonePair(pair), true
}

// Snapshot returns copies of all pairs in configuration order.
func (s *Store) Snapshot() []model.TrackedPair {
	out := make([]model.TrackedPair, 0, len(s.order))
	for _, addr := range s.order {
		if pair, ok := s.Get(addr); ok {
			out = append(out, pair)
		}
	}
	return out
}

// Seed unconditionally sets the reserves and height of a tracked pair.
// It is meant for the initial full fetch, before any block is processed.
func (s *Store) Seed(addr common.Address, reserves model.Reserves, height uint64) error {
	_, ok := s.pairs.Compute(addr, func(old model.TrackedPair, loaded bool) (model.TrackedPair, xsync.ComputeOp) {
		if !loaded {
			return old, xsync.CancelOp
		}
		r := reserves.Copy()
		return model.TrackedPair{
			Address:        addr,
			Reserve0:       r.Reserve0,
			Reserve1:       r.Reserve1,
			UpdatedAtBlock: height,
		}, xsync.UpdateOp
	})
	if !ok {
		return ErrUnknownPair
	}
	return nil
}

// Apply merges reserves fetched for the given block height.
//
// Identical reserves are left alone. A pair already confirmed at a higher
// block keeps its value, so UpdatedAtBlock never decreases. Equal heights
// are not special-cased: the last Apply for a height wins.
func (s *Store) Apply(addr common.Address, height uint64, reserves model.Reserves) (ApplyResult, model.TrackedPair) {
	result := Unknown
	var previous model.TrackedPair
	s.pairs.Compute(addr, func(old model.TrackedPair, loaded bool) (model.TrackedPair, xsync.ComputeOp) {
		if !loaded {
			result = Unknown
			return old, xsync.CancelOp
		}
		previous = old
		if old.Reserves().Equal(reserves) {
			result = Unchanged
			return old, xsync.CancelOp
		}
		if old.UpdatedAtBlock > height {
			result = Stale
			return old, xsync.CancelOp
		}
		r := reserves.Copy()
		result = Applied
		return model.TrackedPair{
			Address:        addr,
			Reserve0:       r.Reserve0,
			Reserve1:       r.Reserve1,
			UpdatedAtBlock: height,
		}, xsync.UpdateOp
	})
	return result, clonePair(previous)
}

func clonePair(p model.TrackedPair) model.TrackedPair {
	r := p.Reserves()
	p.Reserve0 = r.Reserve0
	p.Reserve1 = r.Reserve1
	return p
}
