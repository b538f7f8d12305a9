package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Reserves is a getReserves() result for a single pair.
type Reserves struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// Equal reports whether both reserve values match.
func (r Reserves) Equal(other Reserves) bool {
	return cmpBig(r.Reserve0, other.Reserve0) == 0 && cmpBig(r.Reserve1, other.Reserve1) == 0
}

// Copy returns a deep copy so callers never share big.Int storage.
func (r Reserves) Copy() Reserves {
	return Reserves{Reserve0: copyBig(r.Reserve0), Reserve1: copyBig(r.Reserve1)}
}

// TrackedPair is the cached state of one tracked pair contract.
type TrackedPair struct {
	Address        common.Address
	Reserve0       *big.Int
	Reserve1       *big.Int
	UpdatedAtBlock uint64
}

// Reserves returns a copy of the cached reserve values.
func (p TrackedPair) Reserves() Reserves {
	return Reserves{Reserve0: copyBig(p.Reserve0), Reserve1: copyBig(p.Reserve1)}
}

// Record converts the pair into its JSON output form.
func (p TrackedPair) Record() PairRecord {
	return PairRecord{
		Address:        p.Address.Hex(),
		Reserve0:       bigString(p.Reserve0),
		Reserve1:       bigString(p.Reserve1),
		UpdatedAtBlock: p.UpdatedAtBlock,
	}
}

// PairRecord is the JSON representation of a cached pair. Reserves are
// decimal strings since they routinely exceed float64 precision.
type PairRecord struct {
	Address        string `json:"address"`
	Reserve0       string `json:"reserve0"`
	Reserve1       string `json:"reserve1"`
	UpdatedAtBlock uint64 `json:"updated_at_block"`
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func cmpBig(a, b *big.Int) int {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b)
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
