package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Block is the part of a block header the refresher needs.
// Bloom is nil when the source did not provide one.
type Block struct {
	Number *big.Int
	Hash   common.Hash
	Bloom  *types.Bloom
}

// BlockFromHeader builds a Block from a go-ethereum header.
func BlockFromHeader(h *types.Header) Block {
	if h == nil {
		return Block{}
	}
	bloom := h.Bloom
	return Block{
		Number: h.Number,
		Hash:   h.Hash(),
		Bloom:  &bloom,
	}
}

// Valid reports whether the block carries both a height and a hash.
func (b Block) Valid() bool {
	return b.Number != nil && b.Number.Sign() >= 0 && b.Number.IsUint64() && b.Hash != (common.Hash{})
}
