package bloom

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Probe tests membership in a block logs bloom.
//
// Implementations must never report false for a value that was added to the
// bloom. They may report true for values that were not.
type Probe interface {
	TopicInBloom(bloom types.Bloom, topic common.Hash) bool
	AddressInBloom(bloom types.Bloom, address common.Address) bool
}

// EthProbe is the Probe backed by go-ethereum's 2048-bit logs bloom.
type EthProbe struct{}

func (EthProbe) TopicInBloom(bloom types.Bloom, topic common.Hash) bool {
	return bloom.Test(topic.Bytes())
}

func (EthProbe) AddressInBloom(bloom types.Bloom, address common.Address) bool {
	return bloom.Test(address.Bytes())
}

// FromLogs builds the bloom a node would publish for the given logs.
func FromLogs(logs []*types.Log) types.Bloom {
	var bloom types.Bloom
	for _, log := range logs {
		bloom.Add(log.Address.Bytes())
		for _, topic := range log.Topics {
			bloom.Add(topic.Bytes())
		}
	}
	return bloom
}
