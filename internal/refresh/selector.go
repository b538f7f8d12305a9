package refresh

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"bloomCache/internal/bloom"
)

// SelectCandidates returns the tracked pairs whose address may appear in the
// block bloom. The topic is tested first and the per-address tests run only
// when it hits; topicHit reports that first test. A nil bloom selects nothing.
//
// Candidates keep the order of addresses.
func SelectCandidates(probe bloom.Probe, b *types.Bloom, topic common.Hash, addresses []common.Address) (candidates []common.Address, topicHit bool) {
	if b == nil {
		return nil, false
	}
	if !probe.TopicInBloom(*b, topic) {
		return nil, false
	}
	for _, addr := range addresses {
		if probe.AddressInBloom(*b, addr) {
			candidates = append(candidates, addr)
		}
	}
	return candidates, true
}
