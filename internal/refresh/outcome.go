package refresh

import (
	"time"

	"bloomCache/internal/model"
)

func newOutcome(block model.Block, kind model.Outcome, reason string) model.BlockOutcome {
	var number uint64
	if block.Number != nil && block.Number.IsUint64() {
		number = block.Number.Uint64()
	}

	return model.BlockOutcome{
		BlockNumber: number,
		BlockHash:   block.Hash.Hex(),
		Outcome:     kind,
		Reason:      reason,
		ObservedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
}
