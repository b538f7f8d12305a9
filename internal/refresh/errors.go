package refresh

import (
	"fmt"
)

// FetchError is reported when the batched reserve fetch for a block fails.
// The block is abandoned; other blocks are unaffected.
type FetchError struct {
	Block      uint64
	Candidates int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("block %d: fetch reserves for %d candidates: %v", e.Block, e.Candidates, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MalformedBlockError is reported for blocks missing a height or hash.
type MalformedBlockError struct {
	Reason string
}

func (e *MalformedBlockError) Error() string {
	return fmt.Sprintf("malformed block: %s", e.Reason)
}
