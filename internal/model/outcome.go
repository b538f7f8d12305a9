package model

// Outcome classifies what happened to a block.
type Outcome string

const (
	OutcomeTrueNegative Outcome = "true_negative"
	OutcomeNeeded       Outcome = "needed"
	OutcomeUnnecessary  Outcome = "unnecessary"
	OutcomeError        Outcome = "error"
	OutcomeMalformed    Outcome = "malformed"
)

// BlockOutcome is the audit record written for every classified block.
type BlockOutcome struct {
	BlockNumber uint64  `json:"block_number"`
	BlockHash   string  `json:"block_hash"`
	Outcome     Outcome `json:"outcome"`
	Reason      string  `json:"reason,omitempty"`
	Candidates  int     `json:"candidates"`
	Updated     int     `json:"updated"`
	Unchanged   int     `json:"unchanged"`
	Stale       int     `json:"stale"`
	Absent      int     `json:"absent"`
	DurationMs  int64   `json:"duration_ms"`
	Error       string  `json:"error,omitempty"`
	ObservedAt  string  `json:"observed_at"`
}
