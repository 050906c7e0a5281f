package domain

import "time"

// Status is the lifecycle state of one execution attempt.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusLanded    Status = "LANDED"
	StatusExpired   Status = "EXPIRED"
	StatusFailed    Status = "FAILED"
	StatusAbandoned Status = "ABANDONED"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusLanded, StatusExpired, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// BuildContext is the chain state a bundle was built against. Valid
// only while the observed block height has not passed
// LastValidBlockHeight.
type BuildContext struct {
	Blockhash            string
	LastValidBlockHeight uint64
	WalletPubkey         string
	ComputeUnitLimit     uint32
	// ComputeUnitPrice is in micro-lamports per compute unit.
	ComputeUnitPrice uint64
	TipLamports      uint64
	TipAccount       string
}

// Expired reports whether the context's blockhash can no longer land.
func (c *BuildContext) Expired(blockHeight uint64) bool {
	return blockHeight > c.LastValidBlockHeight
}

// SignedBundle is a fully signed transaction set ready for the relay.
type SignedBundle struct {
	// Signatures holds each transaction's primary signature, base58.
	Signatures []string
	// Transactions holds the wire transactions base58-encoded, the
	// relay submission form.
	Transactions []string
	// TransactionsBase64 holds the same transactions base64-encoded,
	// the simulation form.
	TransactionsBase64 []string
}

// ExecutionRecord tracks one submitted attempt from relay acceptance to
// a terminal status.
type ExecutionRecord struct {
	ExecutionID string
	Identity    string
	Opportunity *Opportunity
	Context     *BuildContext
	Bundle      *SignedBundle
	BundleID    string
	SubmittedAt time.Time
	Status      Status
	Rebuilds    int
}
