package solana

// LatestBlockhash from getLatestBlockhash.
type LatestBlockhash struct {
	Blockhash            string
	LastValidBlockHeight uint64
	// Slot is the context slot the value was observed at.
	Slot int64
}

// SignatureStatus from getSignatureStatuses.
type SignatureStatus struct {
	Slot int64
	// Confirmations is nil once the transaction is rooted.
	Confirmations *int
	// ConfirmationStatus is "processed", "confirmed" or "finalized".
	ConfirmationStatus string
	// Err is non-nil when the transaction executed and failed on chain.
	Err interface{}
}

// Confirmed reports whether the status has reached at least the
// confirmed commitment.
func (s *SignatureStatus) Confirmed() bool {
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// SimulationResult from simulateTransaction.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
}

// PrioritizationFee from getRecentPrioritizationFees.
type PrioritizationFee struct {
	Slot int64
	// PrioritizationFee is in micro-lamports per compute unit.
	PrioritizationFee uint64
}
