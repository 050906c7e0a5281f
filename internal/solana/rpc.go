package solana

import "context"

// RPCClient defines the chain RPC operations the engine consumes.
type RPCClient interface {
	// GetLatestBlockhash retrieves the current blockhash and its
	// validity window.
	GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error)

	// GetBlockHeight retrieves the current block height.
	GetBlockHeight(ctx context.Context) (uint64, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)

	// GetSignatureStatuses retrieves landing status for signatures.
	// Entries are nil for signatures the cluster has not seen.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// SimulateTransaction simulates a base64-encoded signed transaction.
	SimulateTransaction(ctx context.Context, txBase64 string) (*SimulationResult, error)

	// GetRecentPrioritizationFees retrieves recent per-slot priority
	// fees paid for the given accounts. Used as a congestion signal.
	GetRecentPrioritizationFees(ctx context.Context, accounts []string) ([]PrioritizationFee, error)
}
