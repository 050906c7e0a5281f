package stub

import (
	"context"
	"sync"

	"solana-arb/internal/solana"
)

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	mu sync.Mutex

	Blockhash   *solana.LatestBlockhash
	BlockHeight uint64
	Slot        int64
	Statuses    map[string]*solana.SignatureStatus
	// DefaultStatus is returned for signatures absent from Statuses.
	DefaultStatus *solana.SignatureStatus
	Simulation    *solana.SimulationResult
	Fees          []solana.PrioritizationFee

	// Err, when set, is returned by every call.
	Err error

	BlockhashCalls int
	StatusCalls    int
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Statuses: make(map[string]*solana.SignatureStatus),
	}
}

// GetLatestBlockhash returns the configured blockhash.
func (c *RPCClient) GetLatestBlockhash(_ context.Context) (*solana.LatestBlockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BlockhashCalls++
	if c.Err != nil {
		return nil, c.Err
	}
	bh := *c.Blockhash
	return &bh, nil
}

// GetBlockHeight returns the configured block height.
func (c *RPCClient) GetBlockHeight(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	return c.BlockHeight, nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	return c.Slot, nil
}

// GetSignatureStatuses returns statuses from the stub store, positionally
// aligned with the input.
func (c *RPCClient) GetSignatureStatuses(_ context.Context, signatures []string) ([]*solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.StatusCalls++
	if c.Err != nil {
		return nil, c.Err
	}
	statuses := make([]*solana.SignatureStatus, len(signatures))
	for i, sig := range signatures {
		if status, ok := c.Statuses[sig]; ok {
			statuses[i] = status
		} else {
			statuses[i] = c.DefaultStatus
		}
	}
	return statuses, nil
}

// SimulateTransaction returns the configured simulation result.
func (c *RPCClient) SimulateTransaction(_ context.Context, _ string) (*solana.SimulationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Simulation == nil {
		return &solana.SimulationResult{}, nil
	}
	sim := *c.Simulation
	return &sim, nil
}

// GetRecentPrioritizationFees returns the configured fee samples.
func (c *RPCClient) GetRecentPrioritizationFees(_ context.Context, _ []string) ([]solana.PrioritizationFee, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Fees, nil
}

// SetBlockHeight updates the reported block height.
func (c *RPCClient) SetBlockHeight(h uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.BlockHeight = h
}

// SetStatus records a status for a signature.
func (c *RPCClient) SetStatus(signature string, status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Statuses[signature] = status
}

// SetDefaultStatus sets the status returned for unknown signatures.
func (c *RPCClient) SetDefaultStatus(status *solana.SignatureStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DefaultStatus = status
}
