package feepolicy

import (
	"sort"

	"solana-arb/internal/solana"
)

// Defaults.
const (
	DefaultComputeUnitLimit = 600_000
	DefaultComputeUnitPrice = 10_000 // micro-lamports per CU
	DefaultTipBps           = 5_000  // half of expected profit
	DefaultMaxTipLamports   = 100_000_000
)

// Decision is the fee and tip sizing for one attempt.
type Decision struct {
	ComputeUnitLimit uint32
	// ComputeUnitPrice is in micro-lamports per compute unit.
	ComputeUnitPrice uint64
	TipLamports      uint64
}

// PriorityFeeLamports is the lamport budget the compute budget
// instructions can consume at most.
func (d Decision) PriorityFeeLamports() uint64 {
	return uint64(d.ComputeUnitLimit) * d.ComputeUnitPrice / 1_000_000
}

// Policy sizes compute budget and tip for an expected gross profit,
// given a recent congestion signal.
type Policy interface {
	Decide(grossProfit int64, recentFees []solana.PrioritizationFee) Decision
}

// ProfitShare tips a fixed fraction of expected profit, capped by an
// absolute maximum, and prices compute units from the recent
// prioritization-fee signal.
type ProfitShare struct {
	// TipBps is the tipped fraction of gross profit in basis points.
	TipBps int64
	// MaxTipLamports caps the tip regardless of profit.
	MaxTipLamports uint64
	// ComputeUnitLimit is the per-transaction CU ceiling.
	ComputeUnitLimit uint32
	// MinComputeUnitPrice floors the CU price when the congestion signal
	// is empty or quiet.
	MinComputeUnitPrice uint64
}

// NewProfitShare returns the default sizing policy.
func NewProfitShare() *ProfitShare {
	return &ProfitShare{
		TipBps:              DefaultTipBps,
		MaxTipLamports:      DefaultMaxTipLamports,
		ComputeUnitLimit:    DefaultComputeUnitLimit,
		MinComputeUnitPrice: DefaultComputeUnitPrice,
	}
}

// Decide implements Policy.
func (p *ProfitShare) Decide(grossProfit int64, recentFees []solana.PrioritizationFee) Decision {
	var tip uint64
	if grossProfit > 0 {
		tip = uint64(grossProfit) * uint64(p.TipBps) / 10_000
	}
	if tip > p.MaxTipLamports {
		tip = p.MaxTipLamports
	}

	price := medianFee(recentFees)
	if price < p.MinComputeUnitPrice {
		price = p.MinComputeUnitPrice
	}

	return Decision{
		ComputeUnitLimit: p.ComputeUnitLimit,
		ComputeUnitPrice: price,
		TipLamports:      tip,
	}
}

// medianFee returns the median of the nonzero recent fees, zero when
// the signal is empty.
func medianFee(fees []solana.PrioritizationFee) uint64 {
	nonzero := make([]uint64, 0, len(fees))
	for _, f := range fees {
		if f.PrioritizationFee > 0 {
			nonzero = append(nonzero, f.PrioritizationFee)
		}
	}
	if len(nonzero) == 0 {
		return 0
	}
	sort.Slice(nonzero, func(i, j int) bool { return nonzero[i] < nonzero[j] })
	return nonzero[len(nonzero)/2]
}
