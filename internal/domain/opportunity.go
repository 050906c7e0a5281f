package domain

import (
	"fmt"
	"time"
)

// TokenCycle is one configured two-leg cycle: base -> cycle -> base.
type TokenCycle struct {
	BaseMint  string
	CycleMint string
	AmountIn  uint64
	Dexes     DexSet
}

// Identity is the single-flight key: at most one live execution per
// identity.
func (c TokenCycle) Identity() string {
	return fmt.Sprintf("%s|%s|%d", c.BaseMint, c.CycleMint, c.AmountIn)
}

// Opportunity is an evaluated, profitable quote pair. Consumed at most
// once by the builder; never reused across blockhash epochs.
type Opportunity struct {
	ExecutionID string
	Cycle       TokenCycle
	BuyQuote    *RouteQuote
	SellQuote   *RouteQuote
	// NetProfit is lamports after route fees, priority fee budget and tip.
	NetProfit int64
	// RouteFees is the base-mint aggregator fee total across both legs.
	RouteFees    uint64
	PriorityFee  uint64
	TipLamports  uint64
	DiscoveredAt time.Time
	// Rebuilds counts prior expiry rebuilds in this opportunity's
	// lineage. Zero for a fresh discovery.
	Rebuilds int
}

// Identity returns the cycle's single-flight key.
func (o *Opportunity) Identity() string {
	return o.Cycle.Identity()
}
