package domain

import (
	"encoding/json"
	"time"
)

// WSOLMint is the wrapped SOL mint, the base of every configured cycle.
const WSOLMint = "So11111111111111111111111111111111111111112"

// RouteQuote is one aggregator quote leg. Immutable after creation;
// amounts are lamport base units. Raw keeps the verbatim response body
// for the swap-instructions round trip.
type RouteQuote struct {
	InputMint            string
	OutputMint           string
	InAmount             uint64
	OutAmount            uint64
	OtherAmountThreshold uint64
	// PriceImpactBps is the quoted price impact in basis points, parsed
	// from the aggregator's decimal string without floating point.
	PriceImpactBps int64
	SlippageBps    int
	RoutePlan      []RouteHop
	ContextSlot    int64
	FetchedAt      time.Time
	Raw            json.RawMessage
}

// RouteHop is one AMM hop of a route plan.
type RouteHop struct {
	AMMKey     string
	Label      string
	InputMint  string
	OutputMint string
	FeeAmount  uint64
	FeeMint    string
	Percent    int
}

// RouteFeesIn sums the route fees denominated in the given mint.
func (q *RouteQuote) RouteFeesIn(mint string) uint64 {
	var total uint64
	for _, hop := range q.RoutePlan {
		if hop.FeeMint == mint {
			total += hop.FeeAmount
		}
	}
	return total
}

// Age returns how long ago the quote was fetched.
func (q *RouteQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.FetchedAt)
}
