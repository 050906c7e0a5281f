package evaluator

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"solana-arb/internal/domain"
	"solana-arb/internal/feepolicy"
	"solana-arb/internal/solana"
)

// Rejection reasons.
var (
	ErrStaleQuote     = errors.New("quote older than max age")
	ErrPriceImpact    = errors.New("price impact at or above ceiling")
	ErrBelowThreshold = errors.New("net profit at or below minimum")
	ErrQuoteMismatch  = errors.New("quote legs do not close the cycle")
)

// Config holds evaluation thresholds.
type Config struct {
	// MinProfitLamports is the strict lower bound: net profit must exceed it.
	MinProfitLamports int64
	// MaxPriceImpactBps is an exclusive ceiling per leg. One bps below
	// passes, the ceiling itself rejects.
	MaxPriceImpactBps int64
	// MaxQuoteAge bounds quote staleness. Defaults to one slot (~400ms).
	MaxQuoteAge time.Duration
}

// Evaluator turns completed quote sets into ranked opportunities.
type Evaluator struct {
	cfg    Config
	policy feepolicy.Policy
	logger *log.Logger
	now    func() time.Time
}

// New creates an Evaluator.
func New(cfg Config, policy feepolicy.Policy, logger *log.Logger) *Evaluator {
	if cfg.MaxQuoteAge <= 0 {
		cfg.MaxQuoteAge = 400 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Evaluator{
		cfg:    cfg,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Evaluate inspects one completed two-leg quote set. recentFees is the
// congestion signal used to budget the priority fee and size the tip.
// A rejection returns one of the sentinel errors above.
func (e *Evaluator) Evaluate(cycle domain.TokenCycle, buy, sell *domain.RouteQuote, recentFees []solana.PrioritizationFee) (*domain.Opportunity, error) {
	if buy.InputMint != cycle.BaseMint || buy.OutputMint != cycle.CycleMint ||
		sell.InputMint != cycle.CycleMint || sell.OutputMint != cycle.BaseMint {
		return nil, ErrQuoteMismatch
	}

	now := e.now()
	if buy.Age(now) > e.cfg.MaxQuoteAge || sell.Age(now) > e.cfg.MaxQuoteAge {
		return nil, ErrStaleQuote
	}

	if e.cfg.MaxPriceImpactBps > 0 {
		if buy.PriceImpactBps >= e.cfg.MaxPriceImpactBps || sell.PriceImpactBps >= e.cfg.MaxPriceImpactBps {
			return nil, ErrPriceImpact
		}
	}

	routeFees := buy.RouteFeesIn(cycle.BaseMint) + sell.RouteFeesIn(cycle.BaseMint)
	gross := int64(sell.OtherAmountThreshold) - int64(cycle.AmountIn) - int64(routeFees)

	decision := e.policy.Decide(gross, recentFees)
	net := gross - int64(decision.PriorityFeeLamports()) - int64(decision.TipLamports)

	if net <= e.cfg.MinProfitLamports {
		return nil, fmt.Errorf("%w: net %d, min %d", ErrBelowThreshold, net, e.cfg.MinProfitLamports)
	}

	return &domain.Opportunity{
		ExecutionID:  uuid.NewString(),
		Cycle:        cycle,
		BuyQuote:     buy,
		SellQuote:    sell,
		NetProfit:    net,
		RouteFees:    routeFees,
		PriorityFee:  decision.PriorityFeeLamports(),
		TipLamports:  decision.TipLamports,
		DiscoveredAt: now,
	}, nil
}

// Rank orders opportunities for limited submission slots: descending
// net profit, ties broken by earliest discovery.
func Rank(opps []*domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].NetProfit != opps[j].NetProfit {
			return opps[i].NetProfit > opps[j].NetProfit
		}
		return opps[i].DiscoveredAt.Before(opps[j].DiscoveredAt)
	})
}
