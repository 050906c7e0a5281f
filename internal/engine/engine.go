// Package engine wires the scan, evaluate, build, submit and track
// pipeline into one runnable unit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solana-arb/internal/blockhash"
	"solana-arb/internal/builder"
	"solana-arb/internal/domain"
	"solana-arb/internal/evaluator"
	"solana-arb/internal/events"
	"solana-arb/internal/executor"
	"solana-arb/internal/feepolicy"
	"solana-arb/internal/jito"
	"solana-arb/internal/jupiter"
	"solana-arb/internal/observability"
	"solana-arb/internal/scanner"
	"solana-arb/internal/solana"
	"solana-arb/internal/tracker"
)

// Deps are the external collaborators the engine runs against.
type Deps struct {
	Provider jupiter.QuoteProvider
	RPC      solana.RPCClient
	// WS is optional; confirmation tracking falls back to polling alone.
	WS      solana.WSClient
	Relay   jito.BundleSubmitter
	Signer  solana.Signer
	Emitter *events.Emitter
}

// Options assembles the per-component tuning.
type Options struct {
	Cycles    []domain.TokenCycle
	Scanner   scanner.Options
	Evaluator evaluator.Config
	// Policy sizes compute budget and tip. Defaults to the profit-share
	// policy.
	Policy   feepolicy.Policy
	Executor executor.Options
	Tracker  tracker.Options
	// BlockhashRefresh is the cache refresh cadence.
	BlockhashRefresh time.Duration
	// FeeRefresh is the prioritization-fee signal cadence. Defaults to 5s.
	FeeRefresh time.Duration
	Logger     *log.Logger
	Metrics    *observability.Metrics
}

// Engine owns the pipeline goroutines. Construct with New, then Run.
type Engine struct {
	deps   Deps
	opts   Options
	policy feepolicy.Policy
	logger *log.Logger

	cache   *blockhash.Cache
	scanner *scanner.Scanner
	eval    *evaluator.Evaluator
	coord   *executor.Coordinator
	tracker *tracker.Tracker

	fees atomic.Value // []solana.PrioritizationFee

	// runCtx is the lifetime of the current Run, used by callbacks that
	// outlive their triggering call. Written exactly once at the top of
	// Run, before any pipeline goroutine starts; tracker and coordinator
	// callbacks only fire after a Submit from inside Run, so every read
	// is ordered after the write.
	runCtx context.Context
}

// New wires all pipeline components.
func New(deps Deps, opts Options) *Engine {
	if opts.Policy == nil {
		opts.Policy = feepolicy.NewProfitShare()
	}
	if opts.FeeRefresh <= 0 {
		opts.FeeRefresh = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	opts.Scanner.Logger = opts.Logger
	opts.Scanner.Metrics = opts.Metrics
	opts.Executor.Logger = opts.Logger
	opts.Executor.Metrics = opts.Metrics
	opts.Tracker.Logger = opts.Logger
	opts.Tracker.Metrics = opts.Metrics

	e := &Engine{
		deps:   deps,
		opts:   opts,
		policy: opts.Policy,
		logger: opts.Logger,
	}

	e.cache = blockhash.New(deps.RPC, blockhash.Options{
		RefreshInterval: opts.BlockhashRefresh,
		Logger:          opts.Logger,
	})
	e.scanner = scanner.New(deps.Provider, opts.Cycles, opts.Scanner)
	e.eval = evaluator.New(opts.Evaluator, opts.Policy, opts.Logger)

	b := builder.New(deps.Provider, deps.Signer, opts.Logger)
	e.coord = executor.New(b, deps.Relay, e.buildContext, deps.RPC, deps.Emitter, opts.Executor)

	e.tracker = tracker.New(deps.RPC, deps.WS, e.cache, deps.Emitter, opts.Tracker)
	e.tracker.SetOnTerminal(func(rec *domain.ExecutionRecord) {
		e.coord.OnTerminal(e.runCtx, rec)
	})
	e.tracker.SetRebuild(e.rebuild)
	e.coord.SetTrack(e.tracker.Track)

	return e
}

// Run drives the pipeline until the context is cancelled. On shutdown
// every live execution is abandoned before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	e.logger.Printf("[engine] starting with %d cycles", len(e.opts.Cycles))

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		if err := e.cache.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Printf("[engine] blockhash cache: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := e.scanner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			e.logger.Printf("[engine] scanner: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		e.feeLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		e.gaugeLoop(ctx)
	}()

	e.consume(ctx)

	e.tracker.AbandonAll()
	wg.Wait()
	e.logger.Printf("[engine] stopped")
	return ctx.Err()
}

// consume evaluates quote sets and hands opportunities to the
// coordinator until the context ends.
func (e *Engine) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case set := <-e.scanner.Quotes():
			e.handle(ctx, set)
		}
	}
}

func (e *Engine) handle(ctx context.Context, set scanner.QuoteSet) {
	if e.opts.Metrics != nil {
		e.opts.Metrics.QuoteSetsProduced.Inc()
	}

	opp, err := e.eval.Evaluate(set.Cycle, set.Buy, set.Sell, e.recentFees())
	if err != nil {
		if e.opts.Metrics != nil {
			e.opts.Metrics.OpportunitiesRejected.WithLabelValues(rejectReason(err)).Inc()
		}
		return
	}
	if e.opts.Metrics != nil {
		e.opts.Metrics.OpportunitiesFound.Inc()
		e.opts.Metrics.NetProfitLamports.Observe(float64(opp.NetProfit))
	}

	e.submit(ctx, opp)
}

func (e *Engine) submit(ctx context.Context, opp *domain.Opportunity) {
	err := e.coord.Submit(ctx, opp)
	switch {
	case err == nil:
	case errors.Is(err, executor.ErrDuplicate):
		// Already evented and counted by the coordinator.
	default:
		e.logger.Printf("[engine] submit %s: %v", opp.Identity(), err)
	}
}

// buildContext assembles a fresh build context: current blockhash
// snapshot, relay tip account and fee sizing re-derived from the
// latest congestion signal.
func (e *Engine) buildContext(ctx context.Context, opp *domain.Opportunity) (*domain.BuildContext, error) {
	snap, err := e.cache.Current()
	if err != nil {
		return nil, fmt.Errorf("blockhash: %w", err)
	}
	tipAccount, err := e.deps.Relay.TipAccount(ctx)
	if err != nil {
		return nil, fmt.Errorf("tip account: %w", err)
	}

	gross := opp.NetProfit + int64(opp.PriorityFee) + int64(opp.TipLamports)
	decision := e.policy.Decide(gross, e.recentFees())

	return &domain.BuildContext{
		Blockhash:            snap.Blockhash,
		LastValidBlockHeight: snap.LastValidBlockHeight,
		WalletPubkey:         e.deps.Signer.Pubkey(),
		ComputeUnitLimit:     decision.ComputeUnitLimit,
		ComputeUnitPrice:     decision.ComputeUnitPrice,
		TipLamports:          decision.TipLamports,
		TipAccount:           tipAccount,
	}, nil
}

// rebuild re-quotes an expired record's cycle and resubmits when still
// profitable. Runs inside the tracker's expiry path; the record's slot
// is already released and its task context already cancelled, so the
// rebuilt attempt runs on the engine's own context.
func (e *Engine) rebuild(_ context.Context, rec *domain.ExecutionRecord) {
	ctx := e.runCtx
	if rec.Opportunity == nil {
		return
	}
	cycle := rec.Opportunity.Cycle

	buy, err := e.deps.Provider.GetQuote(ctx, jupiter.QuoteRequest{
		InputMint:   cycle.BaseMint,
		OutputMint:  cycle.CycleMint,
		Amount:      cycle.AmountIn,
		SlippageBps: e.opts.Scanner.SlippageBps,
		Dexes:       cycle.Dexes,
	})
	if err != nil {
		e.logger.Printf("[engine] rebuild %s buy quote: %v", rec.ExecutionID, err)
		return
	}
	sell, err := e.deps.Provider.GetQuote(ctx, jupiter.QuoteRequest{
		InputMint:   cycle.CycleMint,
		OutputMint:  cycle.BaseMint,
		Amount:      buy.OtherAmountThreshold,
		SlippageBps: e.opts.Scanner.SlippageBps,
		Dexes:       cycle.Dexes,
	})
	if err != nil {
		e.logger.Printf("[engine] rebuild %s sell quote: %v", rec.ExecutionID, err)
		return
	}

	opp, err := e.eval.Evaluate(cycle, buy, sell, e.recentFees())
	if err != nil {
		e.logger.Printf("[engine] rebuild %s no longer viable: %v", rec.ExecutionID, err)
		return
	}
	opp.Rebuilds = rec.Rebuilds + 1

	e.deps.Emitter.Emit(events.Event{
		Type:        events.TypeRebuilt,
		ExecutionID: opp.ExecutionID,
		Identity:    opp.Identity(),
		NetProfit:   opp.NetProfit,
		Rebuilds:    opp.Rebuilds,
		Detail:      "rebuilt after expiry of " + rec.ExecutionID,
	})
	if e.opts.Metrics != nil {
		e.opts.Metrics.Rebuilds.Inc()
	}
	e.logger.Printf("[engine] rebuilt %s as %s (attempt %d)", rec.ExecutionID, opp.ExecutionID, opp.Rebuilds)

	e.submit(ctx, opp)
}

// feeLoop keeps the prioritization-fee congestion signal fresh.
func (e *Engine) feeLoop(ctx context.Context) {
	ticker := time.NewTicker(e.opts.FeeRefresh)
	defer ticker.Stop()

	for {
		fees, err := e.deps.RPC.GetRecentPrioritizationFees(ctx, nil)
		if err != nil {
			e.logger.Printf("[engine] prioritization fees: %v", err)
		} else {
			e.fees.Store(fees)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// recentFees returns the last observed congestion signal, nil before
// the first fetch.
func (e *Engine) recentFees() []solana.PrioritizationFee {
	fees, _ := e.fees.Load().([]solana.PrioritizationFee)
	return fees
}

// gaugeLoop mirrors chain state into the metrics gauges.
func (e *Engine) gaugeLoop(ctx context.Context) {
	if e.opts.Metrics == nil {
		return
	}
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if height := e.cache.Height(); height > 0 {
				e.opts.Metrics.BlockHeight.Set(float64(height))
			}
			if snap, err := e.cache.Current(); err == nil {
				e.opts.Metrics.BlockhashSlot.Set(float64(snap.Slot))
			}
		}
	}
}

// Live reports the number of executions still being tracked.
func (e *Engine) Live() int {
	return e.tracker.Live()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, evaluator.ErrStaleQuote):
		return "stale_quote"
	case errors.Is(err, evaluator.ErrPriceImpact):
		return "price_impact"
	case errors.Is(err, evaluator.ErrBelowThreshold):
		return "below_threshold"
	case errors.Is(err, evaluator.ErrQuoteMismatch):
		return "quote_mismatch"
	default:
		return "other"
	}
}
