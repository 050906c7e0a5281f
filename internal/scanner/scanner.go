// Package scanner polls the aggregator for two-leg cycle quotes.
package scanner

import (
	"context"
	"log"
	"sync"
	"time"

	"solana-arb/internal/domain"
	"solana-arb/internal/jupiter"
	"solana-arb/internal/observability"
)

// QuoteSet is one completed round of quotes for a cycle. The sell leg
// is quoted with the buy leg's otherAmountThreshold as input.
type QuoteSet struct {
	Cycle domain.TokenCycle
	Buy   *domain.RouteQuote
	Sell  *domain.RouteQuote
}

// Options configures a Scanner.
type Options struct {
	// PollInterval is the gap between rounds. Defaults to 1s.
	PollInterval time.Duration
	// RequestTimeout bounds each leg's quote request. Defaults to 2s.
	RequestTimeout time.Duration
	// MaxConcurrent bounds in-flight cycle fetches across a round.
	// Defaults to 4.
	MaxConcurrent int
	// SlippageBps is passed through to every quote request.
	SlippageBps int
	Logger      *log.Logger
	Metrics     *observability.Metrics
}

// Scanner turns configured cycles into an infinite stream of quote
// sets. A failed leg logs and skips the cycle for the round; nothing
// retries mid-round.
type Scanner struct {
	provider jupiter.QuoteProvider
	cycles   []domain.TokenCycle
	opts     Options
	sem      chan struct{}
	out      chan QuoteSet
}

// New creates a Scanner over the given cycles.
func New(provider jupiter.QuoteProvider, cycles []domain.TokenCycle, opts Options) *Scanner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 2 * time.Second
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Scanner{
		provider: provider,
		cycles:   cycles,
		opts:     opts,
		sem:      make(chan struct{}, opts.MaxConcurrent),
		out:      make(chan QuoteSet, len(cycles)),
	}
}

// Quotes is the stream of completed quote sets.
func (s *Scanner) Quotes() <-chan QuoteSet {
	return s.out
}

// Run polls until the context is cancelled. The first round starts
// immediately.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		s.round(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// round fetches every cycle concurrently and waits for completion.
func (s *Scanner) round(ctx context.Context) {
	var wg sync.WaitGroup
	for _, cycle := range s.cycles {
		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return
		}

		wg.Add(1)
		go func(cycle domain.TokenCycle) {
			defer wg.Done()
			defer func() { <-s.sem }()
			s.fetchCycle(ctx, cycle)
		}(cycle)
	}
	wg.Wait()

	if s.opts.Metrics != nil {
		s.opts.Metrics.QuoteRoundsTotal.Inc()
	}
}

// fetchCycle quotes both legs sequentially; the sell leg depends on the
// buy leg's threshold.
func (s *Scanner) fetchCycle(ctx context.Context, cycle domain.TokenCycle) {
	buy, err := s.quoteLeg(ctx, jupiter.QuoteRequest{
		InputMint:   cycle.BaseMint,
		OutputMint:  cycle.CycleMint,
		Amount:      cycle.AmountIn,
		SlippageBps: s.opts.SlippageBps,
		Dexes:       cycle.Dexes,
	})
	if err != nil {
		s.opts.Logger.Printf("[scanner] %s buy leg: %v", cycle.CycleMint, err)
		if s.opts.Metrics != nil {
			s.opts.Metrics.QuoteLegErrors.WithLabelValues("buy").Inc()
		}
		return
	}

	sell, err := s.quoteLeg(ctx, jupiter.QuoteRequest{
		InputMint:   cycle.CycleMint,
		OutputMint:  cycle.BaseMint,
		Amount:      buy.OtherAmountThreshold,
		SlippageBps: s.opts.SlippageBps,
		Dexes:       cycle.Dexes,
	})
	if err != nil {
		s.opts.Logger.Printf("[scanner] %s sell leg: %v", cycle.CycleMint, err)
		if s.opts.Metrics != nil {
			s.opts.Metrics.QuoteLegErrors.WithLabelValues("sell").Inc()
		}
		return
	}

	select {
	case s.out <- QuoteSet{Cycle: cycle, Buy: buy, Sell: sell}:
	case <-ctx.Done():
	}
}

func (s *Scanner) quoteLeg(ctx context.Context, req jupiter.QuoteRequest) (*domain.RouteQuote, error) {
	legCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	start := time.Now()
	quote, err := s.provider.GetQuote(legCtx, req)
	if s.opts.Metrics != nil {
		s.opts.Metrics.QuoteLatency.Observe(time.Since(start).Seconds())
	}
	return quote, err
}
