package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"solana-arb/internal/domain"
	"solana-arb/internal/events"
	"solana-arb/internal/jito"
	"solana-arb/internal/observability"
	"solana-arb/internal/solana"
)

// BundleBuilder renders an opportunity into a signed bundle.
type BundleBuilder interface {
	Build(ctx context.Context, opp *domain.Opportunity, bctx *domain.BuildContext) (*domain.SignedBundle, error)
}

// ContextSource produces a fresh build context for an opportunity.
type ContextSource func(ctx context.Context, opp *domain.Opportunity) (*domain.BuildContext, error)

// TrackFunc hands an accepted record to the confirmation tracker.
type TrackFunc func(ctx context.Context, rec *domain.ExecutionRecord)

// Options configures a Coordinator.
type Options struct {
	// MaxInFlight caps concurrently pending executions. Defaults to 2.
	MaxInFlight int
	// QueueCapacity bounds the overflow queue. Defaults to 16.
	QueueCapacity int
	// SimulateOnly routes bundles to simulateTransaction instead of the
	// relay. Nothing is submitted or tracked.
	SimulateOnly bool
	Logger       *log.Logger
	Metrics      *observability.Metrics
}

// Coordinator owns the submission path: single-flight claim, in-flight
// cap, relay submission and record creation.
type Coordinator struct {
	registry *Registry
	queue    *Queue
	builder  BundleBuilder
	relay    jito.BundleSubmitter
	contexts ContextSource
	track    TrackFunc
	rpc      solana.RPCClient
	emitter  *events.Emitter
	opts     Options

	inFlight atomic.Int64
}

// New creates a Coordinator.
func New(builder BundleBuilder, relay jito.BundleSubmitter, contexts ContextSource, rpc solana.RPCClient, emitter *events.Emitter, opts Options) *Coordinator {
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 2
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 16
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Coordinator{
		registry: NewRegistry(),
		queue:    NewQueue(opts.QueueCapacity),
		builder:  builder,
		relay:    relay,
		contexts: contexts,
		rpc:      rpc,
		emitter:  emitter,
		opts:     opts,
	}
}

// SetTrack registers the tracker hand-off. Must be set before Submit.
func (c *Coordinator) SetTrack(fn TrackFunc) {
	c.track = fn
}

// Registry exposes the single-flight registry for slot release.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// Submit claims the opportunity's identity and either submits now or
// queues for a free slot. A duplicate identity is rejected loudly with
// ErrDuplicate.
func (c *Coordinator) Submit(ctx context.Context, opp *domain.Opportunity) error {
	if err := c.registry.Reserve(opp.Identity()); err != nil {
		c.emitter.Emit(events.Event{
			Type:        events.TypeDuplicate,
			ExecutionID: opp.ExecutionID,
			Identity:    opp.Identity(),
			Detail:      "identity already live",
		})
		if c.opts.Metrics != nil {
			c.opts.Metrics.DuplicateRejects.Inc()
		}
		c.opts.Logger.Printf("[executor] duplicate submission for %s", opp.Identity())
		return fmt.Errorf("submit %s: %w", opp.Identity(), ErrDuplicate)
	}

	if !c.acquireSlot() {
		evicted, accepted := c.queue.Push(opp)
		if !accepted {
			c.drop(opp, "overflow queue full")
			return fmt.Errorf("submit %s: queue full, opportunity dropped", opp.Identity())
		}
		if evicted != nil {
			c.drop(evicted, "evicted from overflow queue")
		}
		if c.opts.Metrics != nil {
			c.opts.Metrics.QueueDepth.Set(float64(c.queue.Len()))
		}
		return nil
	}

	return c.launch(ctx, opp)
}

// acquireSlot reserves one in-flight slot. The increment happens at
// the cap check, so concurrent submitters cannot all pass it and
// exceed the cap.
func (c *Coordinator) acquireSlot() bool {
	for {
		n := c.inFlight.Load()
		if n >= int64(c.opts.MaxInFlight) {
			return false
		}
		if c.inFlight.CompareAndSwap(n, n+1) {
			if c.opts.Metrics != nil {
				c.opts.Metrics.InFlightExecutions.Set(float64(n + 1))
			}
			return true
		}
	}
}

func (c *Coordinator) releaseSlot() {
	n := c.inFlight.Add(-1)
	if c.opts.Metrics != nil {
		c.opts.Metrics.InFlightExecutions.Set(float64(n))
	}
}

// drop releases a claimed opportunity that will never be submitted and
// emits its terminal event.
func (c *Coordinator) drop(opp *domain.Opportunity, detail string) {
	c.registry.Release(opp.Identity())
	c.emitter.Emit(events.Event{
		Type:        events.TypeAbandoned,
		ExecutionID: opp.ExecutionID,
		Identity:    opp.Identity(),
		NetProfit:   opp.NetProfit,
		Rebuilds:    opp.Rebuilds,
		Detail:      detail,
	})
	c.opts.Logger.Printf("[executor] dropped %s: %s", opp.Identity(), detail)
}

// launch builds, signs and submits one claimed opportunity. The caller
// holds an in-flight slot; launch releases it on every outcome except
// a pending submission.
func (c *Coordinator) launch(ctx context.Context, opp *domain.Opportunity) error {
	identity := opp.Identity()

	bctx, err := c.contexts(ctx, opp)
	if err != nil {
		c.registry.Release(identity)
		c.releaseSlot()
		return fmt.Errorf("build context: %w", err)
	}

	bundle, err := c.builder.Build(ctx, opp, bctx)
	if err != nil {
		c.registry.Release(identity)
		c.releaseSlot()
		return fmt.Errorf("build bundle: %w", err)
	}

	if c.opts.SimulateOnly {
		defer c.releaseSlot()
		defer c.registry.Release(identity)
		return c.simulate(ctx, opp, bundle)
	}

	bundleID, err := c.relay.SubmitBundle(ctx, bundle.Transactions)
	if err != nil {
		// Relay rejection is terminal for the attempt: no record, no
		// polling task, slot freed immediately.
		c.registry.Release(identity)
		c.releaseSlot()
		c.emitter.Emit(events.Event{
			Type:        events.TypeFailed,
			ExecutionID: opp.ExecutionID,
			Identity:    identity,
			NetProfit:   opp.NetProfit,
			Detail:      err.Error(),
		})
		if c.opts.Metrics != nil {
			c.opts.Metrics.BundlesRejected.Inc()
		}
		var rejected *jito.ErrRejected
		if errors.As(err, &rejected) {
			return fmt.Errorf("relay rejected bundle: %w", err)
		}
		return fmt.Errorf("submit bundle: %w", err)
	}

	rec := &domain.ExecutionRecord{
		ExecutionID: opp.ExecutionID,
		Identity:    identity,
		Opportunity: opp,
		Context:     bctx,
		Bundle:      bundle,
		BundleID:    bundleID,
		SubmittedAt: time.Now(),
		Status:      domain.StatusPending,
		Rebuilds:    opp.Rebuilds,
	}
	c.registry.Bind(identity, rec)

	c.emitter.Emit(events.Event{
		Type:        events.TypeSubmitted,
		ExecutionID: rec.ExecutionID,
		Identity:    identity,
		BundleID:    bundleID,
		NetProfit:   opp.NetProfit,
	})
	if c.opts.Metrics != nil {
		c.opts.Metrics.BundlesSubmitted.Inc()
	}
	c.opts.Logger.Printf("[executor] submitted %s as bundle %s (net %d)", rec.ExecutionID, bundleID, opp.NetProfit)

	c.track(ctx, rec)
	return nil
}

// simulate runs every bundle transaction through simulateTransaction
// and logs program output.
func (c *Coordinator) simulate(ctx context.Context, opp *domain.Opportunity, bundle *domain.SignedBundle) error {
	for i, tx := range bundle.TransactionsBase64 {
		result, err := c.rpc.SimulateTransaction(ctx, tx)
		if err != nil {
			return fmt.Errorf("simulate tx %d: %w", i, err)
		}
		for _, line := range result.Logs {
			c.opts.Logger.Printf("[executor] sim tx %d: %s", i, line)
		}
		if result.Err != nil {
			return fmt.Errorf("simulate tx %d: %v", i, result.Err)
		}
	}

	c.emitter.Emit(events.Event{
		Type:        events.TypeSimulated,
		ExecutionID: opp.ExecutionID,
		Identity:    opp.Identity(),
		NetProfit:   opp.NetProfit,
	})
	return nil
}

// OnTerminal releases the record's slot and dispatches the next queued
// opportunity if any. Wired as the tracker's terminal callback. When
// the run context is already done (operator stop) the queue is drained
// instead of dispatched; a launch at that point could only fail.
func (c *Coordinator) OnTerminal(ctx context.Context, rec *domain.ExecutionRecord) {
	c.registry.Release(rec.Identity)
	c.releaseSlot()

	if ctx.Err() != nil {
		c.drain()
		return
	}

	next := c.queue.Pop()
	if c.opts.Metrics != nil {
		c.opts.Metrics.QueueDepth.Set(float64(c.queue.Len()))
	}
	if next == nil {
		return
	}
	if !c.acquireSlot() {
		// A concurrent submitter took the freed slot; requeue and wait
		// for the next terminal.
		c.requeue(next)
		return
	}

	go func() {
		if err := c.launch(ctx, next); err != nil {
			c.opts.Logger.Printf("[executor] queued launch %s: %v", next.Identity(), err)
		}
	}()
}

func (c *Coordinator) requeue(opp *domain.Opportunity) {
	evicted, accepted := c.queue.Push(opp)
	if !accepted {
		c.drop(opp, "overflow queue full")
	} else if evicted != nil {
		c.drop(evicted, "evicted from overflow queue")
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.QueueDepth.Set(float64(c.queue.Len()))
	}
}

// drain releases every queued opportunity on operator stop.
func (c *Coordinator) drain() {
	for {
		next := c.queue.Pop()
		if next == nil {
			break
		}
		c.drop(next, "engine stopping")
	}
	if c.opts.Metrics != nil {
		c.opts.Metrics.QueueDepth.Set(0)
	}
}

// InFlight returns the number of pending executions.
func (c *Coordinator) InFlight() int {
	return int(c.inFlight.Load())
}
