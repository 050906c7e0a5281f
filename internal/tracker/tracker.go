// Package tracker drives submitted executions to a terminal status.
package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"solana-arb/internal/domain"
	"solana-arb/internal/events"
	"solana-arb/internal/observability"
	"solana-arb/internal/solana"
)

// HeightSource reports the most recently observed block height.
type HeightSource interface {
	Height() uint64
}

// Options configures a Tracker.
type Options struct {
	// PollInterval is the getSignatureStatuses cadence. Defaults to 1s.
	PollInterval time.Duration
	// MaxRebuilds caps expiry rebuilds per opportunity before abandoning.
	MaxRebuilds int
	Logger      *log.Logger
	Metrics     *observability.Metrics
}

// Tracker watches pending executions via status polling and optional
// signature subscriptions. All transitions are idempotent; a terminal
// transition emits exactly one event, cancels the record's polling
// task and releases the single-flight slot through onTerminal.
type Tracker struct {
	rpc     solana.RPCClient
	ws      solana.WSClient
	heights HeightSource
	emitter *events.Emitter
	opts    Options

	// onTerminal releases the single-flight slot. Set by the engine
	// before tracking starts.
	onTerminal func(*domain.ExecutionRecord)
	// rebuild resubmits an expired record's opportunity with a fresh
	// context. Called only while the rebuild budget lasts.
	rebuild func(context.Context, *domain.ExecutionRecord)

	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

// New creates a Tracker. ws may be nil; polling then stands alone.
func New(rpc solana.RPCClient, ws solana.WSClient, heights HeightSource, emitter *events.Emitter, opts Options) *Tracker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Tracker{
		rpc:     rpc,
		ws:      ws,
		heights: heights,
		emitter: emitter,
		opts:    opts,
		tasks:   make(map[string]context.CancelFunc),
	}
}

// SetOnTerminal registers the slot-release callback.
func (t *Tracker) SetOnTerminal(fn func(*domain.ExecutionRecord)) {
	t.onTerminal = fn
}

// SetRebuild registers the expiry rebuild callback.
func (t *Tracker) SetRebuild(fn func(context.Context, *domain.ExecutionRecord)) {
	t.rebuild = fn
}

// Track starts watching a pending record.
func (t *Tracker) Track(ctx context.Context, rec *domain.ExecutionRecord) {
	taskCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	t.tasks[rec.ExecutionID] = cancel
	t.mu.Unlock()

	go t.watch(taskCtx, rec)
}

// AbandonAll force-terminates every live record, used on operator stop.
func (t *Tracker) AbandonAll() {
	t.mu.Lock()
	ids := make([]string, 0, len(t.tasks))
	for id := range t.tasks {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	// Cancellation alone does not transition; watch goroutines may have
	// exited already. Records are transitioned by their watchers on
	// context cancel, so here we only cancel.
	for _, id := range ids {
		t.mu.Lock()
		cancel, ok := t.tasks[id]
		t.mu.Unlock()
		if ok {
			cancel()
		}
	}
}

// watch polls until the record goes terminal or the context ends.
func (t *Tracker) watch(ctx context.Context, rec *domain.ExecutionRecord) {
	var wsCh <-chan solana.SignatureNotification
	if t.ws != nil && len(rec.Bundle.Signatures) > 0 {
		ch, err := t.ws.SubscribeSignature(ctx, rec.Bundle.Signatures[0])
		if err != nil {
			t.opts.Logger.Printf("[tracker] %s signature subscribe: %v", rec.ExecutionID, err)
		} else {
			wsCh = ch
		}
	}

	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Transition(rec, domain.StatusAbandoned, "tracking stopped")
			return
		case n, ok := <-wsCh:
			if !ok {
				wsCh = nil
				continue
			}
			if n.Err != nil {
				if t.Transition(rec, domain.StatusFailed, "on-chain error") {
					return
				}
				continue
			}
			if t.Transition(rec, domain.StatusLanded, "") {
				return
			}
		case <-ticker.C:
			if t.checkOnce(ctx, rec) {
				return
			}
		}
	}
}

// checkOnce performs one poll. Returns true when the record went
// terminal.
func (t *Tracker) checkOnce(ctx context.Context, rec *domain.ExecutionRecord) bool {
	pollCtx, cancel := context.WithTimeout(ctx, t.opts.PollInterval)
	statuses, err := t.rpc.GetSignatureStatuses(pollCtx, rec.Bundle.Signatures)
	cancel()
	if err != nil {
		t.opts.Logger.Printf("[tracker] %s status poll: %v", rec.ExecutionID, err)
		return false
	}

	confirmed := len(statuses) > 0
	for _, status := range statuses {
		if status == nil {
			confirmed = false
			continue
		}
		if status.Err != nil {
			return t.Transition(rec, domain.StatusFailed, "on-chain error")
		}
		if !status.Confirmed() {
			confirmed = false
		}
	}
	if confirmed {
		return t.Transition(rec, domain.StatusLanded, "")
	}

	// Not landed: check the validity window.
	if height := t.heights.Height(); height > 0 && rec.Context.Expired(height) {
		return t.expire(ctx, rec)
	}

	return false
}

// expire transitions past the validity window, rebuilding while the
// budget lasts.
func (t *Tracker) expire(ctx context.Context, rec *domain.ExecutionRecord) bool {
	if rec.Rebuilds >= t.opts.MaxRebuilds {
		return t.Transition(rec, domain.StatusAbandoned, "rebuild budget exhausted")
	}

	if !t.Transition(rec, domain.StatusExpired, "") {
		return false
	}
	if t.rebuild != nil {
		t.rebuild(ctx, rec)
	}
	return true
}

// Transition moves a record to a terminal status. Idempotent: only the
// first terminal transition wins, emits its event, cancels the polling
// task and releases the slot. Returns whether this call won.
func (t *Tracker) Transition(rec *domain.ExecutionRecord, status domain.Status, detail string) bool {
	t.mu.Lock()
	if rec.Status.Terminal() {
		t.mu.Unlock()
		return false
	}
	rec.Status = status
	cancel, hadTask := t.tasks[rec.ExecutionID]
	delete(t.tasks, rec.ExecutionID)
	t.mu.Unlock()

	if hadTask {
		cancel()
	}

	t.emitter.Emit(events.Event{
		Type:        eventType(status),
		ExecutionID: rec.ExecutionID,
		Identity:    rec.Identity,
		BundleID:    rec.BundleID,
		NetProfit:   profitOf(rec),
		Rebuilds:    rec.Rebuilds,
		Detail:      detail,
	})

	if t.opts.Metrics != nil {
		t.opts.Metrics.ExecutionsTerminal.WithLabelValues(string(status)).Inc()
		if status == domain.StatusLanded && !rec.SubmittedAt.IsZero() {
			t.opts.Metrics.ConfirmationTime.Observe(time.Since(rec.SubmittedAt).Seconds())
		}
	}

	t.opts.Logger.Printf("[tracker] %s -> %s (bundle %s)", rec.ExecutionID, status, rec.BundleID)

	if t.onTerminal != nil {
		t.onTerminal(rec)
	}
	return true
}

// Live returns the number of records still being watched.
func (t *Tracker) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tasks)
}

func eventType(status domain.Status) events.Type {
	switch status {
	case domain.StatusLanded:
		return events.TypeLanded
	case domain.StatusExpired:
		return events.TypeExpired
	case domain.StatusFailed:
		return events.TypeFailed
	default:
		return events.TypeAbandoned
	}
}

func profitOf(rec *domain.ExecutionRecord) int64 {
	if rec.Opportunity == nil {
		return 0
	}
	return rec.Opportunity.NetProfit
}
