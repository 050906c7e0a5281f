package engine

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"

	"solana-arb/internal/domain"
	"solana-arb/internal/evaluator"
	"solana-arb/internal/events"
	"solana-arb/internal/executor"
	"solana-arb/internal/feepolicy"
	"solana-arb/internal/jito"
	"solana-arb/internal/jupiter"
	"solana-arb/internal/scanner"
	"solana-arb/internal/solana"
	"solana-arb/internal/solana/stub"
	"solana-arb/internal/tracker"
)

const cycleMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

type testSigner struct {
	priv ed25519.PrivateKey
}

func newTestSigner() *testSigner {
	return &testSigner{priv: ed25519.NewKeyFromSeed(bytes.Repeat([]byte{7}, ed25519.SeedSize))}
}

func (s *testSigner) Pubkey() string {
	return base58.Encode(s.priv.Public().(ed25519.PublicKey))
}

func (s *testSigner) Sign(message []byte) []byte {
	return ed25519.Sign(s.priv, message)
}

// stubProvider quotes a fixed profitable cycle and returns a minimal
// swap instruction for any quote.
type stubProvider struct {
	mu sync.Mutex
	// sellOut is the sell leg's otherAmountThreshold in base units.
	sellOut uint64
}

func (p *stubProvider) setSellOut(v uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sellOut = v
}

func (p *stubProvider) GetQuote(_ context.Context, req jupiter.QuoteRequest) (*domain.RouteQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	quote := &domain.RouteQuote{
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		InAmount:    req.Amount,
		FetchedAt:   time.Now(),
		Raw:         json.RawMessage(`{"stub":true}`),
		SlippageBps: req.SlippageBps,
	}
	if req.InputMint == domain.WSOLMint {
		quote.OutAmount = 510_000
		quote.OtherAmountThreshold = 500_000
	} else {
		quote.OutAmount = p.sellOut + 10_000
		quote.OtherAmountThreshold = p.sellOut
	}
	return quote, nil
}

func (p *stubProvider) SwapInstructions(_ context.Context, req jupiter.SwapInstructionsRequest) (*jupiter.SwapInstructions, error) {
	return &jupiter.SwapInstructions{
		Swap: solana.Instruction{
			ProgramID: base58.Encode(bytes.Repeat([]byte{8}, 32)),
			Accounts: []solana.AccountMeta{
				{Pubkey: req.UserPublicKey, IsSigner: true, IsWritable: true},
			},
			Data: []byte{1, 2, 3},
		},
	}, nil
}

// stubRelay records submissions.
type stubRelay struct {
	mu        sync.Mutex
	submitted [][]string
	nextID    int
}

func (r *stubRelay) SubmitBundle(_ context.Context, txs []string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, txs)
	r.nextID++
	return fmt.Sprintf("bundle%d", r.nextID), nil
}

func (r *stubRelay) GetBundleStatuses(context.Context, []string) (map[string]*jito.BundleStatus, error) {
	return nil, nil
}

func (r *stubRelay) TipAccount(context.Context) (string, error) {
	return base58.Encode(bytes.Repeat([]byte{4}, 32)), nil
}

func (r *stubRelay) submissions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.submitted)
}

// syncBuffer is a goroutine-safe event sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) events(t *testing.T) []events.Event {
	t.Helper()
	b.mu.Lock()
	raw := b.buf.String()
	b.mu.Unlock()

	var out []events.Event
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		if line == "" {
			continue
		}
		var ev events.Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad event line %q: %v", line, err)
		}
		out = append(out, ev)
	}
	return out
}

func (b *syncBuffer) countType(t *testing.T, typ events.Type) int {
	var n int
	for _, ev := range b.events(t) {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// zeroPolicy charges nothing, leaving net profit equal to gross.
type zeroPolicy struct{}

func (zeroPolicy) Decide(int64, []solana.PrioritizationFee) feepolicy.Decision {
	return feepolicy.Decision{ComputeUnitLimit: 200_000}
}

func newTestEngine(rpc *stub.RPCClient, relay *stubRelay, provider *stubProvider, buf *syncBuffer, maxRebuilds int) *Engine {
	return New(Deps{
		Provider: provider,
		RPC:      rpc,
		Relay:    relay,
		Signer:   newTestSigner(),
		Emitter:  events.NewEmitter(buf),
	}, Options{
		Cycles: []domain.TokenCycle{{
			BaseMint:  domain.WSOLMint,
			CycleMint: cycleMint,
			AmountIn:  1_000_000,
			Dexes:     domain.DexAll,
		}},
		Scanner:          scanner.Options{PollInterval: 10 * time.Millisecond, SlippageBps: 50},
		Evaluator:        evaluator.Config{MinProfitLamports: 25_000},
		Policy:           zeroPolicy{},
		Executor:         executor.Options{MaxInFlight: 2},
		Tracker:          tracker.Options{PollInterval: 10 * time.Millisecond, MaxRebuilds: maxRebuilds},
		BlockhashRefresh: 5 * time.Millisecond,
		FeeRefresh:       10 * time.Millisecond,
		Logger:           log.New(io.Discard, "", 0),
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEngine_SubmitAndLand(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Blockhash = &solana.LatestBlockhash{
		Blockhash:            base58.Encode(bytes.Repeat([]byte{9}, 32)),
		LastValidBlockHeight: 1000,
		Slot:                 500,
	}
	rpc.BlockHeight = 900
	relay := &stubRelay{}
	provider := &stubProvider{}
	provider.setSellOut(1_080_000)
	var buf syncBuffer

	e := newTestEngine(rpc, relay, provider, &buf, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	waitFor(t, "first submission", func() bool { return relay.submissions() == 1 })

	// The scanner keeps rediscovering the same cycle; single-flight must
	// hold it to one live submission.
	time.Sleep(50 * time.Millisecond)
	if got := relay.submissions(); got != 1 {
		t.Fatalf("expected 1 submission while pending, got %d", got)
	}
	if buf.countType(t, events.TypeDuplicate) == 0 {
		t.Error("expected duplicate rejections while pending")
	}

	// Confirm every signature; the tracker should land the record.
	rpc.SetDefaultStatus(&solana.SignatureStatus{ConfirmationStatus: "confirmed"})
	waitFor(t, "landing", func() bool { return buf.countType(t, events.TypeLanded) == 1 })
	waitFor(t, "slot release", func() bool { return e.Live() == 0 })

	// The slot is free again: the next discovery resubmits.
	rpc.SetDefaultStatus(nil)
	waitFor(t, "resubmission", func() bool { return relay.submissions() >= 2 })

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}

	if buf.countType(t, events.TypeSubmitted) < 2 {
		t.Error("expected submitted events for both attempts")
	}
}

func TestEngine_ExpiryRebuildsThenAbandons(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Blockhash = &solana.LatestBlockhash{
		Blockhash:            base58.Encode(bytes.Repeat([]byte{9}, 32)),
		LastValidBlockHeight: 1000,
		Slot:                 500,
	}
	rpc.BlockHeight = 900
	relay := &stubRelay{}
	provider := &stubProvider{}
	provider.setSellOut(1_080_000)
	var buf syncBuffer

	e := newTestEngine(rpc, relay, provider, &buf, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	waitFor(t, "first submission", func() bool { return relay.submissions() == 1 })

	// Push the chain past the validity window. The first record expires
	// and rebuilds; the rebuilt record expires too and, with the budget
	// spent, is abandoned.
	rpc.SetBlockHeight(1001)

	waitFor(t, "rebuild", func() bool { return buf.countType(t, events.TypeRebuilt) >= 1 })
	waitFor(t, "abandon", func() bool { return buf.countType(t, events.TypeAbandoned) >= 1 })

	if buf.countType(t, events.TypeExpired) < 1 {
		t.Error("expected at least one expired event")
	}

	var rebuiltAttempt int
	for _, ev := range buf.events(t) {
		if ev.Type == events.TypeRebuilt {
			rebuiltAttempt = ev.Rebuilds
			break
		}
	}
	if rebuiltAttempt != 1 {
		t.Errorf("rebuilt attempt = %d, want 1", rebuiltAttempt)
	}

	cancel()
	<-done
}

func TestEngine_UnprofitableNeverSubmits(t *testing.T) {
	rpc := stub.NewRPCClient()
	rpc.Blockhash = &solana.LatestBlockhash{
		Blockhash:            base58.Encode(bytes.Repeat([]byte{9}, 32)),
		LastValidBlockHeight: 1000,
	}
	rpc.BlockHeight = 900
	relay := &stubRelay{}
	provider := &stubProvider{}
	// Sell leg returns less than went in: every evaluation rejects.
	provider.setSellOut(990_000)
	var buf syncBuffer

	e := newTestEngine(rpc, relay, provider, &buf, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if got := relay.submissions(); got != 0 {
		t.Errorf("expected no submissions, got %d", got)
	}
	if got := len(buf.events(t)); got != 0 {
		t.Errorf("expected no events, got %d", got)
	}
}
