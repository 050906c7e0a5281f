package blockhash

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"solana-arb/internal/solana"
)

// ErrNotReady is returned before the first successful refresh.
var ErrNotReady = errors.New("blockhash cache not primed")

// Snapshot is one observed blockhash with its validity window and the
// block height at observation time. Immutable once published.
type Snapshot struct {
	Blockhash            string
	LastValidBlockHeight uint64
	Slot                 int64
	FetchedAt            time.Time
}

// Cache keeps the most recent blockhash and block height. A single
// background refresher publishes whole snapshots; readers never block.
type Cache struct {
	rpc      solana.RPCClient
	interval time.Duration
	logger   *log.Logger

	snapshot atomic.Value // *Snapshot
	height   atomic.Uint64
}

// Options configures Cache.
type Options struct {
	// RefreshInterval is the gap between refresh attempts. Defaults to 2s,
	// well inside the ~60s blockhash validity window.
	RefreshInterval time.Duration
	Logger          *log.Logger
}

// New creates a cache. Run must be started before Current returns data.
func New(rpc solana.RPCClient, opts Options) *Cache {
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Cache{
		rpc:      rpc,
		interval: interval,
		logger:   logger,
	}
}

// Run refreshes the cache until the context is cancelled. The first
// refresh happens immediately.
func (c *Cache) Run(ctx context.Context) error {
	if err := c.refresh(ctx); err != nil {
		c.logger.Printf("[blockhash] initial refresh: %v", err)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.refresh(ctx); err != nil {
				c.logger.Printf("[blockhash] refresh: %v", err)
			}
		}
	}
}

// refresh fetches a new blockhash and block height and publishes them.
func (c *Cache) refresh(ctx context.Context) error {
	callCtx, cancel := context.WithTimeout(ctx, c.interval)
	defer cancel()

	bh, err := c.rpc.GetLatestBlockhash(callCtx)
	if err != nil {
		return fmt.Errorf("get latest blockhash: %w", err)
	}

	height, err := c.rpc.GetBlockHeight(callCtx)
	if err != nil {
		return fmt.Errorf("get block height: %w", err)
	}

	c.snapshot.Store(&Snapshot{
		Blockhash:            bh.Blockhash,
		LastValidBlockHeight: bh.LastValidBlockHeight,
		Slot:                 bh.Slot,
		FetchedAt:            time.Now(),
	})
	c.height.Store(height)
	return nil
}

// Current returns the most recent snapshot.
func (c *Cache) Current() (*Snapshot, error) {
	s, _ := c.snapshot.Load().(*Snapshot)
	if s == nil {
		return nil, ErrNotReady
	}
	return s, nil
}

// Height returns the most recently observed block height, zero before
// the first refresh.
func (c *Cache) Height() uint64 {
	return c.height.Load()
}
