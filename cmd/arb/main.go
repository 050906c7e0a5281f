package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-arb/internal/config"
	"solana-arb/internal/engine"
	"solana-arb/internal/evaluator"
	"solana-arb/internal/events"
	"solana-arb/internal/executor"
	"solana-arb/internal/feepolicy"
	"solana-arb/internal/jito"
	"solana-arb/internal/jupiter"
	"solana-arb/internal/lamports"
	"solana-arb/internal/observability"
	"solana-arb/internal/scanner"
	"solana-arb/internal/solana"
	"solana-arb/internal/tracker"
	"solana-arb/internal/wallet"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to yaml configuration")
	simulate := flag.Bool("simulate", false, "Force simulate-only mode regardless of config")
	metricsAddr := flag.String("metrics-addr", "", "Override metrics listen address")
	flag.Parse()

	logger := log.New(os.Stderr, "[arb] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *simulate {
		cfg.Executor.SimulateOnly = true
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}

	cycles, err := cfg.DomainCycles()
	if err != nil {
		logger.Fatalf("cycles: %v", err)
	}
	logger.Printf("%d cycles, min profit %s SOL", len(cycles),
		lamports.FormatSOL(cfg.Evaluator.MinProfitLamports))

	secret, err := cfg.Wallet.Secret()
	if err != nil {
		logger.Fatalf("wallet: %v", err)
	}
	keypair, err := wallet.FromBase58(secret)
	if err != nil {
		logger.Fatalf("wallet: %v", err)
	}
	logger.Printf("wallet %s", keypair.Pubkey())

	emitter, eventsFile, err := events.NewFileEmitter(cfg.Events.Path)
	if err != nil {
		logger.Fatalf("events: %v", err)
	}
	defer eventsFile.Close()

	metrics := observability.NewMetrics("")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received %s, shutting down", sig)
		cancel()
	}()

	endpoint := cfg.RPC.PickEndpoint()
	logger.Printf("rpc endpoint %s", endpoint)
	rpc := solana.NewHTTPClient(endpoint)

	var ws solana.WSClient
	if cfg.RPC.WSEndpoint != "" {
		wsClient, err := solana.NewWSClient(ctx, cfg.RPC.WSEndpoint, nil)
		if err != nil {
			logger.Printf("ws connect failed, polling only: %v", err)
		} else {
			ws = wsClient
			defer wsClient.Close()
		}
	}

	var jupiterOpts []jupiter.ClientOption
	if cfg.Jupiter.APIKey != "" {
		jupiterOpts = append(jupiterOpts, jupiter.WithAPIKey(cfg.Jupiter.APIKey))
	}
	provider := jupiter.NewClient(cfg.Jupiter.BaseURL, jupiterOpts...)
	relay := jito.NewClient(cfg.Jito.BlockEngineURL)

	policy := &feepolicy.ProfitShare{
		TipBps:              cfg.Fees.TipBps,
		MaxTipLamports:      cfg.Fees.MaxTipLamports,
		ComputeUnitLimit:    cfg.Fees.ComputeUnitLimit,
		MinComputeUnitPrice: cfg.Fees.MinComputeUnitPrice,
	}

	e := engine.New(engine.Deps{
		Provider: provider,
		RPC:      rpc,
		WS:       ws,
		Relay:    relay,
		Signer:   keypair,
		Emitter:  emitter,
	}, engine.Options{
		Cycles: cycles,
		Scanner: scanner.Options{
			PollInterval:   cfg.Scanner.PollInterval(),
			RequestTimeout: cfg.Scanner.RequestTimeout(),
			MaxConcurrent:  cfg.Scanner.MaxConcurrent,
			SlippageBps:    int(cfg.Scanner.SlippageBps),
		},
		Evaluator: evaluator.Config{
			MinProfitLamports: cfg.Evaluator.MinProfitLamports,
			MaxPriceImpactBps: cfg.Evaluator.MaxPriceImpactBps,
			MaxQuoteAge:       cfg.Evaluator.MaxQuoteAge(),
		},
		Policy: policy,
		Executor: executor.Options{
			MaxInFlight:   cfg.Executor.MaxInFlight,
			QueueCapacity: cfg.Executor.QueueCapacity,
			SimulateOnly:  cfg.Executor.SimulateOnly,
		},
		Tracker: tracker.Options{
			PollInterval: cfg.Tracker.PollInterval(),
			MaxRebuilds:  cfg.Tracker.MaxRebuilds,
		},
		BlockhashRefresh: cfg.Blockhash.RefreshInterval(),
		Logger:           logger,
		Metrics:          metrics,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	server := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
	go func() {
		logger.Printf("metrics listening on %s", cfg.Metrics.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server: %v", err)
		}
	}()

	if cfg.Executor.SimulateOnly {
		logger.Printf("running in simulate-only mode, no bundles will be submitted")
	}

	if err := e.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("engine: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("metrics shutdown: %v", err)
	}
}
