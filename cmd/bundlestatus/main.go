package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"solana-arb/internal/jito"
)

func main() {
	blockEngineURL := flag.String("block-engine", jito.DefaultBlockEngineURL, "Block engine URL")
	timeout := flag.Duration("timeout", 10*time.Second, "Request timeout")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	logger := log.New(os.Stderr, "[bundlestatus] ", log.LstdFlags)

	bundleIDs := flag.Args()
	if len(bundleIDs) == 0 {
		logger.Fatal("usage: bundlestatus [flags] <bundle-id> [bundle-id...]")
	}
	if len(bundleIDs) > 5 {
		logger.Fatal("at most 5 bundle ids per query")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := jito.NewClient(*blockEngineURL)
	statuses, err := client.GetBundleStatuses(ctx, bundleIDs)
	if err != nil {
		logger.Fatalf("get bundle statuses: %v", err)
	}

	if *outputJSON {
		out := json.NewEncoder(os.Stdout)
		out.SetIndent("", "  ")
		if err := out.Encode(statuses); err != nil {
			logger.Fatalf("encode: %v", err)
		}
		return
	}

	for _, id := range bundleIDs {
		status, ok := statuses[id]
		if !ok {
			fmt.Printf("%s: not seen by the relay\n", id)
			continue
		}
		landed := "pending"
		if status.Landed() {
			landed = "landed"
		} else if status.Err != nil {
			landed = "failed"
		}
		fmt.Printf("%s: %s (status %s, slot %d, %d txs)\n",
			id, landed, status.ConfirmationStatus, status.Slot, len(status.Transactions))
		if status.Err != nil {
			fmt.Printf("  error: %v\n", status.Err)
		}
	}
}
