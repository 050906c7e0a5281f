// Package builder turns accepted opportunities into signed bundles.
package builder

import (
	"context"
	"fmt"
	"log"

	"solana-arb/internal/domain"
	"solana-arb/internal/jupiter"
	"solana-arb/internal/solana"
)

// Builder assembles and signs transaction bundles. It never mutates
// its inputs; a translation failure drops the opportunity.
type Builder struct {
	provider jupiter.QuoteProvider
	signer   solana.Signer
	logger   *log.Logger
}

// New creates a Builder signing with the process wallet.
func New(provider jupiter.QuoteProvider, signer solana.Signer, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{
		provider: provider,
		signer:   signer,
		logger:   logger,
	}
}

// Build renders both legs as one transaction each: compute budget, swap
// instructions, and on the sell leg the relay tip transfer. Both
// transactions share the context's blockhash so the bundle expires as
// one unit.
func (b *Builder) Build(ctx context.Context, opp *domain.Opportunity, bctx *domain.BuildContext) (*domain.SignedBundle, error) {
	buyTx, err := b.buildLeg(ctx, opp.BuyQuote, bctx, false)
	if err != nil {
		return nil, fmt.Errorf("buy leg: %w", err)
	}

	sellTx, err := b.buildLeg(ctx, opp.SellQuote, bctx, true)
	if err != nil {
		return nil, fmt.Errorf("sell leg: %w", err)
	}

	bundle := &domain.SignedBundle{}
	for _, tx := range []*solana.Transaction{buyTx, sellTx} {
		b58, err := tx.Base58()
		if err != nil {
			return nil, fmt.Errorf("encode transaction: %w", err)
		}
		b64, err := tx.Base64()
		if err != nil {
			return nil, fmt.Errorf("encode transaction: %w", err)
		}
		bundle.Signatures = append(bundle.Signatures, tx.PrimarySignature())
		bundle.Transactions = append(bundle.Transactions, b58)
		bundle.TransactionsBase64 = append(bundle.TransactionsBase64, b64)
	}

	return bundle, nil
}

// buildLeg compiles and signs one leg transaction.
func (b *Builder) buildLeg(ctx context.Context, quote *domain.RouteQuote, bctx *domain.BuildContext, withTip bool) (*solana.Transaction, error) {
	swap, err := b.provider.SwapInstructions(ctx, jupiter.SwapInstructionsRequest{
		UserPublicKey:    bctx.WalletPubkey,
		Quote:            quote.Raw,
		WrapAndUnwrapSol: true,
		// Shared accounts route through the aggregator's program
		// accounts and break bundle atomicity assumptions.
		UseSharedAccounts: false,
	})
	if err != nil {
		return nil, fmt.Errorf("swap instructions: %w", err)
	}

	// The aggregator's own compute budget is replaced with the sizing
	// from the build context.
	instructions := []solana.Instruction{
		solana.NewComputeUnitLimitInstruction(bctx.ComputeUnitLimit),
		solana.NewComputeUnitPriceInstruction(bctx.ComputeUnitPrice),
	}
	instructions = append(instructions, swap.Flatten()...)

	if withTip {
		if bctx.TipAccount == "" {
			return nil, fmt.Errorf("build context missing tip account")
		}
		instructions = append(instructions,
			solana.NewTransferInstruction(bctx.WalletPubkey, bctx.TipAccount, bctx.TipLamports))
	}

	msg, err := solana.CompileMessage(bctx.WalletPubkey, bctx.Blockhash, instructions)
	if err != nil {
		return nil, fmt.Errorf("compile message: %w", err)
	}

	tx, err := solana.SignTransaction(msg, b.signer)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	return tx, nil
}
