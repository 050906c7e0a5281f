package jupiter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"solana-arb/internal/domain"
	"solana-arb/internal/solana"
)

// QuoteRequest describes one leg quote request against the aggregator.
type QuoteRequest struct {
	InputMint   string
	OutputMint  string
	Amount      uint64
	SlippageBps int
	Dexes       domain.DexSet
}

// quoteResponse mirrors the aggregator v6 /quote body. Amount fields
// arrive as decimal strings.
type quoteResponse struct {
	InputMint            string          `json:"inputMint"`
	InAmount             string          `json:"inAmount"`
	OutputMint           string          `json:"outputMint"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          int             `json:"slippageBps"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	RoutePlan            []routePlanStep `json:"routePlan"`
	ContextSlot          int64           `json:"contextSlot"`
}

type routePlanStep struct {
	SwapInfo swapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

type swapInfo struct {
	AMMKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

// SwapInstructionsRequest asks the aggregator to render a quote as
// instructions for the given wallet. Quote must be the verbatim JSON
// returned by /quote.
type SwapInstructionsRequest struct {
	UserPublicKey           string
	Quote                   json.RawMessage
	WrapAndUnwrapSol        bool
	UseSharedAccounts       bool
	DynamicComputeUnitLimit bool
}

// SwapInstructions is the translated /swap-instructions response.
// ComputeBudget carries the aggregator's own sizing; callers that set
// their own compute budget skip it.
type SwapInstructions struct {
	ComputeBudget []solana.Instruction
	Setup         []solana.Instruction
	Swap          solana.Instruction
	Cleanup       *solana.Instruction
	// AddressLookupTables lists ALT addresses the aggregator would use
	// for a v0 message. Legacy bundles ignore them.
	AddressLookupTables []string
}

// Flatten returns setup, swap and cleanup in execution order.
func (s *SwapInstructions) Flatten() []solana.Instruction {
	out := make([]solana.Instruction, 0, len(s.Setup)+2)
	out = append(out, s.Setup...)
	out = append(out, s.Swap)
	if s.Cleanup != nil {
		out = append(out, *s.Cleanup)
	}
	return out
}

// swapInstructionsResponse mirrors the /swap-instructions body.
type swapInstructionsResponse struct {
	ComputeBudgetInstructions   []jsonInstruction `json:"computeBudgetInstructions"`
	SetupInstructions           []jsonInstruction `json:"setupInstructions"`
	SwapInstruction             *jsonInstruction  `json:"swapInstruction"`
	CleanupInstruction          *jsonInstruction  `json:"cleanupInstruction"`
	AddressLookupTableAddresses []string          `json:"addressLookupTableAddresses"`
	Error                       string            `json:"error"`
}

type jsonInstruction struct {
	ProgramID string        `json:"programId"`
	Accounts  []jsonAccount `json:"accounts"`
	Data      string        `json:"data"`
}

type jsonAccount struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// translate converts a JSON instruction into wire form.
func (j *jsonInstruction) translate() (solana.Instruction, error) {
	data, err := base64.StdEncoding.DecodeString(j.Data)
	if err != nil {
		return solana.Instruction{}, fmt.Errorf("decode instruction data: %w", err)
	}

	accounts := make([]solana.AccountMeta, len(j.Accounts))
	for i, a := range j.Accounts {
		accounts[i] = solana.AccountMeta{
			Pubkey:     a.Pubkey,
			IsSigner:   a.IsSigner,
			IsWritable: a.IsWritable,
		}
	}

	return solana.Instruction{
		ProgramID: j.ProgramID,
		Accounts:  accounts,
		Data:      data,
	}, nil
}

func translateAll(list []jsonInstruction) ([]solana.Instruction, error) {
	out := make([]solana.Instruction, 0, len(list))
	for i := range list {
		ix, err := list[i].translate()
		if err != nil {
			return nil, err
		}
		out = append(out, ix)
	}
	return out, nil
}
