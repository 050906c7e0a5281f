package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"solana-arb/internal/domain"
	"solana-arb/internal/lamports"
)

// DefaultBaseURL is the public v6 quote API.
const DefaultBaseURL = "https://quote-api.jup.ag/v6"

// QuoteProvider is the aggregator collaborator.
type QuoteProvider interface {
	// GetQuote fetches one leg quote. The returned RouteQuote keeps the
	// verbatim response body in Raw for the swap-instructions round trip.
	GetQuote(ctx context.Context, req QuoteRequest) (*domain.RouteQuote, error)

	// SwapInstructions renders a previously fetched quote as wire
	// instructions for the given wallet.
	SwapInstructions(ctx context.Context, req SwapInstructionsRequest) (*SwapInstructions, error)
}

// Client implements QuoteProvider over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	now     func() time.Time
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithAPIKey attaches an API key to every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a new aggregator client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetQuote fetches one leg quote.
func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (*domain.RouteQuote, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.Amount, 10))
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	if req.Dexes != 0 {
		q.Set("dexes", req.Dexes.String())
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}

	body, err := c.get(ctx, "/quote?"+q.Encode())
	if err != nil {
		return nil, err
	}

	return parseQuote(body, c.now())
}

// parseQuote converts the verbatim quote body into a RouteQuote.
func parseQuote(body []byte, fetchedAt time.Time) (*domain.RouteQuote, error) {
	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}
	if resp.InputMint == "" || resp.OutputMint == "" {
		return nil, fmt.Errorf("quote missing mints")
	}

	inAmount, err := lamports.ParseUint(resp.InAmount)
	if err != nil {
		return nil, fmt.Errorf("parse inAmount: %w", err)
	}
	outAmount, err := lamports.ParseUint(resp.OutAmount)
	if err != nil {
		return nil, fmt.Errorf("parse outAmount: %w", err)
	}
	threshold, err := lamports.ParseUint(resp.OtherAmountThreshold)
	if err != nil {
		return nil, fmt.Errorf("parse otherAmountThreshold: %w", err)
	}
	impactBps, err := lamports.ParseFractionBps(resp.PriceImpactPct)
	if err != nil {
		return nil, fmt.Errorf("parse priceImpactPct: %w", err)
	}

	plan := make([]domain.RouteHop, len(resp.RoutePlan))
	for i, step := range resp.RoutePlan {
		feeAmount, err := lamports.ParseUint(step.SwapInfo.FeeAmount)
		if err != nil {
			return nil, fmt.Errorf("parse route fee: %w", err)
		}
		plan[i] = domain.RouteHop{
			AMMKey:     step.SwapInfo.AMMKey,
			Label:      step.SwapInfo.Label,
			InputMint:  step.SwapInfo.InputMint,
			OutputMint: step.SwapInfo.OutputMint,
			FeeAmount:  feeAmount,
			FeeMint:    step.SwapInfo.FeeMint,
			Percent:    step.Percent,
		}
	}

	return &domain.RouteQuote{
		InputMint:            resp.InputMint,
		OutputMint:           resp.OutputMint,
		InAmount:             inAmount,
		OutAmount:            outAmount,
		OtherAmountThreshold: threshold,
		PriceImpactBps:       impactBps,
		SlippageBps:          resp.SlippageBps,
		RoutePlan:            plan,
		ContextSlot:          resp.ContextSlot,
		FetchedAt:            fetchedAt,
		Raw:                  json.RawMessage(body),
	}, nil
}

// SwapInstructions renders a quote as wire instructions.
func (c *Client) SwapInstructions(ctx context.Context, req SwapInstructionsRequest) (*SwapInstructions, error) {
	if len(req.Quote) == 0 {
		return nil, fmt.Errorf("quote body required")
	}

	payload := map[string]interface{}{
		"userPublicKey":           req.UserPublicKey,
		"quoteResponse":           req.Quote,
		"wrapAndUnwrapSol":        req.WrapAndUnwrapSol,
		"useSharedAccounts":       req.UseSharedAccounts,
		"dynamicComputeUnitLimit": req.DynamicComputeUnitLimit,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	path := "/swap-instructions"
	if c.apiKey != "" {
		path += "?api_key=" + url.QueryEscape(c.apiKey)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var resp swapInstructionsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal swap instructions: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("aggregator error: %s", resp.Error)
	}
	if resp.SwapInstruction == nil {
		return nil, fmt.Errorf("response missing swap instruction")
	}

	computeBudget, err := translateAll(resp.ComputeBudgetInstructions)
	if err != nil {
		return nil, err
	}
	setup, err := translateAll(resp.SetupInstructions)
	if err != nil {
		return nil, err
	}
	swap, err := resp.SwapInstruction.translate()
	if err != nil {
		return nil, err
	}

	out := &SwapInstructions{
		ComputeBudget:       computeBudget,
		Setup:               setup,
		Swap:                swap,
		AddressLookupTables: resp.AddressLookupTableAddresses,
	}

	if resp.CleanupInstruction != nil {
		cleanup, err := resp.CleanupInstruction.translate()
		if err != nil {
			return nil, err
		}
		out.Cleanup = &cleanup
	}

	return out, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aggregator status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
