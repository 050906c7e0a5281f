package jito

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBlockEngineURL is the mainnet block engine.
const DefaultBlockEngineURL = "https://mainnet.block-engine.jito.wtf"

// bundlesPath is appended to the block engine URL for all bundle calls.
const bundlesPath = "/api/v1/bundles"

// BundleStatus reports landing state for one submitted bundle.
type BundleStatus struct {
	BundleID           string
	Transactions       []string
	Slot               int64
	ConfirmationStatus string
	Err                interface{}
}

// Landed reports whether the bundle reached at least confirmed commitment
// without an execution error.
func (s *BundleStatus) Landed() bool {
	if s.Err != nil {
		return false
	}
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// BundleSubmitter is the bundle relay collaborator.
type BundleSubmitter interface {
	// SubmitBundle sends base58-encoded signed transactions as one atomic
	// bundle and returns the relay's bundle id.
	SubmitBundle(ctx context.Context, txsBase58 []string) (string, error)

	// GetBundleStatuses fetches landing status for up to five bundle ids.
	// The result is keyed by bundle id; absent ids were not seen.
	GetBundleStatuses(ctx context.Context, bundleIDs []string) (map[string]*BundleStatus, error)

	// TipAccount returns one relay tip account, picked at random from the
	// set fetched on first use.
	TipAccount(ctx context.Context) (string, error)
}

// Client implements BundleSubmitter over the block engine JSON-RPC API.
type Client struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64

	tipMu       sync.Mutex
	tipAccounts []string
	pick        func(n int) int
}

// ClientOption configures Client.
type ClientOption func(*Client)

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

// NewClient creates a new block engine client.
func NewClient(blockEngineURL string, opts ...ClientOption) *Client {
	if blockEngineURL == "" {
		blockEngineURL = DefaultBlockEngineURL
	}
	c := &Client{
		endpoint: blockEngineURL + bundlesPath,
		client:   &http.Client{Timeout: 10 * time.Second},
		pick:     rand.Intn,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.Code, e.Message)
}

// ErrRejected wraps a relay-side rejection of a submission.
type ErrRejected struct {
	Reason error
}

func (e *ErrRejected) Error() string {
	return fmt.Sprintf("bundle rejected: %v", e.Reason)
}

func (e *ErrRejected) Unwrap() error {
	return e.Reason
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}

	return nil
}

// SubmitBundle sends one atomic bundle. A relay-side refusal is wrapped
// in ErrRejected so callers can distinguish it from transport failures.
func (c *Client) SubmitBundle(ctx context.Context, txsBase58 []string) (string, error) {
	if len(txsBase58) == 0 {
		return "", fmt.Errorf("empty bundle")
	}
	if len(txsBase58) > 5 {
		return "", fmt.Errorf("bundle exceeds 5 transactions: %d", len(txsBase58))
	}

	var bundleID string
	if err := c.call(ctx, "sendBundle", []interface{}{txsBase58}, &bundleID); err != nil {
		var relayErr *rpcError
		if errors.As(err, &relayErr) {
			return "", &ErrRejected{Reason: relayErr}
		}
		return "", err
	}
	if bundleID == "" {
		return "", fmt.Errorf("relay returned empty bundle id")
	}
	return bundleID, nil
}

// GetBundleStatuses fetches landing status for the given bundle ids.
func (c *Client) GetBundleStatuses(ctx context.Context, bundleIDs []string) (map[string]*BundleStatus, error) {
	if len(bundleIDs) == 0 {
		return nil, fmt.Errorf("no bundle ids")
	}
	if len(bundleIDs) > 5 {
		return nil, fmt.Errorf("too many bundle ids: %d", len(bundleIDs))
	}

	var result struct {
		Context struct {
			Slot int64 `json:"slot"`
		} `json:"context"`
		Value []*struct {
			BundleID           string      `json:"bundle_id"`
			Transactions       []string    `json:"transactions"`
			Slot               int64       `json:"slot"`
			ConfirmationStatus string      `json:"confirmation_status"`
			Err                interface{} `json:"err"`
		} `json:"value"`
	}

	if err := c.call(ctx, "getBundleStatuses", []interface{}{bundleIDs}, &result); err != nil {
		return nil, err
	}

	statuses := make(map[string]*BundleStatus, len(result.Value))
	for _, v := range result.Value {
		if v == nil {
			continue
		}
		statuses[v.BundleID] = &BundleStatus{
			BundleID:           v.BundleID,
			Transactions:       v.Transactions,
			Slot:               v.Slot,
			ConfirmationStatus: v.ConfirmationStatus,
			Err:                normalizeBundleErr(v.Err),
		}
	}
	return statuses, nil
}

// normalizeBundleErr maps the relay's {"Ok":null} convention to nil.
func normalizeBundleErr(err interface{}) interface{} {
	m, ok := err.(map[string]interface{})
	if !ok {
		return err
	}
	if v, present := m["Ok"]; present && v == nil {
		return nil
	}
	return err
}

// TipAccount returns one tip account, fetching the set on first call.
func (c *Client) TipAccount(ctx context.Context) (string, error) {
	c.tipMu.Lock()
	defer c.tipMu.Unlock()

	if len(c.tipAccounts) == 0 {
		var accounts []string
		if err := c.call(ctx, "getTipAccounts", nil, &accounts); err != nil {
			return "", fmt.Errorf("fetch tip accounts: %w", err)
		}
		if len(accounts) == 0 {
			return "", fmt.Errorf("relay returned no tip accounts")
		}
		c.tipAccounts = accounts
	}

	return c.tipAccounts[c.pick(len(c.tipAccounts))], nil
}
