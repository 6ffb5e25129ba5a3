package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/walletscope/service/metrics"
	"github.com/gagliardetto/solana-go"
)

// Caller performs a single JSON-RPC exchange. *Transport is the production
// implementation; tests substitute scripted outcomes.
type Caller interface {
	Call(ctx context.Context, method string, params []any, out any) error
}

// Client exposes the Solana RPC methods the service aggregates over. Each
// method shapes its request, routes it through the retry policy, and decodes
// the result into a typed value. Callers never see raw transport failures:
// every error path lands on one of the package sentinels or on the caller's
// own context error.
type Client struct {
	transport Caller
	retry     Policy
	endpoint  string // RPC endpoint identifier for metrics (e.g., "mainnet", "devnet", rpc host)
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewClient creates a Client on top of the given transport and retry policy.
// The endpoint parameter is used for metrics labeling only.
// If m is nil, no metrics are recorded.
func NewClient(transport Caller, retry Policy, endpoint string, m *metrics.Metrics, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: transport,
		retry:     retry,
		endpoint:  endpoint,
		metrics:   m,
		logger:    logger,
	}
}

// SignatureInfo is one entry of a getSignaturesForAddress result page,
// ordered newest first by the node.
type SignatureInfo struct {
	Signature string
	Slot      uint64
	BlockTime *int64
	Failed    bool
}

// TransactionDetail is the decoded getTransaction result for one signature.
type TransactionDetail struct {
	Slot      uint64
	BlockTime *int64
	Fee       uint64
	Failed    bool
}

// balanceEnvelope is the documented getBalance result shape.
type balanceEnvelope struct {
	Value *uint64 `json:"value"`
}

// signatureEntry is the wire shape of one getSignaturesForAddress entry.
type signatureEntry struct {
	Signature string          `json:"signature"`
	Slot      uint64          `json:"slot"`
	BlockTime *int64          `json:"blockTime"`
	Err       json.RawMessage `json:"err"`
}

// transactionResult is the wire shape of a getTransaction result.
type transactionResult struct {
	Slot      uint64           `json:"slot"`
	BlockTime *int64           `json:"blockTime"`
	Meta      *transactionMeta `json:"meta"`
}

// transactionMeta carries the status and fee fields of transaction metadata.
type transactionMeta struct {
	Err json.RawMessage `json:"err"`
	Fee uint64          `json:"fee"`
}

// GetBalance returns the lamport balance of the given wallet address.
// Some RPC providers return the documented {context, value} envelope and
// some return a bare integer; both shapes are accepted.
func (c *Client) GetBalance(ctx context.Context, address string) (uint64, error) {
	if err := validateAddress(address); err != nil {
		return 0, err
	}

	var raw json.RawMessage
	if err := c.do(ctx, "getBalance", []any{address}, &raw); err != nil {
		return 0, err
	}

	lamports, err := decodeBalance(raw)
	if err != nil {
		return 0, err
	}

	c.logger.DebugContext(ctx, "fetched balance",
		"address", address,
		"lamports", lamports,
	)
	return lamports, nil
}

// GetSignaturesForAddress returns up to limit signature entries for the
// address, newest first. The limit is the caller's contract; the node caps
// pages at 1000 entries.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	var entries []signatureEntry
	params := []any{address, map[string]any{"limit": limit}}
	if err := c.do(ctx, "getSignaturesForAddress", params, &entries); err != nil {
		return nil, err
	}

	sigs := make([]SignatureInfo, len(entries))
	for i, e := range entries {
		sigs[i] = SignatureInfo{
			Signature: e.Signature,
			Slot:      e.Slot,
			BlockTime: e.BlockTime,
			Failed:    rawPresent(e.Err),
		}
	}

	if c.metrics != nil {
		c.metrics.RecordRPCSignaturesPerCall(c.endpoint, float64(len(sigs)))
	}
	c.logger.DebugContext(ctx, "fetched signatures",
		"address", address,
		"limit", limit,
		"count", len(sigs),
	)
	return sigs, nil
}

// GetTransaction returns the decoded detail for one transaction signature.
// A nil detail with nil error means the node no longer has the transaction
// (not found or pruned past the ledger retention window).
func (c *Client) GetTransaction(ctx context.Context, signature string) (*TransactionDetail, error) {
	var result *transactionResult
	params := []any{signature, map[string]any{
		"encoding":                       "json",
		"maxSupportedTransactionVersion": 0,
	}}
	if err := c.do(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	detail := &TransactionDetail{
		Slot:      result.Slot,
		BlockTime: result.BlockTime,
	}
	if result.Meta != nil {
		detail.Fee = result.Meta.Fee
		detail.Failed = rawPresent(result.Meta.Err)
	}
	return detail, nil
}

// GetSlot returns the node's current slot. Used as a cheap liveness probe
// at startup.
func (c *Client) GetSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.do(ctx, "getSlot", nil, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// do routes one logical method invocation through the retry policy, records
// call metrics, and converts terminal failures into sentinel error kinds.
func (c *Client) do(ctx context.Context, method string, params []any, out any) error {
	pol := c.retry
	pol.OnRetry = func(attempt int, err error) {
		c.logger.WarnContext(ctx, "retrying rpc call",
			"method", method,
			"attempt", attempt,
			"error", err,
		)
		if c.metrics == nil {
			return
		}
		c.metrics.RecordRPCRetry(method, retryReason(err))
		var te *TransportError
		if errors.As(err, &te) && te.Kind == FailureHTTPStatus && te.HTTPStatus == http.StatusTooManyRequests {
			c.metrics.RecordRateLimitHit(c.endpoint)
		}
	}

	start := time.Now()
	err := pol.Execute(ctx, func(ctx context.Context) error {
		return c.transport.Call(ctx, method, params, out)
	})
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
	}
	if c.metrics != nil {
		c.metrics.RecordRPCCall(method, status, c.endpoint, duration)
	}

	if err == nil {
		return nil
	}
	c.logger.ErrorContext(ctx, "rpc call failed",
		"method", method,
		"error", err,
	)
	if ctx.Err() != nil {
		// The caller's context ended mid-call; report that rather than
		// whatever the final attempt happened to fail with.
		return ctx.Err()
	}
	return classify(err)
}

// classify converts a terminal transport failure into a sentinel error kind.
// Context errors pass through untouched so callers can tell their own expired
// deadline apart from node trouble.
func classify(err error) error {
	var te *TransportError
	if !errors.As(err, &te) {
		return err
	}
	switch te.Kind {
	case FailureDecode:
		return fmt.Errorf("%w: %v", ErrInvalidResponse, te)
	case FailureHTTPStatus, FailureRPCError:
		if te.Retryable() {
			return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, te)
		}
		return fmt.Errorf("%w: %v", ErrUpstreamProtocol, te)
	default:
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, te)
	}
}

// retryReason labels a retry for metrics.
func retryReason(err error) string {
	var te *TransportError
	if !errors.As(err, &te) {
		return "unknown"
	}
	if te.Kind == FailureHTTPStatus && te.HTTPStatus == http.StatusTooManyRequests {
		return "rate_limit"
	}
	return string(te.Kind)
}

// validateAddress rejects anything that is not a base58-encoded 32-byte
// public key before it can reach the wire.
func validateAddress(address string) error {
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return nil
}

// decodeBalance accepts both getBalance result shapes.
func decodeBalance(raw json.RawMessage) (uint64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("%w: getBalance returned no result", ErrInvalidResponse)
	}

	var envelope balanceEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Value != nil {
		return *envelope.Value, nil
	}

	var bare uint64
	if err := json.Unmarshal(raw, &bare); err != nil {
		return 0, fmt.Errorf("%w: getBalance result is not a non-negative integer: %v", ErrInvalidResponse, err)
	}
	return bare, nil
}

// rawPresent reports whether a raw JSON field holds a real value.
func rawPresent(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
