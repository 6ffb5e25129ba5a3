package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds a single RPC exchange when no override is given.
const DefaultTimeout = 30 * time.Second

// rpcRequest is the JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// rpcResponse is the JSON-RPC 2.0 response envelope. Result stays raw so
// each method can decode into its own typed struct.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is the JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Transport performs single JSON-RPC exchanges against one Solana node.
// It never retries and never interprets results beyond the envelope; every
// failure comes back as a *TransportError so the retry policy can classify it.
type Transport struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	nextID     atomic.Uint64
}

// TransportOption customizes a Transport.
type TransportOption func(*Transport)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *Transport) {
		t.httpClient = client
	}
}

// WithTimeout sets the per-exchange timeout.
func WithTimeout(timeout time.Duration) TransportOption {
	return func(t *Transport) {
		t.timeout = timeout
	}
}

// WithLogger sets the logger used for exchange-level debug logging.
func WithLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates a Transport for the given RPC endpoint URL.
func NewTransport(endpoint string, opts ...TransportOption) *Transport {
	t := &Transport{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Call performs exactly one JSON-RPC exchange: one request, one response,
// no retries. The result field is decoded into out when out is non-nil and
// the node returned one. The per-exchange timeout applies on top of any
// deadline already carried by ctx; whichever expires first wins.
func (t *Transport) Call(ctx context.Context, method string, params []any, out any) error {
	id := t.nextID.Add(1)

	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return t.classifyRequestError(method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{
			Kind:    FailureConnection,
			Method:  method,
			Message: "read response body",
			Err:     err,
		}
	}

	t.logger.DebugContext(ctx, "rpc exchange complete",
		"method", method,
		"id", id,
		"http_status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		return &TransportError{
			Kind:       FailureHTTPStatus,
			Method:     method,
			HTTPStatus: resp.StatusCode,
			Message:    string(body),
		}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return &TransportError{
			Kind:    FailureDecode,
			Method:  method,
			Message: "unmarshal response envelope",
			Err:     err,
		}
	}

	if rpcResp.Error != nil {
		return &TransportError{
			Kind:    FailureRPCError,
			Method:  method,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}

	if out != nil && len(rpcResp.Result) > 0 {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return &TransportError{
				Kind:    FailureDecode,
				Method:  method,
				Message: "unmarshal result",
				Err:     err,
			}
		}
	}

	return nil
}

// classifyRequestError maps an http.Client.Do failure onto a failure kind.
// Deadline expiry (from either the per-exchange timeout or the caller's
// deadline) is a timeout; everything else, including cancellation, is a
// connection failure. The retry policy stops before sleeping when the
// caller's context is done, so a canceled call does not keep retrying.
func (t *Transport) classifyRequestError(method string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &TransportError{
			Kind:    FailureTimeout,
			Method:  method,
			Message: "request timed out",
			Err:     err,
		}
	}
	return &TransportError{
		Kind:    FailureConnection,
		Method:  method,
		Message: "request failed",
		Err:     err,
	}
}
