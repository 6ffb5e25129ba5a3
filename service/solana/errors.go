package solana

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors returned by Client methods. Callers classify failures with
// errors.Is; the raw *TransportError stays inside this package's retry loop
// and is only carried along as wrapped context for logs.
var (
	// ErrInvalidAddress indicates a wallet address that is not a valid
	// base58-encoded public key. Never sent upstream.
	ErrInvalidAddress = errors.New("invalid wallet address")

	// ErrUpstreamUnavailable indicates the RPC node could not produce a
	// usable response after all retry attempts (timeouts, connection
	// failures, 429s, 5xx responses, node-side RPC errors).
	ErrUpstreamUnavailable = errors.New("solana rpc unavailable")

	// ErrUpstreamProtocol indicates the RPC node rejected the request with
	// a client-fault error (bad params, unknown method, non-retryable HTTP
	// rejection). Retrying would not help.
	ErrUpstreamProtocol = errors.New("solana rpc rejected request")

	// ErrInvalidResponse indicates the RPC node returned a payload that
	// does not match the documented result shape.
	ErrInvalidResponse = errors.New("invalid solana rpc response")
)

// FailureKind classifies a single failed RPC exchange. The retry policy keys
// off this classification, not off error strings.
type FailureKind string

const (
	FailureTimeout    FailureKind = "timeout"
	FailureConnection FailureKind = "connection"
	FailureHTTPStatus FailureKind = "http_status"
	FailureRPCError   FailureKind = "rpc_error"
	FailureDecode     FailureKind = "decode"
)

// TransportError describes one failed JSON-RPC exchange.
type TransportError struct {
	Kind       FailureKind
	Method     string
	HTTPStatus int   // set when Kind is FailureHTTPStatus
	Code       int   // JSON-RPC error code, set when Kind is FailureRPCError
	Message    string
	Err        error // underlying cause, may be nil
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case FailureHTTPStatus:
		return fmt.Sprintf("%s: http status %d: %s", e.Method, e.HTTPStatus, e.Message)
	case FailureRPCError:
		return fmt.Sprintf("%s: rpc error %d: %s", e.Method, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s: %s: %s", e.Method, e.Kind, e.Message)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient. Timeouts and connection
// failures always are; HTTP 429 and 5xx indicate node pressure; JSON-RPC
// errors in the reserved server range (-32099..-32000) come from node state
// (behind, unhealthy) rather than from the request itself.
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case FailureTimeout, FailureConnection:
		return true
	case FailureHTTPStatus:
		return e.HTTPStatus == http.StatusTooManyRequests || e.HTTPStatus >= 500
	case FailureRPCError:
		return e.Code >= -32099 && e.Code <= -32000
	default:
		return false
	}
}

// IsRetryable is the default retry predicate: true only for a *TransportError
// whose kind is transient. Context cancellation and already-classified client
// errors never retry.
func IsRetryable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Retryable()
}
