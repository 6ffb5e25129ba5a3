package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/brojonat/walletscope/service/solana"
	"github.com/brojonat/walletscope/service/wallet"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	serviceName    = "walletscope"
	serviceVersion = "0.1.0"

	// Base58-encoded 32-byte public keys land in this range.
	minAddressLength = 32
	maxAddressLength = 44
)

var (
	// Valid Solana address characters: base58 (no 0, O, I, l)
	validAddressRegex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// handleServiceInfo returns a handler describing the API surface.
// GET /
func handleServiceInfo() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"service": serviceName,
			"version": serviceVersion,
			"endpoints": map[string]string{
				"summary":      "/api/v1/wallets/{address}/summary",
				"transactions": "/api/v1/wallets/{address}/transactions?limit={n}",
				"health":       "/health",
			},
		}, http.StatusOK)
	})
}

// handleWalletSummary returns a handler that builds the composite activity
// view for one wallet.
// GET /api/v1/wallets/{address}/summary
func handleWalletSummary(svc WalletReader, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		summary, err := svc.Summary(r.Context(), address)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}

		logger.Debug("wallet summary served", "address", address, "tx_count", summary.TxCount)
		writeJSON(w, summary, http.StatusOK)
	})
}

// handleWalletTransactions returns a handler that builds one page of
// transaction history.
// GET /api/v1/wallets/{address}/transactions?limit={n}
func handleWalletTransactions(svc WalletReader, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.PathValue("address")

		if err := validateAddress(address); err != nil {
			logger.Debug("invalid address", "address", address, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		limit, err := parseLimit(r.URL.Query().Get("limit"))
		if err != nil {
			logger.Debug("invalid limit", "limit", r.URL.Query().Get("limit"), "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		page, err := svc.Transactions(r.Context(), address, limit)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}

		logger.Debug("transaction page served", "address", address, "count", page.Count)
		writeJSON(w, page, http.StatusOK)
	})
}

// writeServiceError maps an aggregation failure onto an HTTP status and
// writes the error body. Invalid input is the caller's fault; an unreachable
// or slow upstream is a 503; an upstream that rejected our request outright
// is a 502; a payload we could not make sense of is our 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, solana.ErrInvalidAddress), errors.Is(err, wallet.ErrInvalidLimit):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, wallet.ErrUpstreamTimeout), errors.Is(err, solana.ErrUpstreamUnavailable):
		logger.Warn("upstream unavailable", "path", r.URL.Path, "error", err)
		writeError(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, solana.ErrUpstreamProtocol):
		logger.Error("upstream rejected request", "path", r.URL.Path, "error", err)
		writeError(w, err.Error(), http.StatusBadGateway)
	case errors.Is(err, context.Canceled):
		// Client went away; there is nobody left to answer.
		logger.Debug("request canceled by client", "path", r.URL.Path)
	default:
		logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, "internal server error", http.StatusInternalServerError)
	}
}

// parseLimit parses the history page size, defaulting when absent. Range
// checking happens in the wallet service; this only rejects non-integers.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return wallet.DefaultPageLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errorf("invalid limit %q: must be an integer", raw)
	}
	return limit, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateAddress validates a wallet address for format before it can reach
// the aggregation layer.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}

	if len(address) < minAddressLength || len(address) > maxAddressLength {
		return errorf("invalid address length: must be between %d and %d characters", minAddressLength, maxAddressLength)
	}

	// Check for null bytes and control characters
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}

	if !validAddressRegex.MatchString(address) {
		return errorf("invalid address format: must contain only valid base58 characters")
	}

	// The decoded key must be exactly 32 bytes.
	if _, err := solanago.PublicKeyFromBase58(address); err != nil {
		return errorf("invalid address: not a valid public key")
	}

	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...any) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
