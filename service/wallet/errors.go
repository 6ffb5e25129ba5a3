package wallet

import "errors"

// Errors produced by the aggregation layer itself. Upstream failure kinds
// (invalid address, unavailable node, protocol rejection, malformed payload)
// originate in the solana package and pass through unchanged.
var (
	// ErrInvalidLimit indicates a transaction history limit outside [1, MaxPageLimit].
	ErrInvalidLimit = errors.New("limit out of range")

	// ErrUpstreamTimeout indicates the composite request exceeded its overall
	// deadline. Partial results are discarded, never returned.
	ErrUpstreamTimeout = errors.New("aggregation deadline exceeded")
)
