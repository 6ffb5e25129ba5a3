package wallet

import (
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
)

// LamportsToSOL converts a lamport amount to SOL, rounded to 9 decimal
// places so the JSON rendering never carries float artifacts past the
// lamport resolution.
func LamportsToSOL(lamports uint64) float64 {
	sol := float64(lamports) / float64(solana.LAMPORTS_PER_SOL)
	return math.Round(sol*1e9) / 1e9
}

// UnixToUTC converts epoch seconds to a UTC timestamp, passing nil through
// for transactions the chain recorded without a block time.
func UnixToUTC(sec *int64) *time.Time {
	if sec == nil {
		return nil
	}
	t := time.Unix(*sec, 0).UTC()
	return &t
}

// statusFromFailed maps the on-chain error flag of a confirmed transaction
// onto the public status enum.
func statusFromFailed(failed bool) TxStatus {
	if failed {
		return TxStatusFailed
	}
	return TxStatusSuccess
}
