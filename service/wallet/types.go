package wallet

import "time"

// Page limits for transaction history requests. The upper bound mirrors the
// node's getSignaturesForAddress page cap.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 1000
)

// TxStatus classifies the outcome of a transaction.
type TxStatus string

const (
	// TxStatusSuccess means the transaction executed without error.
	TxStatusSuccess TxStatus = "success"

	// TxStatusFailed means the transaction executed and failed on chain.
	TxStatusFailed TxStatus = "failed"

	// TxStatusUnknown means the detail lookup failed, so the outcome could
	// not be determined.
	TxStatusUnknown TxStatus = "unknown"
)

// Summary is the composite activity view for one wallet.
//
// TxCount is a lower bound: it counts the signatures visible in a single
// maximum-size page, and TxCountCapped is set when the page came back full,
// meaning the real history is at least that long.
type Summary struct {
	Address         string     `json:"address"`
	Balance         float64    `json:"balance"`
	BalanceLamports uint64     `json:"balance_lamports"`
	TxCount         int        `json:"tx_count"`
	TxCountCapped   bool       `json:"tx_count_capped"`
	LastActive      *time.Time `json:"last_active"`
}

// Transaction is one transaction history record. BlockTime is nil when the
// chain recorded no timestamp for the transaction.
type Transaction struct {
	Signature string     `json:"signature"`
	BlockTime *time.Time `json:"block_time"`
	Slot      uint64     `json:"slot"`
	Status    TxStatus   `json:"status"`
	Fee       uint64     `json:"fee"`
}

// TransactionPage is a page of transaction history, newest first.
type TransactionPage struct {
	Address      string        `json:"address"`
	Transactions []Transaction `json:"transactions"`
	Count        int           `json:"count"`
}
