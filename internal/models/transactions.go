package models

import "math/big"

// GasParams are optional gas settings of a transfer. A nil *GasParams lets
// the provider decide.
type GasParams struct {
	Limit uint64
	// Price is in atomic units
	Price *big.Int
}

// TransferRequest is a value transfer ready for submission
type TransferRequest struct {
	From  Account
	To    Account
	Value *big.Int
	Gas   *GasParams
}

// TransactionRecord is a transaction as returned by the ledger
type TransactionRecord struct {
	Hash  string   `json:"hash"`
	From  string   `json:"from"`
	To    string   `json:"to"`
	Value *big.Int `json:"value"`
	// BlockNumber is nil for pending transactions
	BlockNumber *uint64 `json:"blockNumber,omitempty"`
}

// HistoryResult is the transaction list of one account in scan order
type HistoryResult struct {
	Account      Account
	Transactions []TransactionRecord
}

// Len returns the number of records
func (h HistoryResult) Len() int {
	return len(h.Transactions)
}
