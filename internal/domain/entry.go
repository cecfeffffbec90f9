package domain

import "time"

// Entry types. Every transfer posts exactly one of each.
const (
	EntryDebit  = "DEBIT"
	EntryCredit = "CREDIT"
)

// Entry holds one signed posting against one account.
//
// Entries are append-only. BalanceAfter snapshots the account balance
// immediately following the posting.
type Entry struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	TransferID   int64     `json:"transfer_id"`
	Amount       string    `json:"amount"` // negative for DEBIT, positive for CREDIT
	Type         string    `json:"type"`
	BalanceAfter string    `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}
