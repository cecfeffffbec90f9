package domain

import (
	"errors"
	"time"
)

var (
	// ErrTransferNotFound indicates that the transfer is not found.
	ErrTransferNotFound = errors.New("transfer not found")
	// ErrCurrencyMismatch indicates that transfer accounts have different currencies.
	ErrCurrencyMismatch = errors.New("accounts currency mismatch")
	// ErrInvalidAmount indicates invalid amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrNegativeAmount indicates a zero or negative amount.
	ErrNegativeAmount = errors.New("negative amount")
	// ErrInsufficientBalance indicates that the account does not have sufficient balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrLimitExceeded indicates that the transfer would break the configured debit cap.
	ErrLimitExceeded = errors.New("transfer limit exceeded")
)

// Transfer statuses.
const (
	TransferCompleted = "COMPLETED"
	TransferFailed    = "FAILED"
)

// Transfer holds one completed money movement between two accounts.
//
// Rows are immutable once written. A given idempotency key maps to at
// most one transfer; replays return the original row unchanged.
type Transfer struct {
	ID             int64     `json:"id"`
	FromAccountID  int64     `json:"from_account_id"`
	ToAccountID    int64     `json:"to_account_id"`
	Amount         string    `json:"amount"` // must be positive, in the source account currency
	Currency       string    `json:"currency"`
	TargetAmount   string    `json:"target_amount,omitempty"` // set only when converted upstream
	TargetCurrency string    `json:"target_currency,omitempty"`
	ExchangeRate   string    `json:"exchange_rate,omitempty"` // recorded for audit, postings stay per-currency
	Status         string    `json:"status"`
	IdempotencyKey string    `json:"idempotency_key"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateTransferParams is the input data for the transfer transaction.
//
// QuoteID and DailyLimit are transaction directives, not transfer
// attributes: a non-empty QuoteID makes the transaction claim the quote
// (CREATED to ACCEPTED) atomically with the postings, and a non-empty
// DailyLimit re-checks the rolling debit cap under the account row lock.
type CreateTransferParams struct {
	FromAccountID  int64  `json:"from_account_id"`
	ToAccountID    int64  `json:"to_account_id"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	TargetAmount   string `json:"target_amount,omitempty"`
	TargetCurrency string `json:"target_currency,omitempty"`
	ExchangeRate   string `json:"exchange_rate,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
	Description    string `json:"description,omitempty"`
	QuoteID        string `json:"quote_id,omitempty"`
	DailyLimit     string `json:"-"`
}

// CreditAmount returns the amount posted to the destination account,
// which differs from Amount only when a conversion was resolved upstream.
func (p CreateTransferParams) CreditAmount() string {
	if p.TargetAmount != "" {
		return p.TargetAmount
	}

	return p.Amount
}

// ListTransfersParams is the input data to get transfers between two accounts.
type ListTransfersParams struct {
	FromAccountID int64 `json:"from_account_id"`
	ToAccountID   int64 `json:"to_account_id"`
	Limit         int32 `json:"limit"`
	Offset        int32 `json:"offset"`
}

// TransferTxResult is the result of the transfer transaction.
type TransferTxResult struct {
	Transfer    Transfer `json:"transfer"`
	FromAccount Account  `json:"from_account"`
	ToAccount   Account  `json:"to_account"`
	FromEntry   Entry    `json:"from_entry"`
	ToEntry     Entry    `json:"to_entry"`
	Replayed    bool     `json:"replayed"`
}
