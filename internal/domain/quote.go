package domain

import (
	"errors"
	"time"
)

var (
	// ErrQuoteNotFound indicates that the quote does not exist or belongs to another user.
	ErrQuoteNotFound = errors.New("quote not found")
	// ErrQuoteExpired indicates that the quote is past its expiry and can never be executed.
	ErrQuoteExpired = errors.New("quote expired")
	// ErrQuoteAlreadyUsed indicates that the quote was already executed.
	ErrQuoteAlreadyUsed = errors.New("quote already used")
	// ErrInvalidQuoteTransition indicates an attempt to move a quote out of a terminal status.
	ErrInvalidQuoteTransition = errors.New("invalid quote transition")
	// ErrQuotingDisabled indicates that quoting is switched off for the current period.
	ErrQuotingDisabled = errors.New("quoting disabled")
)

// Quote statuses. CREATED may move to ACCEPTED or EXPIRED exactly once;
// both are terminal.
const (
	QuoteCreated  = "CREATED"
	QuoteAccepted = "ACCEPTED"
	QuoteExpired  = "EXPIRED"
)

// Weekend FX policies.
const (
	WeekendAllow   = "allow"
	WeekendBuffer  = "buffer"
	WeekendDisable = "disable"
)

// Quote is a time-boxed, single-use promise of a conversion rate and fee.
//
// Rate is the applied rate with any weekend buffer already folded in, and
// WeekendPolicy pins the policy that was in effect at quote time.
type Quote struct {
	ID             string       `json:"id"`
	UserID         int64        `json:"user_id"`
	FromAccountID  int64        `json:"from_account_id"`
	ToAccountID    int64        `json:"to_account_id"`
	SourceCurrency string       `json:"source_currency"`
	TargetCurrency string       `json:"target_currency"`
	SourceAmount   string       `json:"source_amount"`
	TargetAmount   string       `json:"target_amount"`
	Rate           string       `json:"rate"`
	SnapshotID     string       `json:"snapshot_id"`
	FeeTotal       string       `json:"fee_total"`
	FeeBreakdown   FeeBreakdown `json:"fee_breakdown"`
	TotalDebit     string       `json:"total_debit"`
	WeekendPolicy  string       `json:"weekend_policy"`
	Status         string       `json:"status"`
	ExpiresAt      time.Time    `json:"expires_at"`
	CreatedAt      time.Time    `json:"created_at"`
}
