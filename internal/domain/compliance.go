package domain

import "errors"

// ErrComplianceBlocked indicates that the compliance oracle refused the
// transfer before any ledger mutation.
var ErrComplianceBlocked = errors.New("transfer blocked by compliance")

// ComplianceInput describes a pending transfer for the fraud/compliance oracle.
type ComplianceInput struct {
	UserID        int64  `json:"user_id"`
	FromAccountID int64  `json:"from_account_id"`
	ToAccountID   int64  `json:"to_account_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
}

// ComplianceDecision is the oracle verdict on a pending transfer.
type ComplianceDecision struct {
	Allowed bool     `json:"allowed"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
}
