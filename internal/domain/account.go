// Package domain provides definitions of all entities.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountNotActive indicates that the account exists but cannot take part in transfers.
	ErrAccountNotActive = errors.New("account not active")
	// ErrInvalidOwner indicates that the user is unauthorized to operate on the account.
	ErrInvalidOwner = errors.New("unauthorized owner")
)

// Account statuses.
const (
	AccountActive = "ACTIVE"
	AccountFrozen = "FROZEN"
	AccountClosed = "CLOSED"
)

// Account holds user balance data for a specific currency.
//
// Balance is a decimal string and is only ever mutated inside the
// transfer transaction owned by the ledger manager.
type Account struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
