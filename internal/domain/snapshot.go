package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrSnapshotNotFound indicates that no rate snapshot matches the query.
	ErrSnapshotNotFound = errors.New("rate snapshot not found")
	// ErrRatesUnavailable indicates that no quote-eligible rate snapshot exists.
	ErrRatesUnavailable = errors.New("rates unavailable")
	// ErrCurrencyNotFound indicates that the snapshot does not carry the requested currency.
	ErrCurrencyNotFound = errors.New("currency not found in snapshot")
)

// RateSnapshot statuses.
const (
	SnapshotAccepted = "ACCEPTED"
	SnapshotRejected = "REJECTED"
)

// RateSnapshot is an immutable capture of a provider rate table
// relative to a base currency.
//
// Only ACCEPTED snapshots may back a quote. Rejected snapshots are
// retained for audit and never updated.
type RateSnapshot struct {
	ID           string                     `json:"id"`
	Provider     string                     `json:"provider"`
	BaseCurrency string                     `json:"base_currency"`
	Rates        map[string]decimal.Decimal `json:"rates"`
	ProviderTime time.Time                  `json:"provider_time"`
	FetchedAt    time.Time                  `json:"fetched_at"`
	Status       string                     `json:"status"`
	RejectReason string                     `json:"reject_reason,omitempty"`
}

// ProviderRates is the raw feed returned by an external rate provider.
type ProviderRates struct {
	BaseCurrency string                     `json:"base_currency"`
	Rates        map[string]decimal.Decimal `json:"rates"`
	ProviderTime time.Time                  `json:"provider_time"`
}
