package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types fee rules may apply to.
const (
	TransactionTransfer   = "TRANSFER"
	TransactionWithdrawal = "WITHDRAWAL"
	TransactionDeposit    = "DEPOSIT"
)

// User tiers eligible for fee discounts.
const (
	TierStandard = "STANDARD"
	TierSilver   = "SILVER"
	TierGold     = "GOLD"
	TierPremium  = "PREMIUM"
)

// TierDiscountPercent returns the fee discount percentage for the tier.
// Unknown tiers get no discount.
func TierDiscountPercent(tier string) decimal.Decimal {
	switch tier {
	case TierPremium:
		return decimal.NewFromInt(15)
	case TierGold:
		return decimal.NewFromInt(10)
	case TierSilver:
		return decimal.NewFromInt(5)
	}

	return decimal.Zero
}

// FeeRule is one configured fee component. Rules are read-only during a
// calculation; their lifecycle is managed by an administrative collaborator.
type FeeRule struct {
	ID              int64               `json:"id"`
	Name            string              `json:"name"`
	Currency        string              `json:"currency"`
	TransactionType string              `json:"transaction_type"`
	Country         string              `json:"country,omitempty"` // empty matches any corridor
	FixedAmount     decimal.NullDecimal `json:"fixed_amount"`
	PercentageRate  decimal.NullDecimal `json:"percentage_rate"`
	MinAmount       decimal.NullDecimal `json:"min_amount"`
	MaxAmount       decimal.NullDecimal `json:"max_amount"`
	Active          bool                `json:"active"`
	CreatedAt       time.Time           `json:"created_at"`
}

// FeeInput is the input data for one fee calculation.
type FeeInput struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	TransactionType string          `json:"transaction_type"`
	FromCountry     string          `json:"from_country,omitempty"`
	ToCountry       string          `json:"to_country,omitempty"`
	UserTier        string          `json:"user_tier,omitempty"`
}

// FeeBreakdown is the audit-friendly result of one fee calculation.
// All amounts are exact decimals; rounding to currency minor units
// happens where the fee is attached to a quote.
type FeeBreakdown struct {
	Total        decimal.Decimal `json:"total"`
	Fixed        decimal.Decimal `json:"fixed"`
	Percentage   decimal.Decimal `json:"percentage"`
	Discounts    decimal.Decimal `json:"discounts"`
	AppliedRules []string        `json:"applied_rules,omitempty"`
}
