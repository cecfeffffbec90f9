// Package feeservice manages deterministic fee computation.
//
// All arithmetic is exact decimal and no rounding happens here; rounding
// to currency minor units belongs to the orchestrator at the point the
// fee is attached to a quote.
package feeservice

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/moventis/transfer-engine/internal/domain"
)

// RuleRepo provides the data access layer interface needed by the fee engine.
//
//go:generate mockgen -source service.go -destination service_mock.go -package feeservice
type RuleRepo interface {
	ListActive(ctx context.Context, currency, transactionType string) ([]domain.FeeRule, error)
}

// Service facilitates fee service layer logic.
type Service struct {
	rules RuleRepo
}

// New returns a fee Service.
func New(rules RuleRepo) *Service {
	return &Service{rules: rules}
}

var hundred = decimal.NewFromInt(100)

// Calculate computes the total fee and its audit breakdown for the input.
//
// Every matching active rule contributes its fixed amount and its
// percentage of the transfer amount; a rule's own fee is clamped to its
// max cap with the excess recorded as a discount. A user tier discount
// is applied last across the running total.
func (s *Service) Calculate(ctx context.Context, arg domain.FeeInput) (domain.FeeBreakdown, error) {
	rules, err := s.rules.ListActive(ctx, arg.Currency, arg.TransactionType)
	if err != nil {
		return domain.FeeBreakdown{}, err
	}

	breakdown := domain.FeeBreakdown{
		Total:      decimal.Zero,
		Fixed:      decimal.Zero,
		Percentage: decimal.Zero,
		Discounts:  decimal.Zero,
	}

	for _, rule := range rules {
		if !corridorMatches(rule, arg.FromCountry, arg.ToCountry) {
			continue
		}

		if rule.MinAmount.Valid && arg.Amount.LessThan(rule.MinAmount.Decimal) {
			continue
		}

		ruleFixed := decimal.Zero
		if rule.FixedAmount.Valid {
			ruleFixed = rule.FixedAmount.Decimal
		}

		rulePct := decimal.Zero
		if rule.PercentageRate.Valid {
			rulePct = arg.Amount.Mul(rule.PercentageRate.Decimal).Div(hundred)
		}

		ruleFee := ruleFixed.Add(rulePct)
		if rule.MaxAmount.Valid && ruleFee.GreaterThan(rule.MaxAmount.Decimal) {
			breakdown.Discounts = breakdown.Discounts.Add(ruleFee.Sub(rule.MaxAmount.Decimal))
		}

		breakdown.Fixed = breakdown.Fixed.Add(ruleFixed)
		breakdown.Percentage = breakdown.Percentage.Add(rulePct)
		breakdown.AppliedRules = append(breakdown.AppliedRules, rule.Name)
	}

	breakdown.Total = breakdown.Fixed.Add(breakdown.Percentage).Sub(breakdown.Discounts)

	if arg.UserTier != "" {
		tierPct := domain.TierDiscountPercent(arg.UserTier)
		if tierPct.IsPositive() {
			tierDiscount := breakdown.Total.Mul(tierPct).Div(hundred)
			breakdown.Discounts = breakdown.Discounts.Add(tierDiscount)
			breakdown.Total = breakdown.Total.Sub(tierDiscount)
		}
	}

	return breakdown, nil
}

// corridorMatches reports whether the rule's country filter, if any,
// matches either side of the corridor.
func corridorMatches(rule domain.FeeRule, fromCountry, toCountry string) bool {
	if rule.Country == "" {
		return true
	}

	return rule.Country == fromCountry || rule.Country == toCountry
}
