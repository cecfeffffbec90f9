// Package feerulerepo manages repository layer of fee rules.
package feerulerepo

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/pkg/dbpkg"
	"github.com/moventis/transfer-engine/pkg/errorspkg"
)

// RepoPGS facilitates fee rule repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns fee rule RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const listActiveQuery = `
SELECT id, name, currency, transaction_type, COALESCE(country, ''),
       fixed_amount, percentage_rate, min_amount, max_amount, active, created_at
FROM fee_rules
WHERE active AND currency = $1 AND transaction_type = $2
ORDER BY id
`

// ListActive returns the active rules for the currency and transaction
// type. Corridor matching against the country filter happens in the fee
// engine.
func (r *RepoPGS) ListActive(ctx context.Context, currency, transactionType string) ([]domain.FeeRule, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listActiveQuery, currency, transactionType)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.FeeRule{}

	for rows.Next() {
		var rule domain.FeeRule
		if err := rows.Scan(
			&rule.ID, &rule.Name, &rule.Currency, &rule.TransactionType, &rule.Country,
			&rule.FixedAmount, &rule.PercentageRate, &rule.MinAmount, &rule.MaxAmount,
			&rule.Active, &rule.CreatedAt,
		); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, rule)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}
