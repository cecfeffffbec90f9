// Package quoterepo manages repository layer of FX quotes.
package quoterepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/pkg/dbpkg"
	"github.com/moventis/transfer-engine/pkg/errorspkg"
)

// RepoPGS facilitates quote repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns quote RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const createQuery = `
INSERT INTO
    fx_quotes (id, user_id, from_account_id, to_account_id,
               source_currency, target_currency, source_amount, target_amount,
               rate, snapshot_id, fee_total, fee_breakdown, total_debit,
               weekend_policy, status, expires_at)
VALUES
    ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
RETURNING id, user_id, from_account_id, to_account_id,
          source_currency, target_currency, source_amount, target_amount,
          rate, snapshot_id, fee_total, fee_breakdown, total_debit,
          weekend_policy, status, expires_at, created_at
`

// Create persists the quote and then returns it.
func (r *RepoPGS) Create(ctx context.Context, q domain.Quote) (domain.Quote, error) {
	l := zerolog.Ctx(ctx)

	breakdown, err := json.Marshal(q.FeeBreakdown)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.Quote{}, errorspkg.ErrInternal
	}

	row := r.db.QueryRowContext(ctx, createQuery,
		q.ID, q.UserID, q.FromAccountID, q.ToAccountID,
		q.SourceCurrency, q.TargetCurrency, q.SourceAmount, q.TargetAmount,
		q.Rate, q.SnapshotID, q.FeeTotal, breakdown, q.TotalDebit,
		q.WeekendPolicy, q.Status, q.ExpiresAt,
	)

	stored, err := scanQuote(row)
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %v)", q.ID)
		return domain.Quote{}, errorspkg.ErrInternal
	}

	return stored, nil
}

const getQuery = `
SELECT id, user_id, from_account_id, to_account_id,
       source_currency, target_currency, source_amount, target_amount,
       rate, snapshot_id, fee_total, fee_breakdown, total_debit,
       weekend_policy, status, expires_at, created_at
FROM fx_quotes
WHERE id = $1
`

// Get returns the quote with the given id.
func (r *RepoPGS) Get(ctx context.Context, id string) (domain.Quote, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, id)

	q, err := scanQuote(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return q, domain.ErrQuoteNotFound
		}

		l.Error().Err(err).Send()

		return q, errorspkg.ErrInternal
	}

	return q, nil
}

const updateStatusQuery = `
UPDATE fx_quotes
SET status = $1
WHERE id = $2 AND status = $3
`

// UpdateStatus transitions the quote from one status to another under an
// optimistic guard. The guard is what prevents double-spend of a single
// quote: a concurrent transition already committed makes this one a no-op
// and surfaces ErrInvalidQuoteTransition.
func (r *RepoPGS) UpdateStatus(ctx context.Context, id, from, to string) error {
	l := zerolog.Ctx(ctx)

	res, err := r.db.ExecContext(ctx, updateStatusQuery, to, id, from)
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	affected, err := res.RowsAffected()
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	if affected == 0 {
		return domain.ErrInvalidQuoteTransition
	}

	return nil
}

const expireStaleQuery = `
UPDATE fx_quotes
SET status = $1
WHERE status = $2 AND expires_at < $3
`

// ExpireStale sweeps every CREATED quote past its expiry into EXPIRED and
// returns the number of quotes swept.
func (r *RepoPGS) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	l := zerolog.Ctx(ctx)

	res, err := r.db.ExecContext(ctx, expireStaleQuery, domain.QuoteExpired, domain.QuoteCreated, cutoff)
	if err != nil {
		l.Error().Err(err).Send()
		return 0, errorspkg.ErrInternal
	}

	affected, err := res.RowsAffected()
	if err != nil {
		l.Error().Err(err).Send()
		return 0, errorspkg.ErrInternal
	}

	return affected, nil
}

func scanQuote(row *sql.Row) (domain.Quote, error) {
	var (
		q         domain.Quote
		breakdown []byte
	)

	err := row.Scan(
		&q.ID, &q.UserID, &q.FromAccountID, &q.ToAccountID,
		&q.SourceCurrency, &q.TargetCurrency, &q.SourceAmount, &q.TargetAmount,
		&q.Rate, &q.SnapshotID, &q.FeeTotal, &breakdown, &q.TotalDebit,
		&q.WeekendPolicy, &q.Status, &q.ExpiresAt, &q.CreatedAt,
	)
	if err != nil {
		return q, err
	}

	if err := json.Unmarshal(breakdown, &q.FeeBreakdown); err != nil {
		return q, err
	}

	return q, nil
}
