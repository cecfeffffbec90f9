// Package entryrepo manages repository layer of ledger entries.
package entryrepo

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/pkg/dbpkg"
	"github.com/moventis/transfer-engine/pkg/errorspkg"
)

// RepoPGS facilitates entry repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns entry RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

// CreateEntryParams is the input data for one ledger posting.
type CreateEntryParams struct {
	AccountID    int64
	TransferID   int64
	Amount       string // signed
	Type         string
	BalanceAfter string
}

const createQuery = `
INSERT INTO
    ledger_entries (account_id, transfer_id, amount, type, balance_after)
VALUES
    ($1, $2, $3, $4, $5)
RETURNING id, account_id, transfer_id, amount, type, balance_after, created_at
`

// Create appends the entry and then returns it. Entries are never
// updated or deleted afterwards.
func (r *RepoPGS) Create(ctx context.Context, arg CreateEntryParams) (domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.AccountID, arg.TransferID, arg.Amount, arg.Type, arg.BalanceAfter)

	var e domain.Entry

	err := scanEntry(row, &e)
	if err != nil {
		l.Error().Err(err).Send()
		return e, errorspkg.ErrInternal
	}

	return e, nil
}

const getQuery = `
SELECT id, account_id, transfer_id, amount, type, balance_after, created_at
FROM ledger_entries
WHERE id = $1
`

// Get returns the entry with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, id)

	var e domain.Entry

	err := scanEntry(row, &e)
	if err != nil {
		l.Error().Err(err).Send()
		return e, errorspkg.ErrInternal
	}

	return e, nil
}

const listQuery = `
SELECT id, account_id, transfer_id, amount, type, balance_after, created_at
FROM ledger_entries
WHERE account_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`

// List returns the specified number of entries for the given account,
// newest first.
func (r *RepoPGS) List(ctx context.Context, accountID int64, limit, offset int32) ([]domain.Entry, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery, accountID, limit, offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Entry{}

	for rows.Next() {
		var e domain.Entry
		if err := rows.Scan(
			&e.ID, &e.AccountID, &e.TransferID, &e.Amount, &e.Type, &e.BalanceAfter, &e.CreatedAt,
		); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, e)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

func scanEntry(row *sql.Row, e *domain.Entry) error {
	return row.Scan(
		&e.ID,
		&e.AccountID,
		&e.TransferID,
		&e.Amount,
		&e.Type,
		&e.BalanceAfter,
		&e.CreatedAt,
	)
}
