// Package raterepo manages repository layer of FX rate snapshots.
//
// Snapshots form an append-only log; rows are inserted once and never
// updated, keeping a durable trail of accepted and rejected feeds.
package raterepo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/pkg/dbpkg"
	"github.com/moventis/transfer-engine/pkg/errorspkg"
)

// RepoPGS facilitates rate snapshot repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns snapshot RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const createQuery = `
INSERT INTO
    fx_rate_snapshots (id, provider, base_currency, rates, provider_time, fetched_at, status, reject_reason)
VALUES
    ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
RETURNING id, provider, base_currency, rates, provider_time, fetched_at, status, COALESCE(reject_reason, '')
`

// Create persists the snapshot and then returns it.
func (r *RepoPGS) Create(ctx context.Context, s domain.RateSnapshot) (domain.RateSnapshot, error) {
	l := zerolog.Ctx(ctx)

	rates, err := json.Marshal(s.Rates)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.RateSnapshot{}, errorspkg.ErrInternal
	}

	row := r.db.QueryRowContext(ctx, createQuery,
		s.ID, s.Provider, s.BaseCurrency, rates, s.ProviderTime, s.FetchedAt, s.Status, s.RejectReason)

	stored, err := scanSnapshot(row)
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %v)", s.ID)
		return domain.RateSnapshot{}, errorspkg.ErrInternal
	}

	return stored, nil
}

const getQuery = `
SELECT id, provider, base_currency, rates, provider_time, fetched_at, status, COALESCE(reject_reason, '')
FROM fx_rate_snapshots
WHERE id = $1
`

// Get returns the snapshot with the given id.
func (r *RepoPGS) Get(ctx context.Context, id string) (domain.RateSnapshot, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, id)

	s, err := scanSnapshot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return s, domain.ErrSnapshotNotFound
		}

		l.Error().Err(err).Send()

		return s, errorspkg.ErrInternal
	}

	return s, nil
}

const latestAcceptedQuery = `
SELECT id, provider, base_currency, rates, provider_time, fetched_at, status, COALESCE(reject_reason, '')
FROM fx_rate_snapshots
WHERE provider = $1 AND status = $2
ORDER BY fetched_at DESC
LIMIT 1
`

// GetLatestAccepted returns the most recently fetched ACCEPTED snapshot
// for the provider.
func (r *RepoPGS) GetLatestAccepted(ctx context.Context, provider string) (domain.RateSnapshot, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, latestAcceptedQuery, provider, domain.SnapshotAccepted)

	s, err := scanSnapshot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return s, domain.ErrSnapshotNotFound
		}

		l.Error().Err(err).Send()

		return s, errorspkg.ErrInternal
	}

	return s, nil
}

func scanSnapshot(row *sql.Row) (domain.RateSnapshot, error) {
	var (
		s     domain.RateSnapshot
		rates []byte
	)

	err := row.Scan(
		&s.ID,
		&s.Provider,
		&s.BaseCurrency,
		&rates,
		&s.ProviderTime,
		&s.FetchedAt,
		&s.Status,
		&s.RejectReason,
	)
	if err != nil {
		return s, err
	}

	s.Rates = map[string]decimal.Decimal{}
	if err := json.Unmarshal(rates, &s.Rates); err != nil {
		return s, err
	}

	return s, nil
}
