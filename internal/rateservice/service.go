// Package rateservice manages the business logic layer of FX rate snapshots.
//
// It turns the raw external feed into gated, immutable snapshots: a feed
// is rejected when the provider timestamp is too old or when any currency
// moved too far against the last accepted snapshot. Only accepted
// snapshots may back a quote.
package rateservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/pkg/cachepkg"
	"github.com/moventis/transfer-engine/pkg/metricspkg"
)

// Provider fetches the current rate table from an external feed.
//
//go:generate mockgen -source service.go -destination service_mock.go -package rateservice
type Provider interface {
	FetchLatestRates(ctx context.Context, base string) (domain.ProviderRates, error)
	Name() string
}

// Repo provides the data access layer interface needed by the rate service.
type Repo interface {
	Create(ctx context.Context, s domain.RateSnapshot) (domain.RateSnapshot, error)
	GetLatestAccepted(ctx context.Context, provider string) (domain.RateSnapshot, error)
}

// Config holds the snapshot gating thresholds.
type Config struct {
	BaseCurrency     string
	StaleAfter       time.Duration
	VolatilityMaxPct float64
	CacheTTL         time.Duration
}

// Service facilitates rate snapshot service layer logic.
type Service struct {
	provider Provider
	repo     Repo
	cache    *cachepkg.Value[domain.RateSnapshot]

	baseCurrency  string
	staleAfter    time.Duration
	volatilityMax decimal.Decimal

	now func() time.Time
}

// New returns a rate Service.
func New(provider Provider, repo Repo, cfg Config) *Service {
	return &Service{
		provider:      provider,
		repo:          repo,
		cache:         cachepkg.New[domain.RateSnapshot](cfg.CacheTTL),
		baseCurrency:  cfg.BaseCurrency,
		staleAfter:    cfg.StaleAfter,
		volatilityMax: decimal.NewFromFloat(cfg.VolatilityMaxPct),
		now:           time.Now,
	}
}

// Ingest fetches the current feed, gates it, and persists the outcome.
//
// A stale or volatile feed is persisted as REJECTED with its reason and
// is never published for quoting; an accepted feed becomes the new
// latest snapshot.
func (s *Service) Ingest(ctx context.Context) (domain.RateSnapshot, error) {
	l := zerolog.Ctx(ctx)

	feed, err := s.provider.FetchLatestRates(ctx, s.baseCurrency)
	if err != nil {
		l.Error().Err(err).Str("provider", s.provider.Name()).Msg("rate feed fetch failed")
		return domain.RateSnapshot{}, err
	}

	snapshot := domain.RateSnapshot{
		ID:           uuid.NewString(),
		Provider:     s.provider.Name(),
		BaseCurrency: feed.BaseCurrency,
		Rates:        feed.Rates,
		ProviderTime: feed.ProviderTime,
		FetchedAt:    s.now(),
		Status:       domain.SnapshotAccepted,
	}

	if reason := s.gate(ctx, &snapshot); reason != "" {
		snapshot.Status = domain.SnapshotRejected
		snapshot.RejectReason = reason
	}

	stored, err := s.repo.Create(ctx, snapshot)
	if err != nil {
		return domain.RateSnapshot{}, err
	}

	if stored.Status == domain.SnapshotAccepted {
		s.cache.Set(stored)
		metricspkg.SnapshotsTotal.WithLabelValues("accepted").Inc()
	} else {
		l.Info().
			Str("snapshot_id", stored.ID).
			Str("reason", stored.RejectReason).
			Msg("rate snapshot rejected")
		metricspkg.SnapshotsTotal.WithLabelValues("rejected").Inc()
	}

	return stored, nil
}

// gate returns an empty string for an acceptable snapshot, or the
// rejection reason otherwise.
func (s *Service) gate(ctx context.Context, snapshot *domain.RateSnapshot) string {
	staleness := snapshot.FetchedAt.Sub(snapshot.ProviderTime)
	if staleness > s.staleAfter {
		return fmt.Sprintf("stale_snapshot_%ds", int(staleness.Seconds()))
	}

	prev, err := s.repo.GetLatestAccepted(ctx, snapshot.Provider)
	if err != nil {
		// First snapshot for the provider has nothing to compare against.
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return ""
		}

		return "previous_snapshot_unavailable"
	}

	// A feed that silently drops currencies the accepted set carries
	// would otherwise sail through the per-currency comparison.
	if n := missingCurrencies(prev.Rates, snapshot.Rates); n > 0 {
		return fmt.Sprintf("missing_currencies_%d", n)
	}

	maxChange := maxAbsChangePct(prev.Rates, snapshot.Rates)
	if maxChange.GreaterThan(s.volatilityMax) {
		return fmt.Sprintf("volatility_%spct", maxChange.Round(2))
	}

	return ""
}

// missingCurrencies counts currencies present in the accepted table but
// absent from the new one.
func missingCurrencies(prev, next map[string]decimal.Decimal) int {
	missing := 0

	for currency := range prev {
		if _, ok := next[currency]; !ok {
			missing++
		}
	}

	return missing
}

// maxAbsChangePct returns the maximum absolute percentage change across
// the currencies present in both rate tables.
func maxAbsChangePct(prev, next map[string]decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	max := decimal.Zero

	for currency, oldRate := range prev {
		newRate, ok := next[currency]
		if !ok || oldRate.IsZero() {
			continue
		}

		change := newRate.Sub(oldRate).Div(oldRate).Mul(hundred).Abs()
		if change.GreaterThan(max) {
			max = change
		}
	}

	return max
}

// LatestAccepted returns the most recent ACCEPTED snapshot, cache first.
func (s *Service) LatestAccepted(ctx context.Context) (domain.RateSnapshot, error) {
	if snapshot, ok := s.cache.Get(); ok {
		return snapshot, nil
	}

	snapshot, err := s.repo.GetLatestAccepted(ctx, s.provider.Name())
	if err != nil {
		if errors.Is(err, domain.ErrSnapshotNotFound) {
			return domain.RateSnapshot{}, domain.ErrRatesUnavailable
		}

		return domain.RateSnapshot{}, err
	}

	s.cache.Set(snapshot)

	return snapshot, nil
}

// LatestForQuote returns the latest accepted snapshot, additionally
// enforcing the staleness bound at read time. An accepted snapshot that
// aged past the threshold is refused, forcing a re-ingest.
func (s *Service) LatestForQuote(ctx context.Context) (domain.RateSnapshot, error) {
	snapshot, err := s.LatestAccepted(ctx)
	if err != nil {
		return domain.RateSnapshot{}, err
	}

	if s.now().Sub(snapshot.FetchedAt) > s.staleAfter {
		return domain.RateSnapshot{}, domain.ErrRatesUnavailable
	}

	return snapshot, nil
}

// CrossRate derives the rate between two currencies via their rates
// against the snapshot's base currency.
func (s *Service) CrossRate(snapshot domain.RateSnapshot, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	fromRate, err := baseRate(snapshot, from)
	if err != nil {
		return decimal.Zero, err
	}

	toRate, err := baseRate(snapshot, to)
	if err != nil {
		return decimal.Zero, err
	}

	return toRate.Div(fromRate), nil
}

func baseRate(snapshot domain.RateSnapshot, currency string) (decimal.Decimal, error) {
	if currency == snapshot.BaseCurrency {
		return decimal.NewFromInt(1), nil
	}

	rate, ok := snapshot.Rates[currency]
	if !ok || rate.IsZero() {
		return decimal.Zero, domain.ErrCurrencyNotFound
	}

	return rate, nil
}
