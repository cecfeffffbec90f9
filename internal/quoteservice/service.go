// Package quoteservice manages the business logic layer of quotes.
//
// It composes the rate snapshot service, the fee engine, and the ledger
// manager: a quote binds a snapshot, a fee calculation, and a target
// amount into a time-boxed, single-use promise, and execution runs the
// promise through the ledger exactly once.
package quoteservice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/pkg/currencypkg"
	"github.com/moventis/transfer-engine/pkg/metricspkg"
)

// quoteKeyNamespace is the fixed UUIDv5 namespace for idempotency keys
// derived from quote ids.
var quoteKeyNamespace = uuid.MustParse("91f9c7fa-8f6d-4a19-b3f6-5dfc9f1d2f70")

// Repo provides the data access layer interface needed by the quote service.
//
//go:generate mockgen -source service.go -destination service_mock.go -package quoteservice
type Repo interface {
	Create(ctx context.Context, q domain.Quote) (domain.Quote, error)
	Get(ctx context.Context, id string) (domain.Quote, error)
	UpdateStatus(ctx context.Context, id, from, to string) error
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// AccountRepo provides the account reads needed by the quote service.
type AccountRepo interface {
	Get(ctx context.Context, id int64) (domain.Account, error)
}

// RateSource provides quote-eligible snapshots and cross rates.
type RateSource interface {
	LatestForQuote(ctx context.Context) (domain.RateSnapshot, error)
	CrossRate(snapshot domain.RateSnapshot, from, to string) (decimal.Decimal, error)
}

// FeeCalculator computes the fee breakdown for a transfer.
type FeeCalculator interface {
	Calculate(ctx context.Context, arg domain.FeeInput) (domain.FeeBreakdown, error)
}

// Ledger executes the atomic transfer the quote promises.
type Ledger interface {
	Execute(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferTxResult, error)
}

// ComplianceOracle gates transfers before any ledger mutation.
type ComplianceOracle interface {
	Evaluate(ctx context.Context, arg domain.ComplianceInput) (domain.ComplianceDecision, error)
}

// Notifier dispatches a post-commit notification. Failures must never
// roll back or fail the transfer.
type Notifier interface {
	TransferCompleted(ctx context.Context, transferID, userID int64) error
}

// Config holds quote lifetime and weekend FX policy settings.
type Config struct {
	QuoteTTL         time.Duration
	WeekendPolicy    string
	WeekendBufferPct float64
}

// Service facilitates quote service layer logic.
type Service struct {
	repo       Repo
	accounts   AccountRepo
	rates      RateSource
	fees       FeeCalculator
	ledger     Ledger
	compliance ComplianceOracle
	notifier   Notifier

	quoteTTL      time.Duration
	weekendPolicy string
	weekendBuffer decimal.Decimal

	now func() time.Time
}

// New returns a quote Service.
func New(repo Repo, accounts AccountRepo, rates RateSource, fees FeeCalculator,
	ledger Ledger, compliance ComplianceOracle, notifier Notifier, cfg Config) *Service {
	policy := cfg.WeekendPolicy
	if policy == "" {
		policy = domain.WeekendAllow
	}

	return &Service{
		repo:          repo,
		accounts:      accounts,
		rates:         rates,
		fees:          fees,
		ledger:        ledger,
		compliance:    compliance,
		notifier:      notifier,
		quoteTTL:      cfg.QuoteTTL,
		weekendPolicy: policy,
		weekendBuffer: decimal.NewFromFloat(cfg.WeekendBufferPct),
		now:           time.Now,
	}
}

// QuoteRequest is the input data for one quote.
type QuoteRequest struct {
	UserID        int64  `json:"user_id"`
	FromAccountID int64  `json:"from_account_id"`
	ToAccountID   int64  `json:"to_account_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	FromCountry   string `json:"from_country,omitempty"`
	ToCountry     string `json:"to_country,omitempty"`
	UserTier      string `json:"user_tier,omitempty"`
}

// CreateQuote builds and persists a rate- and fee-locked quote.
//
// The applied rate has any weekend buffer already folded in, the target
// amount and fee are rounded to their currencies' minor units half up,
// and the policy in effect is pinned onto the quote for audit.
func (s *Service) CreateQuote(ctx context.Context, req QuoteRequest) (domain.Quote, error) {
	l := zerolog.Ctx(ctx)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		l.Info().Err(err).Msg("invalid quote amount")
		return domain.Quote{}, domain.ErrInvalidAmount
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.Quote{}, domain.ErrNegativeAmount
	}

	fromAccount, err := s.accounts.Get(ctx, req.FromAccountID)
	if err != nil {
		return domain.Quote{}, err
	}

	if fromAccount.UserID != req.UserID {
		return domain.Quote{}, domain.ErrInvalidOwner
	}

	if fromAccount.Status != domain.AccountActive {
		return domain.Quote{}, domain.ErrAccountNotActive
	}

	if fromAccount.Currency != req.Currency {
		return domain.Quote{}, domain.ErrCurrencyMismatch
	}

	toAccount, err := s.accounts.Get(ctx, req.ToAccountID)
	if err != nil {
		return domain.Quote{}, err
	}

	snapshot, err := s.rates.LatestForQuote(ctx)
	if err != nil {
		return domain.Quote{}, err
	}

	rate, err := s.rates.CrossRate(snapshot, fromAccount.Currency, toAccount.Currency)
	if err != nil {
		return domain.Quote{}, err
	}

	// The weekend policy governs conversion only; same-currency quotes
	// carry no FX exposure and always proceed at rate 1.
	policy := domain.WeekendAllow
	if fromAccount.Currency != toAccount.Currency && isWeekend(s.now()) {
		policy = s.weekendPolicy

		switch policy {
		case domain.WeekendDisable:
			return domain.Quote{}, domain.ErrQuotingDisabled
		case domain.WeekendBuffer:
			// Shave the rate in the platform's favor to absorb moves
			// while markets are closed.
			factor := decimal.NewFromInt(1).Sub(s.weekendBuffer.Div(decimal.NewFromInt(100)))
			rate = rate.Mul(factor)
		}
	}

	targetAmount := currencypkg.RoundMinor(amount.Mul(rate), toAccount.Currency)

	breakdown, err := s.fees.Calculate(ctx, domain.FeeInput{
		Amount:          amount,
		Currency:        fromAccount.Currency,
		TransactionType: domain.TransactionTransfer,
		FromCountry:     req.FromCountry,
		ToCountry:       req.ToCountry,
		UserTier:        req.UserTier,
	})
	if err != nil {
		return domain.Quote{}, err
	}

	fee := currencypkg.RoundMinor(breakdown.Total, fromAccount.Currency)
	totalDebit := amount.Add(fee)
	now := s.now()

	quote, err := s.repo.Create(ctx, domain.Quote{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		FromAccountID:  fromAccount.ID,
		ToAccountID:    toAccount.ID,
		SourceCurrency: fromAccount.Currency,
		TargetCurrency: toAccount.Currency,
		SourceAmount:   amount.String(),
		TargetAmount:   targetAmount.String(),
		Rate:           rate.String(),
		SnapshotID:     snapshot.ID,
		FeeTotal:       fee.String(),
		FeeBreakdown:   breakdown,
		TotalDebit:     totalDebit.String(),
		WeekendPolicy:  policy,
		Status:         domain.QuoteCreated,
		ExpiresAt:      now.Add(s.quoteTTL),
	})
	if err != nil {
		return domain.Quote{}, err
	}

	metricspkg.QuotesTotal.WithLabelValues("created").Inc()

	return quote, nil
}

// ExecuteWithQuote executes a previously created quote exactly once.
//
// The quote id travels into the ledger transaction, which claims the
// quote (CREATED to ACCEPTED) atomically with the postings: of two
// concurrent executors exactly one commits a transfer, whatever keys
// they supply. The idempotency key, when not supplied, is derived from
// the quote id so plain retries collapse onto the committed transfer.
func (s *Service) ExecuteWithQuote(ctx context.Context, userID int64, quoteID, idempotencyKey string) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	quote, err := s.repo.Get(ctx, quoteID)
	if err != nil {
		return domain.Transfer{}, err
	}

	if quote.UserID != userID {
		return domain.Transfer{}, domain.ErrQuoteNotFound
	}

	switch quote.Status {
	case domain.QuoteCreated:
	case domain.QuoteExpired:
		return domain.Transfer{}, domain.ErrQuoteExpired
	default:
		return domain.Transfer{}, domain.ErrQuoteAlreadyUsed
	}

	if s.now().After(quote.ExpiresAt) {
		if err := s.repo.UpdateStatus(ctx, quote.ID, domain.QuoteCreated, domain.QuoteExpired); err != nil &&
			!errors.Is(err, domain.ErrInvalidQuoteTransition) {
			l.Error().Err(err).Str("quote_id", quote.ID).Msg("expire on use failed")
		}

		metricspkg.QuotesTotal.WithLabelValues("expired").Inc()

		return domain.Transfer{}, domain.ErrQuoteExpired
	}

	// Balances can move between quoting and execution.
	fromAccount, err := s.accounts.Get(ctx, quote.FromAccountID)
	if err != nil {
		return domain.Transfer{}, err
	}

	balance, err := decimal.NewFromString(fromAccount.Balance)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.Transfer{}, err
	}

	totalDebit, err := decimal.NewFromString(quote.TotalDebit)
	if err != nil {
		l.Error().Err(err).Send()
		return domain.Transfer{}, err
	}

	if balance.LessThan(totalDebit) {
		return domain.Transfer{}, domain.ErrInsufficientBalance
	}

	decision, err := s.compliance.Evaluate(ctx, domain.ComplianceInput{
		UserID:        userID,
		FromAccountID: quote.FromAccountID,
		ToAccountID:   quote.ToAccountID,
		Amount:        quote.SourceAmount,
		Currency:      quote.SourceCurrency,
	})
	if err != nil {
		return domain.Transfer{}, err
	}

	if !decision.Allowed {
		l.Info().
			Str("quote_id", quote.ID).
			Float64("score", decision.Score).
			Strs("reasons", decision.Reasons).
			Msg("transfer blocked by compliance")

		return domain.Transfer{}, domain.ErrComplianceBlocked
	}

	if idempotencyKey == "" {
		idempotencyKey = uuid.NewSHA1(quoteKeyNamespace, []byte(quote.ID)).String()
	}

	result, err := s.ledger.Execute(ctx, transferParams(quote, idempotencyKey))
	if err != nil {
		// A lost claim means a concurrent executor or the sweeper got
		// to the quote first; report expiry as expiry.
		if errors.Is(err, domain.ErrQuoteAlreadyUsed) {
			current, getErr := s.repo.Get(ctx, quote.ID)
			if getErr == nil && current.Status == domain.QuoteExpired {
				return domain.Transfer{}, domain.ErrQuoteExpired
			}
		}

		return domain.Transfer{}, err
	}

	metricspkg.QuotesTotal.WithLabelValues("accepted").Inc()

	s.notify(ctx, result.Transfer.ID, userID)

	return result.Transfer, nil
}

// SweepExpired transitions every CREATED quote past its expiry to
// EXPIRED and returns the number of quotes swept.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	swept, err := s.repo.ExpireStale(ctx, s.now())
	if err != nil {
		return 0, err
	}

	if swept > 0 {
		metricspkg.QuotesTotal.WithLabelValues("expired").Add(float64(swept))
	}

	return swept, nil
}

// notify dispatches the post-commit notification without blocking the
// caller. A failure is logged, never propagated.
func (s *Service) notify(ctx context.Context, transferID, userID int64) {
	l := zerolog.Ctx(ctx)
	detached := context.WithoutCancel(ctx)

	go func() {
		if err := s.notifier.TransferCompleted(detached, transferID, userID); err != nil {
			l.Error().Err(err).
				Int64("transfer_id", transferID).
				Int64("user_id", userID).
				Msg("transfer notification failed")
		}
	}()
}

func transferParams(quote domain.Quote, idempotencyKey string) domain.CreateTransferParams {
	arg := domain.CreateTransferParams{
		FromAccountID:  quote.FromAccountID,
		ToAccountID:    quote.ToAccountID,
		Amount:         quote.SourceAmount,
		Currency:       quote.SourceCurrency,
		IdempotencyKey: idempotencyKey,
		Description:    "quote " + quote.ID,
		QuoteID:        quote.ID,
	}

	if quote.SourceCurrency != quote.TargetCurrency {
		arg.TargetAmount = quote.TargetAmount
		arg.TargetCurrency = quote.TargetCurrency
		arg.ExchangeRate = quote.Rate
	}

	return arg
}

// isWeekend reports whether t falls on a Saturday or Sunday in UTC.
func isWeekend(t time.Time) bool {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}

	return false
}
