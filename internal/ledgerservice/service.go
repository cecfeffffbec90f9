// Package ledgerservice manages the business logic layer of ledger transfers.
//
// It is the only component permitted to mutate account balances, and it
// does so exclusively through the repository's single atomic transfer
// transaction. Both the direct same-currency path and the quoted
// cross-currency path execute through the same primitive.
package ledgerservice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/pkg/metricspkg"
)

// keyNamespace is the fixed UUIDv5 namespace for derived idempotency keys.
var keyNamespace = uuid.MustParse("6ba7b839-9dad-11d1-80b4-00c04fd430c8")

// TransferRepo provides the data access layer interface needed by the ledger service.
//
//go:generate mockgen -source service.go -destination service_mock.go -package ledgerservice
type TransferRepo interface {
	Transfer(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferTxResult, error)
	GetByIdempotencyKey(ctx context.Context, key string) (domain.Transfer, error)
	SumDebitedSince(ctx context.Context, accountID int64, since time.Time) (string, error)
}

// AccountRepo provides the account reads needed for pre-transfer validation.
type AccountRepo interface {
	Get(ctx context.Context, id int64) (domain.Account, error)
}

// Service facilitates ledger service layer logic.
type Service struct {
	repo     TransferRepo
	accounts AccountRepo

	dailyLimit decimal.Decimal
	limited    bool

	now func() time.Time
}

// New returns a ledger Service. dailyLimit caps completed debits per
// account over a rolling 24 hours; an empty string disables the cap.
func New(repo TransferRepo, accounts AccountRepo, dailyLimit string) (*Service, error) {
	s := &Service{
		repo:     repo,
		accounts: accounts,
		now:      time.Now,
	}

	if dailyLimit != "" {
		limit, err := decimal.NewFromString(dailyLimit)
		if err != nil {
			return nil, fmt.Errorf("parse daily transfer limit: %w", err)
		}

		s.dailyLimit = limit
		s.limited = true
	}

	return s, nil
}

// DeriveIdempotencyKey hashes the canonicalized transfer parameters into
// a deterministic key, so identical retried requests collapse to one
// execution even when the caller supplies no key.
func DeriveIdempotencyKey(arg domain.CreateTransferParams) string {
	canonical := fmt.Sprintf("%d|%d|%s|%s|%s|%s|%s",
		arg.FromAccountID, arg.ToAccountID,
		arg.Amount, arg.Currency,
		arg.TargetAmount, arg.TargetCurrency,
		arg.Description,
	)

	return uuid.NewSHA1(keyNamespace, []byte(canonical)).String()
}

// Execute validates the transfer request and runs it through the atomic
// transfer transaction. A repeated call with a known idempotency key
// returns the original transfer unchanged, with no further side effects.
func (s *Service) Execute(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferTxResult, error) {
	l := zerolog.Ctx(ctx)

	if arg.IdempotencyKey == "" {
		arg.IdempotencyKey = DeriveIdempotencyKey(arg)
	}

	prior, err := s.repo.GetByIdempotencyKey(ctx, arg.IdempotencyKey)
	if err == nil {
		l.Info().Str("idempotency_key", arg.IdempotencyKey).Msg("transfer replayed")
		metricspkg.TransfersTotal.WithLabelValues("replayed").Inc()

		return domain.TransferTxResult{Transfer: prior, Replayed: true}, nil
	}

	if err != domain.ErrTransferNotFound {
		return domain.TransferTxResult{}, err
	}

	if err := s.validate(ctx, arg); err != nil {
		metricspkg.TransfersTotal.WithLabelValues("rejected").Inc()
		return domain.TransferTxResult{}, err
	}

	// The validate pre-check rejects early without a transaction; the
	// authoritative limit check re-runs under the account row lock.
	if s.limited {
		arg.DailyLimit = s.dailyLimit.String()
	}

	result, err := s.repo.Transfer(ctx, arg)
	if err != nil {
		metricspkg.TransfersTotal.WithLabelValues("failed").Inc()
		return result, err
	}

	if result.Replayed {
		metricspkg.TransfersTotal.WithLabelValues("replayed").Inc()
	} else {
		metricspkg.TransfersTotal.WithLabelValues("completed").Inc()
	}

	return result, nil
}

// ExecuteDirect runs the same-currency transfer path, bypassing quoting.
func (s *Service) ExecuteDirect(ctx context.Context, fromAccountID, toAccountID int64, amount, currency, idempotencyKey, description string) (domain.TransferTxResult, error) {
	return s.Execute(ctx, domain.CreateTransferParams{
		FromAccountID:  fromAccountID,
		ToAccountID:    toAccountID,
		Amount:         amount,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
		Description:    description,
	})
}

func (s *Service) validate(ctx context.Context, arg domain.CreateTransferParams) error {
	l := zerolog.Ctx(ctx)

	amount, err := decimal.NewFromString(arg.Amount)
	if err != nil {
		l.Info().Err(err).Msg("invalid transfer amount")
		return domain.ErrInvalidAmount
	}

	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.ErrNegativeAmount
	}

	if arg.TargetAmount != "" {
		target, err := decimal.NewFromString(arg.TargetAmount)
		if err != nil {
			l.Info().Err(err).Msg("invalid target amount")
			return domain.ErrInvalidAmount
		}

		if target.LessThanOrEqual(decimal.Zero) {
			return domain.ErrNegativeAmount
		}
	}

	fromAccount, err := s.accounts.Get(ctx, arg.FromAccountID)
	if err != nil {
		return err
	}

	toAccount, err := s.accounts.Get(ctx, arg.ToAccountID)
	if err != nil {
		return err
	}

	if fromAccount.Status != domain.AccountActive || toAccount.Status != domain.AccountActive {
		return domain.ErrAccountNotActive
	}

	if fromAccount.Currency != arg.Currency {
		return domain.ErrCurrencyMismatch
	}

	// The destination posting stays in the destination account's own
	// currency; conversion is resolved upstream by the orchestrator.
	expected := arg.Currency
	if arg.TargetCurrency != "" {
		expected = arg.TargetCurrency
	}

	if toAccount.Currency != expected {
		return domain.ErrCurrencyMismatch
	}

	balance, err := decimal.NewFromString(fromAccount.Balance)
	if err != nil {
		l.Error().Err(err).Send()
		return err
	}

	if balance.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}

	return s.checkDailyLimit(ctx, fromAccount.ID, amount)
}

func (s *Service) checkDailyLimit(ctx context.Context, accountID int64, amount decimal.Decimal) error {
	if !s.limited {
		return nil
	}

	since := s.now().Add(-24 * time.Hour)

	debited, err := s.repo.SumDebitedSince(ctx, accountID, since)
	if err != nil {
		return err
	}

	total, err := decimal.NewFromString(debited)
	if err != nil {
		return err
	}

	if total.Add(amount).GreaterThan(s.dailyLimit) {
		return domain.ErrLimitExceeded
	}

	return nil
}
