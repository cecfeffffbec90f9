// Package transferrepo manages repository layer of transfers.
package transferrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/moventis/transfer-engine/internal/accountrepo"
	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/internal/entryrepo"
	"github.com/moventis/transfer-engine/internal/quoterepo"
	"github.com/moventis/transfer-engine/pkg/dbpkg"
	"github.com/moventis/transfer-engine/pkg/errorspkg"
)

// errDuplicateKey signals that another transfer already holds the
// idempotency key. Transfer resolves it by returning the winner's row.
var errDuplicateKey = errors.New("duplicate idempotency key")

// RepoPGS facilitates transfer repository layer logic.
type RepoPGS struct {
	db   dbpkg.SQLInterface
	conn *sql.DB
}

// NewTxRepoPGS returns transfer RepoPGS bound to an existing transaction.
func NewTxRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

// NewRepoPGS returns transfer RepoPGS with a connection to start transactions.
func NewRepoPGS(db *sql.DB) *RepoPGS {
	return &RepoPGS{
		db:   db,
		conn: db,
	}
}

const createQuery = `
INSERT INTO
    transfers (from_account_id, to_account_id, amount, currency,
               target_amount, target_currency, exchange_rate,
               status, idempotency_key, description)
VALUES
    ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $10)
RETURNING id, from_account_id, to_account_id, amount, currency,
          COALESCE(target_amount::text, ''), COALESCE(target_currency, ''),
          COALESCE(exchange_rate::text, ''), status, idempotency_key,
          COALESCE(description, ''), created_at
`

// Create creates the transfer and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateTransferParams) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, createQuery,
		arg.FromAccountID, arg.ToAccountID, arg.Amount, arg.Currency,
		arg.TargetAmount, arg.TargetCurrency, arg.ExchangeRate,
		domain.TransferCompleted, arg.IdempotencyKey, arg.Description,
	)

	var t domain.Transfer

	err := scanTransfer(row, &t)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			switch pqErr.Constraint {
			case "transfers_from_account_id_fkey", "transfers_to_account_id_fkey":
				return t, domain.ErrAccountNotFound
			case "transfers_amount_check":
				return t, domain.ErrInvalidAmount
			case "transfers_idempotency_key_key":
				return t, errDuplicateKey
			}
		}

		l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const getQuery = `
SELECT id, from_account_id, to_account_id, amount, currency,
       COALESCE(target_amount::text, ''), COALESCE(target_currency, ''),
       COALESCE(exchange_rate::text, ''), status, idempotency_key,
       COALESCE(description, ''), created_at
FROM transfers
WHERE id = $1
`

// Get returns the transfer with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getQuery, id)

	var t domain.Transfer

	err := scanTransfer(row, &t)
	if err != nil {
		if err == sql.ErrNoRows {
			return t, domain.ErrTransferNotFound
		}

		l.Error().Err(err).Send()

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const getByKeyQuery = `
SELECT id, from_account_id, to_account_id, amount, currency,
       COALESCE(target_amount::text, ''), COALESCE(target_currency, ''),
       COALESCE(exchange_rate::text, ''), status, idempotency_key,
       COALESCE(description, ''), created_at
FROM transfers
WHERE idempotency_key = $1
`

// GetByIdempotencyKey returns the transfer recorded under the given key.
func (r *RepoPGS) GetByIdempotencyKey(ctx context.Context, key string) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	row := r.db.QueryRowContext(ctx, getByKeyQuery, key)

	var t domain.Transfer

	err := scanTransfer(row, &t)
	if err != nil {
		if err == sql.ErrNoRows {
			return t, domain.ErrTransferNotFound
		}

		l.Error().Err(err).Send()

		return t, errorspkg.ErrInternal
	}

	return t, nil
}

const listQuery = `
SELECT id, from_account_id, to_account_id, amount, currency,
       COALESCE(target_amount::text, ''), COALESCE(target_currency, ''),
       COALESCE(exchange_rate::text, ''), status, idempotency_key,
       COALESCE(description, ''), created_at
FROM transfers
WHERE from_account_id = $1 OR to_account_id = $2
ORDER BY id
LIMIT $3 OFFSET $4
`

// List returns the transfers touching the specified accounts.
func (r *RepoPGS) List(ctx context.Context, arg domain.ListTransfersParams) ([]domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, listQuery,
		arg.FromAccountID, arg.ToAccountID, arg.Limit, arg.Offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transfer{}

	for rows.Next() {
		var t domain.Transfer
		if err := rows.Scan(
			&t.ID, &t.FromAccountID, &t.ToAccountID, &t.Amount, &t.Currency,
			&t.TargetAmount, &t.TargetCurrency, &t.ExchangeRate,
			&t.Status, &t.IdempotencyKey, &t.Description, &t.CreatedAt,
		); err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, t)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

const sumDebitedQuery = `
SELECT COALESCE(SUM(amount), 0)::text
FROM transfers
WHERE from_account_id = $1 AND status = $2 AND created_at >= $3
`

// SumDebitedSince returns the total amount debited from the account in
// completed transfers since the given time.
func (r *RepoPGS) SumDebitedSince(ctx context.Context, accountID int64, since time.Time) (string, error) {
	l := zerolog.Ctx(ctx)

	var sum string

	err := r.db.QueryRowContext(ctx, sumDebitedQuery, accountID, domain.TransferCompleted, since).Scan(&sum)
	if err != nil {
		l.Error().Err(err).Send()
		return "", errorspkg.ErrInternal
	}

	return sum, nil
}

// Transfer moves money between two accounts with exactly-once semantics.
//
// Within a single database transaction it locks both account rows in
// ascending id order, re-checks the source balance (and, when a limit is
// given, the rolling debit cap) under the lock, inserts the transfer
// row, claims the backing quote when one is given, applies both balance
// changes, and appends the debit/credit entry pair with balance-after
// snapshots. Any failure aborts the whole unit. If the idempotency key
// is already taken, the winner's transfer is returned unchanged with
// Replayed set.
func (r *RepoPGS) Transfer(ctx context.Context, arg domain.CreateTransferParams) (domain.TransferTxResult, error) {
	l := zerolog.Ctx(ctx)

	var result domain.TransferTxResult

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		l.Error().Err(err).Send()
		return result, errorspkg.ErrInternal
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			l.Error().Err(err).Send()
		}
	}()

	accountRepo := accountrepo.NewRepoPGS(tx)
	entryRepo := entryrepo.NewRepoPGS(tx)
	txTransferRepo := NewTxRepoPGS(tx)

	fromAccount, toAccount, err := lockPair(ctx, accountRepo, arg.FromAccountID, arg.ToAccountID)
	if err != nil {
		return result, err
	}

	// The check-then-act races on the balance and on the debit cap are
	// closed by the row lock: concurrent debits from the same account
	// serialize here and each sees the previous one committed.
	if err := checkBalance(fromAccount.Balance, arg.Amount); err != nil {
		return result, err
	}

	if arg.DailyLimit != "" {
		if err := txTransferRepo.checkDailyLimit(ctx, arg); err != nil {
			return result, err
		}
	}

	result.Transfer, err = txTransferRepo.Create(ctx, arg)
	if err != nil {
		if errors.Is(err, errDuplicateKey) {
			return r.replay(ctx, arg.IdempotencyKey)
		}

		return result, err
	}

	// Claiming the quote inside the same transaction as the postings is
	// what makes a quote single-use: the losing claimant's transfer row
	// is rolled back with the rest of its unit.
	if arg.QuoteID != "" {
		err := quoterepo.NewRepoPGS(tx).UpdateStatus(ctx, arg.QuoteID, domain.QuoteCreated, domain.QuoteAccepted)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidQuoteTransition) {
				return domain.TransferTxResult{}, domain.ErrQuoteAlreadyUsed
			}

			return domain.TransferTxResult{}, err
		}
	}

	debit := "-" + arg.Amount
	credit := arg.CreditAmount()

	// To avoid deadlocks execute balance updates in consistent id order.
	if arg.FromAccountID < arg.ToAccountID {
		fromAccount, err = accountRepo.AddBalance(ctx, debit, arg.FromAccountID)
		if err != nil {
			return result, err
		}

		toAccount, err = accountRepo.AddBalance(ctx, credit, arg.ToAccountID)
	} else {
		toAccount, err = accountRepo.AddBalance(ctx, credit, arg.ToAccountID)
		if err != nil {
			return result, err
		}

		fromAccount, err = accountRepo.AddBalance(ctx, debit, arg.FromAccountID)
	}

	if err != nil {
		return result, err
	}

	result.FromAccount, result.ToAccount = fromAccount, toAccount

	result.FromEntry, err = entryRepo.Create(ctx, entryrepo.CreateEntryParams{
		AccountID:    fromAccount.ID,
		TransferID:   result.Transfer.ID,
		Amount:       debit,
		Type:         domain.EntryDebit,
		BalanceAfter: fromAccount.Balance,
	})
	if err != nil {
		return result, err
	}

	result.ToEntry, err = entryRepo.Create(ctx, entryrepo.CreateEntryParams{
		AccountID:    toAccount.ID,
		TransferID:   result.Transfer.ID,
		Amount:       credit,
		Type:         domain.EntryCredit,
		BalanceAfter: toAccount.Balance,
	})
	if err != nil {
		return result, err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Send()
		return domain.TransferTxResult{}, errorspkg.ErrInternal
	}

	return result, nil
}

// checkDailyLimit re-verifies the rolling debit cap while the source
// account row lock is held.
func (r *RepoPGS) checkDailyLimit(ctx context.Context, arg domain.CreateTransferParams) error {
	limit, err := decimal.NewFromString(arg.DailyLimit)
	if err != nil {
		return errorspkg.ErrInternal
	}

	amount, err := decimal.NewFromString(arg.Amount)
	if err != nil {
		return domain.ErrInvalidAmount
	}

	since := time.Now().Add(-24 * time.Hour)

	debited, err := r.SumDebitedSince(ctx, arg.FromAccountID, since)
	if err != nil {
		return err
	}

	total, err := decimal.NewFromString(debited)
	if err != nil {
		return errorspkg.ErrInternal
	}

	if total.Add(amount).GreaterThan(limit) {
		return domain.ErrLimitExceeded
	}

	return nil
}

// replay resolves a lost idempotency race by returning the committed
// winner's transfer, read outside the aborted transaction.
func (r *RepoPGS) replay(ctx context.Context, key string) (domain.TransferTxResult, error) {
	var result domain.TransferTxResult

	winner := NewRepoPGS(r.conn)

	t, err := winner.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return result, err
	}

	result.Transfer = t
	result.Replayed = true

	return result, nil
}

func lockPair(ctx context.Context, r *accountrepo.RepoPGS, fromID, toID int64) (domain.Account, domain.Account, error) {
	if fromID < toID {
		from, err := r.GetForUpdate(ctx, fromID)
		if err != nil {
			return domain.Account{}, domain.Account{}, err
		}

		to, err := r.GetForUpdate(ctx, toID)

		return from, to, err
	}

	to, err := r.GetForUpdate(ctx, toID)
	if err != nil {
		return domain.Account{}, domain.Account{}, err
	}

	from, err := r.GetForUpdate(ctx, fromID)

	return from, to, err
}

func checkBalance(balance, amount string) error {
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return errorspkg.ErrInternal
	}

	a, err := decimal.NewFromString(amount)
	if err != nil {
		return domain.ErrInvalidAmount
	}

	if b.LessThan(a) {
		return domain.ErrInsufficientBalance
	}

	return nil
}

func scanTransfer(row *sql.Row, t *domain.Transfer) error {
	return row.Scan(
		&t.ID,
		&t.FromAccountID,
		&t.ToAccountID,
		&t.Amount,
		&t.Currency,
		&t.TargetAmount,
		&t.TargetCurrency,
		&t.ExchangeRate,
		&t.Status,
		&t.IdempotencyKey,
		&t.Description,
		&t.CreatedAt,
	)
}
