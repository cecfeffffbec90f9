package transferrepo

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/moventis/transfer-engine/internal/accountrepo"
	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/internal/quoterepo"
	"github.com/moventis/transfer-engine/internal/raterepo"
	"github.com/moventis/transfer-engine/pkg/configpkg"
	"github.com/moventis/transfer-engine/pkg/dbpkg"
	"github.com/moventis/transfer-engine/pkg/randompkg"
)

var (
	testRepo        *RepoPGS
	testAccountRepo *accountrepo.RepoPGS
	testQuoteRepo   *quoterepo.RepoPGS
	testRateRepo    *raterepo.RepoPGS
)

func TestMain(m *testing.M) {
	config, err := configpkg.Load("../../configs")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	testDB, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		log.Println("skipping repository tests, no database:", err)
		os.Exit(0)
	}

	testRepo = NewRepoPGS(testDB)
	testAccountRepo = accountrepo.NewRepoPGS(testDB)
	testQuoteRepo = quoterepo.NewRepoPGS(testDB)
	testRateRepo = raterepo.NewRepoPGS(testDB)

	os.Exit(m.Run())
}

func createTestAccount(t *testing.T, balance, currency string) domain.Account {
	t.Helper()

	account, err := testAccountRepo.Create(context.Background(), randompkg.Intn(1_000_000)+1, balance, currency)
	require.NoError(t, err)
	require.NotEmpty(t, account)

	return account
}

func TestTransfer(t *testing.T) {
	from := createTestAccount(t, "1000", "USD")
	to := createTestAccount(t, "1000", "USD")

	amount := "10"
	n := 5

	results := make(chan domain.TransferTxResult)
	errs := make(chan error)

	// Concurrent transfers must serialize on the row locks without
	// deadlocking or losing updates.
	for i := 0; i < n; i++ {
		go func() {
			result, err := testRepo.Transfer(context.Background(), domain.CreateTransferParams{
				FromAccountID:  from.ID,
				ToAccountID:    to.ID,
				Amount:         amount,
				Currency:       "USD",
				IdempotencyKey: randompkg.IdempotencyKey(),
			})

			errs <- err
			results <- result
		}()
	}

	for i := 0; i < n; i++ {
		err := <-errs
		require.NoError(t, err)

		result := <-results
		require.False(t, result.Replayed)

		transfer := result.Transfer
		require.Equal(t, from.ID, transfer.FromAccountID)
		require.Equal(t, to.ID, transfer.ToAccountID)
		require.Equal(t, amount, transfer.Amount)
		require.Equal(t, domain.TransferCompleted, transfer.Status)
		require.NotZero(t, transfer.ID)

		require.Equal(t, "-"+amount, result.FromEntry.Amount)
		require.Equal(t, domain.EntryDebit, result.FromEntry.Type)
		require.Equal(t, result.FromAccount.Balance, result.FromEntry.BalanceAfter)

		require.Equal(t, amount, result.ToEntry.Amount)
		require.Equal(t, domain.EntryCredit, result.ToEntry.Type)
		require.Equal(t, result.ToAccount.Balance, result.ToEntry.BalanceAfter)
	}

	fromAfter, err := testAccountRepo.Get(context.Background(), from.ID)
	require.NoError(t, err)
	toAfter, err := testAccountRepo.Get(context.Background(), to.ID)
	require.NoError(t, err)

	moved := decimal.RequireFromString(amount).Mul(decimal.NewFromInt(int64(n)))
	require.True(t, decimal.RequireFromString(from.Balance).Sub(moved).
		Equal(decimal.RequireFromString(fromAfter.Balance)))
	require.True(t, decimal.RequireFromString(to.Balance).Add(moved).
		Equal(decimal.RequireFromString(toAfter.Balance)))
}

func TestTransferCrossCurrency(t *testing.T) {
	from := createTestAccount(t, "1000", "USD")
	to := createTestAccount(t, "1000", "EUR")

	result, err := testRepo.Transfer(context.Background(), domain.CreateTransferParams{
		FromAccountID:  from.ID,
		ToAccountID:    to.ID,
		Amount:         "100",
		Currency:       "USD",
		TargetAmount:   "92",
		TargetCurrency: "EUR",
		ExchangeRate:   "0.92",
		IdempotencyKey: randompkg.IdempotencyKey(),
	})
	require.NoError(t, err)

	require.Equal(t, "92", result.Transfer.TargetAmount)
	require.Equal(t, "EUR", result.Transfer.TargetCurrency)
	require.Equal(t, "0.92", result.Transfer.ExchangeRate)

	// Debit in source units, credit in target units.
	require.Equal(t, "-100", result.FromEntry.Amount)
	require.Equal(t, "92", result.ToEntry.Amount)
}

func TestTransferInsufficientBalance(t *testing.T) {
	from := createTestAccount(t, "5", "USD")
	to := createTestAccount(t, "5", "USD")

	_, err := testRepo.Transfer(context.Background(), domain.CreateTransferParams{
		FromAccountID:  from.ID,
		ToAccountID:    to.ID,
		Amount:         "10",
		Currency:       "USD",
		IdempotencyKey: randompkg.IdempotencyKey(),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Nothing moved.
	fromAfter, err := testAccountRepo.Get(context.Background(), from.ID)
	require.NoError(t, err)
	require.Equal(t, from.Balance, fromAfter.Balance)
}

func TestTransferReplay(t *testing.T) {
	from := createTestAccount(t, "1000", "USD")
	to := createTestAccount(t, "1000", "USD")

	arg := domain.CreateTransferParams{
		FromAccountID:  from.ID,
		ToAccountID:    to.ID,
		Amount:         "10",
		Currency:       "USD",
		IdempotencyKey: randompkg.IdempotencyKey(),
	}

	first, err := testRepo.Transfer(context.Background(), arg)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := testRepo.Transfer(context.Background(), arg)
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.Transfer.ID, second.Transfer.ID)

	// The replay must not debit again.
	fromAfter, err := testAccountRepo.Get(context.Background(), from.ID)
	require.NoError(t, err)
	require.Equal(t, first.FromAccount.Balance, fromAfter.Balance)
}

func createTestQuote(t *testing.T, from, to domain.Account) domain.Quote {
	t.Helper()

	ctx := context.Background()

	snapshot, err := testRateRepo.Create(ctx, domain.RateSnapshot{
		ID:           uuid.NewString(),
		Provider:     "test",
		BaseCurrency: from.Currency,
		Rates:        map[string]decimal.Decimal{to.Currency: decimal.RequireFromString("0.92")},
		ProviderTime: time.Now(),
		FetchedAt:    time.Now(),
		Status:       domain.SnapshotAccepted,
	})
	require.NoError(t, err)

	quote, err := testQuoteRepo.Create(ctx, domain.Quote{
		ID:             uuid.NewString(),
		UserID:         from.UserID,
		FromAccountID:  from.ID,
		ToAccountID:    to.ID,
		SourceCurrency: from.Currency,
		TargetCurrency: to.Currency,
		SourceAmount:   "100",
		TargetAmount:   "92",
		Rate:           "0.92",
		SnapshotID:     snapshot.ID,
		FeeTotal:       "0",
		FeeBreakdown:   domain.FeeBreakdown{Total: decimal.Zero},
		TotalDebit:     "100",
		WeekendPolicy:  domain.WeekendAllow,
		Status:         domain.QuoteCreated,
		ExpiresAt:      time.Now().Add(2 * time.Minute),
	})
	require.NoError(t, err)

	return quote
}

func TestTransferSingleUseQuote(t *testing.T) {
	from := createTestAccount(t, "1000", "USD")
	to := createTestAccount(t, "1000", "EUR")
	quote := createTestQuote(t, from, to)

	arg := domain.CreateTransferParams{
		FromAccountID:  from.ID,
		ToAccountID:    to.ID,
		Amount:         "100",
		Currency:       "USD",
		TargetAmount:   "92",
		TargetCurrency: "EUR",
		ExchangeRate:   "0.92",
		QuoteID:        quote.ID,
		IdempotencyKey: randompkg.IdempotencyKey(),
	}

	first, err := testRepo.Transfer(context.Background(), arg)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	claimed, err := testQuoteRepo.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	require.Equal(t, domain.QuoteAccepted, claimed.Status)

	// A second execution under a fresh caller key is a new unit of work,
	// so the quote claim has to stop it, not the idempotency replay.
	arg.IdempotencyKey = randompkg.IdempotencyKey()
	_, err = testRepo.Transfer(context.Background(), arg)
	require.ErrorIs(t, err, domain.ErrQuoteAlreadyUsed)

	_, err = testRepo.GetByIdempotencyKey(context.Background(), arg.IdempotencyKey)
	require.ErrorIs(t, err, domain.ErrTransferNotFound)

	fromAfter, err := testAccountRepo.Get(context.Background(), from.ID)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString(from.Balance).Sub(decimal.RequireFromString("100")).
		Equal(decimal.RequireFromString(fromAfter.Balance)))
}

func TestTransferDailyLimit(t *testing.T) {
	from := createTestAccount(t, "1000", "USD")
	to := createTestAccount(t, "1000", "USD")

	arg := domain.CreateTransferParams{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Amount:        "10",
		Currency:      "USD",
		DailyLimit:    "25",
	}

	for i := 0; i < 2; i++ {
		arg.IdempotencyKey = randompkg.IdempotencyKey()
		_, err := testRepo.Transfer(context.Background(), arg)
		require.NoError(t, err)
	}

	arg.IdempotencyKey = randompkg.IdempotencyKey()
	_, err := testRepo.Transfer(context.Background(), arg)
	require.ErrorIs(t, err, domain.ErrLimitExceeded)

	fromAfter, err := testAccountRepo.Get(context.Background(), from.ID)
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString(from.Balance).Sub(decimal.RequireFromString("20")).
		Equal(decimal.RequireFromString(fromAfter.Balance)))
}

func TestGetByIdempotencyKey(t *testing.T) {
	from := createTestAccount(t, "1000", "USD")
	to := createTestAccount(t, "1000", "USD")

	arg := domain.CreateTransferParams{
		FromAccountID:  from.ID,
		ToAccountID:    to.ID,
		Amount:         "10",
		Currency:       "USD",
		IdempotencyKey: randompkg.IdempotencyKey(),
	}

	result, err := testRepo.Transfer(context.Background(), arg)
	require.NoError(t, err)

	transfer, err := testRepo.GetByIdempotencyKey(context.Background(), arg.IdempotencyKey)
	require.NoError(t, err)
	require.Equal(t, result.Transfer.ID, transfer.ID)

	_, err = testRepo.GetByIdempotencyKey(context.Background(), randompkg.IdempotencyKey())
	require.ErrorIs(t, err, domain.ErrTransferNotFound)
}

func TestList(t *testing.T) {
	from := createTestAccount(t, "1000", "USD")
	to := createTestAccount(t, "1000", "USD")

	for i := 0; i < 3; i++ {
		_, err := testRepo.Transfer(context.Background(), domain.CreateTransferParams{
			FromAccountID:  from.ID,
			ToAccountID:    to.ID,
			Amount:         "10",
			Currency:       "USD",
			IdempotencyKey: randompkg.IdempotencyKey(),
		})
		require.NoError(t, err)
	}

	transfers, err := testRepo.List(context.Background(), domain.ListTransfersParams{
		FromAccountID: from.ID,
		ToAccountID:   to.ID,
		Limit:         5,
		Offset:        0,
	})
	require.NoError(t, err)
	require.Len(t, transfers, 3)
}

func TestSumDebitedSince(t *testing.T) {
	from := createTestAccount(t, "1000", "USD")
	to := createTestAccount(t, "1000", "USD")

	for i := 0; i < 2; i++ {
		_, err := testRepo.Transfer(context.Background(), domain.CreateTransferParams{
			FromAccountID:  from.ID,
			ToAccountID:    to.ID,
			Amount:         "10.50",
			Currency:       "USD",
			IdempotencyKey: randompkg.IdempotencyKey(),
		})
		require.NoError(t, err)
	}

	sum, err := testRepo.SumDebitedSince(context.Background(), from.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString(sum).Equal(decimal.RequireFromString("21")))

	sum, err = testRepo.SumDebitedSince(context.Background(), from.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString(sum).IsZero())
}
