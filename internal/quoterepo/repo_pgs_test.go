package quoterepo

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"

	"github.com/moventis/transfer-engine/internal/accountrepo"
	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/internal/raterepo"
	"github.com/moventis/transfer-engine/pkg/configpkg"
	"github.com/moventis/transfer-engine/pkg/dbpkg"
	"github.com/moventis/transfer-engine/pkg/randompkg"
)

var (
	testRepo        *RepoPGS
	testAccountRepo *accountrepo.RepoPGS
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
	testRateRepo = raterepo.NewRepoPGS(testDB)

	os.Exit(m.Run())
}

func createTestQuote(t *testing.T, expiresAt time.Time) domain.Quote {
	t.Helper()

	ctx := context.Background()

	from, err := testAccountRepo.Create(ctx, randompkg.Intn(1_000_000)+1, "1000", "USD")
	require.NoError(t, err)
	to, err := testAccountRepo.Create(ctx, randompkg.Intn(1_000_000)+1, "1000", "EUR")
	require.NoError(t, err)

	snapshot, err := testRateRepo.Create(ctx, domain.RateSnapshot{
		ID:           uuid.NewString(),
		Provider:     "test",
		BaseCurrency: "USD",
		Rates:        map[string]decimal.Decimal{"EUR": decimal.RequireFromString("0.92")},
		ProviderTime: time.Now(),
		FetchedAt:    time.Now(),
		Status:       domain.SnapshotAccepted,
	})
	require.NoError(t, err)

	quote, err := testRepo.Create(ctx, domain.Quote{
		ID:             uuid.NewString(),
		UserID:         from.UserID,
		FromAccountID:  from.ID,
		ToAccountID:    to.ID,
		SourceCurrency: "USD",
		TargetCurrency: "EUR",
		SourceAmount:   "100",
		TargetAmount:   "92",
		Rate:           "0.92",
		SnapshotID:     snapshot.ID,
		FeeTotal:       "2.51",
		FeeBreakdown: domain.FeeBreakdown{
			Total:        decimal.RequireFromString("2.51"),
			Fixed:        decimal.RequireFromString("2.51"),
			AppliedRules: []string{"base-transfer"},
		},
		TotalDebit:    "102.51",
		WeekendPolicy: domain.WeekendAllow,
		Status:        domain.QuoteCreated,
		ExpiresAt:     expiresAt,
	})
	require.NoError(t, err)
	require.NotEmpty(t, quote)
	require.NotZero(t, quote.CreatedAt)

	return quote
}

func TestCreateAndGet(t *testing.T) {
	quote1 := createTestQuote(t, time.Now().Add(2*time.Minute))

	quote2, err := testRepo.Get(context.Background(), quote1.ID)
	require.NoError(t, err)

	require.Equal(t, quote1.ID, quote2.ID)
	require.Equal(t, quote1.SnapshotID, quote2.SnapshotID)
	require.Equal(t, domain.QuoteCreated, quote2.Status)
	require.True(t, quote1.FeeBreakdown.Total.Equal(quote2.FeeBreakdown.Total))
	require.Equal(t, quote1.FeeBreakdown.AppliedRules, quote2.FeeBreakdown.AppliedRules)
	require.WithinDuration(t, quote1.ExpiresAt, quote2.ExpiresAt, time.Second)
}

func TestGetNotFound(t *testing.T) {
	_, err := testRepo.Get(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, domain.ErrQuoteNotFound)
}

func TestUpdateStatus(t *testing.T) {
	quote := createTestQuote(t, time.Now().Add(2*time.Minute))

	err := testRepo.UpdateStatus(context.Background(), quote.ID, domain.QuoteCreated, domain.QuoteAccepted)
	require.NoError(t, err)

	// Terminal statuses never transition again.
	err = testRepo.UpdateStatus(context.Background(), quote.ID, domain.QuoteCreated, domain.QuoteExpired)
	require.ErrorIs(t, err, domain.ErrInvalidQuoteTransition)

	stored, err := testRepo.Get(context.Background(), quote.ID)
	require.NoError(t, err)
	require.Equal(t, domain.QuoteAccepted, stored.Status)
}

func TestExpireStale(t *testing.T) {
	overdue := createTestQuote(t, time.Now().Add(-time.Minute))
	fresh := createTestQuote(t, time.Now().Add(10*time.Minute))

	swept, err := testRepo.ExpireStale(context.Background(), time.Now())
	require.NoError(t, err)
	require.GreaterOrEqual(t, swept, int64(1))

	stored, err := testRepo.Get(context.Background(), overdue.ID)
	require.NoError(t, err)
	require.Equal(t, domain.QuoteExpired, stored.Status)

	stored, err = testRepo.Get(context.Background(), fresh.ID)
	require.NoError(t, err)
	require.Equal(t, domain.QuoteCreated, stored.Status)
}
