package raterepo

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

	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/pkg/configpkg"
	"github.com/moventis/transfer-engine/pkg/dbpkg"
)

var testRepo *RepoPGS

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

	os.Exit(m.Run())
}

func createTestSnapshot(t *testing.T, provider, status string, fetchedAt time.Time) domain.RateSnapshot {
	t.Helper()

	snapshot, err := testRepo.Create(context.Background(), domain.RateSnapshot{
		ID:           uuid.NewString(),
		Provider:     provider,
		BaseCurrency: "USD",
		Rates: map[string]decimal.Decimal{
			"EUR": decimal.RequireFromString("0.92"),
			"JPY": decimal.RequireFromString("151.62"),
		},
		ProviderTime: fetchedAt,
		FetchedAt:    fetchedAt,
		Status:       status,
	})
	require.NoError(t, err)
	require.NotEmpty(t, snapshot)

	return snapshot
}

func TestCreateAndGet(t *testing.T) {
	snapshot1 := createTestSnapshot(t, "test-"+uuid.NewString(), domain.SnapshotAccepted, time.Now())

	snapshot2, err := testRepo.Get(context.Background(), snapshot1.ID)
	require.NoError(t, err)

	require.Equal(t, snapshot1.ID, snapshot2.ID)
	require.Equal(t, snapshot1.Provider, snapshot2.Provider)
	require.Equal(t, snapshot1.Status, snapshot2.Status)
	require.True(t, snapshot1.Rates["EUR"].Equal(snapshot2.Rates["EUR"]))
	require.True(t, snapshot1.Rates["JPY"].Equal(snapshot2.Rates["JPY"]))
}

func TestGetNotFound(t *testing.T) {
	_, err := testRepo.Get(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestGetLatestAccepted(t *testing.T) {
	provider := "test-" + uuid.NewString()

	createTestSnapshot(t, provider, domain.SnapshotAccepted, time.Now().Add(-2*time.Minute))
	latest := createTestSnapshot(t, provider, domain.SnapshotAccepted, time.Now().Add(-time.Minute))
	// Rejected snapshots never back quotes, whatever their age.
	createTestSnapshot(t, provider, domain.SnapshotRejected, time.Now())

	snapshot, err := testRepo.GetLatestAccepted(context.Background(), provider)
	require.NoError(t, err)
	require.Equal(t, latest.ID, snapshot.ID)
}

func TestGetLatestAcceptedNotFound(t *testing.T) {
	_, err := testRepo.GetLatestAccepted(context.Background(), "test-"+uuid.NewString())
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}
