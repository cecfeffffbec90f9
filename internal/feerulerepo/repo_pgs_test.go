package feerulerepo

import (
	"context"
	"database/sql"
	"log"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	_ "github.com/lib/pq"

	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/pkg/configpkg"
	"github.com/moventis/transfer-engine/pkg/dbpkg"
	"github.com/moventis/transfer-engine/pkg/randompkg"
)

var (
	testRepo *RepoPGS
	testDB   *sql.DB
)

func TestMain(m *testing.M) {
	config, err := configpkg.Load("../../configs")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	testDB, err = dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		log.Println("skipping repository tests, no database:", err)
		os.Exit(0)
	}

	testRepo = NewRepoPGS(testDB)

	os.Exit(m.Run())
}

func insertRule(t *testing.T, name, currency, transactionType string, active bool) {
	t.Helper()

	_, err := testDB.ExecContext(context.Background(), `
		INSERT INTO fee_rules (name, currency, transaction_type, fixed_amount, percentage_rate, active)
		VALUES ($1, $2, $3, 2.5, 0.5, $4)`,
		name, currency, transactionType, active,
	)
	require.NoError(t, err)
}

func TestListActive(t *testing.T) {
	// An improbable currency code keeps the fixture isolated from other
	// test runs sharing the table.
	currency := "X" + randompkg.String(2)

	insertRule(t, "base", currency, domain.TransactionTransfer, true)
	insertRule(t, "retired", currency, domain.TransactionTransfer, false)
	insertRule(t, "withdrawal-only", currency, domain.TransactionWithdrawal, true)

	rules, err := testRepo.ListActive(context.Background(), currency, domain.TransactionTransfer)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	rule := rules[0]
	require.Equal(t, "base", rule.Name)
	require.True(t, rule.Active)
	require.True(t, rule.FixedAmount.Valid)
	require.True(t, rule.FixedAmount.Decimal.Equal(decimal.RequireFromString("2.5")))
	require.True(t, rule.PercentageRate.Valid)
	require.False(t, rule.MinAmount.Valid)
	require.False(t, rule.MaxAmount.Valid)
}

func TestListActiveEmpty(t *testing.T) {
	rules, err := testRepo.ListActive(context.Background(), "X"+randompkg.String(2), domain.TransactionTransfer)
	require.NoError(t, err)
	require.Empty(t, rules)
}
