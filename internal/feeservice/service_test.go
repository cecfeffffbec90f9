package feeservice

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/moventis/transfer-engine/internal/domain"
	"github.com/moventis/transfer-engine/pkg/currencypkg"
	"github.com/moventis/transfer-engine/pkg/errorspkg"
)

func nd(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func feeInput(amount string) domain.FeeInput {
	return domain.FeeInput{
		Amount:          decimal.RequireFromString(amount),
		Currency:        currencypkg.USD,
		TransactionType: domain.TransactionTransfer,
		FromCountry:     "US",
		ToCountry:       "KE",
	}
}

func TestCalculate(t *testing.T) {
	testCases := []struct {
		name          string
		arg           domain.FeeInput
		rules         []domain.FeeRule
		rulesErr      error
		checkResponse func(b domain.FeeBreakdown, err error)
	}{
		{
			name:  "No matching rules",
			arg:   feeInput("1000"),
			rules: []domain.FeeRule{},
			checkResponse: func(b domain.FeeBreakdown, err error) {
				require.NoError(t, err)
				require.True(t, b.Total.IsZero())
				require.Empty(t, b.AppliedRules)
			},
		},
		{
			name: "Fixed plus percentage",
			arg:  feeInput("1000"),
			rules: []domain.FeeRule{
				{Name: "base", FixedAmount: nd("2.50"), PercentageRate: nd("1.5")},
			},
			checkResponse: func(b domain.FeeBreakdown, err error) {
				require.NoError(t, err)
				require.Equal(t, "2.5", b.Fixed.String())
				require.Equal(t, "15", b.Percentage.String())
				require.Equal(t, "17.5", b.Total.String())
				require.Equal(t, []string{"base"}, b.AppliedRules)
			},
		},
		{
			name: "Rule below min amount skipped",
			arg:  feeInput("100"),
			rules: []domain.FeeRule{
				{Name: "large-only", FixedAmount: nd("5"), MinAmount: nd("500")},
			},
			checkResponse: func(b domain.FeeBreakdown, err error) {
				require.NoError(t, err)
				require.True(t, b.Total.IsZero())
				require.Empty(t, b.AppliedRules)
			},
		},
		{
			name: "Max cap clamps and records discount",
			arg:  feeInput("10000"),
			rules: []domain.FeeRule{
				{Name: "pct", PercentageRate: nd("2"), MaxAmount: nd("50")},
			},
			checkResponse: func(b domain.FeeBreakdown, err error) {
				require.NoError(t, err)
				require.Equal(t, "200", b.Percentage.String())
				require.Equal(t, "150", b.Discounts.String())
				require.Equal(t, "50", b.Total.String())
			},
		},
		{
			name: "Country filter matches either side of the corridor",
			arg:  feeInput("1000"),
			rules: []domain.FeeRule{
				{Name: "ke-corridor", Country: "KE", FixedAmount: nd("1")},
				{Name: "gb-only", Country: "GB", FixedAmount: nd("100")},
			},
			checkResponse: func(b domain.FeeBreakdown, err error) {
				require.NoError(t, err)
				require.Equal(t, "1", b.Total.String())
				require.Equal(t, []string{"ke-corridor"}, b.AppliedRules)
			},
		},
		{
			name: "Premium tier discount",
			arg: domain.FeeInput{
				Amount:          decimal.RequireFromString("1000"),
				Currency:        currencypkg.USD,
				TransactionType: domain.TransactionTransfer,
				UserTier:        domain.TierPremium,
			},
			rules: []domain.FeeRule{
				{Name: "flat", FixedAmount: nd("100")},
			},
			checkResponse: func(b domain.FeeBreakdown, err error) {
				require.NoError(t, err)
				require.Equal(t, "85", b.Total.String())
				require.Equal(t, "15", b.Discounts.String())
			},
		},
		{
			name: "Standard tier gets no discount",
			arg: domain.FeeInput{
				Amount:          decimal.RequireFromString("1000"),
				Currency:        currencypkg.USD,
				TransactionType: domain.TransactionTransfer,
				UserTier:        domain.TierStandard,
			},
			rules: []domain.FeeRule{
				{Name: "flat", FixedAmount: nd("100")},
			},
			checkResponse: func(b domain.FeeBreakdown, err error) {
				require.NoError(t, err)
				require.Equal(t, "100", b.Total.String())
				require.True(t, b.Discounts.IsZero())
			},
		},
		{
			name: "No rounding inside the engine",
			arg:  feeInput("33.33"),
			rules: []domain.FeeRule{
				{Name: "pct", PercentageRate: nd("2.5")},
			},
			checkResponse: func(b domain.FeeBreakdown, err error) {
				require.NoError(t, err)
				require.Equal(t, "0.83325", b.Total.String())
			},
		},
		{
			name:     "Repo error",
			arg:      feeInput("1000"),
			rulesErr: errorspkg.ErrInternal,
			checkResponse: func(b domain.FeeBreakdown, err error) {
				require.ErrorIs(t, err, errorspkg.ErrInternal)
				require.Empty(t, b)
			},
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := NewMockRuleRepo(ctrl)
			repo.EXPECT().
				ListActive(gomock.Any(), gomock.Eq(tc.arg.Currency), gomock.Eq(tc.arg.TransactionType)).
				Times(1).
				Return(tc.rules, tc.rulesErr)

			b, err := New(repo).Calculate(context.Background(), tc.arg)
			tc.checkResponse(b, err)
		})
	}
}

func TestCalculateIsDeterministic(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := NewMockRuleRepo(ctrl)
	rules := []domain.FeeRule{
		{Name: "base", FixedAmount: nd("2.50"), PercentageRate: nd("1.5"), MaxAmount: nd("12")},
	}
	repo.EXPECT().
		ListActive(gomock.Any(), gomock.Any(), gomock.Any()).
		Times(2).
		Return(rules, nil)

	service := New(repo)
	arg := feeInput("800")

	first, err := service.Calculate(context.Background(), arg)
	require.NoError(t, err)

	second, err := service.Calculate(context.Background(), arg)
	require.NoError(t, err)

	require.True(t, first.Total.Equal(second.Total))
	require.Equal(t, first.AppliedRules, second.AppliedRules)
}
