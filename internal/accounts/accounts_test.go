package accounts

import (
	"testing"

	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/policy"
	"voice_sales_backend/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine() *Engine {
	return NewEngine(policy.Default().Catalog)
}

func TestRecommendReferenceProfiles(t *testing.T) {
	engine := newEngine()

	cases := []struct {
		name    string
		profile Profile
		want    string
	}{
		{"experienced with capital, no priority", Profile{CapitalUSD: 5000, Experience: domain.ExperienceExperienced}, "Raw Spreads"},
		{"beginner with 300", Profile{CapitalUSD: 300, Experience: domain.ExperienceBeginner}, "Standard"},
		{"newcomer with 50", Profile{CapitalUSD: 50, Experience: domain.ExperienceNone}, "Standard"},
		{"intermediate wants low spread", Profile{CapitalUSD: 5000, Experience: domain.ExperienceIntermediate, Priority: PriorityLowSpread}, "Raw Spreads"},
		{"experienced wants no commission", Profile{CapitalUSD: 5000, Experience: domain.ExperienceExperienced, Priority: PriorityLowCommission}, "Premium"},
		{"no commission below premium minimum", Profile{CapitalUSD: 500, Experience: domain.ExperienceIntermediate, Priority: PriorityLowCommission}, "Standard"},
		{"unknown experience skips gated accounts", Profile{CapitalUSD: 500}, "Standard"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := engine.Recommend(tc.profile)
			require.NoError(t, err)
			assert.Equal(t, tc.want, rec.AccountType)
			assert.False(t, rec.InsufficientCapital)
			assert.NotEmpty(t, rec.Rationale)
			assert.NotContains(t, rec.Alternatives, rec.AccountType)
		})
	}
}

func TestRecommendFallsBackWhenCapitalIsBelowEveryMinimum(t *testing.T) {
	rec, err := newEngine().Recommend(Profile{CapitalUSD: 2, Experience: domain.ExperienceExperienced})
	require.NoError(t, err)

	assert.True(t, rec.InsufficientCapital)
	assert.Equal(t, "Standard", rec.AccountType, "lowest minimum, cheaper than Dynamic Leverage")
	assert.Contains(t, rec.Rationale, "below every account minimum")
	assert.Empty(t, rec.Alternatives)
}

func TestRecommendNeverExceedsCapital(t *testing.T) {
	engine := newEngine()
	priorities := []Priority{PriorityUnspecified, PriorityBalanced, PriorityLowSpread, PriorityLowCommission}
	experiences := append([]domain.Experience{""}, domain.ExperienceLevels...)

	for _, capital := range []float64{0, 4.99, 5, 99, 100, 999.99, 1000, 100000} {
		for _, exp := range experiences {
			for _, pr := range priorities {
				rec, err := engine.Recommend(Profile{CapitalUSD: capital, Experience: exp, Priority: pr})
				require.NoError(t, err)
				if rec.InsufficientCapital {
					assert.Less(t, capital, 5.0)
					continue
				}
				assert.LessOrEqual(t, rec.MinDepositUSD, capital, "capital=%v exp=%q priority=%s got %s", capital, exp, pr, rec.AccountType)
			}
		}
	}
}

func TestRecommendRejectsNegativeCapital(t *testing.T) {
	_, err := newEngine().Recommend(Profile{CapitalUSD: -1})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRecommendIsDeterministic(t *testing.T) {
	engine := newEngine()
	p := Profile{CapitalUSD: 2500, Experience: domain.ExperienceIntermediate, Priority: PriorityBalanced}

	first, err := engine.Recommend(p)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := engine.Recommend(p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestParsePriority(t *testing.T) {
	for raw, want := range map[string]Priority{
		"":               PriorityUnspecified,
		"Low Spread":     PriorityLowSpread,
		"low_commission": PriorityLowCommission,
		"low_cost":       PriorityBalanced,
	} {
		got, ok := ParsePriority(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := ParsePriority("high_leverage_please")
	assert.False(t, ok)
}

func TestEstimateCost(t *testing.T) {
	engine := newEngine()

	est, err := engine.Estimate(CostRequest{AccountType: "standard", TradesPerMonth: 20})
	require.NoError(t, err)
	assert.Equal(t, "Standard", est.AccountType)
	assert.Equal(t, "11.00", est.SpreadCostPerTrade.StringFixed(2))
	assert.Equal(t, "0.00", est.CommissionPerTrade.StringFixed(2))
	assert.Equal(t, "11.00", est.PerTradeCost.StringFixed(2))
	assert.Equal(t, "220.00", est.MonthlyCost.StringFixed(2))
	assert.Contains(t, est.Note, "Raw Spreads")
	assert.Contains(t, est.Note, "80.00")

	est, err = engine.Estimate(CostRequest{AccountType: "Raw Spreads", TradesPerMonth: 20})
	require.NoError(t, err)
	assert.Equal(t, "7.00", est.PerTradeCost.StringFixed(2))
	assert.Equal(t, "140.00", est.MonthlyCost.StringFixed(2))
	assert.Contains(t, est.Note, "already the lowest-cost option")

	est, err = engine.Estimate(CostRequest{AccountType: "Premium", TradesPerMonth: 10, LotSize: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "4.00", est.PerTradeCost.StringFixed(2))
	assert.Equal(t, "40.00", est.MonthlyCost.StringFixed(2))
}

func TestEstimateZeroTradesCostsNothing(t *testing.T) {
	engine := newEngine()
	for _, acct := range engine.Catalog().Accounts {
		est, err := engine.Estimate(CostRequest{AccountType: acct.Name, TradesPerMonth: 0})
		require.NoError(t, err)
		assert.True(t, est.MonthlyCost.IsZero(), acct.Name)
	}
}

func TestEstimateCheaperSuggestionRespectsCapital(t *testing.T) {
	capital := 50.0
	est, err := newEngine().Estimate(CostRequest{AccountType: "Standard", TradesPerMonth: 20, CapitalUSD: &capital})
	require.NoError(t, err)
	assert.Contains(t, est.Note, "already the lowest-cost option")
}

func TestEstimateValidation(t *testing.T) {
	engine := newEngine()

	_, err := engine.Estimate(CostRequest{AccountType: "Standard", TradesPerMonth: -1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = engine.Estimate(CostRequest{AccountType: "Platinum", TradesPerMonth: 5})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = engine.Estimate(CostRequest{AccountType: "Standard", TradesPerMonth: 5, LotSize: -2})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
