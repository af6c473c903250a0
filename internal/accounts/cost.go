package accounts

import (
	"fmt"
	"strings"

	"voice_sales_backend/internal/policy"
	"voice_sales_backend/platform/apperr"

	"github.com/shopspring/decimal"
)

// CostRequest asks what an account costs at a given trading volume.
type CostRequest struct {
	AccountType    string
	TradesPerMonth int
	// LotSize defaults to the catalog lot size when zero.
	LotSize float64
	// CapitalUSD, when set, limits cheaper suggestions to accounts the caller can open.
	CapitalUSD *float64
}

// CostEstimate is the monthly and per-trade cost of one account, in USD.
type CostEstimate struct {
	AccountType          string          `json:"accountType"`
	TradesPerMonth       int             `json:"tradesPerMonth"`
	LotSize              decimal.Decimal `json:"lotSize"`
	SpreadPips           decimal.Decimal `json:"spreadPips"`
	CommissionPerSideUSD decimal.Decimal `json:"commissionPerSideUsd"`
	SpreadCostPerTrade   decimal.Decimal `json:"spreadCostPerTrade"`
	CommissionPerTrade   decimal.Decimal `json:"commissionCostPerTrade"`
	PerTradeCost         decimal.Decimal `json:"perTradeCost"`
	MonthlyCost          decimal.Decimal `json:"monthlyCost"`
	Note                 string          `json:"note"`
}

type tradeCost struct {
	Spread     decimal.Decimal
	Commission decimal.Decimal
	Total      decimal.Decimal
}

// perTrade is spread_pips x pip_value x lots + commission_per_side x 2 x lots.
func (e *Engine) perTrade(acct policy.Account, lots decimal.Decimal) tradeCost {
	pip := decimal.NewFromFloat(e.catalog.PipValueUSD)
	spread := decimal.NewFromFloat(acct.SpreadPips).Mul(pip).Mul(lots)
	commission := decimal.NewFromFloat(acct.CommissionPerSideUSD).Mul(decimal.NewFromInt(2)).Mul(lots)
	return tradeCost{Spread: spread, Commission: commission, Total: spread.Add(commission)}
}

// Estimate computes the cost of trading req.TradesPerMonth trades on an
// account. Zero trades cost nothing. Amounts are rounded to cents.
func (e *Engine) Estimate(req CostRequest) (CostEstimate, error) {
	if req.TradesPerMonth < 0 {
		return CostEstimate{}, apperr.Validation("tradesPerMonth must not be negative")
	}
	if req.LotSize < 0 {
		return CostEstimate{}, apperr.Validation("lotSize must not be negative")
	}
	acct, ok := e.catalog.Find(req.AccountType)
	if !ok {
		return CostEstimate{}, apperr.Validation("unknown account type").WithDetails(map[string]any{
			"accountType": req.AccountType,
			"known":       e.accountNames(),
		})
	}

	lots := decimal.NewFromFloat(e.catalog.LotSize)
	if req.LotSize > 0 {
		lots = decimal.NewFromFloat(req.LotSize)
	}

	trades := decimal.NewFromInt(int64(req.TradesPerMonth))
	cost := e.perTrade(acct, lots)
	monthly := cost.Total.Mul(trades)

	return CostEstimate{
		AccountType:          acct.Name,
		TradesPerMonth:       req.TradesPerMonth,
		LotSize:              lots,
		SpreadPips:           decimal.NewFromFloat(acct.SpreadPips),
		CommissionPerSideUSD: decimal.NewFromFloat(acct.CommissionPerSideUSD),
		SpreadCostPerTrade:   cost.Spread.Round(2),
		CommissionPerTrade:   cost.Commission.Round(2),
		PerTradeCost:         cost.Total.Round(2),
		MonthlyCost:          monthly.Round(2),
		Note:                 e.costNote(acct, req, lots, monthly),
	}, nil
}

// costNote names the cheapest alternative the caller could open at the same volume.
func (e *Engine) costNote(current policy.Account, req CostRequest, lots, monthly decimal.Decimal) string {
	if req.TradesPerMonth == 0 {
		return "No trades, no trading cost."
	}

	trades := decimal.NewFromInt(int64(req.TradesPerMonth))
	var (
		cheapest *policy.Account
		best     = monthly
	)
	for i := range e.catalog.Accounts {
		acct := e.catalog.Accounts[i]
		if strings.EqualFold(acct.Name, current.Name) {
			continue
		}
		if req.CapitalUSD != nil && acct.MinDepositUSD > *req.CapitalUSD {
			continue
		}
		alt := e.perTrade(acct, lots).Total.Mul(trades)
		if alt.LessThan(best) {
			best = alt
			cheapest = &acct
		}
	}

	if cheapest == nil {
		return fmt.Sprintf("%s is already the lowest-cost option at %d trades a month.", current.Name, req.TradesPerMonth)
	}
	saving := monthly.Sub(best).Round(2)
	return fmt.Sprintf("At %d trades a month, %s would cost about $%s less per month.", req.TradesPerMonth, cheapest.Name, saving.StringFixed(2))
}

func (e *Engine) accountNames() []string {
	names := make([]string, len(e.catalog.Accounts))
	for i, acct := range e.catalog.Accounts {
		names[i] = acct.Name
	}
	return names
}
