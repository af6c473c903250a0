// Package accounts maps trader profiles to account products and estimates
// what trading on each product costs. Everything here is pure arithmetic over
// the catalog loaded by the policy package.
package accounts

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/policy"
	"voice_sales_backend/platform/apperr"

	"github.com/shopspring/decimal"
)

// Priority is what the caller cares about most when choosing an account.
type Priority string

const (
	PriorityLowSpread     Priority = "low_spread"
	PriorityLowCommission Priority = "low_commission"
	PriorityBalanced      Priority = "balanced"
	PriorityUnspecified   Priority = "unspecified"
)

var priorityAliases = map[string]Priority{
	"":               PriorityUnspecified,
	"unspecified":    PriorityUnspecified,
	"none":           PriorityUnspecified,
	"low_spread":     PriorityLowSpread,
	"low_spreads":    PriorityLowSpread,
	"spread":         PriorityLowSpread,
	"low_commission": PriorityLowCommission,
	"no_commission":  PriorityLowCommission,
	"commission":     PriorityLowCommission,
	"low_cost":       PriorityBalanced,
	"balanced":       PriorityBalanced,
}

// ParsePriority maps a free-form priority label onto Priority.
func ParsePriority(raw string) (Priority, bool) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
	p, ok := priorityAliases[key]
	return p, ok
}

// Profile is the trader profile a recommendation is made for.
type Profile struct {
	CapitalUSD float64
	// Experience may be empty when the caller has not said.
	Experience domain.Experience
	Priority   Priority
}

// Recommendation is the chosen account plus the talking points around it.
type Recommendation struct {
	AccountType          string   `json:"accountType"`
	Rationale            string   `json:"rationale"`
	Alternatives         []string `json:"alternatives"`
	InsufficientCapital  bool     `json:"insufficientCapital"`
	CapitalAnalysis      string   `json:"capitalAnalysis"`
	MinDepositUSD        float64  `json:"minDepositUsd"`
	SpreadPips           float64  `json:"spreadPips"`
	CommissionPerSideUSD float64  `json:"commissionPerSideUsd"`
	MaxLeverage          string   `json:"maxLeverage,omitempty"`
	ReferenceMonthlyCost string   `json:"referenceMonthlyCostUsd"`
}

// Engine answers recommendation and cost questions against one catalog.
type Engine struct {
	catalog policy.Catalog
}

// NewEngine creates an engine over catalog.
func NewEngine(catalog policy.Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Catalog returns the products the engine chooses from.
func (e *Engine) Catalog() policy.Catalog {
	return e.catalog
}

type candidate struct {
	account policy.Account
	match   bool
	cost    decimal.Decimal
}

// Recommend picks the best account for p.
//
// Only accounts whose minimum deposit fits the capital are considered. The
// experience gate is applied only when it leaves at least one account. Ties
// are broken by priority match, then by monthly cost at the reference
// volume, then by minimum deposit, then by name. When capital is below every
// minimum the cheapest-to-open account is returned with InsufficientCapital.
func (e *Engine) Recommend(p Profile) (Recommendation, error) {
	if math.IsNaN(p.CapitalUSD) || math.IsInf(p.CapitalUSD, 0) || p.CapitalUSD < 0 {
		return Recommendation{}, apperr.Validation("capital must be a non-negative amount")
	}
	if p.Priority == "" {
		p.Priority = PriorityUnspecified
	}

	var eligible []policy.Account
	for _, acct := range e.catalog.Accounts {
		if acct.MinDepositUSD <= p.CapitalUSD {
			eligible = append(eligible, acct)
		}
	}

	if len(eligible) == 0 {
		return e.fallback(p), nil
	}

	if gated := experienceGate(eligible, p.Experience); len(gated) > 0 {
		eligible = gated
	}

	ranked := e.rank(eligible, p.Priority)
	best := ranked[0]

	alternatives := make([]string, 0, len(ranked)-1)
	for _, c := range ranked[1:] {
		alternatives = append(alternatives, c.account.Name)
	}

	rec := e.describe(best)
	rec.Rationale = rationale(best.account, p, best.cost, e.catalog.ReferenceTradesPerMonth)
	rec.Alternatives = alternatives
	rec.CapitalAnalysis = capitalAnalysis(p.CapitalUSD)
	return rec, nil
}

func (e *Engine) fallback(p Profile) Recommendation {
	accounts := append([]policy.Account(nil), e.catalog.Accounts...)
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].MinDepositUSD != accounts[j].MinDepositUSD {
			return accounts[i].MinDepositUSD < accounts[j].MinDepositUSD
		}
		ci, cj := e.referenceCost(accounts[i]), e.referenceCost(accounts[j])
		if !ci.Equal(cj) {
			return ci.LessThan(cj)
		}
		return accounts[i].Name < accounts[j].Name
	})

	best := candidate{account: accounts[0], cost: e.referenceCost(accounts[0])}
	rec := e.describe(best)
	rec.InsufficientCapital = true
	rec.Alternatives = []string{}
	rec.Rationale = fmt.Sprintf(
		"Capital of $%s is below every account minimum. %s opens with the lowest deposit, $%s.",
		formatUSD(p.CapitalUSD), best.account.Name, formatUSD(best.account.MinDepositUSD),
	)
	rec.CapitalAnalysis = capitalAnalysis(p.CapitalUSD)
	return rec
}

func (e *Engine) rank(accounts []policy.Account, priority Priority) []candidate {
	minSpread, minCommission := math.Inf(1), math.Inf(1)
	for _, acct := range accounts {
		minSpread = math.Min(minSpread, acct.SpreadPips)
		minCommission = math.Min(minCommission, acct.CommissionPerSideUSD)
	}

	out := make([]candidate, len(accounts))
	for i, acct := range accounts {
		match := true
		switch priority {
		case PriorityLowSpread:
			match = acct.SpreadPips == minSpread
		case PriorityLowCommission:
			match = acct.CommissionPerSideUSD == minCommission
		}
		out[i] = candidate{account: acct, match: match, cost: e.referenceCost(acct)}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.match != b.match {
			return a.match
		}
		if !a.cost.Equal(b.cost) {
			return a.cost.LessThan(b.cost)
		}
		if a.account.MinDepositUSD != b.account.MinDepositUSD {
			return a.account.MinDepositUSD < b.account.MinDepositUSD
		}
		return a.account.Name < b.account.Name
	})
	return out
}

func (e *Engine) describe(c candidate) Recommendation {
	return Recommendation{
		AccountType:          c.account.Name,
		MinDepositUSD:        c.account.MinDepositUSD,
		SpreadPips:           c.account.SpreadPips,
		CommissionPerSideUSD: c.account.CommissionPerSideUSD,
		MaxLeverage:          c.account.MaxLeverage,
		ReferenceMonthlyCost: c.cost.StringFixed(2),
	}
}

func (e *Engine) referenceCost(acct policy.Account) decimal.Decimal {
	perTrade := e.perTrade(acct, decimal.NewFromFloat(e.catalog.LotSize))
	return perTrade.Total.Mul(decimal.NewFromInt(int64(e.catalog.ReferenceTradesPerMonth)))
}

func experienceGate(accounts []policy.Account, exp domain.Experience) []policy.Account {
	out := make([]policy.Account, 0, len(accounts))
	for _, acct := range accounts {
		if acct.MinExperience == "" {
			out = append(out, acct)
			continue
		}
		required, _ := domain.ParseExperience(acct.MinExperience)
		if exp.Rank() >= required.Rank() {
			out = append(out, acct)
		}
	}
	return out
}

func rationale(acct policy.Account, p Profile, monthly decimal.Decimal, referenceTrades int) string {
	var b strings.Builder
	b.WriteString(acct.Summary)
	if b.Len() > 0 {
		b.WriteString(" ")
	}

	switch p.Priority {
	case PriorityLowSpread:
		fmt.Fprintf(&b, "It has the tightest spread you qualify for (%.1f pips).", acct.SpreadPips)
	case PriorityLowCommission:
		if acct.CommissionPerSideUSD == 0 {
			b.WriteString("It charges no commission.")
		} else {
			fmt.Fprintf(&b, "It has the lowest commission you qualify for ($%s per side).", formatUSD(acct.CommissionPerSideUSD))
		}
	default:
		fmt.Fprintf(&b, "It has the lowest expected cost for your deposit, about $%s a month at %d trades.", monthly.StringFixed(2), referenceTrades)
	}

	fmt.Fprintf(&b, " Minimum deposit $%s.", formatUSD(acct.MinDepositUSD))
	return b.String()
}

func capitalAnalysis(capital float64) string {
	switch {
	case capital < 100:
		return "Low starting capital: a Standard account or a demo account is the place to start."
	case capital < 1000:
		return "Moderate capital: Standard and Raw Spreads accounts are open to you."
	case capital < 5000:
		return "Good capital: every account, including Premium, is open to you."
	default:
		return "Excellent capital: you qualify for Premium and its additional benefits."
	}
}

func formatUSD(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
