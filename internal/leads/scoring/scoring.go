// Package scoring turns qualification signals into a score, tier and next action.
// Everything here is pure: no I/O, no clock, no shared state.
package scoring

import (
	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/policy"
)

// Signals are the facts gathered during the call.
type Signals struct {
	// CapitalUSD is nil when the caller did not say.
	CapitalUSD     *float64
	Experience     domain.Experience
	Urgency        domain.Urgency
	PainPointCount int
}

// Result is a qualification decision.
type Result struct {
	Score   int
	Tier    domain.Tier
	Action  domain.Action
	Factors map[string]int
	Version string
}

// Score computes the decision for signals under table.
// Callers validate enums beforehand; unknown values contribute zero points.
func Score(table policy.ScoringTable, s Signals) Result {
	factors := make(map[string]int, 4)

	addFactor(factors, "capital", capitalPoints(table.CapitalBands, s.CapitalUSD))
	addFactor(factors, "experience", table.Experience[string(s.Experience)])
	addFactor(factors, "urgency", table.Urgency[string(s.Urgency)])
	addFactor(factors, "pain_points", painPointPoints(table.PainPoints, s.PainPointCount))

	total := 0
	for _, v := range factors {
		total += v
	}

	score := clampScore(total)
	tier := TierFor(table.Thresholds, score)

	return Result{
		Score:   score,
		Tier:    tier,
		Action:  domain.ActionFor(tier),
		Factors: factors,
		Version: table.Version,
	}
}

// TierFor maps a score onto a tier using inclusive lower bounds.
func TierFor(th policy.Thresholds, score int) domain.Tier {
	switch {
	case score >= th.Hot:
		return domain.TierHot
	case score >= th.Warm:
		return domain.TierWarm
	default:
		return domain.TierCold
	}
}

// capitalPoints expects bands sorted by descending minimum.
func capitalPoints(bands []policy.CapitalBand, capital *float64) int {
	if capital == nil || *capital < 0 {
		return 0
	}
	for _, band := range bands {
		if *capital >= band.MinUSD {
			return band.Points
		}
	}
	return 0
}

func painPointPoints(bands []policy.CountBand, count int) int {
	for _, band := range bands {
		if count >= band.MinCount {
			return band.Points
		}
	}
	return 0
}

func addFactor(factors map[string]int, name string, points int) {
	if points == 0 {
		return
	}
	factors[name] = points
}

func clampScore(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
