package scoring

import (
	"testing"

	"voice_sales_backend/internal/leads/domain"
	"voice_sales_backend/internal/policy"
)

func ptr[T any](v T) *T { return &v }

func TestScoreReferenceScenarios(t *testing.T) {
	table := policy.Default().Scoring

	cases := []struct {
		name       string
		signals    Signals
		wantScore  int
		wantTier   domain.Tier
		wantAction domain.Action
	}{
		{
			name:       "high capital experienced urgent",
			signals:    Signals{CapitalUSD: ptr(5000.0), Experience: domain.ExperienceExperienced, Urgency: domain.UrgencyHigh},
			wantScore:  100,
			wantTier:   domain.TierHot,
			wantAction: domain.ActionImmediateHandoff,
		},
		{
			name:       "mid capital beginner medium",
			signals:    Signals{CapitalUSD: ptr(300.0), Experience: domain.ExperienceBeginner, Urgency: domain.UrgencyMedium},
			wantScore:  55,
			wantTier:   domain.TierWarm,
			wantAction: domain.ActionScheduleCallback,
		},
		{
			name:       "low capital no experience low urgency",
			signals:    Signals{CapitalUSD: ptr(50.0), Experience: domain.ExperienceNone, Urgency: domain.UrgencyLow},
			wantScore:  15,
			wantTier:   domain.TierCold,
			wantAction: domain.ActionAsyncFollowUp,
		},
		{
			name:       "unknown capital contributes nothing",
			signals:    Signals{Experience: domain.ExperienceIntermediate, Urgency: domain.UrgencyMedium},
			wantScore:  40,
			wantTier:   domain.TierWarm,
			wantAction: domain.ActionScheduleCallback,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(table, tc.signals)
			if got.Score != tc.wantScore {
				t.Errorf("score = %d, want %d (factors %v)", got.Score, tc.wantScore, got.Factors)
			}
			if got.Tier != tc.wantTier {
				t.Errorf("tier = %s, want %s", got.Tier, tc.wantTier)
			}
			if got.Action != tc.wantAction {
				t.Errorf("action = %s, want %s", got.Action, tc.wantAction)
			}
			if got.Version != table.Version {
				t.Errorf("version = %q, want %q", got.Version, table.Version)
			}
		})
	}
}

func TestScoreStaysInRangeAndMatchesTier(t *testing.T) {
	table := policy.Default().Scoring
	capitals := []*float64{nil, ptr(0.0), ptr(1.0), ptr(199.99), ptr(200.0), ptr(999.0), ptr(1000.0), ptr(1e9)}

	for _, capital := range capitals {
		for _, exp := range domain.ExperienceLevels {
			for _, urg := range domain.UrgencyLevels {
				for pain := 0; pain <= 5; pain++ {
					got := Score(table, Signals{CapitalUSD: capital, Experience: exp, Urgency: urg, PainPointCount: pain})
					if got.Score < 0 || got.Score > 100 {
						t.Fatalf("score %d out of range", got.Score)
					}
					if want := TierFor(table.Thresholds, got.Score); got.Tier != want {
						t.Fatalf("tier %s inconsistent with score %d", got.Tier, got.Score)
					}
					if got.Action != domain.ActionFor(got.Tier) {
						t.Fatalf("action %s inconsistent with tier %s", got.Action, got.Tier)
					}
				}
			}
		}
	}
}

func TestScoreMonotonicInCapitalAndExperience(t *testing.T) {
	table := policy.Default().Scoring
	capitals := []float64{0, 50, 199, 200, 500, 999, 1000, 25000}

	for _, urg := range domain.UrgencyLevels {
		for _, exp := range domain.ExperienceLevels {
			prev := -1
			for _, c := range capitals {
				got := Score(table, Signals{CapitalUSD: ptr(c), Experience: exp, Urgency: urg}).Score
				if got < prev {
					t.Fatalf("score decreased from %d to %d when capital rose to %v", prev, got, c)
				}
				prev = got
			}
		}

		for _, c := range capitals {
			prev := -1
			for _, exp := range domain.ExperienceLevels {
				got := Score(table, Signals{CapitalUSD: ptr(c), Experience: exp, Urgency: urg}).Score
				if got < prev {
					t.Fatalf("score decreased from %d to %d when experience rose to %s", prev, got, exp)
				}
				prev = got
			}
		}
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	table := policy.Default().Scoring
	s := Signals{CapitalUSD: ptr(750.0), Experience: domain.ExperienceIntermediate, Urgency: domain.UrgencyHigh, PainPointCount: 2}

	first := Score(table, s)
	for i := 0; i < 10; i++ {
		again := Score(table, s)
		if again.Score != first.Score || again.Tier != first.Tier {
			t.Fatalf("run %d produced %d/%s, want %d/%s", i, again.Score, again.Tier, first.Score, first.Tier)
		}
	}
}

func TestTierBoundariesAreInclusive(t *testing.T) {
	th := policy.Thresholds{Hot: 70, Warm: 40}

	cases := map[int]domain.Tier{
		0:   domain.TierCold,
		39:  domain.TierCold,
		40:  domain.TierWarm,
		69:  domain.TierWarm,
		70:  domain.TierHot,
		100: domain.TierHot,
	}
	for score, want := range cases {
		if got := TierFor(th, score); got != want {
			t.Errorf("TierFor(%d) = %s, want %s", score, got, want)
		}
	}
}
