// Package policy loads the decision tables that drive scoring, account
// recommendation, cost estimation and call pricing.
//
// Tables come from an embedded defaults.yaml unless a file path overrides it.
// A table that fails validation is fatal at startup.
package policy

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"voice_sales_backend/internal/leads/domain"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultTables []byte

// Tables groups every decision table.
type Tables struct {
	Scoring ScoringTable `yaml:"scoring"`
	Catalog Catalog      `yaml:"catalog"`
	Pricing PriceTable   `yaml:"pricing"`
}

// CapitalBand awards points when capital is at least MinUSD.
type CapitalBand struct {
	MinUSD float64 `yaml:"min_usd"`
	Points int     `yaml:"points"`
}

// CountBand awards points when at least MinCount items were reported.
type CountBand struct {
	MinCount int `yaml:"min_count"`
	Points   int `yaml:"points"`
}

// Thresholds are the inclusive lower bounds of the HOT and WARM tiers.
type Thresholds struct {
	Hot  int `yaml:"hot"`
	Warm int `yaml:"warm"`
}

// ScoringTable holds the qualification weights.
type ScoringTable struct {
	Version      string         `yaml:"version"`
	CapitalBands []CapitalBand  `yaml:"capital_bands"`
	Experience   map[string]int `yaml:"experience"`
	Urgency      map[string]int `yaml:"urgency"`
	PainPoints   []CountBand    `yaml:"pain_points"`
	Thresholds   Thresholds     `yaml:"thresholds"`
}

// Account is one product in the catalog.
type Account struct {
	Name                 string  `yaml:"name" json:"name"`
	MinDepositUSD        float64 `yaml:"min_deposit_usd" json:"minDepositUsd"`
	SpreadPips           float64 `yaml:"spread_pips" json:"spreadPips"`
	CommissionPerSideUSD float64 `yaml:"commission_per_side_usd" json:"commissionPerSideUsd"`
	MinExperience        string  `yaml:"min_experience" json:"minExperience,omitempty"`
	MaxLeverage          string  `yaml:"max_leverage" json:"maxLeverage,omitempty"`
	Summary              string  `yaml:"summary" json:"summary"`
}

// Catalog is the account product catalog plus the fee schedule constants.
type Catalog struct {
	PipValueUSD             float64   `yaml:"pip_value_usd"`
	LotSize                 float64   `yaml:"lot_size"`
	ReferenceTradesPerMonth int       `yaml:"reference_trades_per_month"`
	Accounts                []Account `yaml:"accounts"`
}

// Find returns the account with the given name, case-insensitively.
func (c Catalog) Find(name string) (Account, bool) {
	needle := strings.TrimSpace(name)
	for _, acct := range c.Accounts {
		if strings.EqualFold(acct.Name, needle) {
			return acct, true
		}
	}
	return Account{}, false
}

// PriceTable holds per-unit service prices in USD.
type PriceTable struct {
	STTPerSecondUSD        float64 `yaml:"stt_per_second_usd"`
	LLMInputPerMillionUSD  float64 `yaml:"llm_input_per_million_usd"`
	LLMOutputPerMillionUSD float64 `yaml:"llm_output_per_million_usd"`
	TTSPerThousandCharsUSD float64 `yaml:"tts_per_thousand_chars_usd"`
}

// Load reads tables from path, or the embedded defaults when path is empty.
func Load(path string) (*Tables, error) {
	data := defaultTables
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read policy file: %w", err)
		}
		data = raw
	}
	return Parse(data)
}

// Default returns the embedded tables. It panics if they are invalid.
func Default() *Tables {
	t, err := Parse(defaultTables)
	if err != nil {
		panic("embedded policy tables are invalid: " + err.Error())
	}
	return t
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Tables, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var t Tables
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode policy tables: %w", err)
	}

	sort.SliceStable(t.Scoring.CapitalBands, func(i, j int) bool {
		return t.Scoring.CapitalBands[i].MinUSD > t.Scoring.CapitalBands[j].MinUSD
	})
	sort.SliceStable(t.Scoring.PainPoints, func(i, j int) bool {
		return t.Scoring.PainPoints[i].MinCount > t.Scoring.PainPoints[j].MinCount
	})

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks every table.
func (t *Tables) Validate() error {
	return errors.Join(
		t.Scoring.validate(),
		t.Catalog.validate(),
		t.Pricing.validate(),
	)
}

func (s ScoringTable) validate() error {
	var errs []error

	if len(s.CapitalBands) == 0 {
		errs = append(errs, errors.New("scoring: capital_bands must not be empty"))
	} else {
		// Bands are sorted by descending minimum.
		if lowest := s.CapitalBands[len(s.CapitalBands)-1]; lowest.MinUSD != 0 {
			errs = append(errs, errors.New("scoring: lowest capital band must start at 0"))
		}
		for i, band := range s.CapitalBands {
			if band.MinUSD < 0 || band.Points < 0 {
				errs = append(errs, fmt.Errorf("scoring: capital band %v has negative values", band.MinUSD))
			}
			if i > 0 {
				prev := s.CapitalBands[i-1]
				if prev.MinUSD == band.MinUSD {
					errs = append(errs, fmt.Errorf("scoring: duplicate capital band %v", band.MinUSD))
				}
				if prev.Points < band.Points {
					errs = append(errs, errors.New("scoring: capital points must not decrease as capital grows"))
				}
			}
		}
	}

	prev := -1
	for _, level := range domain.ExperienceLevels {
		points, ok := s.Experience[string(level)]
		if !ok {
			errs = append(errs, fmt.Errorf("scoring: experience %q missing", level))
			continue
		}
		if points < 0 {
			errs = append(errs, fmt.Errorf("scoring: experience %q is negative", level))
		}
		if points < prev {
			errs = append(errs, errors.New("scoring: experience points must not decrease with experience"))
		}
		prev = points
	}
	if len(s.Experience) != len(domain.ExperienceLevels) {
		errs = append(errs, errors.New("scoring: experience has unknown levels"))
	}

	for _, level := range domain.UrgencyLevels {
		points, ok := s.Urgency[string(level)]
		if !ok {
			errs = append(errs, fmt.Errorf("scoring: urgency %q missing", level))
			continue
		}
		if points < 0 {
			errs = append(errs, fmt.Errorf("scoring: urgency %q is negative", level))
		}
	}
	if len(s.Urgency) != len(domain.UrgencyLevels) {
		errs = append(errs, errors.New("scoring: urgency has unknown levels"))
	}

	for _, band := range s.PainPoints {
		if band.MinCount < 1 || band.Points < 0 {
			errs = append(errs, fmt.Errorf("scoring: pain point band %d is invalid", band.MinCount))
		}
	}

	th := s.Thresholds
	if th.Warm <= 0 || th.Hot <= th.Warm || th.Hot > 100 {
		errs = append(errs, fmt.Errorf("scoring: thresholds must satisfy 0 < warm < hot <= 100 (warm=%d hot=%d)", th.Warm, th.Hot))
	}

	return errors.Join(errs...)
}

func (c Catalog) validate() error {
	var errs []error
	if c.PipValueUSD <= 0 {
		errs = append(errs, errors.New("catalog: pip_value_usd must be positive"))
	}
	if c.LotSize <= 0 {
		errs = append(errs, errors.New("catalog: lot_size must be positive"))
	}
	if c.ReferenceTradesPerMonth <= 0 {
		errs = append(errs, errors.New("catalog: reference_trades_per_month must be positive"))
	}
	if len(c.Accounts) == 0 {
		errs = append(errs, errors.New("catalog: at least one account is required"))
	}

	seen := make(map[string]bool, len(c.Accounts))
	for _, acct := range c.Accounts {
		key := strings.ToLower(strings.TrimSpace(acct.Name))
		if key == "" {
			errs = append(errs, errors.New("catalog: account name is required"))
			continue
		}
		if seen[key] {
			errs = append(errs, fmt.Errorf("catalog: duplicate account %q", acct.Name))
		}
		seen[key] = true
		if acct.MinDepositUSD < 0 || acct.SpreadPips < 0 || acct.CommissionPerSideUSD < 0 {
			errs = append(errs, fmt.Errorf("catalog: account %q has negative values", acct.Name))
		}
		if acct.MinExperience != "" {
			if _, ok := domain.ParseExperience(acct.MinExperience); !ok {
				errs = append(errs, fmt.Errorf("catalog: account %q has unknown min_experience %q", acct.Name, acct.MinExperience))
			}
		}
	}
	return errors.Join(errs...)
}

func (p PriceTable) validate() error {
	if p.STTPerSecondUSD < 0 || p.LLMInputPerMillionUSD < 0 || p.LLMOutputPerMillionUSD < 0 || p.TTSPerThousandCharsUSD < 0 {
		return errors.New("pricing: prices must not be negative")
	}
	return nil
}
