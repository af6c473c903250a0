package knowledge

import (
	"strings"
)

// Glossary explains trading concepts and market hours.
type Glossary struct {
	concepts []Concept
	markets  []Market
}

func NewGlossary(content *Content) *Glossary {
	return &Glossary{concepts: content.Concepts, markets: content.Markets}
}

// Explain finds the concept whose alias appears in the question.
func (g *Glossary) Explain(question string) (Concept, bool) {
	q := fold(question)
	if q == "" {
		return Concept{}, false
	}
	for _, c := range g.concepts {
		for _, alias := range c.Aliases {
			if containsWord(q, fold(alias)) {
				return c, true
			}
		}
	}
	return Concept{}, false
}

// Concepts lists the concept keys the glossary can explain.
func (g *Glossary) Concepts() []string {
	keys := make([]string, len(g.concepts))
	for i, c := range g.concepts {
		keys[i] = c.Key
	}
	return keys
}

// MarketHours returns the hours of the named market, defaulting to forex.
func (g *Glossary) MarketHours(market string) (Market, bool) {
	m := fold(market)
	if m == "" {
		m = "forex"
	}
	for _, candidate := range g.markets {
		for _, alias := range candidate.Aliases {
			if containsWord(m, fold(alias)) {
				return candidate, true
			}
		}
	}
	return Market{}, false
}

// Markets lists the market keys with known hours.
func (g *Glossary) Markets() []string {
	keys := make([]string, len(g.markets))
	for i, m := range g.markets {
		keys[i] = m.Key
	}
	return keys
}

// containsWord reports whether phrase occurs in text on word boundaries.
func containsWord(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	padded := " " + strings.Join(tokenize(text), " ") + " "
	return strings.Contains(padded, " "+strings.Join(tokenize(phrase), " ")+" ")
}
