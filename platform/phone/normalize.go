// Package phone normalizes caller numbers to E.164, the key every lead is stored under.
package phone

import (
	"errors"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "AR"

// ErrInvalidNumber is returned when input cannot be parsed as a dialable number.
var ErrInvalidNumber = errors.New("invalid phone number")

// Normalizer converts caller identifiers to E.164 using a fixed fallback region.
type Normalizer struct {
	region string
}

// NewNormalizer creates a normalizer for numbers dialled without a country prefix.
func NewNormalizer(region string) *Normalizer {
	region = strings.ToUpper(strings.TrimSpace(region))
	if region == "" {
		region = defaultRegion
	}
	return &Normalizer{region: region}
}

// Normalize returns the E.164 form of input or ErrInvalidNumber.
func (n *Normalizer) Normalize(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrInvalidNumber
	}

	number, err := phonenumbers.Parse(trimmed, n.region)
	if err != nil {
		return "", ErrInvalidNumber
	}
	if !phonenumbers.IsValidNumber(number) {
		return "", ErrInvalidNumber
	}

	return phonenumbers.Format(number, phonenumbers.E164), nil
}

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	normalized, err := NewNormalizer(defaultRegion).Normalize(input)
	if err != nil {
		return strings.TrimSpace(input)
	}
	return normalized
}
