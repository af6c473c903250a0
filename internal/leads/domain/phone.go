package domain

import "voice_sales_backend/platform/apperr"

// PhoneNormalizer converts caller identifiers to E.164.
type PhoneNormalizer interface {
	Normalize(raw string) (string, error)
}

// NormalizePhone returns the canonical lead key for raw or a validation error.
func NormalizePhone(n PhoneNormalizer, raw string) (string, error) {
	phone, err := n.Normalize(raw)
	if err != nil {
		return "", apperr.Validation("phone must be a valid phone number").WithDetails(map[string]string{"phone": raw})
	}
	return phone, nil
}
