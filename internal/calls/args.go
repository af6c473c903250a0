package calls

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"voice_sales_backend/platform/apperr"
)

// args reads loosely typed function-call arguments. Models send numbers as
// float64, json.Number or strings depending on the transport.
type args map[string]any

func (a args) str(key string) string {
	switch v := a[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (a args) requiredStr(key string) (string, error) {
	v := a.str(key)
	if v == "" {
		return "", apperr.Validation(key + " is required")
	}
	return v, nil
}

func (a args) optionalStr(key string) *string {
	v := a.str(key)
	if v == "" {
		return nil
	}
	return &v
}

// float returns nil when the key is absent or empty.
func (a args) float(key string) (*float64, error) {
	var f float64
	switch v := a[key].(type) {
	case nil:
		return nil, nil
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, apperr.Validation(key + " must be a number")
		}
		f = parsed
	case string:
		trimmed := strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		trimmed = strings.TrimPrefix(trimmed, "$")
		if trimmed == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, apperr.Validation(key + " must be a number")
		}
		f = parsed
	default:
		return nil, apperr.Validation(key + " must be a number")
	}
	return &f, nil
}

func (a args) integer(key string) (*int, error) {
	f, err := a.float(key)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != float64(int(*f)) {
		return nil, apperr.Validation(key + " must be a whole number")
	}
	n := int(*f)
	return &n, nil
}

func (a args) list(key string) []string {
	switch v := a[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{strings.TrimSpace(v)}
	default:
		return nil
	}
}
