package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Decimal coerces a decoded JSON value (number, json.Number or numeric string)
// into a float64. Any other shape is an InputError naming field.
func Decimal(field string, v any) (float64, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch val := v.(type) {
	case float64:
		d = decimal.NewFromFloat(val)
	case float32:
		d = decimal.NewFromFloat32(val)
	case int:
		d = decimal.NewFromInt(int64(val))
	case int64:
		d = decimal.NewFromInt(val)
	case json.Number:
		d, err = decimal.NewFromString(val.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(val))
	case nil:
		return 0, InputError{Field: field, Reason: "value is required"}
	default:
		return 0, InputError{Field: field, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
	if err != nil {
		return 0, InputError{Field: field, Reason: "not a number"}
	}
	f, _ := d.Float64()
	return f, nil
}

// OptionalDecimal coerces v when present and returns fallback otherwise.
func OptionalDecimal(field string, v any, fallback float64) (float64, error) {
	if v == nil {
		return fallback, nil
	}
	return Decimal(field, v)
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DateLayout is the calendar date format used by every date attribute.
const DateLayout = "2006-01-02"

// CheckDate validates an optional YYYY-MM-DD date string. Empty values pass.
func CheckDate(field, value string) error {
	if value == "" {
		return nil
	}
	if !datePattern.MatchString(value) {
		return InputError{Field: field, Reason: "expected YYYY-MM-DD"}
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return InputError{Field: field, Reason: "not a calendar date"}
	}
	return nil
}
