package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// OptionalFloat is a numeric field that may be absent, null, a JSON number,
// or a numeric string. Values that cannot be parsed decode as invalid rather
// than failing the enclosing document.
type OptionalFloat struct {
	Value float64
	Valid bool
}

// Float returns a valid OptionalFloat.
func Float(v float64) OptionalFloat {
	return OptionalFloat{Value: v, Valid: true}
}

// Or returns the value when valid, otherwise def.
func (f OptionalFloat) Or(def float64) float64 {
	if !f.Valid {
		return def
	}
	return f.Value
}

func (f *OptionalFloat) UnmarshalJSON(data []byte) error {
	*f = OptionalFloat{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var raw string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
	} else {
		raw = string(data)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f.Value = v
	f.Valid = true
	return nil
}

func (f OptionalFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Amount is a money value kept exactly as the scoring service sent it. The
// service formats totals with thousands separators ("1,234,500"), older runs
// sent bare numbers.
type Amount struct {
	raw string
}

// NewAmount wraps a raw amount string.
func NewAmount(raw string) Amount {
	return Amount{raw: raw}
}

// Raw returns the amount text as received.
func (a Amount) Raw() string {
	return a.raw
}

// Plain returns the raw text with every ',' separator removed and nothing
// else changed: no rounding, no reformatting.
func (a Amount) Plain() string {
	return strings.ReplaceAll(a.raw, ",", "")
}

// Decimal parses the separator-free amount.
func (a Amount) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(a.Plain()))
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		a.raw = ""
	case data[0] == '"':
		return json.Unmarshal(data, &a.raw)
	default:
		// keep the number literal verbatim so 1234500.50 is not re-rounded
		a.raw = string(data)
	}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.raw)
}
