package types

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Value holds one raw JSON field from a backend payload. It never fails to
// decode, so a malformed field only affects its own rendering.
type Value struct {
	raw json.RawMessage
}

// Decimals rendered on the dashboard stay within these bounds; anything
// outside is treated as not a number.
const (
	minExponent  = -30
	maxMagnitude = 30 // digits left of the point
)

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

var null = []byte("null")

// NewValue builds a Value from any JSON-encodable input. Used by tests and
// the mock backend.
func NewValue(v any) Value {
	b, err := json.Marshal(v)
	if err != nil {
		return Value{}
	}
	return Value{raw: b}
}

// UnmarshalJSON keeps the raw bytes.
func (v *Value) UnmarshalJSON(b []byte) error {
	v.raw = append(v.raw[:0], b...)
	return nil
}

// MarshalJSON returns the raw bytes, or null when absent.
func (v Value) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return null, nil
	}
	return v.raw, nil
}

// Present reports whether the field exists and is not JSON null.
func (v Value) Present() bool {
	b := bytes.TrimSpace(v.raw)
	return len(b) > 0 && !bytes.Equal(b, null)
}

// Text returns the display text: strings unquoted, scalars verbatim,
// objects and arrays as compact JSON. Absent values return "".
func (v Value) Text() string {
	if !v.Present() {
		return ""
	}
	b := bytes.TrimSpace(v.raw)
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			return s
		}
	}
	return string(b)
}

// Decimal parses the value the way a browser's parseFloat would: numbers
// as-is, strings by their leading numeric prefix. Values of 1e30 or more in
// magnitude, or with more than 30 fractional digits, are rejected.
func (v Value) Decimal() (decimal.Decimal, bool) {
	if !v.Present() {
		return decimal.Decimal{}, false
	}
	b := bytes.TrimSpace(v.raw)
	var text string
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return decimal.Decimal{}, false
		}
		text = numericPrefix.FindString(strings.TrimSpace(s))
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(b)
	default:
		return decimal.Decimal{}, false
	}
	if text == "" {
		return decimal.Decimal{}, false
	}
	text = strings.TrimSuffix(strings.TrimPrefix(text, "+"), ".")
	if strings.HasPrefix(text, "-.") {
		text = "-0" + text[1:]
	} else if strings.HasPrefix(text, ".") {
		text = "0" + text
	}
	d, err := decimal.NewFromString(text)
	if err != nil || !inRange(d) {
		return decimal.Decimal{}, false
	}
	return d, true
}

func inRange(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	return exp >= minExponent && exp+int64(d.NumDigits()) <= maxMagnitude
}

// Float is Decimal converted to float64.
func (v Value) Float() (float64, bool) {
	d, ok := v.Decimal()
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
