package view

import (
	"strings"

	"algo-dashboard/internal/types"

	"github.com/shopspring/decimal"
)

// Placeholder tokens shown when a field is missing or does not parse.
const (
	PlaceholderPlain = "--"
	PlaceholderPrice = "---.--"
	PlaceholderPnL   = "--.--"
)

// Class is the colour treatment of a rendered cell. Only PnL cells carry
// one of the three PnL classes; everything else is ClassNone.
type Class string

const (
	ClassNone     Class = ""
	ClassPositive Class = "positive"
	ClassNegative Class = "negative"
	ClassNeutral  Class = "neutral"
)

const decimals = 2

// FormatPlain renders a value's text, or the plain placeholder when the
// value is missing, null or blank.
func FormatPlain(v types.Value) string {
	text := strings.TrimSpace(v.Text())
	if text == "" {
		return PlaceholderPlain
	}
	return text
}

// FormatPrice renders a number to two decimals, rounding half away from
// zero. Anything that does not parse becomes the price placeholder; the raw
// input is never shown.
func FormatPrice(v types.Value) string {
	d, ok := v.Decimal()
	if !ok {
		return PlaceholderPrice
	}
	return fixed(d)
}

// FormatPnL renders a PnL figure and classifies it. Zero and unparseable
// values share the neutral class.
func FormatPnL(v types.Value) (string, Class) {
	d, ok := v.Decimal()
	if !ok {
		return PlaceholderPnL, ClassNeutral
	}
	return fixed(d), Classify(d)
}

// Classify maps a PnL figure onto exactly one of the three PnL classes.
func Classify(d decimal.Decimal) Class {
	switch d.Sign() {
	case 1:
		return ClassPositive
	case -1:
		return ClassNegative
	default:
		return ClassNeutral
	}
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(decimals)
}
