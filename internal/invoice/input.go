package invoice

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Bounds on what ParseInput treats as a number. Rescaling a decimal costs
// time proportional to its exponent, so anything outside them is kept as
// raw text and reported invalid.
const (
	maxInputLength   = 64
	maxInputDigits   = 40
	maxInputExponent = 32
)

// Input is a numeric form field as the user typed it. Raw is kept verbatim
// for display; Value is only meaningful when Valid is true.
type Input struct {
	Raw   string          `json:"raw"`
	Value decimal.Decimal `json:"value"`
	Valid bool            `json:"valid"`
}

func ParseInput(raw string) Input {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Input{Raw: raw}
	}
	if len(trimmed) > maxInputLength {
		return Input{Raw: raw}
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil || !withinBounds(value) {
		return Input{Raw: raw}
	}
	return Input{Raw: raw, Value: value, Valid: true}
}

func withinBounds(value decimal.Decimal) bool {
	exp := value.Exponent()
	return exp <= maxInputExponent && exp >= -maxInputExponent && value.NumDigits() <= maxInputDigits
}

func NumberInput(value decimal.Decimal) Input {
	return Input{Raw: value.String(), Value: value, Valid: true}
}

func (in Input) Blank() bool {
	return strings.TrimSpace(in.Raw) == ""
}

// amount is the value used in arithmetic; unparsable input counts as zero.
func (in Input) amount() decimal.Decimal {
	if !in.Valid {
		return decimal.Zero
	}
	return in.Value
}
