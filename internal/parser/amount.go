package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NumberFormat selects how grouping and decimal separators are read from
// amount tokens.
type NumberFormat string

const (
	// DotDecimal reads "1,234.56": commas are grouping, the dot is decimal.
	DotDecimal NumberFormat = "dot_decimal"
	// CommaDecimal reads "1.234,56": dots are grouping, the comma is decimal.
	CommaDecimal NumberFormat = "comma_decimal"
)

var errEmptyAmount = errors.New("empty amount")

// ParseNumberFormat validates a configured number format name. An empty name
// selects DotDecimal.
func ParseNumberFormat(s string) (NumberFormat, error) {
	switch NumberFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", DotDecimal:
		return DotDecimal, nil
	case CommaDecimal:
		return CommaDecimal, nil
	}
	return "", fmt.Errorf("unsupported number format %q (want %s or %s)", s, DotDecimal, CommaDecimal)
}

// parseAmount converts an amount token like "1,234.56" or "-500.00" to an
// exact decimal, removing grouping separators first.
func parseAmount(s string, format NumberFormat) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	switch format {
	case CommaDecimal:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}

	if s == "" || s == "-" {
		return decimal.Zero, errEmptyAmount
	}
	// Only a leading sign is accepted.
	if strings.LastIndex(s, "-") > 0 {
		return decimal.Zero, fmt.Errorf("misplaced sign in %q", s)
	}

	return decimal.NewFromString(s)
}

// FormatAmount renders d with two decimals and grouping separators in the
// given format, e.g. 1234.5 -> "1,234.50" for DotDecimal.
func FormatAmount(d decimal.Decimal, format NumberFormat) string {
	group, point := ",", "."
	if format == CommaDecimal {
		group, point = ".", ","
	}

	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(group)
		}
		b.WriteRune(c)
	}
	b.WriteString(point)
	b.WriteString(frac)
	return b.String()
}
