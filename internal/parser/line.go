package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// accountLinePattern matches a declaration row: free-text description, a
// 3-4 digit account code and a trailing amount.
// Example line: "TOTAL ACTIVOS CORRIENTES 349 1,000.50"
var accountLinePattern = regexp.MustCompile(`^(.*?)\s+(\d{3,4})\s+([\d.,-]+)$`)

// Candidate is a line that has the shape of an account row. It has not yet
// been checked against the target accounts.
type Candidate struct {
	Description string
	Code        string
	Value       decimal.Decimal
}

// ParseLine applies the account row pattern to a single line. Lines that do
// not match, or whose amount is not a number, are reported as not ok.
func (p *Parser) ParseLine(line string) (Candidate, bool) {
	m := accountLinePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Candidate{}, false
	}

	value, err := parseAmount(m[3], p.Format)
	if err != nil {
		return Candidate{}, false
	}

	return Candidate{
		Description: strings.TrimSpace(m[1]),
		Code:        m[2],
		Value:       value,
	}, true
}
