package rules

import (
	"fmt"
	"strings"

	"github.com/insightdelivered/tax-declaration-converter/internal/models"
)

// Apply evaluates a check against an actual value host-side. Values that are
// not comparable (empty, undefined, or of the wrong kind) yield the check's
// fallback outcome. Text comparison ignores case, as spreadsheet equality does.
func Apply(c models.Check, v models.Value) models.Outcome {
	if c.IsText() {
		if v.Kind != models.ValueText || v.Text == "" {
			return c.Fallback
		}
		return passIf(strings.EqualFold(v.Text, c.Text))
	}

	if v.Kind != models.ValueNumber {
		return c.Fallback
	}

	cmp := v.Number.Cmp(c.Threshold)
	switch c.Op {
	case ">=":
		return passIf(cmp >= 0)
	case "<=":
		return passIf(cmp <= 0)
	case ">":
		return passIf(cmp > 0)
	case "<":
		return passIf(cmp < 0)
	case "=":
		return passIf(cmp == 0)
	}
	return c.Fallback
}

// Formula renders the spreadsheet expression equivalent to Apply for the
// actual value held in cell ref, e.g.
//
//	IF(ISNUMBER(E6),IF(E6>=6,"Pass","Fail"),"Indeterminate")
func Formula(c models.Check, ref string) string {
	pass, fail := quote(string(models.OutcomePass)), quote(string(models.OutcomeFail))
	fallback := quote(string(c.Fallback))

	if c.IsText() {
		return fmt.Sprintf(`IF(%s="",%s,IF(%s=%s,%s,%s))`, ref, fallback, ref, quote(c.Text), pass, fail)
	}
	return fmt.Sprintf(`IF(ISNUMBER(%s),IF(%s%s%s,%s,%s),%s)`,
		ref, ref, c.Op, c.Threshold.String(), pass, fail, fallback)
}

func passIf(ok bool) models.Outcome {
	if ok {
		return models.OutcomePass
	}
	return models.OutcomeFail
}

// quote makes a spreadsheet string literal.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
