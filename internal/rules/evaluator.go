// Package rules evaluates the knockout rules of the credit decision table.
//
// Every row that can pass or fail carries a models.Check. The same check
// drives the host-side outcome (Apply) and the live spreadsheet expression
// (Formula), so a report opened in a spreadsheet agrees with the outcome
// computed here until someone edits an input cell.
package rules

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/tax-declaration-converter/internal/aggregate"
	"github.com/insightdelivered/tax-declaration-converter/internal/models"
)

// ErrDivisionUndefined is returned by ratio when the denominator is zero.
// The evaluator turns it into an undefined value and an Indeterminate row.
var ErrDivisionUndefined = errors.New("division by zero")

// NoInformation is shown for negative balance days when nobody supplied them.
const NoInformation = "No se cuenta con la información"

// Number of rows of the decision table.
const RowCount = 10

// Inputs are the figures the declaration does not contain. Nil or empty
// fields leave the matching rule for manual review.
type Inputs struct {
	NegativeBalanceDays *int             `json:"negativeBalanceDays,omitempty"`
	YearsInBusiness     *decimal.Decimal `json:"yearsInBusiness,omitempty"`
	CreditScore         *int             `json:"creditScore,omitempty"`
	DelinquencyStatus   string           `json:"delinquencyStatus,omitempty"`
}

// Merge fills the fields of in that are unset with the values of other.
func (in Inputs) Merge(other Inputs) Inputs {
	if in.NegativeBalanceDays == nil {
		in.NegativeBalanceDays = other.NegativeBalanceDays
	}
	if in.YearsInBusiness == nil {
		in.YearsInBusiness = other.YearsInBusiness
	}
	if in.CreditScore == nil {
		in.CreditScore = other.CreditScore
	}
	if in.DelinquencyStatus == "" {
		in.DelinquencyStatus = other.DelinquencyStatus
	}
	return in
}

// Evaluator computes the decision table.
type Evaluator struct {
	th Thresholds
}

// NewEvaluator returns an Evaluator for the given thresholds.
func NewEvaluator(th Thresholds) (*Evaluator, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{th: th}, nil
}

// Evaluate returns the ten rows of the decision table, in order.
func (e *Evaluator) Evaluate(t aggregate.Totals, in Inputs) []models.RuleRow {
	th := e.th
	rows := []models.RuleRow{
		{
			Seq:       1,
			Parameter: "Minimum Annual revenue $5,000,000",
			Criterion: ">=$" + grouped(th.MinRevenue),
			Actual:    models.NumberValue(t.Revenue),
			Check:     numeric(">=", th.MinRevenue, models.OutcomeIndeterminate),
		},
		{
			Seq:       2,
			Parameter: "Negative bank balance days in the last 6 months",
			Criterion: "<=" + plain(th.MaxNegativeBalanceDays),
			Actual:    intOr(in.NegativeBalanceDays, models.TextValue(NoInformation)),
			Check:     numeric("<=", th.MaxNegativeBalanceDays, models.OutcomeManual),
		},
		{
			Seq:       3,
			Parameter: "Liquidity Runway",
			Criterion: ">=" + plain(th.MinLiquidityRunway) + " Months",
			Actual:    ratioValue(t.CurrentAssets, t.Liabilities, 2),
			Check:     numeric(">=", th.MinLiquidityRunway, models.OutcomeIndeterminate),
		},
		{
			Seq:       4,
			Parameter: "If Tangible Net Worth is negative, business must be profitable",
			Criterion: ">=" + plain(th.MinTangibleNetWorth),
			Actual:    models.NumberValue(t.Equity.Sub(t.Intangibles)),
			Check:     numeric(">=", th.MinTangibleNetWorth, models.OutcomeIndeterminate),
		},
		{
			Seq:       5,
			Parameter: "Net Income Margin",
			Criterion: ">=" + percent(th.MinNetIncomeMargin),
			Actual:    ratioValue(t.NetIncome, t.Revenue, 4),
			Check:     numeric(">=", th.MinNetIncomeMargin, models.OutcomeIndeterminate),
		},
		{
			Seq:       6,
			Parameter: "Current liabilities must not exceed 60% of annual revenue",
			Criterion: "<=" + percent(th.MaxLiabilityRevenueRatio),
			Actual:    ratioValue(t.Liabilities, t.Revenue, 4),
			Check:     numeric("<=", th.MaxLiabilityRevenueRatio, models.OutcomeIndeterminate),
		},
		{
			Seq:       7,
			Parameter: "Gross Margin",
			Criterion: ">" + percent(th.MinGrossMargin),
			Actual:    ratioValue(t.GrossProfit, t.Revenue, 4),
			Check:     numeric(">", th.MinGrossMargin, models.OutcomeIndeterminate),
		},
		{
			Seq:       8,
			Parameter: "Minimum time in Business (In Years)",
			Criterion: ">=" + plain(th.MinYearsInBusiness) + " Years",
			Actual:    decimalOr(in.YearsInBusiness),
			Check:     numeric(">=", th.MinYearsInBusiness, models.OutcomeManual),
		},
		e.creditScoreRow(in.CreditScore),
		{
			Seq:       10,
			Parameter: "Not delinquent on any Slope obligations or gone more than 15 days delinquent on any prior Slope obligations",
			Criterion: th.ApprovalStatus,
			Actual:    textOr(in.DelinquencyStatus),
			Check: &models.Check{
				Op:       "=",
				Text:     th.ApprovalStatus,
				Fallback: models.OutcomeManual,
			},
		},
	}

	for i := range rows {
		if rows[i].Check == nil {
			rows[i].Outcome = models.OutcomeNotApplicable
			continue
		}
		rows[i].Outcome = Apply(*rows[i].Check, rows[i].Actual)
	}
	return rows
}

func (e *Evaluator) creditScoreRow(score *int) models.RuleRow {
	row := models.RuleRow{
		Seq:       9,
		Parameter: "Minimum Experian Intelliscore",
		Criterion: "N/A",
		Actual:    intOr(score, models.Value{}),
	}
	if e.th.MinCreditScore != nil {
		row.Criterion = ">=" + plain(*e.th.MinCreditScore)
		row.Check = numeric(">=", *e.th.MinCreditScore, models.OutcomeManual)
	}
	return row
}

// ratio divides and rounds half to even, like the spreadsheet-era reports
// this table replaces.
func ratio(num, den decimal.Decimal, places int32) (decimal.Decimal, error) {
	if den.IsZero() {
		return decimal.Zero, ErrDivisionUndefined
	}
	return num.Div(den).RoundBank(places), nil
}

func ratioValue(num, den decimal.Decimal, places int32) models.Value {
	r, err := ratio(num, den, places)
	if err != nil {
		return models.UndefinedValue()
	}
	return models.NumberValue(r)
}

func numeric(op string, threshold float64, fallback models.Outcome) *models.Check {
	return &models.Check{Op: op, Threshold: decimal.NewFromFloat(threshold), Fallback: fallback}
}

func intOr(v *int, fallback models.Value) models.Value {
	if v == nil {
		return fallback
	}
	return models.NumberValue(decimal.NewFromInt(int64(*v)))
}

func decimalOr(v *decimal.Decimal) models.Value {
	if v == nil {
		return models.Value{}
	}
	return models.NumberValue(*v)
}

func textOr(s string) models.Value {
	if s == "" {
		return models.Value{}
	}
	return models.TextValue(s)
}

func plain(f float64) string {
	return decimal.NewFromFloat(f).String()
}

func percent(f float64) string {
	return decimal.NewFromFloat(f).Mul(decimal.NewFromInt(100)).String() + "%"
}

// grouped renders a whole amount with thousands separators: 200000 -> "200,000".
func grouped(f float64) string {
	s := decimal.NewFromFloat(f).StringFixed(0)
	neg := len(s) > 0 && s[0] == '-'
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// Row returns the row with the given sequence number.
func Row(rows []models.RuleRow, seq int) (models.RuleRow, error) {
	for _, r := range rows {
		if r.Seq == seq {
			return r, nil
		}
	}
	return models.RuleRow{}, fmt.Errorf("rule %d not found", seq)
}
