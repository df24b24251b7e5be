package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/tax-declaration-converter/internal/aggregate"
	"github.com/insightdelivered/tax-declaration-converter/internal/models"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(DefaultThresholds())
	require.NoError(t, err)
	return e
}

func row(t *testing.T, rows []models.RuleRow, seq int) models.RuleRow {
	t.Helper()
	r, err := Row(rows, seq)
	require.NoError(t, err)
	return r
}

// scenarioTotals are the figures of a declaration with current assets
// 1,000.50, liabilities 500, revenue 250,000 and costs 100,000.
func scenarioTotals() aggregate.Totals {
	return aggregate.Totals{
		CurrentAssets: dec("1000.50"),
		Liabilities:   dec("500.00"),
		Revenue:       dec("250000.00"),
		Cost:          dec("100000.00"),
		GrossProfit:   dec("150000.00"),
	}
}

func TestEvaluateScenario(t *testing.T) {
	rows := newEvaluator(t).Evaluate(scenarioTotals(), Inputs{})
	require.Len(t, rows, RowCount)

	for i, r := range rows {
		assert.Equal(t, i+1, r.Seq)
	}

	r1 := row(t, rows, 1)
	assert.True(t, r1.Actual.Number.Equal(dec("250000")))
	assert.Equal(t, models.OutcomePass, r1.Outcome)

	r3 := row(t, rows, 3)
	assert.Equal(t, "2", r3.Actual.Number.String())
	assert.Equal(t, models.OutcomeFail, r3.Outcome)

	r4 := row(t, rows, 4)
	assert.True(t, r4.Actual.Number.IsZero())
	assert.Equal(t, models.OutcomePass, r4.Outcome)

	r5 := row(t, rows, 5)
	assert.True(t, r5.Actual.Number.IsZero())
	assert.Equal(t, models.OutcomePass, r5.Outcome)

	r6 := row(t, rows, 6)
	assert.Equal(t, "0.002", r6.Actual.Number.String())
	assert.Equal(t, models.OutcomePass, r6.Outcome)

	r7 := row(t, rows, 7)
	assert.Equal(t, "0.6", r7.Actual.Number.String())
	assert.Equal(t, models.OutcomePass, r7.Outcome)
}

func TestManualRowsWithoutInputs(t *testing.T) {
	rows := newEvaluator(t).Evaluate(scenarioTotals(), Inputs{})

	r2 := row(t, rows, 2)
	assert.Equal(t, models.ValueText, r2.Actual.Kind)
	assert.Equal(t, NoInformation, r2.Actual.Text)
	assert.Equal(t, models.OutcomeManual, r2.Outcome)

	r8 := row(t, rows, 8)
	assert.Equal(t, models.ValueEmpty, r8.Actual.Kind)
	assert.Equal(t, models.OutcomeManual, r8.Outcome)

	r9 := row(t, rows, 9)
	assert.Nil(t, r9.Check)
	assert.Equal(t, models.OutcomeNotApplicable, r9.Outcome)

	r10 := row(t, rows, 10)
	assert.Equal(t, models.OutcomeManual, r10.Outcome)
}

func TestExternalInputs(t *testing.T) {
	days, score := 7, 640
	years := dec("4.5")

	rows := newEvaluator(t).Evaluate(scenarioTotals(), Inputs{
		NegativeBalanceDays: &days,
		YearsInBusiness:     &years,
		CreditScore:         &score,
		DelinquencyStatus:   "aprobado crédito",
	})

	assert.Equal(t, models.OutcomeFail, row(t, rows, 2).Outcome)
	assert.Equal(t, models.OutcomePass, row(t, rows, 8).Outcome)
	assert.Equal(t, "640", row(t, rows, 9).Actual.String())
	assert.Equal(t, models.OutcomeNotApplicable, row(t, rows, 9).Outcome)
	assert.Equal(t, models.OutcomePass, row(t, rows, 10).Outcome)

	rows = newEvaluator(t).Evaluate(scenarioTotals(), Inputs{DelinquencyStatus: "Rechazado"})
	assert.Equal(t, models.OutcomeFail, row(t, rows, 10).Outcome)
}

func TestCreditScoreThreshold(t *testing.T) {
	th := DefaultThresholds()
	minScore := 50.0
	th.MinCreditScore = &minScore
	e, err := NewEvaluator(th)
	require.NoError(t, err)

	score := 42
	r9 := row(t, e.Evaluate(scenarioTotals(), Inputs{CreditScore: &score}), 9)
	assert.Equal(t, ">=50", r9.Criterion)
	assert.Equal(t, models.OutcomeFail, r9.Outcome)

	r9 = row(t, e.Evaluate(scenarioTotals(), Inputs{}), 9)
	assert.Equal(t, models.OutcomeManual, r9.Outcome)
}

func TestZeroDenominatorsAreIndeterminate(t *testing.T) {
	totals := aggregate.Totals{CurrentAssets: dec("100"), NetIncome: dec("5")}
	rows := newEvaluator(t).Evaluate(totals, Inputs{})

	for _, seq := range []int{3, 5, 6, 7} {
		r := row(t, rows, seq)
		assert.Equal(t, models.ValueUndefined, r.Actual.Kind, "row %d", seq)
		assert.Equal(t, models.UndefinedMarker, r.Actual.String(), "row %d", seq)
		assert.Equal(t, models.OutcomeIndeterminate, r.Outcome, "row %d", seq)
	}

	// Revenue itself is still evaluated.
	assert.Equal(t, models.OutcomeFail, row(t, rows, 1).Outcome)
}

func TestLiquidityRunway(t *testing.T) {
	tests := []struct {
		assets, liabilities string
		want                string
		outcome             models.Outcome
	}{
		{"600", "100", "6", models.OutcomePass},
		{"599.49", "100", "5.99", models.OutcomeFail},
		{"1000", "3", "333.33", models.OutcomePass},
		{"0.125", "1", "0.12", models.OutcomeFail}, // half to even
		{"0.135", "1", "0.14", models.OutcomeFail},
		{"-50", "10", "-5", models.OutcomeFail},
	}

	e := newEvaluator(t)
	for _, tt := range tests {
		t.Run(tt.assets+"/"+tt.liabilities, func(t *testing.T) {
			r := row(t, e.Evaluate(aggregate.Totals{
				CurrentAssets: dec(tt.assets),
				Liabilities:   dec(tt.liabilities),
			}, Inputs{}), 3)
			assert.Equal(t, tt.want, r.Actual.Number.String())
			assert.Equal(t, tt.outcome, r.Outcome)
		})
	}
}

func TestCriteriaFollowThresholds(t *testing.T) {
	rows := newEvaluator(t).Evaluate(scenarioTotals(), Inputs{})

	want := map[int]string{
		1:  ">=$200,000",
		2:  "<=5",
		3:  ">=6 Months",
		5:  ">=-5%",
		6:  "<=60%",
		7:  ">10%",
		8:  ">=3 Years",
		9:  "N/A",
		10: DefaultApprovalStatus,
	}
	for seq, criterion := range want {
		assert.Equal(t, criterion, row(t, rows, seq).Criterion, "row %d", seq)
	}
}

func TestInputsMerge(t *testing.T) {
	days := 2
	years := dec("10")
	fromRequest := Inputs{NegativeBalanceDays: &days, DelinquencyStatus: "Rechazado"}
	fromProfile := Inputs{YearsInBusiness: &years, DelinquencyStatus: DefaultApprovalStatus}

	merged := fromRequest.Merge(fromProfile)
	assert.Equal(t, &days, merged.NegativeBalanceDays)
	assert.Equal(t, &years, merged.YearsInBusiness)
	assert.Nil(t, merged.CreditScore)
	assert.Equal(t, "Rechazado", merged.DelinquencyStatus)
}

func TestNewEvaluatorRejectsEmptyApproval(t *testing.T) {
	th := DefaultThresholds()
	th.ApprovalStatus = " "
	_, err := NewEvaluator(th)
	assert.Error(t, err)
}

func TestRowNotFound(t *testing.T) {
	_, err := Row(nil, 3)
	assert.Error(t, err)
}
