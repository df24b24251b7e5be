// Package aggregate derives the synthetic records and the totals the
// decision rules are evaluated on.
package aggregate

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/tax-declaration-converter/internal/models"
)

// Labels of the synthetic records.
const (
	LabelReceivables = "CUENTAS POR COBRAR"
	LabelGrossProfit = "GANANCIA BRUTA"
)

// Codes tells the aggregator which account codes feed each figure.
type Codes struct {
	CurrentAssets string   `yaml:"current_assets"`
	Intangibles   string   `yaml:"intangibles"`
	Liabilities   string   `yaml:"liabilities"`
	Equity        string   `yaml:"equity"`
	NetIncome     string   `yaml:"net_income"`
	Revenue       string   `yaml:"revenue"`
	Cost          string   `yaml:"cost"`
	Receivables   []string `yaml:"receivables"`
}

// DefaultCodes returns the codes of the income tax declaration form.
func DefaultCodes() Codes {
	return Codes{
		CurrentAssets: "349",
		Intangibles:   "389",
		Liabilities:   "599",
		Equity:        "698",
		NetIncome:     "701",
		Revenue:       "6999",
		Cost:          "7991",
		Receivables:   []string{"314", "316", "318"},
	}
}

// Validate checks that every figure has a code.
func (c Codes) Validate() error {
	named := map[string]string{
		"current_assets": c.CurrentAssets,
		"intangibles":    c.Intangibles,
		"liabilities":    c.Liabilities,
		"equity":         c.Equity,
		"net_income":     c.NetIncome,
		"revenue":        c.Revenue,
		"cost":           c.Cost,
	}
	for name, code := range named {
		if code == "" {
			return fmt.Errorf("aggregation code %s is not set", name)
		}
	}
	if len(c.Receivables) == 0 {
		return fmt.Errorf("aggregation codes for receivables are not set")
	}
	return nil
}

// Totals are the scalar figures of one declaration.
type Totals struct {
	CurrentAssets decimal.Decimal `json:"currentAssets"`
	Intangibles   decimal.Decimal `json:"intangibles"`
	Liabilities   decimal.Decimal `json:"liabilities"`
	Equity        decimal.Decimal `json:"equity"`
	NetIncome     decimal.Decimal `json:"netIncome"`
	Revenue       decimal.Decimal `json:"revenue"`
	Cost          decimal.Decimal `json:"cost"`
	Receivables   decimal.Decimal `json:"receivables"`
	GrossProfit   decimal.Decimal `json:"grossProfit"`
}

// Aggregator appends synthetic records to a dataset and computes totals.
type Aggregator struct {
	codes Codes
}

// New returns an Aggregator for the given codes.
func New(codes Codes) (*Aggregator, error) {
	if err := codes.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{codes: codes}, nil
}

// Apply returns a new dataset with the receivables and gross profit records
// appended, in that order, after the extracted records. Every figure is a
// sum over zero or more records and is zero when the code is absent.
func (a *Aggregator) Apply(ds *models.Dataset) (*models.Dataset, Totals) {
	records := ds.Extracted()
	base := &models.Dataset{Records: records}

	t := Totals{
		CurrentAssets: base.Sum(a.codes.CurrentAssets),
		Intangibles:   base.Sum(a.codes.Intangibles),
		Liabilities:   base.Sum(a.codes.Liabilities),
		Equity:        base.Sum(a.codes.Equity),
		NetIncome:     base.Sum(a.codes.NetIncome),
		Revenue:       base.Sum(a.codes.Revenue),
		Cost:          base.Sum(a.codes.Cost),
		Receivables:   base.Sum(a.codes.Receivables...),
	}
	t.GrossProfit = t.Revenue.Sub(t.Cost)

	out := &models.Dataset{
		Records:    make([]models.AccountRecord, 0, len(records)+2),
		Missing:    ds.Missing,
		DebugLines: ds.DebugLines,
	}
	out.Records = append(out.Records, records...)
	out.Records = append(out.Records,
		models.AccountRecord{Description: LabelReceivables, Code: models.CodeReceivables, Value: t.Receivables, Synthetic: true},
		models.AccountRecord{Description: LabelGrossProfit, Code: models.CodeGrossProfit, Value: t.GrossProfit, Synthetic: true},
	)

	return out, t
}
