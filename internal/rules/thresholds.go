package rules

import (
	"fmt"
	"strings"
)

// DefaultApprovalStatus is the delinquency status that passes rule 10.
const DefaultApprovalStatus = "Aprobado Crédito"

// Thresholds are the configurable limits of the decision table.
type Thresholds struct {
	MinRevenue               float64  `yaml:"min_revenue"`
	MaxNegativeBalanceDays   float64  `yaml:"max_negative_balance_days"`
	MinLiquidityRunway       float64  `yaml:"min_liquidity_runway"`
	MinTangibleNetWorth      float64  `yaml:"min_tangible_net_worth"`
	MinNetIncomeMargin       float64  `yaml:"min_net_income_margin"`
	MaxLiabilityRevenueRatio float64  `yaml:"max_liability_revenue_ratio"`
	MinGrossMargin           float64  `yaml:"min_gross_margin"`
	MinYearsInBusiness       float64  `yaml:"min_years_in_business"`
	MinCreditScore           *float64 `yaml:"min_credit_score,omitempty"` // nil leaves rule 9 informational
	ApprovalStatus           string   `yaml:"approval_status"`
}

// DefaultThresholds returns the limits of the knockout rules.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinRevenue:               200000,
		MaxNegativeBalanceDays:   5,
		MinLiquidityRunway:       6,
		MinTangibleNetWorth:      0,
		MinNetIncomeMargin:       -0.05,
		MaxLiabilityRevenueRatio: 0.6,
		MinGrossMargin:           0.1,
		MinYearsInBusiness:       3,
		ApprovalStatus:           DefaultApprovalStatus,
	}
}

// Validate rejects thresholds that cannot be evaluated.
func (t Thresholds) Validate() error {
	if strings.TrimSpace(t.ApprovalStatus) == "" {
		return fmt.Errorf("rules: approval_status must not be empty")
	}
	if t.MaxNegativeBalanceDays < 0 {
		return fmt.Errorf("rules: max_negative_balance_days must not be negative")
	}
	if t.MinYearsInBusiness < 0 {
		return fmt.Errorf("rules: min_years_in_business must not be negative")
	}
	return nil
}
