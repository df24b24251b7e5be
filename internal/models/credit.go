package models

import "github.com/shopspring/decimal"

// CreditProfile is the row of credit attributes found for a client.
type CreditProfile struct {
	ClientID            string            `json:"clientId"`
	Name                string            `json:"name,omitempty"`
	CreditScore         *int              `json:"creditScore,omitempty"`
	YearsInBusiness     *decimal.Decimal  `json:"yearsInBusiness,omitempty"`
	NegativeBalanceDays *int              `json:"negativeBalanceDays,omitempty"`
	DelinquencyStatus   string            `json:"delinquencyStatus,omitempty"`
	Attributes          map[string]string `json:"attributes,omitempty"` // every column of the source row
}

// LookupStatus describes the outcome of the optional credit data lookup.
type LookupStatus string

const (
	LookupSkipped  LookupStatus = "skipped" // no client id or no source configured
	LookupFound    LookupStatus = "found"
	LookupNotFound LookupStatus = "not_found"
)
