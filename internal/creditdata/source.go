// Package creditdata looks up credit attributes of a client in an external
// tabular source.
package creditdata

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/tax-declaration-converter/internal/models"
)

var (
	// ErrNotFound means the source has no row for the client. It is a normal
	// outcome: the report is produced without the enrichment.
	ErrNotFound = errors.New("client not found in credit data")
	// ErrInvalidID means the client identifier is not numeric.
	ErrInvalidID = errors.New("client identifier must be numeric")
	// ErrUnavailable means the source could not be read.
	ErrUnavailable = errors.New("credit data source unavailable")
)

// Source returns the credit profile of a client.
type Source interface {
	Lookup(ctx context.Context, clientID string) (*models.CreditProfile, error)
}

// Columns maps profile fields to header names of the source table. Header
// matching ignores case and surrounding spaces.
type Columns struct {
	ClientID            string `yaml:"client_id"`
	Name                string `yaml:"name"`
	CreditScore         string `yaml:"credit_score"`
	YearsInBusiness     string `yaml:"years_in_business"`
	NegativeBalanceDays string `yaml:"negative_balance_days"`
	DelinquencyStatus   string `yaml:"delinquency_status"`
}

// DefaultColumns returns the headers of the credit bureau export.
func DefaultColumns() Columns {
	return Columns{
		ClientID:            "IDENTIFICACION",
		Name:                "RAZON SOCIAL",
		CreditScore:         "SCORE",
		YearsInBusiness:     "ANTIGUEDAD",
		NegativeBalanceDays: "DIAS SALDO NEGATIVO",
		DelinquencyStatus:   "ESTADO",
	}
}

// ValidateID trims the identifier and checks that it is made of digits.
func ValidateID(clientID string) (string, error) {
	id := strings.TrimSpace(clientID)
	if id == "" {
		return "", ErrInvalidID
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidID, clientID)
		}
	}
	return id, nil
}

// table is a header row plus data rows, as read from a file.
type table struct {
	header []string
	rows   [][]string
}

func (t *table) index(name string) int {
	if name == "" {
		return -1
	}
	for i, h := range t.header {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// find returns the profile of the first row whose id column equals id.
// Leading zeros are significant: identifiers are compared as text.
func (t *table) find(cols Columns, id string) (*models.CreditProfile, error) {
	idCol := t.index(cols.ClientID)
	if idCol < 0 {
		return nil, fmt.Errorf("%w: column %q not found", ErrUnavailable, cols.ClientID)
	}

	for _, row := range t.rows {
		if strings.TrimSpace(cell(row, idCol)) != id {
			continue
		}
		return t.profile(cols, row, id)
	}
	return nil, ErrNotFound
}

func (t *table) profile(cols Columns, row []string, id string) (*models.CreditProfile, error) {
	p := &models.CreditProfile{
		ClientID:   id,
		Attributes: make(map[string]string, len(t.header)),
	}
	for i, h := range t.header {
		if h = strings.TrimSpace(h); h != "" {
			p.Attributes[h] = strings.TrimSpace(cell(row, i))
		}
	}

	get := func(name string) string { return strings.TrimSpace(cell(row, t.index(name))) }

	p.Name = get(cols.Name)
	p.DelinquencyStatus = get(cols.DelinquencyStatus)

	var err error
	if p.CreditScore, err = optionalInt(get(cols.CreditScore)); err != nil {
		return nil, fmt.Errorf("client %s: credit score: %w", id, err)
	}
	if p.NegativeBalanceDays, err = optionalInt(get(cols.NegativeBalanceDays)); err != nil {
		return nil, fmt.Errorf("client %s: negative balance days: %w", id, err)
	}
	if s := get(cols.YearsInBusiness); s != "" {
		d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
		if err != nil {
			return nil, fmt.Errorf("client %s: years in business: %w", id, err)
		}
		p.YearsInBusiness = &d
	}
	return p, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func optionalInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	// Spreadsheets often store whole numbers as "640.0".
	if d, err := decimal.NewFromString(s); err == nil && d.IsInteger() {
		n := int(d.IntPart())
		return &n, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
