package accounts

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/insightdelivered/tax-declaration-converter/internal/models"
)

var codePattern = regexp.MustCompile(`^\d{3,4}$`)

// Selector matches parsed rows against an ordered table of target accounts.
// The first entry whose code equals the row code and whose fragment appears
// in the row description (ignoring case) claims the row.
type Selector struct {
	targets []models.TargetAccount
	folded  []string
}

// NewSelector validates the table and returns a Selector over a copy of it.
func NewSelector(targets []models.TargetAccount) (*Selector, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("target account table is empty")
	}

	s := &Selector{
		targets: make([]models.TargetAccount, len(targets)),
		folded:  make([]string, len(targets)),
	}
	for i, t := range targets {
		if !codePattern.MatchString(t.Code) {
			return nil, fmt.Errorf("target %d: code %q must be 3 or 4 digits", i+1, t.Code)
		}
		if strings.TrimSpace(t.Fragment) == "" {
			return nil, fmt.Errorf("target %d (%s): description fragment is empty", i+1, t.Code)
		}
		s.targets[i] = t
		s.folded[i] = fold(t.Fragment)
	}
	return s, nil
}

// Select returns the first target that claims the row.
func (s *Selector) Select(description, code string) (models.TargetAccount, bool) {
	desc := fold(description)
	for i, t := range s.targets {
		if t.Code == code && strings.Contains(desc, s.folded[i]) {
			return t, true
		}
	}
	return models.TargetAccount{}, false
}

// Targets returns the table in precedence order.
func (s *Selector) Targets() []models.TargetAccount {
	out := make([]models.TargetAccount, len(s.targets))
	copy(out, s.targets)
	return out
}

// Missing lists the target codes for which the dataset has no record, in
// table order and without duplicates.
func (s *Selector) Missing(ds *models.Dataset) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, t := range s.targets {
		if seen[t.Code] {
			continue
		}
		seen[t.Code] = true
		if !ds.Has(t.Code) {
			missing = append(missing, t.Code)
		}
	}
	return missing
}

// fold brings text extracted from PDFs (which may carry decomposed accents)
// to NFC and applies Unicode case folding. A Caser is stateful, so one is
// created per call.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}
