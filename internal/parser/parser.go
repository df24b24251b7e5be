package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/insightdelivered/tax-declaration-converter/internal/models"
)

// ErrNoDataExtracted is returned when no line of the document is a target
// account row. Callers must not build a report from an empty dataset.
var ErrNoDataExtracted = errors.New("no account data extracted from document")

// Debug line results.
const (
	ResultSelected = "selected"
	ResultRejected = "rejected"
	ResultUnparsed = "unparsed"
)

// Selector decides whether a parsed row is one of the target accounts.
type Selector interface {
	Select(description, code string) (models.TargetAccount, bool)
}

// Parser reads account rows out of declaration text.
type Parser struct {
	Format NumberFormat
}

// New returns a parser for the given number format.
func New(format NumberFormat) (*Parser, error) {
	f, err := ParseNumberFormat(string(format))
	if err != nil {
		return nil, err
	}
	return &Parser{Format: f}, nil
}

// Parse takes the text of each page and returns the selected account
// records in document order. Every non-blank line is recorded in the
// dataset's debug lines with what happened to it.
func (p *Parser) Parse(pages []string, sel Selector) (*models.Dataset, error) {
	ds := &models.Dataset{}
	var scanned, candidates int

	for pageIdx, page := range pages {
		for lineIdx, raw := range strings.Split(page, "\n") {
			line := strings.TrimSpace(raw)
			if line == "" {
				continue
			}
			scanned++

			dbg := models.DebugLine{Page: pageIdx + 1, Line: lineIdx + 1, Text: line}

			c, ok := p.ParseLine(line)
			if !ok {
				dbg.Result = ResultUnparsed
				ds.DebugLines = append(ds.DebugLines, dbg)
				continue
			}
			candidates++
			dbg.Code = c.Code

			if _, ok := sel.Select(c.Description, c.Code); !ok {
				dbg.Result = ResultRejected
				ds.DebugLines = append(ds.DebugLines, dbg)
				continue
			}

			dbg.Result = ResultSelected
			ds.DebugLines = append(ds.DebugLines, dbg)
			ds.Records = append(ds.Records, models.AccountRecord{
				Description: c.Description,
				Code:        c.Code,
				Value:       c.Value,
				Page:        pageIdx + 1,
				Line:        lineIdx + 1,
			})
		}
	}

	if len(ds.Records) == 0 {
		return nil, fmt.Errorf("%w (%d lines scanned, %d looked like account rows)", ErrNoDataExtracted, scanned, candidates)
	}
	return ds, nil
}
