package creditdata

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/tax-declaration-converter/internal/models"
)

// XLSXSource reads credit data from a worksheet whose first row holds the
// column headers. The file is re-read on every lookup so that updates to the
// export are picked up without a restart.
type XLSXSource struct {
	Path    string
	Sheet   string // first sheet when empty
	Columns Columns
}

// NewXLSXSource returns a source over the workbook at path.
func NewXLSXSource(path, sheet string, cols Columns) *XLSXSource {
	return &XLSXSource{Path: path, Sheet: sheet, Columns: cols}
}

// Lookup implements Source.
func (s *XLSXSource) Lookup(ctx context.Context, clientID string) (*models.CreditProfile, error) {
	id, err := ValidateID(clientID)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	t, err := s.load()
	if err != nil {
		return nil, err
	}
	return t.find(s.Columns, id)
}

func (s *XLSXSource) load() (*table, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, s.Path, err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: %s has no sheets", ErrUnavailable, s.Path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrUnavailable, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrUnavailable, sheet)
	}
	return &table{header: rows[0], rows: rows[1:]}, nil
}
