package creditdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/insightdelivered/tax-declaration-converter/internal/models"
)

// CSVSource reads credit data from a delimited text export.
type CSVSource struct {
	Path      string
	Delimiter rune
	Encoding  string // utf-8, iso-8859-1 or windows-1252
	Columns   Columns
}

// NewCSVSource returns a source over the file at path. A zero delimiter
// means ';', the separator used by the bureau exports.
func NewCSVSource(path string, delimiter rune, enc string, cols Columns) (*CSVSource, error) {
	if delimiter == 0 {
		delimiter = ';'
	}
	if _, err := decoderFor(enc); err != nil {
		return nil, err
	}
	return &CSVSource{Path: path, Delimiter: delimiter, Encoding: enc, Columns: cols}, nil
}

// Lookup implements Source.
func (s *CSVSource) Lookup(ctx context.Context, clientID string) (*models.CreditProfile, error) {
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

func (s *CSVSource) load() (*table, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, s.Path, err)
	}
	defer file.Close()

	dec, err := decoderFor(s.Encoding)
	if err != nil {
		return nil, err
	}
	var src io.Reader = file
	if dec != nil {
		src = transform.NewReader(file, dec.NewDecoder())
	}

	r := csv.NewReader(src)
	r.Comma = s.Delimiter
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrUnavailable, s.Path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrUnavailable, s.Path)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return &table{header: header, rows: records[1:]}, nil
}

// decoderFor returns nil for UTF-8.
func decoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "iso-8859-1", "latin1", "latin-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	default:
		return nil, fmt.Errorf("unsupported credit data encoding %q", name)
	}
}
