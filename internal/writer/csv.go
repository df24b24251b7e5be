package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/insightdelivered/tax-declaration-converter/internal/converter"
)

// CSVWriter writes the extracted dataset to CSV format.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the dataset of res to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, res *converter.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, res)
}

// Write writes the dataset of res in CSV format to the given writer. Values
// are written with two decimals and a dot separator whatever the number
// format of the source document.
func (w *CSVWriter) Write(out io.Writer, res *converter.Result) error {
	writer := csv.NewWriter(out)

	// Metadata rows, commented like the column headers of a statement export
	if w.IncludeHeader {
		meta := [][]string{{"# Report ID", res.ID.String()}}
		if res.Source != "" {
			meta = append(meta, []string{"# Source", res.Source})
		}
		if res.ClientID != "" {
			meta = append(meta, []string{"# Client", res.ClientID, string(res.Lookup)})
		}
		if len(res.Dataset.Missing) > 0 {
			meta = append(meta, []string{"# Missing Accounts", strings.Join(res.Dataset.Missing, " ")})
		}
		if err := writer.WriteAll(meta); err != nil {
			return fmt.Errorf("failed to write CSV metadata: %w", err)
		}
	}

	if err := writer.Write([]string{"Description", "Code", "Value"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range res.Dataset.Records {
		row := []string{rec.Description, rec.Code, rec.Value.StringFixed(2)}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
