// Package writer renders conversion results as spreadsheet reports and CSV.
package writer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/tax-declaration-converter/internal/converter"
	"github.com/insightdelivered/tax-declaration-converter/internal/models"
	"github.com/insightdelivered/tax-declaration-converter/internal/rules"
)

// Layout of the decision sheet.
const (
	DecisionTitle     = "Knockout Rules"
	decisionHeaderRow = 3
	decisionFirstRow  = 4
)

var decisionHeaders = []string{"Sr No", "Parameters", "Criteria", "Actual Values", "Pass/Fail", "Evaluated"}

// ReportOptions configure the XLSX report.
type ReportOptions struct {
	Template           string `yaml:"template"` // optional workbook whose sheets are filled in place
	DataSheet          string `yaml:"data_sheet"`
	DecisionSheet      string `yaml:"decision_sheet"`
	ProfileSheet       string `yaml:"profile_sheet"`
	FileName           string `yaml:"file_name"`
	PassColor          string `yaml:"pass_color"`
	FailColor          string `yaml:"fail_color"`
	IndeterminateColor string `yaml:"indeterminate_color"`
}

// DefaultReportOptions returns the sheet names and colours of the report.
func DefaultReportOptions() ReportOptions {
	return ReportOptions{
		DataSheet:          "DATA-BRUTO",
		DecisionSheet:      "Decisioning",
		ProfileSheet:       "Credit Profile",
		FileName:           "declaracion_convertida.xlsx",
		PassColor:          "C6EFCE",
		FailColor:          "FFC7CE",
		IndeterminateColor: "FFEB9C",
	}
}

// XLSXWriter builds the report workbook of a conversion.
type XLSXWriter struct {
	Options ReportOptions
}

// NewXLSXWriter returns a writer with opts, unset fields taking defaults.
func NewXLSXWriter(opts ReportOptions) *XLSXWriter {
	def := DefaultReportOptions()
	fill := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	fill(&opts.DataSheet, def.DataSheet)
	fill(&opts.DecisionSheet, def.DecisionSheet)
	fill(&opts.ProfileSheet, def.ProfileSheet)
	fill(&opts.FileName, def.FileName)
	fill(&opts.PassColor, def.PassColor)
	fill(&opts.FailColor, def.FailColor)
	fill(&opts.IndeterminateColor, def.IndeterminateColor)
	return &XLSXWriter{Options: opts}
}

// WriteToFile writes the report of res to path.
func (w *XLSXWriter) WriteToFile(path string, res *converter.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, res)
}

// Write builds the whole workbook in memory and then copies it to out.
func (w *XLSXWriter) Write(out io.Writer, res *converter.Result) error {
	b, err := w.Bytes(res)
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

// Bytes returns the report of res as an XLSX document.
func (w *XLSXWriter) Bytes(res *converter.Result) ([]byte, error) {
	f, err := w.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if err := w.writeData(f, res.Dataset); err != nil {
		return nil, fmt.Errorf("write %s: %w", w.Options.DataSheet, err)
	}
	if err := w.writeDecision(f, res); err != nil {
		return nil, fmt.Errorf("write %s: %w", w.Options.DecisionSheet, err)
	}
	if res.Profile != nil {
		if err := w.writeProfile(f, res.Profile); err != nil {
			return nil, fmt.Errorf("write %s: %w", w.Options.ProfileSheet, err)
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Identifier:  res.ID.String(),
		Title:       DecisionTitle,
		Subject:     res.Source,
		Creator:     "tax-declaration-converter",
		Created:     res.CreatedAt.UTC().Format(time.RFC3339),
		Description: fmt.Sprintf("client=%s lookup=%s", res.ClientID, res.Lookup),
	}); err != nil {
		return nil, err
	}

	// Formula cells carry no cached value; have spreadsheet apps compute them.
	calcOnLoad := true
	if err := f.SetCalcProps(&excelize.CalcPropsOptions{FullCalcOnLoad: &calcOnLoad}); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialise workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *XLSXWriter) open() (*excelize.File, error) {
	if w.Options.Template != "" {
		data, err := os.ReadFile(w.Options.Template)
		if err != nil {
			return nil, fmt.Errorf("read report template: %w", err)
		}
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open report template %q: %w", w.Options.Template, err)
		}
		return f, nil
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", w.Options.DataSheet); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// ensureSheet creates sheet unless the workbook (a template) already has it.
func ensureSheet(f *excelize.File, sheet string) error {
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	if idx >= 0 {
		return nil
	}
	_, err = f.NewSheet(sheet)
	return err
}

func (w *XLSXWriter) writeData(f *excelize.File, ds *models.Dataset) error {
	sheet := w.Options.DataSheet
	if err := ensureSheet(f, sheet); err != nil {
		return err
	}

	header := []any{"Descripción", "Código", "Valor"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "C1", bold); err != nil {
		return err
	}

	for i, rec := range ds.Records {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), rec.Description)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), rec.Code)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), rec.Value.InexactFloat64())
	}

	if len(ds.Records) > 0 {
		amount, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
		if err != nil {
			return err
		}
		last := fmt.Sprintf("C%d", len(ds.Records)+1)
		if err := f.SetCellStyle(sheet, "C2", last, amount); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "A", 48)
}

func (w *XLSXWriter) writeDecision(f *excelize.File, res *converter.Result) error {
	sheet := w.Options.DecisionSheet
	if err := ensureSheet(f, sheet); err != nil {
		return err
	}

	title, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	normal, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{Horizontal: "left", WrapText: true}})
	if err != nil {
		return err
	}

	f.SetCellValue(sheet, "B1", DecisionTitle)
	if err := f.SetCellStyle(sheet, "B1", "B1", title); err != nil {
		return err
	}

	headerRow := make([]any, len(decisionHeaders))
	for i, h := range decisionHeaders {
		headerRow[i] = h
	}
	hdr := fmt.Sprintf("B%d", decisionHeaderRow)
	if err := f.SetSheetRow(sheet, hdr, &headerRow); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, hdr, fmt.Sprintf("G%d", decisionHeaderRow), header); err != nil {
		return err
	}

	for i, r := range res.Rules {
		row := decisionFirstRow + i
		actual := fmt.Sprintf("E%d", row)

		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.Seq)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.Parameter)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.Criterion)
		if err := setValue(f, sheet, actual, r.Actual); err != nil {
			return err
		}

		result := fmt.Sprintf("F%d", row)
		if r.Check != nil {
			if err := f.SetCellFormula(sheet, result, rules.Formula(*r.Check, actual)); err != nil {
				return err
			}
		} else {
			f.SetCellValue(sheet, result, string(r.Outcome))
		}
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), string(r.Outcome))
	}

	last := decisionFirstRow + len(res.Rules) - 1
	if len(res.Rules) > 0 {
		if err := f.SetCellStyle(sheet, fmt.Sprintf("B%d", decisionFirstRow), fmt.Sprintf("G%d", last), normal); err != nil {
			return err
		}
		if err := w.outcomeFormats(f, sheet, fmt.Sprintf("F%d:G%d", decisionFirstRow, last)); err != nil {
			return err
		}
	}

	if err := w.writeNotes(f, sheet, last+2, res); err != nil {
		return err
	}

	widths := []struct {
		col   string
		width float64
	}{{"C", 62}, {"D", 15.71}, {"E", 31.57}, {"F", 14}, {"G", 14}}
	for _, cw := range widths {
		if err := f.SetColWidth(sheet, cw.col, cw.col, cw.width); err != nil {
			return err
		}
	}
	return nil
}

func setValue(f *excelize.File, sheet, cell string, v models.Value) error {
	switch v.Kind {
	case models.ValueNumber:
		return f.SetCellValue(sheet, cell, v.Number.InexactFloat64())
	case models.ValueText, models.ValueUndefined:
		return f.SetCellStr(sheet, cell, v.Text)
	}
	return nil
}

// outcomeFormats colours cells containing Pass, Fail or Indeterminate.
func (w *XLSXWriter) outcomeFormats(f *excelize.File, sheet, rng string) error {
	fills := []struct {
		text, color string
	}{
		{string(models.OutcomePass), w.Options.PassColor},
		{string(models.OutcomeFail), w.Options.FailColor},
		{string(models.OutcomeIndeterminate), w.Options.IndeterminateColor},
	}

	var opts []excelize.ConditionalFormatOptions
	for _, fl := range fills {
		style, err := f.NewConditionalStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{fl.color}, Pattern: 1},
		})
		if err != nil {
			return err
		}
		opts = append(opts, excelize.ConditionalFormatOptions{
			Type:     "formula",
			Criteria: fmt.Sprintf(`ISNUMBER(SEARCH("%s",F%d))`, fl.text, decisionFirstRow),
			Format:   &style,
		})
	}
	return f.SetConditionalFormat(sheet, rng, opts)
}

// writeNotes lists lookup flags and warnings under the decision table.
func (w *XLSXWriter) writeNotes(f *excelize.File, sheet string, row int, res *converter.Result) error {
	var notes []string
	switch res.Lookup {
	case models.LookupNotFound:
		notes = append(notes, fmt.Sprintf("Client %s not found in credit data: rows 2, 8, 9 and 10 require manual review.", res.ClientID))
	case models.LookupFound:
		notes = append(notes, fmt.Sprintf("Credit data found for client %s, see sheet %q.", res.ClientID, w.Options.ProfileSheet))
	}
	for _, warn := range res.Warnings {
		if res.Lookup == models.LookupNotFound && warn == fmt.Sprintf("client %s not found in credit data", res.ClientID) {
			continue
		}
		notes = append(notes, warn)
	}
	if len(notes) == 0 {
		return nil
	}

	flag, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Color: "9A0511"}})
	if err != nil {
		return err
	}
	f.SetCellValue(sheet, fmt.Sprintf("B%d", row), "Notes")
	if err := f.SetCellStyle(sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), flag); err != nil {
		return err
	}
	for i, n := range notes {
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row+1+i), n)
	}
	if res.Lookup == models.LookupNotFound {
		cell := fmt.Sprintf("C%d", row+1)
		return f.SetCellStyle(sheet, cell, cell, flag)
	}
	return nil
}

func (w *XLSXWriter) writeProfile(f *excelize.File, p *models.CreditProfile) error {
	sheet := w.Options.ProfileSheet
	if err := ensureSheet(f, sheet); err != nil {
		return err
	}

	f.SetCellValue(sheet, "A1", "Attribute")
	f.SetCellValue(sheet, "B1", "Value")
	f.SetCellValue(sheet, "A2", "Client ID")
	f.SetCellStr(sheet, "B2", p.ClientID)

	keys := make([]string, 0, len(p.Attributes))
	for k := range p.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		row := i + 3
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), k)
		f.SetCellStr(sheet, fmt.Sprintf("B%d", row), p.Attributes[k])
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "B1", bold); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", "A", 28)
}
