package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/tax-declaration-converter/internal/converter"
	"github.com/insightdelivered/tax-declaration-converter/internal/extractor"
	"github.com/insightdelivered/tax-declaration-converter/internal/writer"
)

// inputFlags are the rule inputs a declaration does not contain.
type inputFlags struct {
	clientID            string
	negativeBalanceDays int
	yearsInBusiness     string
	creditScore         int
	delinquencyStatus   string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.clientID, "client-id", "", "numeric client identifier to look up in the credit data")
	cmd.Flags().IntVar(&f.negativeBalanceDays, "negative-balance-days", 0, "negative bank balance days in the last 6 months")
	cmd.Flags().StringVar(&f.yearsInBusiness, "years-in-business", "", "time in business, in years")
	cmd.Flags().IntVar(&f.creditScore, "credit-score", 0, "credit bureau score")
	cmd.Flags().StringVar(&f.delinquencyStatus, "delinquency-status", "", `delinquency status, e.g. "Aprobado Crédito"`)
}

// request turns the flags that were actually set into a conversion request.
func (f *inputFlags) request(cmd *cobra.Command, source string) (converter.Request, error) {
	req := converter.Request{Source: source, ClientID: f.clientID}
	req.Inputs.DelinquencyStatus = strings.TrimSpace(f.delinquencyStatus)

	if cmd.Flags().Changed("negative-balance-days") {
		days := f.negativeBalanceDays
		req.Inputs.NegativeBalanceDays = &days
	}
	if cmd.Flags().Changed("credit-score") {
		score := f.creditScore
		req.Inputs.CreditScore = &score
	}
	if f.yearsInBusiness != "" {
		years, err := decimal.NewFromString(strings.ReplaceAll(f.yearsInBusiness, ",", "."))
		if err != nil {
			return req, fmt.Errorf("invalid --years-in-business %q: %w", f.yearsInBusiness, err)
		}
		req.Inputs.YearsInBusiness = &years
	}
	return req, nil
}

func newConvertCommand(a *app) *cobra.Command {
	var (
		output        string
		format        string
		includeHeader bool
		inputs        inputFlags
	)

	cmd := &cobra.Command{
		Use:   "convert <input.pdf|input.txt> [input2 ...]",
		Short: "Convert tax declarations into decisioning reports",
		Example: `  # Convert a declaration to declaracion.xlsx
  tax-declaration-converter convert declaracion.pdf

  # Enrich with the credit data of a client
  tax-declaration-converter convert --client-id=1790012345001 declaracion.pdf

  # Supply the manual inputs directly
  tax-declaration-converter convert --negative-balance-days=2 --years-in-business=4 \
      --delinquency-status="Aprobado Crédito" declaracion.pdf

  # Export the extracted accounts as CSV
  tax-declaration-converter convert --format=csv --output=cuentas.csv declaracion.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(format)
			if format != "xlsx" && format != "csv" {
				return fmt.Errorf("unknown format %q. Supported: xlsx, csv", format)
			}
			if output != "" && len(args) > 1 {
				return fmt.Errorf("--output can only be used with a single input file")
			}

			conv, err := a.converter()
			if err != nil {
				return err
			}

			for _, inputPath := range args {
				req, err := inputs.request(cmd, filepath.Base(inputPath))
				if err != nil {
					return err
				}
				outPath := output
				if outPath == "" {
					outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "." + format
				}
				if err := a.convertFile(cmd.Context(), cmd.OutOrStdout(), conv, inputPath, outPath, format, includeHeader, req); err != nil {
					return fmt.Errorf("error processing %s: %w", inputPath, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (defaults to the input filename with the format extension)")
	cmd.Flags().StringVar(&format, "format", "xlsx", "output format: xlsx or csv")
	cmd.Flags().BoolVar(&includeHeader, "header", true, "include metadata header rows in CSV")
	inputs.register(cmd)

	return cmd
}

func (a *app) convertFile(ctx context.Context, out io.Writer, conv *converter.Converter, inputPath, outPath, format string, includeHeader bool, req converter.Request) error {
	fmt.Fprintf(out, "Processing: %s\n", inputPath)

	res, err := runInput(ctx, conv, inputPath, req, out)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "  Found %d account(s)\n", len(res.Dataset.Extracted()))
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "  Warning: %s\n", w)
	}

	switch format {
	case "csv":
		w := &writer.CSVWriter{IncludeHeader: includeHeader}
		err = w.WriteToFile(outPath, res)
	default:
		err = writer.NewXLSXWriter(a.cfg.Report).WriteToFile(outPath, res)
	}
	if err != nil {
		return fmt.Errorf("%s write failed: %w", strings.ToUpper(format), err)
	}

	fmt.Fprintf(out, "  Output: %s\n", outPath)

	// Print summary
	if res.ClientID != "" {
		fmt.Fprintf(out, "  Client: %s (%s)\n", res.ClientID, res.Lookup)
	}
	fmt.Fprintf(out, "  Report ID: %s\n", res.ID)
	for _, r := range res.Rules {
		fmt.Fprintf(out, "  %2d. %-14s %s\n", r.Seq, r.Outcome, r.Actual)
	}

	fmt.Fprintln(out, "  Done.")
	return nil
}

// runInput converts a PDF, or a text file holding pre-extracted pages.
func runInput(ctx context.Context, conv *converter.Converter, inputPath string, req converter.Request, out io.Writer) (*converter.Result, error) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("input file not found: %s", inputPath)
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, err
	}

	switch ext := strings.ToLower(filepath.Ext(inputPath)); ext {
	case ".pdf":
		pages, err := extractor.ExtractText(data)
		if err != nil {
			return nil, fmt.Errorf("PDF extraction failed: %w", err)
		}
		fmt.Fprintf(out, "  Extracted text from %d page(s)\n", len(pages))
		req.Pages = pages
	case ".txt":
		req.Pages = extractor.SplitPages(string(data))
		fmt.Fprintf(out, "  Read %d page(s) of extracted text\n", len(req.Pages))
	default:
		return nil, fmt.Errorf("expected .pdf or .txt file, got %q", ext)
	}

	return conv.Convert(ctx, req)
}
