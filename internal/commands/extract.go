package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/tax-declaration-converter/internal/converter"
	"github.com/insightdelivered/tax-declaration-converter/internal/extractor"
	"github.com/insightdelivered/tax-declaration-converter/internal/writer"
)

func newExtractCommand(a *app) *cobra.Command {
	var (
		textOnly bool
		debug    bool
	)

	cmd := &cobra.Command{
		Use:   "extract <input.pdf|input.txt>",
		Short: "Print the accounts extracted from a declaration as CSV",
		Long: `Print the accounts extracted from a declaration as CSV on stdout.

With --text the raw page text is printed instead, pages separated by
the ---PAGE_BREAK--- marker, ready to be fed back as a .txt input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			inputPath := args[0]

			if textOnly {
				if strings.ToLower(filepath.Ext(inputPath)) != ".pdf" {
					return fmt.Errorf("--text needs a .pdf input")
				}
				data, err := os.ReadFile(inputPath)
				if err != nil {
					return err
				}
				pages, err := extractor.ExtractText(data)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, extractor.JoinPages(pages))
				return err
			}

			conv, err := a.converter()
			if err != nil {
				return err
			}
			res, err := runInput(cmd.Context(), conv, inputPath, converter.Request{Source: filepath.Base(inputPath)}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if debug {
				for _, d := range res.Dataset.DebugLines {
					fmt.Fprintf(cmd.ErrOrStderr(), "p%d:%-4d %-8s %s\n", d.Page, d.Line, d.Result, d.Text)
				}
			}
			w := &writer.CSVWriter{IncludeHeader: false}
			return w.Write(out, res)
		},
	}

	cmd.Flags().BoolVar(&textOnly, "text", false, "print the extracted page text instead of accounts")
	cmd.Flags().BoolVar(&debug, "debug", false, "print what happened to every line on stderr")

	return cmd
}
