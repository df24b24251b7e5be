package commands

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/insightdelivered/tax-declaration-converter/internal/buildinfo"
	"github.com/insightdelivered/tax-declaration-converter/internal/config"
	"github.com/insightdelivered/tax-declaration-converter/internal/converter"
	"github.com/insightdelivered/tax-declaration-converter/internal/creditdata"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *log.Logger
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "tax-declaration-converter",
		Short: "Tax declaration PDF to credit decisioning report",
		Long: `Tax declaration PDF to credit decisioning report
by Insight Delivered (QEA AutoLens)

Extracts the account lines of an income tax declaration, derives the
financial ratios of the knockout rules and writes an XLSX report with
live Pass/Fail formulas.`,
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	rootCmd.AddCommand(newConvertCommand(a))
	rootCmd.AddCommand(newExtractCommand(a))
	rootCmd.AddCommand(newServeCommand(a))

	return rootCmd
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "taxconv",
	})
	return nil
}

// converter builds the pipeline from the loaded configuration.
func (a *app) converter() (*converter.Converter, error) {
	credit, err := creditdata.Open(a.cfg.CreditData, a.logger)
	if err != nil {
		return nil, err
	}

	codes := a.cfg.Aggregates
	th := a.cfg.Rules
	return converter.New(converter.Options{
		NumberFormat: a.cfg.Extraction.NumberFormat,
		Targets:      a.cfg.Accounts,
		Codes:        &codes,
		Thresholds:   &th,
		Credit:       credit,
		Logger:       a.logger,
	})
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
