package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/tax-declaration-converter/internal/accounts"
	"github.com/insightdelivered/tax-declaration-converter/internal/aggregate"
	"github.com/insightdelivered/tax-declaration-converter/internal/creditdata"
	"github.com/insightdelivered/tax-declaration-converter/internal/models"
	"github.com/insightdelivered/tax-declaration-converter/internal/parser"
	"github.com/insightdelivered/tax-declaration-converter/internal/rules"
	"github.com/insightdelivered/tax-declaration-converter/internal/writer"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "config.yaml"

// Config represents the top-level config.yaml configuration.
type Config struct {
	Server     ServerConfig           `yaml:"server"`
	Extraction ExtractionConfig       `yaml:"extraction"`
	Accounts   []models.TargetAccount `yaml:"accounts"`
	Aggregates aggregate.Codes        `yaml:"aggregation"`
	Rules      rules.Thresholds       `yaml:"rules"`
	CreditData creditdata.Options     `yaml:"credit_data"`
	Report     writer.ReportOptions   `yaml:"report"`
	Log        LogConfig              `yaml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Port        int    `yaml:"port"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	StaticDir   string `yaml:"static_dir"`
}

// ExtractionConfig controls how amounts are read from declarations.
type ExtractionConfig struct {
	NumberFormat parser.NumberFormat `yaml:"number_format"` // dot_decimal or comma_decimal
}

// LogConfig controls the logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			MaxUploadMB: 32,
		},
		Extraction: ExtractionConfig{NumberFormat: parser.DotDecimal},
		Accounts:   accounts.DefaultTargets(),
		Aggregates: aggregate.DefaultCodes(),
		Rules:      rules.DefaultThresholds(),
		CreditData: creditdata.DefaultOptions(),
		Report:     writer.DefaultReportOptions(),
		Log:        LogConfig{Level: "info"},
	}
}

// Load reads a config.yaml file on top of the defaults. A missing file is
// not an error: the defaults are returned. Environment overrides are applied
// last.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("SERVER_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("CREDIT_DATA_PATH"); ok {
		c.CreditData.Path = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate checks every section of the configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}
	if _, err := parser.ParseNumberFormat(string(c.Extraction.NumberFormat)); err != nil {
		return fmt.Errorf("extraction.number_format: %w", err)
	}
	if _, err := accounts.NewSelector(c.Accounts); err != nil {
		return fmt.Errorf("accounts: %w", err)
	}
	if err := c.Aggregates.Validate(); err != nil {
		return fmt.Errorf("aggregation: %w", err)
	}
	if err := c.Rules.Validate(); err != nil {
		return err
	}
	if c.CreditData.Retries < 0 {
		return fmt.Errorf("credit_data.retries must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses the configured log level.
func (c *Config) LogLevel() (log.Level, error) {
	lvl, err := log.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
