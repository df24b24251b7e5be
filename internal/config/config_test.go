package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/tax-declaration-converter/internal/parser"
	"github.com/insightdelivered/tax-declaration-converter/internal/rules"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"SERVER_PORT", "CREDIT_DATA_PATH", "LOG_LEVEL"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, parser.DotDecimal, cfg.Extraction.NumberFormat)
	assert.Len(t, cfg.Accounts, 10)
	assert.Equal(t, "349", cfg.Accounts[0].Code)
	assert.InDelta(t, 200000, cfg.Rules.MinRevenue, 0.001)
	assert.Nil(t, cfg.Rules.MinCreditScore)
	assert.Equal(t, rules.DefaultApprovalStatus, cfg.Rules.ApprovalStatus)
	assert.Equal(t, 5*time.Second, cfg.CreditData.Timeout)
	assert.Equal(t, 1, cfg.CreditData.Retries)
	assert.Equal(t, "DATA-BRUTO", cfg.Report.DataSheet)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	clearEnv(t)

	yamlText := `
server:
  port: 9090
extraction:
  number_format: comma_decimal
rules:
  min_revenue: 500000
  min_credit_score: 650
credit_data:
  path: /data/buro.csv
  delimiter: ","
  encoding: windows-1252
  timeout: 2s
log:
  level: debug
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlText), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 32, cfg.Server.MaxUploadMB)
	assert.Equal(t, parser.CommaDecimal, cfg.Extraction.NumberFormat)
	assert.InDelta(t, 500000, cfg.Rules.MinRevenue, 0.001)
	assert.InDelta(t, 5, cfg.Rules.MaxNegativeBalanceDays, 0.001)
	require.NotNil(t, cfg.Rules.MinCreditScore)
	assert.InDelta(t, 650, *cfg.Rules.MinCreditScore, 0.001)
	assert.Equal(t, "/data/buro.csv", cfg.CreditData.Path)
	assert.Equal(t, 2*time.Second, cfg.CreditData.Timeout)
	assert.Equal(t, "IDENTIFICACION", cfg.CreditData.Columns.ClientID)
	assert.Len(t, cfg.Accounts, 10)

	lvl, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, lvl)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("CREDIT_DATA_PATH", "/srv/buro.xlsx")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "/srv/buro.xlsx", cfg.CreditData.Path)
	assert.Equal(t, "warn", cfg.Log.Level)

	t.Setenv("SERVER_PORT", "http")
	_, err = Load(filepath.Join(t.TempDir(), "config.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)

	tests := map[string]string{
		"bad yaml":          "server: [",
		"bad number format": "extraction:\n  number_format: indian",
		"bad target code":   "accounts:\n  - code: \"12\"\n    fragment: TOTAL",
		"empty approval":    "rules:\n  approval_status: \" \"",
		"bad log level":     "log:\n  level: loud",
		"bad port":          "server:\n  port: 70000",
	}
	for name, text := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	clearEnv(t)

	cfg := Default()
	cfg.CreditData.Path = "buro.xlsx"
	cfg.CreditData.Timeout = 3 * time.Second

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
