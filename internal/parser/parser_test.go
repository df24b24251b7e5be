package parser

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/tax-declaration-converter/internal/models"
)

// codeSelector accepts every candidate whose code is listed.
type codeSelector map[string]bool

func (s codeSelector) Select(description, code string) (models.TargetAccount, bool) {
	if s[code] {
		return models.TargetAccount{Code: code}, true
	}
	return models.TargetAccount{}, false
}

func TestParseLine(t *testing.T) {
	p := &Parser{Format: DotDecimal}

	tests := []struct {
		line     string
		wantOK   bool
		wantDesc string
		wantCode string
		wantVal  string
	}{
		{"TOTAL ACTIVOS CORRIENTES 349 1,000.50", true, "TOTAL ACTIVOS CORRIENTES", "349", "1000.5"},
		{"  TOTAL INGRESOS   6999   250000.00  ", true, "TOTAL INGRESOS", "6999", "250000"},
		{"UTILIDAD DEL EJERCICIO 701 -12,500.75", true, "UTILIDAD DEL EJERCICIO", "701", "-12500.75"},
		{"Locales 314 0", true, "Locales", "314", "0"},
		// Code must be 3 or 4 digits.
		{"CONCEPTO 12 100.00", false, "", "", ""},
		{"CONCEPTO 12345 100.00", false, "", "", ""},
		// Amount must be last and parseable.
		{"TOTAL DEL PASIVO 599 500.00 USD", false, "", "", ""},
		{"TOTAL DEL PASIVO 599 1.2.3", false, "", "", ""},
		{"TOTAL DEL PASIVO 599 -", false, "", "", ""},
		// Description is required.
		{"599 500.00", false, "", "", ""},
		{"", false, "", "", ""},
		{"DECLARACION DEL IMPUESTO A LA RENTA", false, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			c, ok := p.ParseLine(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantDesc, c.Description)
			assert.Equal(t, tt.wantCode, c.Code)
			assert.True(t, c.Value.Equal(decimal.RequireFromString(tt.wantVal)), "value: got %s, want %s", c.Value, tt.wantVal)
		})
	}
}

func TestParseLineDescriptionKeepsInnerNumbers(t *testing.T) {
	p := &Parser{Format: DotDecimal}

	c, ok := p.ParseLine("OTRAS CUENTAS 2024 RELACIONADAS 316 1,500.00")
	require.True(t, ok)
	assert.Equal(t, "OTRAS CUENTAS 2024 RELACIONADAS", c.Description)
	assert.Equal(t, "316", c.Code)
}

func TestParseLineCommaDecimal(t *testing.T) {
	p := &Parser{Format: CommaDecimal}

	c, ok := p.ParseLine("TOTAL DEL PASIVO 599 1.500,25")
	require.True(t, ok)
	assert.Equal(t, "1500.25", c.Value.String())
}

func TestParse(t *testing.T) {
	p, err := New(DotDecimal)
	require.NoError(t, err)

	pages := []string{
		"DECLARACION DE RENTA\nTOTAL ACTIVOS CORRIENTES 349 1,000.50\nOTRO CONCEPTO 350 10.00",
		"TOTAL DEL PASIVO 599 500.00\r\n\nPagina 2 de 2",
	}

	ds, err := p.Parse(pages, codeSelector{"349": true, "599": true})
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)

	assert.Equal(t, "349", ds.Records[0].Code)
	assert.Equal(t, 1, ds.Records[0].Page)
	assert.Equal(t, 2, ds.Records[0].Line)
	assert.Equal(t, "599", ds.Records[1].Code)
	assert.Equal(t, 2, ds.Records[1].Page)

	results := map[string]int{}
	for _, d := range ds.DebugLines {
		results[d.Result]++
	}
	assert.Equal(t, 2, results[ResultSelected])
	assert.Equal(t, 1, results[ResultRejected])
	assert.Equal(t, 2, results[ResultUnparsed])
}

func TestParseNoData(t *testing.T) {
	p, err := New(DotDecimal)
	require.NoError(t, err)

	tests := []struct {
		name  string
		pages []string
	}{
		{"no pages", nil},
		{"image-only pages", []string{"", "  "}},
		{"no account rows", []string{"DECLARACION DE RENTA\nRUC 0912345678001"}},
		{"rows not targeted", []string{"OTRO CONCEPTO 349 10.00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := p.Parse(tt.pages, codeSelector{"599": true})
			assert.ErrorIs(t, err, ErrNoDataExtracted)
			assert.Nil(t, ds)
		})
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New("locale")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported number format"))
}
