package creditdata

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/insightdelivered/tax-declaration-converter/internal/models"
)

var bureauRows = [][]any{
	{"IDENTIFICACION", "RAZON SOCIAL", "SCORE", "ANTIGUEDAD", "DIAS SALDO NEGATIVO", "ESTADO"},
	{"1790012345001", "Comercial Andina", 712, 4.5, 2, "Aprobado Crédito"},
	{"0990011122001", "Pesquera del Sur", "", "", "", "En revisión"},
}

func writeXLSX(t *testing.T, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	path := filepath.Join(t.TempDir(), "bureau.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1790012345001", "1790012345001", false},
		{"  0990011122001 ", "0990011122001", false},
		{"", "", true},
		{"17900-123", "", true},
		{"ABC123", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ValidateID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestXLSXSourceLookup(t *testing.T) {
	src := NewXLSXSource(writeXLSX(t, bureauRows), "", DefaultColumns())

	p, err := src.Lookup(context.Background(), "1790012345001")
	require.NoError(t, err)
	assert.Equal(t, "Comercial Andina", p.Name)
	require.NotNil(t, p.CreditScore)
	assert.Equal(t, 712, *p.CreditScore)
	require.NotNil(t, p.YearsInBusiness)
	assert.True(t, decimal.RequireFromString("4.5").Equal(*p.YearsInBusiness))
	require.NotNil(t, p.NegativeBalanceDays)
	assert.Equal(t, 2, *p.NegativeBalanceDays)
	assert.Equal(t, "Aprobado Crédito", p.DelinquencyStatus)
	assert.Equal(t, "Comercial Andina", p.Attributes["RAZON SOCIAL"])

	// Leading zeros are part of the identifier.
	p, err = src.Lookup(context.Background(), "0990011122001")
	require.NoError(t, err)
	assert.Nil(t, p.CreditScore)
	assert.Nil(t, p.YearsInBusiness)
	assert.Equal(t, "En revisión", p.DelinquencyStatus)

	_, err = src.Lookup(context.Background(), "990011122001")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = src.Lookup(context.Background(), "x1")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestXLSXSourceUnavailable(t *testing.T) {
	src := NewXLSXSource(filepath.Join(t.TempDir(), "missing.xlsx"), "", DefaultColumns())
	_, err := src.Lookup(context.Background(), "1")
	assert.ErrorIs(t, err, ErrUnavailable)

	cols := DefaultColumns()
	cols.ClientID = "RUC"
	src = NewXLSXSource(writeXLSX(t, bureauRows), "", cols)
	_, err = src.Lookup(context.Background(), "1790012345001")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCSVSourceLatin1(t *testing.T) {
	content := "IDENTIFICACION;RAZON SOCIAL;SCORE;ANTIGUEDAD;DIAS SALDO NEGATIVO;ESTADO\n" +
		"1790012345001;Comercial Andina;640.0;3,5;7;Aprobado Crédito\n"
	encoded, err := charmap.ISO8859_1.NewEncoder().String(content)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bureau.csv")
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o644))

	src, err := NewCSVSource(path, 0, "iso-8859-1", DefaultColumns())
	require.NoError(t, err)

	p, err := src.Lookup(context.Background(), "1790012345001")
	require.NoError(t, err)
	assert.Equal(t, "Aprobado Crédito", p.DelinquencyStatus)
	require.NotNil(t, p.CreditScore)
	assert.Equal(t, 640, *p.CreditScore)
	assert.True(t, decimal.RequireFromString("3.5").Equal(*p.YearsInBusiness))
	assert.Equal(t, 7, *p.NegativeBalanceDays)
}

func TestCSVSourceBadNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bureau.csv")
	require.NoError(t, os.WriteFile(path, []byte("\ufeffIDENTIFICACION,SCORE\n42,alto\n"), 0o644))

	src, err := NewCSVSource(path, ',', "utf-8", DefaultColumns())
	require.NoError(t, err)

	_, err = src.Lookup(context.Background(), "42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credit score")
}

func TestNewCSVSourceRejectsEncoding(t *testing.T) {
	_, err := NewCSVSource("x.csv", ',', "ebcdic", DefaultColumns())
	assert.Error(t, err)
}

type stubSource struct {
	calls atomic.Int32
	fn    func(ctx context.Context, call int32) (*models.CreditProfile, error)
}

func (s *stubSource) Lookup(ctx context.Context, _ string) (*models.CreditProfile, error) {
	return s.fn(ctx, s.calls.Add(1))
}

func TestResilientRetriesOnce(t *testing.T) {
	stub := &stubSource{fn: func(_ context.Context, call int32) (*models.CreditProfile, error) {
		if call == 1 {
			return nil, ErrUnavailable
		}
		return &models.CreditProfile{ClientID: "7"}, nil
	}}

	r := NewResilient(stub, time.Second, 1, quietLogger())
	p, err := r.Lookup(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "7", p.ClientID)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestResilientGivesUp(t *testing.T) {
	stub := &stubSource{fn: func(context.Context, int32) (*models.CreditProfile, error) {
		return nil, ErrUnavailable
	}}

	r := NewResilient(stub, time.Second, 1, quietLogger())
	_, err := r.Lookup(context.Background(), "7")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestResilientDoesNotRetryNotFound(t *testing.T) {
	stub := &stubSource{fn: func(context.Context, int32) (*models.CreditProfile, error) {
		return nil, ErrNotFound
	}}

	r := NewResilient(stub, time.Second, 3, quietLogger())
	_, err := r.Lookup(context.Background(), "7")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestResilientTimeout(t *testing.T) {
	stub := &stubSource{fn: func(ctx context.Context, _ int32) (*models.CreditProfile, error) {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return nil, errors.New("late")
	}}

	r := NewResilient(stub, 20*time.Millisecond, 1, quietLogger())
	start := time.Now()
	_, err := r.Lookup(context.Background(), "7")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), stub.calls.Load())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOpen(t *testing.T) {
	src, err := Open(DefaultOptions(), quietLogger())
	require.NoError(t, err)
	assert.Nil(t, src)

	opts := DefaultOptions()
	opts.Path = writeXLSX(t, bureauRows)
	src, err = Open(opts, quietLogger())
	require.NoError(t, err)
	require.IsType(t, &Resilient{}, src)

	p, err := src.Lookup(context.Background(), "1790012345001")
	require.NoError(t, err)
	assert.Equal(t, "Comercial Andina", p.Name)

	opts.Path = "bureau.json"
	_, err = Open(opts, quietLogger())
	assert.Error(t, err)

	opts.Path = "bureau.csv"
	opts.Delimiter = ";;"
	_, err = Open(opts, quietLogger())
	assert.Error(t, err)
}
