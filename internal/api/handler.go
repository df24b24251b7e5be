package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/tax-declaration-converter/internal/aggregate"
	"github.com/insightdelivered/tax-declaration-converter/internal/buildinfo"
	"github.com/insightdelivered/tax-declaration-converter/internal/converter"
	"github.com/insightdelivered/tax-declaration-converter/internal/creditdata"
	"github.com/insightdelivered/tax-declaration-converter/internal/extractor"
	"github.com/insightdelivered/tax-declaration-converter/internal/models"
	"github.com/insightdelivered/tax-declaration-converter/internal/parser"
	"github.com/insightdelivered/tax-declaration-converter/internal/writer"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ConvertResponse is the JSON response from the /api/convert endpoint.
type ConvertResponse struct {
	Success    bool                   `json:"success"`
	Error      string                 `json:"error,omitempty"`
	ID         string                 `json:"id,omitempty"`
	Source     string                 `json:"source,omitempty"`
	Records    []models.AccountRecord `json:"records,omitempty"`
	Missing    []string               `json:"missing,omitempty"`
	Totals     *aggregate.Totals      `json:"totals,omitempty"`
	Rules      []models.RuleRow       `json:"rules,omitempty"`
	ClientID   string                 `json:"clientId,omitempty"`
	Lookup     models.LookupStatus    `json:"lookup,omitempty"`
	Profile    *models.CreditProfile  `json:"profile,omitempty"`
	Warnings   []string               `json:"warnings,omitempty"`
	CSV        string                 `json:"csv,omitempty"`
	RawText    string                 `json:"rawText,omitempty"`
	Version    string                 `json:"version,omitempty"`
	DebugLines []models.DebugLine     `json:"debugLines,omitempty"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Converter *converter.Converter
	Report    writer.ReportOptions
	StaticDir string
	Logger    *log.Logger
}

// NewApp returns a fiber app with the middleware stack and routes of h.
func NewApp(h *Handler, maxUploadMB int) *fiber.App {
	if maxUploadMB <= 0 {
		maxUploadMB = 32
	}
	app := fiber.New(fiber.Config{
		AppName:               "tax-declaration-converter",
		BodyLimit:             maxUploadMB << 20,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Content-Type",
		ExposeHeaders: "Content-Disposition,X-Report-ID",
	}))
	app.Use(h.requestLogger)

	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(app *fiber.App) {
	app.Get("/api/health", HandleHealth)
	app.Post("/api/convert", h.HandleConvert)

	// Serve the single page frontend
	if h.StaticDir != "" {
		app.Static("/", h.StaticDir)
		app.Get("/*", func(c *fiber.Ctx) error {
			if strings.HasPrefix(c.Path(), "/api/") {
				return fiber.ErrNotFound
			}
			return c.SendFile(filepath.Join(h.StaticDir, "index.html"))
		})
	}
}

// HandleHealth reports liveness and the running version.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": buildinfo.Version,
	})
}

// HandleConvert converts an uploaded declaration. The multipart form carries
// either the PDF in "file" or pre-extracted text in "extractedText", the
// optional rule inputs and the response format (xlsx, json or csv).
func (h *Handler) HandleConvert(c *fiber.Ctx) error {
	format := strings.ToLower(c.FormValue("format", "xlsx"))
	if format != "xlsx" && format != "json" && format != "csv" {
		return writeError(c, fiber.StatusBadRequest, fmt.Sprintf("Unknown format %q. Use xlsx, json or csv.", format))
	}

	req, err := requestFromForm(c)
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, err.Error())
	}

	var res *converter.Result
	if text := c.FormValue("extractedText"); strings.TrimSpace(text) != "" {
		// Text extracted client-side (pdf.js), pages separated by the page break marker
		req.Pages = extractor.SplitPages(text)
		res, err = h.Converter.Convert(c.UserContext(), req)
	} else {
		data, name, ferr := uploadedPDF(c)
		if ferr != nil {
			return writeError(c, fiber.StatusBadRequest, ferr.Error())
		}
		req.Source = name
		res, err = h.Converter.ConvertPDF(c.UserContext(), data, req)
	}
	if err != nil {
		status := statusFor(err)
		if status >= fiber.StatusInternalServerError {
			h.logger().Error("conversion failed", "err", err)
		}
		return writeError(c, status, err.Error())
	}

	c.Set("X-Report-ID", res.ID.String())

	switch format {
	case "json":
		return c.JSON(h.response(res))
	case "csv":
		var buf bytes.Buffer
		if err := (&writer.CSVWriter{IncludeHeader: c.FormValue("header") != "false"}).Write(&buf, res); err != nil {
			return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("CSV generation failed: %v", err))
		}
		c.Attachment(reportName(res.Source, ".csv"))
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		return c.Send(buf.Bytes())
	default:
		w := writer.NewXLSXWriter(h.Report)
		b, err := w.Bytes(res)
		if err != nil {
			h.logger().Error("report generation failed", "id", res.ID, "err", err)
			return writeError(c, fiber.StatusInternalServerError, fmt.Sprintf("Report generation failed: %v", err))
		}
		c.Attachment(w.Options.FileName)
		c.Set(fiber.HeaderContentType, xlsxContentType)
		return c.Send(b)
	}
}

func (h *Handler) response(res *converter.Result) ConvertResponse {
	var csvBuf bytes.Buffer
	_ = (&writer.CSVWriter{IncludeHeader: false}).Write(&csvBuf, res)

	totals := res.Totals
	return ConvertResponse{
		Success:    true,
		ID:         res.ID.String(),
		Source:     res.Source,
		Records:    res.Dataset.Records,
		Missing:    res.Dataset.Missing,
		Totals:     &totals,
		Rules:      res.Rules,
		ClientID:   res.ClientID,
		Lookup:     res.Lookup,
		Profile:    res.Profile,
		Warnings:   res.Warnings,
		CSV:        csvBuf.String(),
		RawText:    extractor.JoinPages(res.Pages),
		Version:    buildinfo.Version,
		DebugLines: res.Dataset.DebugLines,
	}
}

func uploadedPDF(c *fiber.Ctx) ([]byte, string, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return nil, "", errors.New("No file uploaded. Use form field 'file' or 'extractedText'.")
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		return nil, "", errors.New("Only PDF files are supported.")
	}

	file, err := header.Open()
	if err != nil {
		return nil, "", fmt.Errorf("Failed to read uploaded file: %v", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("Failed to read uploaded file: %v", err)
	}
	return data, header.Filename, nil
}

// requestFromForm reads the client identifier and the rule inputs. Blank
// fields stay unset.
func requestFromForm(c *fiber.Ctx) (converter.Request, error) {
	req := converter.Request{
		Source:   "extractedText",
		ClientID: strings.TrimSpace(c.FormValue("clientId")),
	}
	req.Inputs.DelinquencyStatus = strings.TrimSpace(c.FormValue("delinquencyStatus"))

	var err error
	if req.Inputs.NegativeBalanceDays, err = formInt(c, "negativeBalanceDays"); err != nil {
		return req, err
	}
	if req.Inputs.CreditScore, err = formInt(c, "creditScore"); err != nil {
		return req, err
	}
	if v := strings.TrimSpace(c.FormValue("yearsInBusiness")); v != "" {
		years, err := decimal.NewFromString(strings.ReplaceAll(v, ",", "."))
		if err != nil {
			return req, fmt.Errorf("Invalid yearsInBusiness %q.", v)
		}
		req.Inputs.YearsInBusiness = &years
	}
	return req, nil
}

func formInt(c *fiber.Ctx, key string) (*int, error) {
	v := strings.TrimSpace(c.FormValue(key))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("Invalid %s %q.", key, v)
	}
	return &n, nil
}

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, extractor.ErrMalformedInput), errors.Is(err, creditdata.ErrInvalidID):
		return fiber.StatusBadRequest
	case errors.Is(err, parser.ErrNoDataExtracted):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, creditdata.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func reportName(source, ext string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if base == "" || base == "." || base == "extractedText" {
		base = "declaracion_convertida"
	}
	return base + ext
}

func writeError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ConvertResponse{
		Success: false,
		Error:   msg,
	})
}

// errorHandler renders fiber errors (413, 404, 405) in the API error shape.
func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	return writeError(c, status, err.Error())
}

func (h *Handler) requestLogger(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		if herr := c.App().ErrorHandler(c, err); herr != nil {
			return herr
		}
	}
	h.logger().Info("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return nil
}

func (h *Handler) logger() *log.Logger {
	if h.Logger == nil {
		return log.Default()
	}
	return h.Logger
}
