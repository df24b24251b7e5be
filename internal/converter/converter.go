// Package converter runs one tax declaration through extraction, selection,
// aggregation, the optional credit lookup and rule evaluation.
package converter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/insightdelivered/tax-declaration-converter/internal/accounts"
	"github.com/insightdelivered/tax-declaration-converter/internal/aggregate"
	"github.com/insightdelivered/tax-declaration-converter/internal/creditdata"
	"github.com/insightdelivered/tax-declaration-converter/internal/extractor"
	"github.com/insightdelivered/tax-declaration-converter/internal/models"
	"github.com/insightdelivered/tax-declaration-converter/internal/parser"
	"github.com/insightdelivered/tax-declaration-converter/internal/rules"
)

// Options configure a Converter. Zero values take the built-in defaults,
// except Credit, which disables the lookup when nil.
type Options struct {
	NumberFormat parser.NumberFormat
	Targets      []models.TargetAccount
	Codes        *aggregate.Codes
	Thresholds   *rules.Thresholds
	Credit       creditdata.Source
	Logger       *log.Logger
}

// Converter is safe for concurrent use: it only holds immutable
// configuration and the credit source.
type Converter struct {
	parser     *parser.Parser
	selector   *accounts.Selector
	aggregator *aggregate.Aggregator
	evaluator  *rules.Evaluator
	credit     creditdata.Source
	logger     *log.Logger
	now        func() time.Time
}

// New validates opts and builds the pipeline.
func New(opts Options) (*Converter, error) {
	p, err := parser.New(opts.NumberFormat)
	if err != nil {
		return nil, err
	}

	targets := opts.Targets
	if len(targets) == 0 {
		targets = accounts.DefaultTargets()
	}
	sel, err := accounts.NewSelector(targets)
	if err != nil {
		return nil, fmt.Errorf("target accounts: %w", err)
	}

	codes := aggregate.DefaultCodes()
	if opts.Codes != nil {
		codes = *opts.Codes
	}
	agg, err := aggregate.New(codes)
	if err != nil {
		return nil, err
	}

	th := rules.DefaultThresholds()
	if opts.Thresholds != nil {
		th = *opts.Thresholds
	}
	eval, err := rules.NewEvaluator(th)
	if err != nil {
		return nil, fmt.Errorf("rule thresholds: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Converter{
		parser:     p,
		selector:   sel,
		aggregator: agg,
		evaluator:  eval,
		credit:     opts.Credit,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Request is one document to convert.
type Request struct {
	Source   string       // file name, informational
	Pages    []string     // page texts; ignored by ConvertPDF
	ClientID string       // optional; triggers the credit lookup
	Inputs   rules.Inputs // take precedence over the credit profile
}

// Result is everything the report writers need.
type Result struct {
	ID        uuid.UUID             `json:"id"`
	Source    string                `json:"source,omitempty"`
	CreatedAt time.Time             `json:"createdAt"`
	Dataset   *models.Dataset       `json:"dataset"`
	Totals    aggregate.Totals      `json:"totals"`
	Rules     []models.RuleRow      `json:"rules"`
	ClientID  string                `json:"clientId,omitempty"`
	Lookup    models.LookupStatus   `json:"lookup"`
	Profile   *models.CreditProfile `json:"profile,omitempty"`
	Inputs    rules.Inputs          `json:"inputs"`
	Warnings  []string              `json:"warnings,omitempty"`
	Pages     []string              `json:"-"` // page texts the dataset was read from
}

// ConvertPDF extracts the text of a PDF and converts it.
func (c *Converter) ConvertPDF(ctx context.Context, data []byte, req Request) (*Result, error) {
	pages, err := extractor.ExtractText(data)
	if err != nil {
		return nil, err
	}
	req.Pages = pages
	return c.Convert(ctx, req)
}

// Convert runs the pipeline over already extracted page texts.
func (c *Converter) Convert(ctx context.Context, req Request) (*Result, error) {
	res := &Result{
		ID:        uuid.New(),
		Source:    req.Source,
		CreatedAt: c.now(),
		ClientID:  req.ClientID,
		Lookup:    models.LookupSkipped,
		Pages:     req.Pages,
	}

	if req.ClientID != "" {
		id, err := creditdata.ValidateID(req.ClientID)
		if err != nil {
			return nil, err
		}
		res.ClientID = id
	}

	ds, err := c.parser.Parse(req.Pages, c.selector)
	if err != nil {
		return nil, err
	}
	ds.Missing = c.selector.Missing(ds)
	for _, code := range ds.Missing {
		res.Warnings = append(res.Warnings, fmt.Sprintf("account %s not found in document; counted as 0", code))
	}

	res.Dataset, res.Totals = c.aggregator.Apply(ds)

	inputs := req.Inputs
	if res.ClientID != "" {
		if err := c.lookup(ctx, res); err != nil {
			return nil, err
		}
		if res.Profile != nil {
			inputs = inputs.Merge(profileInputs(res.Profile))
		}
	}
	res.Inputs = inputs
	res.Rules = c.evaluator.Evaluate(res.Totals, inputs)

	c.logger.Info("converted declaration",
		"id", res.ID,
		"source", req.Source,
		"records", len(res.Dataset.Records),
		"missing", len(ds.Missing),
		"lookup", res.Lookup,
	)
	return res, nil
}

func (c *Converter) lookup(ctx context.Context, res *Result) error {
	if c.credit == nil {
		res.Warnings = append(res.Warnings, "no credit data source configured; client lookup skipped")
		return nil
	}

	p, err := c.credit.Lookup(ctx, res.ClientID)
	switch {
	case errors.Is(err, creditdata.ErrNotFound):
		res.Lookup = models.LookupNotFound
		res.Warnings = append(res.Warnings, fmt.Sprintf("client %s not found in credit data", res.ClientID))
		c.logger.Warn("client not found in credit data", "client", res.ClientID)
		return nil
	case err != nil:
		return fmt.Errorf("credit lookup for %s: %w", res.ClientID, err)
	}

	res.Lookup = models.LookupFound
	res.Profile = p
	return nil
}

func profileInputs(p *models.CreditProfile) rules.Inputs {
	return rules.Inputs{
		NegativeBalanceDays: p.NegativeBalanceDays,
		YearsInBusiness:     p.YearsInBusiness,
		CreditScore:         p.CreditScore,
		DelinquencyStatus:   p.DelinquencyStatus,
	}
}
