package creditdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/insightdelivered/tax-declaration-converter/internal/models"
)

const (
	DefaultTimeout = 5 * time.Second
	DefaultRetries = 1
)

// Resilient bounds each lookup of the wrapped source by a timeout and retries
// it when the source reports ErrUnavailable. Not-found and invalid-id results
// are returned as is.
type Resilient struct {
	source  Source
	timeout time.Duration
	retries int
	logger  *log.Logger
}

// NewResilient wraps src. Non-positive timeout and negative retries fall back
// to the defaults.
func NewResilient(src Source, timeout time.Duration, retries int, logger *log.Logger) *Resilient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if retries < 0 {
		retries = DefaultRetries
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Resilient{source: src, timeout: timeout, retries: retries, logger: logger}
}

// Lookup implements Source.
func (r *Resilient) Lookup(ctx context.Context, clientID string) (*models.CreditProfile, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if attempt > 0 {
			r.logger.Warn("retrying credit lookup", "client", clientID, "attempt", attempt+1, "err", lastErr)
		}

		p, err := r.once(ctx, clientID)
		if err == nil || !errors.Is(err, ErrUnavailable) {
			return p, err
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	r.logger.Error("credit lookup failed", "client", clientID, "err", lastErr)
	return nil, lastErr
}

type lookupResult struct {
	profile *models.CreditProfile
	err     error
}

func (r *Resilient) once(ctx context.Context, clientID string) (*models.CreditProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		p, err := r.source.Lookup(ctx, clientID)
		done <- lookupResult{p, err}
	}()

	select {
	case res := <-done:
		return res.profile, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}
