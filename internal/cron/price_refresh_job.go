package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ordo-backend/internal/pricing"
	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
)

// PriceRefreshJobParams configure the catalog price refresh.
type PriceRefreshJobParams struct {
	Logger  *logger.Logger
	Runner  priceRefresher
	Vendors []vendors.Slug
}

type priceRefresher interface {
	Refresh(ctx context.Context, slug vendors.Slug, officeID *uuid.UUID) (pricing.Summary, error)
}

// NewPriceRefreshJob builds the job that refreshes expired catalog prices of
// each configured vendor in turn.
func NewPriceRefreshJob(params PriceRefreshJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Runner == nil {
		return nil, fmt.Errorf("price refresh runner required")
	}
	if len(params.Vendors) == 0 {
		return nil, fmt.Errorf("at least one vendor required")
	}
	return &priceRefreshJob{
		logg:    params.Logger,
		runner:  params.Runner,
		vendors: params.Vendors,
	}, nil
}

type priceRefreshJob struct {
	logg    *logger.Logger
	runner  priceRefresher
	vendors []vendors.Slug
}

func (j *priceRefreshJob) Name() string { return "price-refresh" }

func (j *priceRefreshJob) Run(ctx context.Context) error {
	var errs error
	for _, slug := range j.vendors {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		vendorCtx := j.logg.WithVendor(ctx, slug.String())
		summary, err := j.runner.Refresh(vendorCtx, slug, nil)
		if err != nil {
			j.logg.Error(vendorCtx, "vendor price refresh failed", err)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", slug, err))
			continue
		}
		logCtx := j.logg.WithFields(vendorCtx, map[string]any{
			"enqueued":    summary.Enqueued,
			"updated":     summary.Updated,
			"unavailable": summary.Unavailable,
			"exhausted":   summary.Exhausted,
		})
		j.logg.Info(logCtx, "vendor price refresh complete")
	}
	return errs
}
