package pricing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
)

// ClientSource builds a logged-out client from a linked vendor account.
type ClientSource interface {
	ClientForVendor(ctx context.Context, slug vendors.Slug, officeID *uuid.UUID) (vendors.Client, *models.Vendor, error)
}

// Runner starts one Updater per refresh request, sharing store, metrics and
// the queue settings of base.
type Runner struct {
	clients ClientSource
	store   Store
	logg    *logger.Logger
	base    Config
	opts    []Option
}

func NewRunner(clients ClientSource, store Store, logg *logger.Logger, base Config, opts ...Option) (*Runner, error) {
	if clients == nil {
		return nil, fmt.Errorf("pricing: client source is required")
	}
	if store == nil {
		return nil, fmt.Errorf("pricing: store is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("pricing: logger is required")
	}
	return &Runner{clients: clients, store: store, logg: logg, base: base, opts: opts}, nil
}

// Refresh updates the due prices of one vendor. With officeID set only that
// office's products are refreshed, using that office's credentials.
func (r *Runner) Refresh(ctx context.Context, slug vendors.Slug, officeID *uuid.UUID) (Summary, error) {
	client, vendor, err := r.clients.ClientForVendor(ctx, slug, officeID)
	if err != nil {
		return Summary{}, err
	}
	if vendor == nil {
		return Summary{}, vendors.Wrap(slug, "credentials", vendors.ErrUnsupportedVendor, fmt.Errorf("vendor row missing"))
	}
	cfg := r.base
	cfg.Vendor = slug
	cfg.VendorID = vendor.ID
	cfg.OfficeID = officeID
	cfg.Params = ParamsFor(slug)
	updater, err := NewUpdater(cfg, client, r.store, r.logg, r.opts...)
	if err != nil {
		return Summary{}, err
	}
	return updater.Run(ctx)
}
