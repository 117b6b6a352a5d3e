package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/internal/budgets"
	"github.com/angelmondragon/ordo-backend/internal/orders"
	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/outbox"
	"github.com/angelmondragon/ordo-backend/pkg/outbox/payloads"
)

const (
	defaultStatusCheckBatch   = 50
	defaultStatusCheckRecheck = 24 * time.Hour
)

// OrderStatusCheckJobParams configure the vendor order reconciliation job.
type OrderStatusCheckJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Orders  orders.Repository
	Outbox  outboxEmitter
	Budgets budgetRecomputer
	Clients vendorClientSource
	Queue   statusCheckQueue
	Batch   int
	Recheck time.Duration
}

type budgetRecomputer interface {
	Recompute(ctx context.Context, officeID uuid.UUID, month string) (*models.OfficeBudget, error)
}

type vendorClientSource interface {
	ClientsFor(ctx context.Context, officeID uuid.UUID, slugs []vendors.Slug) (map[vendors.Slug]vendors.Client, error)
}

type statusCheckQueue interface {
	Schedule(ctx context.Context, member string, at time.Time) error
	Due(ctx context.Context, now time.Time, limit int64) ([]string, error)
	Ack(ctx context.Context, member string) (bool, error)
}

// NewOrderStatusCheckJob builds the job that asks vendors about approved orders.
func NewOrderStatusCheckJob(params OrderStatusCheckJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Budgets == nil {
		return nil, fmt.Errorf("budget service required")
	}
	if params.Clients == nil {
		return nil, fmt.Errorf("vendor client source required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("status check queue required")
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultStatusCheckBatch
	}
	recheck := params.Recheck
	if recheck <= 0 {
		recheck = defaultStatusCheckRecheck
	}
	return &orderStatusCheckJob{
		logg:    params.Logger,
		db:      params.DB,
		orders:  params.Orders,
		outbox:  params.Outbox,
		budgets: params.Budgets,
		clients: params.Clients,
		queue:   params.Queue,
		batch:   batch,
		recheck: recheck,
		now:     time.Now,
	}, nil
}

type orderStatusCheckJob struct {
	logg    *logger.Logger
	db      txRunner
	orders  orders.Repository
	outbox  outboxEmitter
	budgets budgetRecomputer
	clients vendorClientSource
	queue   statusCheckQueue
	batch   int
	recheck time.Duration
	now     func() time.Time
}

func (j *orderStatusCheckJob) Name() string { return "order-status-check" }

func (j *orderStatusCheckJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	members, err := j.queue.Due(ctx, now, int64(j.batch))
	if err != nil {
		return fmt.Errorf("load due status checks: %w", err)
	}

	var errs error
	checked := 0
	for _, member := range members {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		done, err := j.check(ctx, member, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("vendor order %s: %w", member, err))
			continue
		}
		checked++
		if done {
			if _, err := j.queue.Ack(ctx, member); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("ack %s: %w", member, err))
			}
			continue
		}
		if err := j.queue.Schedule(ctx, member, now.Add(j.recheck)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reschedule %s: %w", member, err))
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"due": len(members), "checked": checked})
	j.logg.Info(logCtx, "order status check loop complete")
	return errs
}

// check reconciles one vendor order. done reports whether the order needs no
// further checks. Failed checks stay due and are retried on the next run.
func (j *orderStatusCheckJob) check(ctx context.Context, member string, now time.Time) (bool, error) {
	id, err := uuid.Parse(member)
	if err != nil {
		j.logg.Warn(ctx, "dropping malformed status check entry "+member)
		return true, nil
	}
	ctx = j.logg.WithField(ctx, "vendor_order_id", member)

	order, err := j.orders.FindVendorOrder(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		j.logg.Warn(ctx, "vendor order no longer exists")
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if order.Status.IsTerminal() || order.Status == enums.VendorOrderStatusPendingApproval || order.VendorOrderID == nil || order.Vendor == nil || order.Order == nil {
		return true, nil
	}

	slug := vendors.Slug(order.Vendor.Slug)
	ctx = j.logg.WithVendorOrderID(j.logg.WithVendor(ctx, slug.String()), *order.VendorOrderID)
	clients, err := j.clients.ClientsFor(ctx, order.Order.OfficeID, []vendors.Slug{slug})
	if err != nil {
		return false, err
	}
	client, ok := clients[slug]
	if !ok {
		j.logg.Warn(ctx, "office has no usable credentials for vendor; will check again later")
		return false, nil
	}
	lister, ok := client.(vendors.OrderLister)
	if !ok {
		j.logg.Info(ctx, "vendor cannot report order history; skipping status check")
		return true, nil
	}

	if err := client.Login(ctx); err != nil {
		return false, vendors.Wrap(slug, "login", nil, err)
	}
	since := order.OrderDate
	if order.ApprovedAt != nil {
		since = *order.ApprovedAt
	}
	history, err := lister.ListOrders(ctx, since)
	if err != nil {
		return false, vendors.Wrap(slug, "list orders", vendors.ErrOrderFetch, err)
	}

	var reported *vendors.VendorOrderStatus
	for i := range history {
		if history[i].VendorOrderID == *order.VendorOrderID {
			reported = &history[i]
			break
		}
	}
	if reported == nil {
		j.logg.Debug(ctx, "vendor has not listed the order yet")
		return false, nil
	}

	target := enums.VendorOrderStatusProcessing
	if reported.Delivered || reported.Cancelled {
		target = enums.VendorOrderStatusClosed
	}
	if target == order.Status && order.VendorStatus != nil && *order.VendorStatus == reported.Status {
		return target.IsTerminal(), nil
	}
	if err := j.apply(ctx, order, slug, target, *reported, now); err != nil {
		return false, err
	}
	j.recomputeBudget(ctx, order)
	return target.IsTerminal(), nil
}

// recomputeBudget refreshes the spend of the order month after a state change.
// Failures are logged; the vendor order change itself is already committed.
func (j *orderStatusCheckJob) recomputeBudget(ctx context.Context, order *models.VendorOrder) {
	month := budgets.MonthOf(order.OrderDate)
	if _, err := j.budgets.Recompute(ctx, order.Order.OfficeID, month); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			j.logg.Debug(ctx, "no budget for order month "+month)
			return
		}
		j.logg.Error(ctx, "failed to recompute office budget", err)
	}
}

func (j *orderStatusCheckJob) apply(ctx context.Context, order *models.VendorOrder, slug vendors.Slug, target enums.VendorOrderStatus, reported vendors.VendorOrderStatus, now time.Time) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.orders.WithTx(tx)
		if err := repo.UpdateVendorOrder(ctx, order.ID, map[string]any{
			"status":        target,
			"vendor_status": reported.Status,
		}); err != nil {
			return err
		}
		switch {
		case reported.Delivered:
			var shipped []uuid.UUID
			for _, item := range order.Products {
				if item.Status == enums.OrderProductStatusProcessing || item.Status == enums.OrderProductStatusShipped {
					shipped = append(shipped, item.ID)
				}
			}
			if err := repo.UpdateOrderProducts(ctx, shipped, map[string]any{"status": enums.OrderProductStatusReceived}); err != nil {
				return err
			}
		case reported.Cancelled:
			var open []uuid.UUID
			for _, item := range order.Products {
				if item.Status != enums.OrderProductStatusRejected && item.Status != enums.OrderProductStatusReceived {
					open = append(open, item.ID)
				}
			}
			if err := repo.UpdateOrderProducts(ctx, open, map[string]any{"status": enums.OrderProductStatusCancelled}); err != nil {
				return err
			}
		}
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorOrderStatusChanged,
			AggregateType: enums.AggregateVendorOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.VendorOrderStatusChangedEvent{
				VendorOrderID: order.ID,
				OfficeID:      order.Order.OfficeID,
				Vendor:        slug.String(),
				From:          order.Status,
				To:            target,
				VendorStatus:  reported.Status,
			},
		})
	})
}
