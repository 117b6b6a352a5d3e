package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/internal/budgets"
	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/outbox"
	"github.com/angelmondragon/ordo-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ordo-backend/pkg/redis"
)

// DefaultStatusCheckDelay is how long after approval the vendor is asked about the order.
const DefaultStatusCheckDelay = 72 * time.Hour

// StatusCheckQueue names the delayed queue approved orders wait in.
const StatusCheckQueue = "order-status-check"

// Service defines the approval workflow of vendor orders.
type Service interface {
	ApproveVendorOrder(ctx context.Context, input ApproveInput) (*ApproveResult, error)
	RejectVendorOrder(ctx context.Context, input RejectInput) error
	UpdateItemSpendCategory(ctx context.Context, officeID, itemID uuid.UUID, category enums.BudgetSpendType) error
}

// ServiceDeps wires the collaborators of the order service.
type ServiceDeps struct {
	Repo             Repository
	Tx               txRunner
	Outbox           outboxPublisher
	Checkout         vendorCheckout
	Locker           CheckoutLocker
	StatusChecks     StatusCheckScheduler
	Budgets          budgetKeeper
	Logger           *logger.Logger
	StatusCheckDelay time.Duration
	FakeCheckout     bool
	Now              func() time.Time
}

type service struct {
	repo         Repository
	tx           txRunner
	outbox       outboxPublisher
	checkout     vendorCheckout
	locker       CheckoutLocker
	statusChecks StatusCheckScheduler
	budgets      budgetKeeper
	logg         *logger.Logger
	delay        time.Duration
	fake         bool
	now          func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(deps ServiceDeps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Checkout == nil {
		return nil, fmt.Errorf("vendor checkout required")
	}
	if deps.Locker == nil {
		return nil, fmt.Errorf("checkout locker required")
	}
	if deps.StatusChecks == nil {
		return nil, fmt.Errorf("status check scheduler required")
	}
	if deps.Budgets == nil {
		return nil, fmt.Errorf("budget service required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	delay := deps.StatusCheckDelay
	if delay <= 0 {
		delay = DefaultStatusCheckDelay
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:         deps.Repo,
		tx:           deps.Tx,
		outbox:       deps.Outbox,
		checkout:     deps.Checkout,
		locker:       deps.Locker,
		statusChecks: deps.StatusChecks,
		budgets:      deps.Budgets,
		logg:         deps.Logger,
		delay:        delay,
		fake:         deps.FakeCheckout,
		now:          now,
	}, nil
}

func (s *service) ApproveVendorOrder(ctx context.Context, input ApproveInput) (*ApproveResult, error) {
	if input.VendorOrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor order id required")
	}
	if input.OfficeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "office context missing")
	}
	if input.ApprovedBy == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	for _, item := range input.RejectedItems {
		if item.ItemID == uuid.Nil || !item.Reason.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejected items need an item id and a known reason").
				WithDetails(map[string]string{"item_id": item.ItemID.String(), "reason": item.Reason.String()})
		}
	}

	order, err := s.loadOwned(ctx, input.VendorOrderID, input.OfficeID)
	if err != nil {
		return nil, err
	}
	if done, ok := alreadyApproved(order); ok {
		return done, nil
	}
	if order.Status != enums.VendorOrderStatusPendingApproval {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "vendor order is not pending approval")
	}

	unlock, err := s.locker.LockCheckout(ctx, order.ID)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "vendor order checkout already in progress")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire checkout lock")
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logg.Warn(ctx, "failed to release checkout lock: "+err.Error())
		}
	}()

	ctx = s.logg.WithFields(ctx, map[string]any{
		"vendor_order_id": order.ID.String(),
		"office_id":       input.OfficeID.String(),
	})

	// Re-read under the lock; a concurrent approval may have finished first.
	order, err = s.loadOwned(ctx, input.VendorOrderID, input.OfficeID)
	if err != nil {
		return nil, err
	}
	if done, ok := alreadyApproved(order); ok {
		return done, nil
	}
	if order.Status != enums.VendorOrderStatusPendingApproval {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "vendor order is not pending approval")
	}

	rejected := make(map[uuid.UUID]*enums.RejectReason, len(input.RejectedItems))
	for _, item := range input.RejectedItems {
		reason := item.Reason
		rejected[item.ItemID] = &reason
	}
	known := make(map[uuid.UUID]bool, len(order.Products))
	var (
		remaining []models.VendorOrderProduct
		cart      []vendors.CartProduct
	)
	for _, item := range order.Products {
		known[item.ID] = true
		if _, drop := rejected[item.ID]; drop || item.Status == enums.OrderProductStatusRejected {
			continue
		}
		remaining = append(remaining, item)
		cart = append(cart, cartProduct(item))
	}
	for id := range rejected {
		if !known[id] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejected item does not belong to vendor order").
				WithDetails(map[string]string{"item_id": id.String()})
		}
	}

	slug := vendorSlug(order)
	result := &ApproveResult{
		VendorOrderID: order.ID,
		Status:        enums.VendorOrderStatusClosed,
		RejectedItems: len(rejected),
	}
	if len(remaining) > 0 {
		outcome, err := s.placeOrder(ctx, input, slug, cart)
		if err != nil {
			return nil, err
		}
		result.Status = enums.VendorOrderStatusOpen
		result.Detail = outcome.Detail
		externalID := outcome.OrderID
		result.ExternalOrderID = &externalID
	}

	now := s.now().UTC()
	total := decimal.Zero
	items := 0
	remainingIDs := make([]uuid.UUID, 0, len(remaining))
	for _, item := range remaining {
		total = total.Add(item.Amount())
		items += item.Quantity
		remainingIDs = append(remainingIDs, item.ID)
	}
	dueAt := now.Add(s.delay)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.RejectOrderProducts(ctx, rejected); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject order products")
		}
		if err := repo.UpdateOrderProducts(ctx, remainingIDs, map[string]any{"status": enums.OrderProductStatusProcessing}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order products")
		}
		updates := map[string]any{
			"status":       result.Status,
			"approved_by":  input.ApprovedBy,
			"approved_at":  now,
			"total_amount": total,
			"total_items":  items,
		}
		if result.ExternalOrderID != nil {
			updates["vendor_order_id"] = *result.ExternalOrderID
		}
		if err := repo.UpdateVendorOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vendor order")
		}

		data := payloads.VendorOrderApprovedEvent{
			VendorOrderID:   order.ID,
			OrderID:         order.OrderID,
			OfficeID:        input.OfficeID,
			Vendor:          slug.String(),
			ExternalOrderID: result.ExternalOrderID,
			Status:          result.Status,
			TotalAmount:     total,
			RejectedItems:   input.RejectedItems,
		}
		if result.Status == enums.VendorOrderStatusOpen {
			data.StatusCheckDueEpoch = dueAt.Unix()
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorOrderApproved,
			AggregateType: enums.AggregateVendorOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(input.ApprovedBy, input.OfficeID),
			OccurredAt:    now,
			Data:          data,
		})
	})
	if err != nil {
		if result.ExternalOrderID != nil {
			s.logg.Error(s.logg.WithVendorOrderID(ctx, *result.ExternalOrderID), "vendor order placed but approval was not saved", err)
		}
		return nil, err
	}

	if result.Status == enums.VendorOrderStatusOpen {
		if err := s.statusChecks.Schedule(ctx, order.ID.String(), dueAt); err != nil {
			s.logg.Warn(ctx, "failed to schedule vendor order status check: "+err.Error())
		}
	}
	s.recomputeBudget(ctx, input.OfficeID, order)
	s.logg.Info(ctx, "vendor order approved")
	return result, nil
}

func (s *service) placeOrder(ctx context.Context, input ApproveInput, slug vendors.Slug, cart []vendors.CartProduct) (VendorResult, error) {
	results, err := s.checkout.ConfirmOrders(ctx, input.OfficeID, map[vendors.Slug][]vendors.CartProduct{slug: cart}, input.ShippingMethod, input.Fake || s.fake)
	if err != nil {
		return VendorResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm vendor order")
	}
	outcome, ok := results[slug]
	if !ok {
		return VendorResult{}, pkgerrors.New(pkgerrors.CodeInternal, "vendor checkout returned no result").
			WithDetails(map[string]string{"vendor": slug.String()})
	}
	if outcome.Err != nil {
		s.logg.Warn(s.logg.WithVendor(ctx, slug.String()), "vendor checkout failed: "+outcome.Err.Error())
		return VendorResult{}, vendors.AsAPIError(outcome.Err)
	}
	return outcome, nil
}

func (s *service) RejectVendorOrder(ctx context.Context, input RejectInput) error {
	if input.VendorOrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor order id required")
	}
	if input.OfficeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "office context missing")
	}
	if input.RejectedBy == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "rejected reason required")
	}

	var order *models.VendorOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindVendorOrder(ctx, input.VendorOrderID)
		if err != nil {
			return notFoundOr(err, "vendor order not found", "load vendor order")
		}
		if loaded.Order == nil || loaded.Order.OfficeID != input.OfficeID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "vendor order does not belong to office")
		}
		if loaded.Status == enums.VendorOrderStatusClosed && loaded.RejectedReason != nil {
			return nil
		}
		if loaded.Status != enums.VendorOrderStatusPendingApproval {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "vendor order is not pending approval")
		}

		reasons := make(map[uuid.UUID]*enums.RejectReason, len(loaded.Products))
		for _, item := range loaded.Products {
			reasons[item.ID] = nil
		}
		if err := repo.RejectOrderProducts(ctx, reasons); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject order products")
		}
		reason := input.Reason
		if err := repo.UpdateVendorOrder(ctx, loaded.ID, map[string]any{
			"status":          enums.VendorOrderStatusClosed,
			"rejected_reason": reason,
			"approved_by":     input.RejectedBy,
			"approved_at":     s.now().UTC(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vendor order")
		}
		order = loaded

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventVendorOrderRejected,
			AggregateType: enums.AggregateVendorOrder,
			AggregateID:   loaded.ID,
			Version:       1,
			Actor:         buildActor(input.RejectedBy, input.OfficeID),
			Data: payloads.VendorOrderRejectedEvent{
				VendorOrderID: loaded.ID,
				OrderID:       loaded.OrderID,
				OfficeID:      input.OfficeID,
				Vendor:        vendorSlug(loaded).String(),
				Reason:        reason,
			},
		})
	})
	if err != nil {
		return err
	}
	if order != nil {
		s.recomputeBudget(ctx, input.OfficeID, order)
	}
	return nil
}

func (s *service) UpdateItemSpendCategory(ctx context.Context, officeID, itemID uuid.UUID, category enums.BudgetSpendType) error {
	if itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order product id required")
	}
	if !category.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown budget spend type").
			WithDetails(map[string]string{"budget_spend_type": string(category)})
	}

	var (
		previous enums.BudgetSpendType
		item     *models.VendorOrderProduct
		order    *models.VendorOrder
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		found, err := repo.FindOrderProduct(ctx, itemID)
		if err != nil {
			return notFoundOr(err, "order product not found", "load order product")
		}
		parent, err := repo.FindVendorOrder(ctx, found.VendorOrderID)
		if err != nil {
			return notFoundOr(err, "vendor order not found", "load vendor order")
		}
		if parent.Order == nil || parent.Order.OfficeID != officeID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order product does not belong to office")
		}
		if found.BudgetSpendType == category {
			return nil
		}
		if err := repo.UpdateOrderProducts(ctx, []uuid.UUID{found.ID}, map[string]any{"budget_spend_type": category}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order product")
		}
		previous, item, order = found.BudgetSpendType, found, parent
		return nil
	})
	if err != nil || item == nil {
		return err
	}
	if item.Status == enums.OrderProductStatusRejected || order.Status == enums.VendorOrderStatusRejected {
		return nil
	}

	err = s.budgets.MoveSpendCategory(ctx, officeID, order.OrderDate, item.Amount(), previous, category)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		s.logg.Debug(ctx, "no budget for order month, spend not moved")
		return nil
	}
	return err
}

func (s *service) loadOwned(ctx context.Context, vendorOrderID, officeID uuid.UUID) (*models.VendorOrder, error) {
	order, err := s.repo.FindVendorOrder(ctx, vendorOrderID)
	if err != nil {
		return nil, notFoundOr(err, "vendor order not found", "load vendor order")
	}
	if order.Order == nil || order.Order.OfficeID != officeID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor order does not belong to office")
	}
	return order, nil
}

// recomputeBudget refreshes the spend of the order month. Offices without a
// budget for that month are skipped.
func (s *service) recomputeBudget(ctx context.Context, officeID uuid.UUID, order *models.VendorOrder) {
	month := budgets.MonthOf(order.OrderDate)
	if _, err := s.budgets.Recompute(ctx, officeID, month); err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Debug(ctx, "no budget for order month "+month)
			return
		}
		s.logg.Error(ctx, "failed to recompute office budget", err)
	}
}

func alreadyApproved(order *models.VendorOrder) (*ApproveResult, bool) {
	if order.ApprovedAt == nil || order.RejectedReason != nil {
		return nil, false
	}
	switch order.Status {
	case enums.VendorOrderStatusOpen, enums.VendorOrderStatusProcessing, enums.VendorOrderStatusClosed:
		return &ApproveResult{
			VendorOrderID:   order.ID,
			Status:          order.Status,
			ExternalOrderID: order.VendorOrderID,
		}, true
	}
	return nil, false
}

func cartProduct(item models.VendorOrderProduct) vendors.CartProduct {
	ref := vendors.ProductRef{}
	if item.Product != nil {
		ref = vendors.ProductRef{
			ProductID: item.Product.ProductID,
			URL:       item.Product.URL,
			Name:      item.Product.Name,
			Unit:      item.Product.ProductUnit,
		}
	}
	return vendors.CartProduct{Product: ref, Quantity: item.Quantity}
}

func vendorSlug(order *models.VendorOrder) vendors.Slug {
	if order.Vendor == nil {
		return ""
	}
	return vendors.Slug(order.Vendor.Slug)
}

func buildActor(userID, officeID uuid.UUID) *outbox.ActorRef {
	office := officeID
	return &outbox.ActorRef{UserID: userID, OfficeID: &office}
}

func notFoundOr(err error, notFound, dependency string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, dependency)
}

type checkoutLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCheckoutLocker guards vendor checkouts with a Redis lock per vendor order.
func NewCheckoutLocker(client *redis.Client, ttl time.Duration) (CheckoutLocker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("checkout lock ttl must be positive")
	}
	return &checkoutLocker{client: client, ttl: ttl}, nil
}

func (l *checkoutLocker) LockCheckout(ctx context.Context, vendorOrderID uuid.UUID) (func(context.Context) error, error) {
	return redis.TryLock(ctx, l.client, l.client.LockKey("checkout", vendorOrderID.String()), l.ttl)
}
