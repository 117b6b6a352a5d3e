package orders

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/db"
	"github.com/angelmondragon/ordo-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/outbox"
	"github.com/angelmondragon/ordo-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/ordo-backend/pkg/redis"
)

type fakeCheckout struct {
	mu      sync.Mutex
	calls   []map[vendors.Slug][]vendors.CartProduct
	fake    []bool
	results map[vendors.Slug]VendorResult
	err     error
}

func (f *fakeCheckout) ConfirmOrders(_ context.Context, _ uuid.UUID, cart map[vendors.Slug][]vendors.CartProduct, _ string, fake bool) (map[vendors.Slug]VendorResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cart)
	f.fake = append(f.fake, fake)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeLocker struct {
	held     bool
	released int
}

func (f *fakeLocker) LockCheckout(context.Context, uuid.UUID) (func(context.Context) error, error) {
	if f.held {
		return nil, redis.ErrLockHeld
	}
	return func(context.Context) error {
		f.released++
		return nil
	}, nil
}

type scheduledCheck struct {
	member string
	at     time.Time
}

type fakeScheduler struct {
	scheduled []scheduledCheck
}

func (f *fakeScheduler) Schedule(_ context.Context, member string, at time.Time) error {
	f.scheduled = append(f.scheduled, scheduledCheck{member: member, at: at})
	return nil
}

type spendMove struct {
	amount   decimal.Decimal
	from, to enums.BudgetSpendType
}

type fakeBudgets struct {
	recomputed []string
	moves      []spendMove
	missing    bool
}

func (f *fakeBudgets) Recompute(_ context.Context, _ uuid.UUID, month string) (*models.OfficeBudget, error) {
	f.recomputed = append(f.recomputed, month)
	if f.missing {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "office budget not found")
	}
	return &models.OfficeBudget{Month: month}, nil
}

func (f *fakeBudgets) MoveSpendCategory(_ context.Context, _ uuid.UUID, _ time.Time, amount decimal.Decimal, from, to enums.BudgetSpendType) error {
	f.moves = append(f.moves, spendMove{amount: amount, from: from, to: to})
	return nil
}

type serviceFixture struct {
	svc       Service
	conn      *gorm.DB
	checkout  *fakeCheckout
	locker    *fakeLocker
	scheduler *fakeScheduler
	budgets   *fakeBudgets
	now       time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	conn := dbtest.New(t)
	logg := testLogger()
	f := &serviceFixture{
		conn:      conn,
		checkout:  &fakeCheckout{},
		locker:    &fakeLocker{},
		scheduler: &fakeScheduler{},
		budgets:   &fakeBudgets{},
		now:       time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceDeps{
		Repo:         NewRepository(conn),
		Tx:           db.Wrap(conn),
		Outbox:       outbox.NewService(outbox.NewRepository(conn), logg),
		Checkout:     f.checkout,
		Locker:       f.locker,
		StatusChecks: f.scheduler,
		Budgets:      f.budgets,
		Logger:       logg,
		Now:          func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

type seededOrder struct {
	officeID    uuid.UUID
	vendorOrder models.VendorOrder
	items       []models.VendorOrderProduct
}

func seedPendingOrder(t *testing.T, conn *gorm.DB, prices ...string) seededOrder {
	t.Helper()
	officeID := uuid.New()
	vendor := models.Vendor{Slug: vendors.SlugSandbox.String(), Name: "Sandbox"}
	dbtest.MustCreate(t, conn, &vendor)
	orderDate := time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC)
	order := models.Order{OfficeID: officeID, Status: enums.VendorOrderStatusPendingApproval, OrderDate: orderDate, TotalAmount: decimal.Zero}
	dbtest.MustCreate(t, conn, &order)
	vo := models.VendorOrder{
		OrderID:     order.ID,
		VendorID:    vendor.ID,
		Status:      enums.VendorOrderStatusPendingApproval,
		Currency:    enums.CurrencyUSD,
		TotalAmount: decimal.Zero,
		OrderDate:   orderDate,
	}
	dbtest.MustCreate(t, conn, &vo)

	seeded := seededOrder{officeID: officeID, vendorOrder: vo}
	for i, price := range prices {
		product := models.Product{
			VendorID:        &vendor.ID,
			ProductID:       fmt.Sprintf("SBX-%d", 100+i),
			Name:            "Sandbox item",
			PriceExpiration: orderDate,
		}
		dbtest.MustCreate(t, conn, &product)
		item := models.VendorOrderProduct{
			VendorOrderID:   vo.ID,
			ProductID:       product.ID,
			Quantity:        2,
			UnitPrice:       decimal.RequireFromString(price),
			Status:          enums.OrderProductStatusPending,
			BudgetSpendType: enums.BudgetSpendDental,
			CreatedAt:       orderDate.Add(time.Duration(i) * time.Minute),
		}
		dbtest.MustCreate(t, conn, &item)
		seeded.items = append(seeded.items, item)
	}
	return seeded
}

func reloadVendorOrder(t *testing.T, conn *gorm.DB, id uuid.UUID) models.VendorOrder {
	t.Helper()
	var vo models.VendorOrder
	require.NoError(t, conn.Preload("Products").First(&vo, "id = ?", id).Error)
	return vo
}

func countEvents(t *testing.T, conn *gorm.DB, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&n).Error)
	return n
}

func TestApproveVendorOrderPlacesRemainingItems(t *testing.T) {
	f := newServiceFixture(t)
	seeded := seedPendingOrder(t, f.conn, "10.00", "4.50")
	f.checkout.results = map[vendors.Slug]VendorResult{
		vendors.SlugSandbox: {OrderID: "SANDBOX-000001", Detail: &vendors.VendorOrderDetail{Total: decimal.RequireFromString("9.00")}},
	}

	result, err := f.svc.ApproveVendorOrder(context.Background(), ApproveInput{
		VendorOrderID: seeded.vendorOrder.ID,
		OfficeID:      seeded.officeID,
		ApprovedBy:    uuid.New(),
		RejectedItems: []payloads.RejectedItem{{ItemID: seeded.items[0].ID, Reason: enums.RejectReasonExpensive}},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.VendorOrderStatusOpen, result.Status)
	require.NotNil(t, result.ExternalOrderID)
	assert.Equal(t, "SANDBOX-000001", *result.ExternalOrderID)
	assert.Equal(t, 1, result.RejectedItems)

	require.Len(t, f.checkout.calls, 1)
	cart := f.checkout.calls[0][vendors.SlugSandbox]
	require.Len(t, cart, 1)
	assert.Equal(t, "SBX-101", cart[0].Product.ProductID)
	assert.Equal(t, 2, cart[0].Quantity)
	assert.Equal(t, 1, f.locker.released)

	stored := reloadVendorOrder(t, f.conn, seeded.vendorOrder.ID)
	assert.Equal(t, enums.VendorOrderStatusOpen, stored.Status)
	require.NotNil(t, stored.VendorOrderID)
	assert.Equal(t, "SANDBOX-000001", *stored.VendorOrderID)
	assert.NotNil(t, stored.ApprovedAt)
	assert.True(t, decimal.RequireFromString("9").Equal(stored.TotalAmount))
	assert.Equal(t, 2, stored.TotalItems)
	for _, item := range stored.Products {
		if item.ID == seeded.items[0].ID {
			assert.Equal(t, enums.OrderProductStatusRejected, item.Status)
			require.NotNil(t, item.RejectedReason)
			assert.Equal(t, enums.RejectReasonExpensive, *item.RejectedReason)
			continue
		}
		assert.Equal(t, enums.OrderProductStatusProcessing, item.Status)
	}

	assert.Equal(t, int64(1), countEvents(t, f.conn, enums.EventVendorOrderApproved))
	require.Len(t, f.scheduler.scheduled, 1)
	assert.Equal(t, seeded.vendorOrder.ID.String(), f.scheduler.scheduled[0].member)
	assert.Equal(t, f.now.Add(DefaultStatusCheckDelay), f.scheduler.scheduled[0].at)
	assert.Equal(t, []string{"2024-03"}, f.budgets.recomputed)
}

func TestApproveVendorOrderClosesWhenEveryItemRejected(t *testing.T) {
	f := newServiceFixture(t)
	seeded := seedPendingOrder(t, f.conn, "10.00")

	result, err := f.svc.ApproveVendorOrder(context.Background(), ApproveInput{
		VendorOrderID: seeded.vendorOrder.ID,
		OfficeID:      seeded.officeID,
		ApprovedBy:    uuid.New(),
		RejectedItems: []payloads.RejectedItem{{ItemID: seeded.items[0].ID, Reason: enums.RejectReasonNotNeeded}},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.VendorOrderStatusClosed, result.Status)
	assert.Nil(t, result.ExternalOrderID)
	assert.Empty(t, f.checkout.calls)
	assert.Empty(t, f.scheduler.scheduled)

	stored := reloadVendorOrder(t, f.conn, seeded.vendorOrder.ID)
	assert.Equal(t, enums.VendorOrderStatusClosed, stored.Status)
	assert.True(t, stored.TotalAmount.IsZero())
}

func TestApproveVendorOrderVendorFailureKeepsPending(t *testing.T) {
	f := newServiceFixture(t)
	seeded := seedPendingOrder(t, f.conn, "10.00")
	f.checkout.results = map[vendors.Slug]VendorResult{
		vendors.SlugSandbox: {Err: vendors.Wrap(vendors.SlugSandbox, "login", vendors.ErrAuthenticationFailed, nil)},
	}

	_, err := f.svc.ApproveVendorOrder(context.Background(), ApproveInput{
		VendorOrderID: seeded.vendorOrder.ID,
		OfficeID:      seeded.officeID,
		ApprovedBy:    uuid.New(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeVendorAuth))

	stored := reloadVendorOrder(t, f.conn, seeded.vendorOrder.ID)
	assert.Equal(t, enums.VendorOrderStatusPendingApproval, stored.Status)
	assert.Nil(t, stored.ApprovedAt)
	assert.Equal(t, int64(0), countEvents(t, f.conn, enums.EventVendorOrderApproved))
	assert.Empty(t, f.budgets.recomputed)
	assert.Equal(t, 1, f.locker.released)
}

func TestApproveVendorOrderHeldLockConflicts(t *testing.T) {
	f := newServiceFixture(t)
	seeded := seedPendingOrder(t, f.conn, "10.00")
	f.locker.held = true

	_, err := f.svc.ApproveVendorOrder(context.Background(), ApproveInput{
		VendorOrderID: seeded.vendorOrder.ID,
		OfficeID:      seeded.officeID,
		ApprovedBy:    uuid.New(),
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Empty(t, f.checkout.calls)
}

func TestApproveVendorOrderIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	seeded := seedPendingOrder(t, f.conn, "10.00")
	f.checkout.results = map[vendors.Slug]VendorResult{vendors.SlugSandbox: {OrderID: "SANDBOX-000001"}}
	input := ApproveInput{VendorOrderID: seeded.vendorOrder.ID, OfficeID: seeded.officeID, ApprovedBy: uuid.New()}

	_, err := f.svc.ApproveVendorOrder(context.Background(), input)
	require.NoError(t, err)
	again, err := f.svc.ApproveVendorOrder(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, enums.VendorOrderStatusOpen, again.Status)
	require.NotNil(t, again.ExternalOrderID)
	assert.Equal(t, "SANDBOX-000001", *again.ExternalOrderID)
	assert.Len(t, f.checkout.calls, 1)
	assert.Equal(t, int64(1), countEvents(t, f.conn, enums.EventVendorOrderApproved))
}

func TestApproveVendorOrderValidation(t *testing.T) {
	f := newServiceFixture(t)
	seeded := seedPendingOrder(t, f.conn, "10.00")
	ctx := context.Background()

	_, err := f.svc.ApproveVendorOrder(ctx, ApproveInput{VendorOrderID: seeded.vendorOrder.ID, OfficeID: uuid.New(), ApprovedBy: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.ApproveVendorOrder(ctx, ApproveInput{VendorOrderID: uuid.New(), OfficeID: seeded.officeID, ApprovedBy: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.ApproveVendorOrder(ctx, ApproveInput{VendorOrderID: seeded.vendorOrder.ID, OfficeID: seeded.officeID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = f.svc.ApproveVendorOrder(ctx, ApproveInput{
		VendorOrderID: seeded.vendorOrder.ID,
		OfficeID:      seeded.officeID,
		ApprovedBy:    uuid.New(),
		RejectedItems: []payloads.RejectedItem{{ItemID: uuid.New(), Reason: enums.RejectReasonOther}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.ApproveVendorOrder(ctx, ApproveInput{
		VendorOrderID: seeded.vendorOrder.ID,
		OfficeID:      seeded.officeID,
		ApprovedBy:    uuid.New(),
		RejectedItems: []payloads.RejectedItem{{ItemID: seeded.items[0].ID, Reason: "because"}},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, f.checkout.calls)
}

func TestRejectVendorOrder(t *testing.T) {
	f := newServiceFixture(t)
	seeded := seedPendingOrder(t, f.conn, "10.00", "2.00")
	input := RejectInput{
		VendorOrderID: seeded.vendorOrder.ID,
		OfficeID:      seeded.officeID,
		RejectedBy:    uuid.New(),
		Reason:        "over budget this month",
	}

	require.NoError(t, f.svc.RejectVendorOrder(context.Background(), input))
	require.NoError(t, f.svc.RejectVendorOrder(context.Background(), input))

	stored := reloadVendorOrder(t, f.conn, seeded.vendorOrder.ID)
	assert.Equal(t, enums.VendorOrderStatusClosed, stored.Status)
	require.NotNil(t, stored.RejectedReason)
	assert.Equal(t, "over budget this month", *stored.RejectedReason)
	for _, item := range stored.Products {
		assert.Equal(t, enums.OrderProductStatusRejected, item.Status)
	}
	assert.Equal(t, int64(1), countEvents(t, f.conn, enums.EventVendorOrderRejected))
	assert.Equal(t, []string{"2024-03"}, f.budgets.recomputed)

	_, err := f.svc.ApproveVendorOrder(context.Background(), ApproveInput{VendorOrderID: seeded.vendorOrder.ID, OfficeID: seeded.officeID, ApprovedBy: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestRejectVendorOrderRequiresReason(t *testing.T) {
	f := newServiceFixture(t)
	seeded := seedPendingOrder(t, f.conn, "10.00")
	err := f.svc.RejectVendorOrder(context.Background(), RejectInput{VendorOrderID: seeded.vendorOrder.ID, OfficeID: seeded.officeID, RejectedBy: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateItemSpendCategoryMovesAmount(t *testing.T) {
	f := newServiceFixture(t)
	seeded := seedPendingOrder(t, f.conn, "12.50")
	item := seeded.items[0]

	require.NoError(t, f.svc.UpdateItemSpendCategory(context.Background(), seeded.officeID, item.ID, enums.BudgetSpendOffice))
	require.Len(t, f.budgets.moves, 1)
	assert.Equal(t, "25", f.budgets.moves[0].amount.String())
	assert.Equal(t, enums.BudgetSpendDental, f.budgets.moves[0].from)
	assert.Equal(t, enums.BudgetSpendOffice, f.budgets.moves[0].to)

	var stored models.VendorOrderProduct
	require.NoError(t, f.conn.First(&stored, "id = ?", item.ID).Error)
	assert.Equal(t, enums.BudgetSpendOffice, stored.BudgetSpendType)

	require.NoError(t, f.svc.UpdateItemSpendCategory(context.Background(), seeded.officeID, item.ID, enums.BudgetSpendOffice))
	assert.Len(t, f.budgets.moves, 1)

	err := f.svc.UpdateItemSpendCategory(context.Background(), uuid.New(), item.ID, enums.BudgetSpendMiscellaneous)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	err = f.svc.UpdateItemSpendCategory(context.Background(), seeded.officeID, item.ID, "travel")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceDeps{})
	require.Error(t, err)
	_, err = NewCheckoutLocker(nil, time.Minute)
	require.Error(t, err)
}
