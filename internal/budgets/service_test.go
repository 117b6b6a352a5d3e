package budgets

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/pkg/db"
	"github.com/angelmondragon/ordo-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.New(t)
	svc, err := NewService(NewRepository(conn), db.Wrap(conn), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return svc, conn
}

func seedBudget(t *testing.T, conn *gorm.DB, officeID uuid.UUID, month string) models.OfficeBudget {
	t.Helper()
	budget := models.OfficeBudget{
		OfficeID:           officeID,
		Month:              month,
		DentalBudget:       dec("1000"),
		OfficeBudget:       dec("250"),
		DentalSpend:        decimal.Zero,
		OfficeSpend:        decimal.Zero,
		MiscellaneousSpend: decimal.Zero,
	}
	dbtest.MustCreate(t, conn, &budget)
	return budget
}

type orderLine struct {
	qty       int
	price     string
	spendType enums.BudgetSpendType
	status    enums.OrderProductStatus
}

func seedVendorOrder(t *testing.T, conn *gorm.DB, officeID uuid.UUID, at time.Time, status enums.VendorOrderStatus, lines ...orderLine) models.VendorOrder {
	t.Helper()
	order := models.Order{OfficeID: officeID, Status: status, OrderDate: at, TotalAmount: decimal.Zero}
	dbtest.MustCreate(t, conn, &order)
	vo := models.VendorOrder{OrderID: order.ID, VendorID: uuid.New(), Status: status, OrderDate: at, TotalAmount: decimal.Zero, Currency: enums.CurrencyUSD}
	dbtest.MustCreate(t, conn, &vo)
	for _, line := range lines {
		item := models.VendorOrderProduct{
			VendorOrderID:   vo.ID,
			ProductID:       uuid.New(),
			Quantity:        line.qty,
			UnitPrice:       dec(line.price),
			Status:          line.status,
			BudgetSpendType: line.spendType,
		}
		dbtest.MustCreate(t, conn, &item)
	}
	return vo
}

func TestRecomputeSumsAcceptedItems(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	officeID := uuid.New()
	seedBudget(t, conn, officeID, "2026-03")
	march := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	seedVendorOrder(t, conn, officeID, march, enums.VendorOrderStatusOpen,
		orderLine{qty: 3, price: "10.10", spendType: enums.BudgetSpendDental, status: enums.OrderProductStatusPending},
		orderLine{qty: 1, price: "4.99", spendType: enums.BudgetSpendOffice, status: enums.OrderProductStatusShipped},
		orderLine{qty: 2, price: "50.00", spendType: enums.BudgetSpendDental, status: enums.OrderProductStatusRejected},
	)
	seedVendorOrder(t, conn, officeID, march, enums.VendorOrderStatusClosed,
		orderLine{qty: 1, price: "45.00", spendType: enums.BudgetSpendOffice, status: enums.OrderProductStatusCancelled},
	)
	seedVendorOrder(t, conn, officeID, march, enums.VendorOrderStatusRejected,
		orderLine{qty: 1, price: "99.00", spendType: enums.BudgetSpendDental, status: enums.OrderProductStatusPending},
	)
	seedVendorOrder(t, conn, officeID, march.AddDate(0, 1, 0), enums.VendorOrderStatusOpen,
		orderLine{qty: 1, price: "77.00", spendType: enums.BudgetSpendDental, status: enums.OrderProductStatusPending},
	)
	seedVendorOrder(t, conn, uuid.New(), march, enums.VendorOrderStatusOpen,
		orderLine{qty: 1, price: "12.00", spendType: enums.BudgetSpendMiscellaneous, status: enums.OrderProductStatusPending},
	)

	budget, err := svc.Recompute(ctx, officeID, "2026-03")
	require.NoError(t, err)
	assert.True(t, dec("30.30").Equal(budget.DentalSpend), budget.DentalSpend.String())
	assert.True(t, dec("4.99").Equal(budget.OfficeSpend), budget.OfficeSpend.String())
	assert.True(t, budget.MiscellaneousSpend.IsZero())

	stored, err := svc.Get(ctx, officeID, "2026-03")
	require.NoError(t, err)
	assert.True(t, dec("30.30").Equal(stored.DentalSpend))
}

func TestRecomputeMissingBudget(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Recompute(context.Background(), uuid.New(), "2026-03")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Recompute(context.Background(), uuid.New(), "March")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMoveSpendCategory(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	officeID := uuid.New()
	budget := seedBudget(t, conn, officeID, "2026-03")
	require.NoError(t, conn.Model(&budget).Update("dental_spend", dec("40.00")).Error)

	at := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.MoveSpendCategory(ctx, officeID, at, dec("15.50"), enums.BudgetSpendDental, enums.BudgetSpendOffice))

	stored, err := svc.Get(ctx, officeID, "2026-03")
	require.NoError(t, err)
	assert.True(t, dec("24.50").Equal(stored.DentalSpend))
	assert.True(t, dec("15.50").Equal(stored.OfficeSpend))

	err = svc.MoveSpendCategory(ctx, officeID, at, dec("1"), enums.BudgetSpendType("food"), enums.BudgetSpendOffice)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	err = svc.MoveSpendCategory(ctx, officeID, at.AddDate(0, 2, 0), dec("1"), enums.BudgetSpendDental, enums.BudgetSpendOffice)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRollOverCopiesBudgets(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	first := uuid.New()
	second := uuid.New()
	seedBudget(t, conn, first, "2026-02")
	seedBudget(t, conn, second, "2026-02")
	seedBudget(t, conn, second, "2026-03")

	created, err := svc.RollOver(ctx, time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	rolled, err := svc.Get(ctx, first, "2026-03")
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(rolled.DentalBudget))
	assert.True(t, rolled.DentalSpend.IsZero())

	again, err := svc.RollOver(ctx, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, again)
}

func TestMonthHelpers(t *testing.T) {
	assert.Equal(t, "2026-12", MonthOf(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)))
	start, err := ParseMonth("2026-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), start)
}
