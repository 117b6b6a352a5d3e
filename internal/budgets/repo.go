package budgets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
)

// Repository persists office budgets and reads the order items they account for.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository scoped to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Find(ctx context.Context, officeID uuid.UUID, month string) (*models.OfficeBudget, error) {
	var budget models.OfficeBudget
	err := r.db.WithContext(ctx).
		Where("office_id = ? AND month = ?", officeID, month).
		First(&budget).Error
	if err != nil {
		return nil, err
	}
	return &budget, nil
}

func (r *Repository) ListMonth(ctx context.Context, month string) ([]models.OfficeBudget, error) {
	var budgets []models.OfficeBudget
	err := r.db.WithContext(ctx).
		Where("month = ?", month).
		Order("office_id ASC").
		Find(&budgets).Error
	return budgets, err
}

func (r *Repository) Create(ctx context.Context, budget *models.OfficeBudget) error {
	return r.db.WithContext(ctx).Create(budget).Error
}

// SaveSpend writes the three spend buckets of budget.
func (r *Repository) SaveSpend(ctx context.Context, budget *models.OfficeBudget) error {
	return r.db.WithContext(ctx).Model(&models.OfficeBudget{}).
		Where("id = ?", budget.ID).
		Updates(map[string]any{
			"dental_spend":        budget.DentalSpend,
			"office_spend":        budget.OfficeSpend,
			"miscellaneous_spend": budget.MiscellaneousSpend,
		}).Error
}

// SpendByType sums quantity * unit price of the office's accepted items
// ordered in [from, to). Rejected vendor orders and rejected or cancelled items
// are left out.
func (r *Repository) SpendByType(ctx context.Context, officeID uuid.UUID, from, to time.Time) (map[enums.BudgetSpendType]decimal.Decimal, error) {
	var items []models.VendorOrderProduct
	err := r.db.WithContext(ctx).
		Joins("JOIN vendor_orders ON vendor_orders.id = vendor_order_products.vendor_order_id").
		Joins("JOIN orders ON orders.id = vendor_orders.order_id").
		Where("orders.office_id = ?", officeID).
		Where("vendor_orders.order_date >= ? AND vendor_orders.order_date < ?", from, to).
		Where("vendor_orders.status <> ?", enums.VendorOrderStatusRejected).
		Where("vendor_order_products.status NOT IN ?", []enums.OrderProductStatus{
			enums.OrderProductStatusRejected,
			enums.OrderProductStatusCancelled,
		}).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	spend := map[enums.BudgetSpendType]decimal.Decimal{}
	for _, item := range items {
		spend[item.BudgetSpendType] = spend[item.BudgetSpendType].Add(item.Amount())
	}
	return spend, nil
}
