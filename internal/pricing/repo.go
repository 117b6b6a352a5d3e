package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
)

// Target is one row whose price needs refreshing: a vendor listing or, in
// office mode, an office's view of it.
type Target struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Office    bool
	Ref       vendors.ProductRef
	Inventory bool
	Status    *enums.ProductVendorStatus
}

// Store loads due targets and writes refreshed prices back.
type Store interface {
	DueProducts(ctx context.Context, vendorID uuid.UUID, now time.Time, limit int) ([]Target, error)
	DueOfficeProducts(ctx context.Context, officeID, vendorID uuid.UUID, now time.Time, limit int) ([]Target, error)
	ApplyPrice(ctx context.Context, target Target, info vendors.PriceInfo, now, expiration time.Time) error
	MarkStatus(ctx context.Context, target Target, status enums.ProductVendorStatus, now, expiration time.Time) error
}

// Repository is the gorm backed Store.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

const notExhausted = "(product_vendor_status IS NULL OR product_vendor_status <> ?)"

func (r *Repository) DueProducts(ctx context.Context, vendorID uuid.UUID, now time.Time, limit int) ([]Target, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND price_expiration < ?", vendorID, now).
		Where(notExhausted, enums.ProductVendorStatusExhausted).
		Order("inventory_refs DESC").
		Order("price_expiration ASC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(products))
	for _, p := range products {
		targets = append(targets, Target{
			ID:        p.ID,
			ProductID: p.ID,
			Ref:       refOf(p),
			Inventory: p.InventoryRefs > 0,
			Status:    p.ProductVendorStatus,
		})
	}
	return targets, nil
}

func (r *Repository) DueOfficeProducts(ctx context.Context, officeID, vendorID uuid.UUID, now time.Time, limit int) ([]Target, error) {
	var rows []models.OfficeProduct
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("office_id = ? AND vendor_id = ? AND price_expiration < ?", officeID, vendorID, now).
		Where(notExhausted, enums.ProductVendorStatusExhausted).
		Order("is_inventory DESC").
		Order("price_expiration ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	targets := make([]Target, 0, len(rows))
	for _, op := range rows {
		if op.Product == nil {
			continue
		}
		targets = append(targets, Target{
			ID:        op.ID,
			ProductID: op.ProductID,
			Office:    true,
			Ref:       refOf(*op.Product),
			Inventory: op.IsInventory,
			Status:    op.ProductVendorStatus,
		})
	}
	return targets, nil
}

// ApplyPrice stores a fetched price. A listing update fans out to every
// office product referencing it.
func (r *Repository) ApplyPrice(ctx context.Context, target Target, info vendors.PriceInfo, now, expiration time.Time) error {
	price := info.Price
	status := info.VendorStatus
	officeUpdates := map[string]any{
		"price":                 price,
		"product_vendor_status": status,
		"last_price_updated":    now,
		"price_expiration":      expiration,
	}
	if target.Office {
		return r.db.WithContext(ctx).Model(&models.OfficeProduct{}).
			Where("id = ?", target.ID).
			Updates(officeUpdates).Error
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Product{}).
			Where("id = ?", target.ID).
			Updates(map[string]any{
				"price":                 price,
				"special_price":         info.SpecialPrice,
				"is_special_offer":      info.IsSpecialOffer,
				"product_vendor_status": status,
				"last_price_updated":    now,
				"price_expiration":      expiration,
			}).Error
		if err != nil {
			return err
		}
		return tx.Model(&models.OfficeProduct{}).
			Where("product_id = ?", target.ProductID).
			Updates(officeUpdates).Error
	})
}

// MarkStatus records a status without touching the price. A listing mark
// fans out to every office product referencing it, like ApplyPrice.
func (r *Repository) MarkStatus(ctx context.Context, target Target, status enums.ProductVendorStatus, now, expiration time.Time) error {
	updates := map[string]any{
		"product_vendor_status": status,
		"last_price_updated":    now,
		"price_expiration":      expiration,
	}
	if target.Office {
		return r.db.WithContext(ctx).Model(&models.OfficeProduct{}).
			Where("id = ?", target.ID).
			Updates(updates).Error
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("id = ?", target.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&models.OfficeProduct{}).
			Where("product_id = ?", target.ProductID).
			Updates(updates).Error
	})
}

func refOf(p models.Product) vendors.ProductRef {
	return vendors.ProductRef{
		ProductID: p.ProductID,
		URL:       p.URL,
		Name:      p.Name,
		Unit:      p.ProductUnit,
	}
}
