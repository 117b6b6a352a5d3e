package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVendorOrder(ctx context.Context, id uuid.UUID) (*models.VendorOrder, error) {
	var order models.VendorOrder
	err := r.db.WithContext(ctx).
		Preload("Order").
		Preload("Vendor").
		Preload("Products", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Preload("Products.Product").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateVendorOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.VendorOrder{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateOrderProducts(ctx context.Context, ids []uuid.UUID, updates map[string]any) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.VendorOrderProduct{}).
		Where("id IN ?", ids).
		Updates(updates).Error
}

func (r *repository) RejectOrderProducts(ctx context.Context, reasons map[uuid.UUID]*enums.RejectReason) error {
	for id, reason := range reasons {
		err := r.db.WithContext(ctx).
			Model(&models.VendorOrderProduct{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"status":          enums.OrderProductStatusRejected,
				"rejected_reason": reason,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) FindOrderProduct(ctx context.Context, id uuid.UUID) (*models.VendorOrderProduct, error) {
	var item models.VendorOrderProduct
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindOfficeVendors returns the office's linked vendor accounts. A nil slugs
// selects every linked vendor.
func (r *repository) FindOfficeVendors(ctx context.Context, officeID uuid.UUID, slugs []string) ([]models.OfficeVendor, error) {
	query := r.db.WithContext(ctx).
		Preload("Vendor").
		Joins("JOIN vendors ON vendors.id = office_vendors.vendor_id").
		Where("office_vendors.office_id = ?", officeID)
	if slugs != nil {
		query = query.Where("vendors.slug IN ?", slugs)
	}
	var linked []models.OfficeVendor
	err := query.Order("vendors.slug ASC").Find(&linked).Error
	return linked, err
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Vendor").
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&products).Error
	return products, err
}

// FirstVendorAccount returns any office's account on the vendor, or the given
// office's account when officeID is set.
func (r *repository) FirstVendorAccount(ctx context.Context, slug string, officeID *uuid.UUID) (*models.OfficeVendor, error) {
	query := r.db.WithContext(ctx).
		Preload("Vendor").
		Joins("JOIN vendors ON vendors.id = office_vendors.vendor_id").
		Where("vendors.slug = ?", slug)
	if officeID != nil {
		query = query.Where("office_vendors.office_id = ?", *officeID)
	}
	var account models.OfficeVendor
	if err := query.Order("office_vendors.created_at ASC").First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}
