package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/pkg/db/models"
)

// Repository reads vendor listings and maintains canonical parent products.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a catalog repository to db.
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

func (r *Repository) FindCategoryBySlug(ctx context.Context, slug string) (*models.ProductCategory, error) {
	var category models.ProductCategory
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.ProductCategory, error) {
	var categories []models.ProductCategory
	err := r.db.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}

func (r *Repository) ListVendors(ctx context.Context) ([]models.Vendor, error) {
	var vendors []models.Vendor
	err := r.db.WithContext(ctx).Order("slug ASC").Find(&vendors).Error
	return vendors, err
}

func (r *Repository) FindVendorBySlug(ctx context.Context, slug string) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&vendor).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// ListVendorProducts returns one vendor's listings of a category. A nil
// vendorCategories matches on the listing's category_id; an empty non-nil
// slice selects none.
func (r *Repository) ListVendorProducts(ctx context.Context, vendorID, categoryID uuid.UUID, vendorCategories []string, includeGrouped bool) ([]models.Product, error) {
	if vendorCategories != nil && len(vendorCategories) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).Where("vendor_id = ?", vendorID)
	if vendorCategories != nil {
		query = query.Where("vendor_category IN ?", vendorCategories)
	} else {
		query = query.Where("category_id = ?", categoryID)
	}
	if !includeGrouped {
		query = query.Where("parent_id IS NULL")
	}
	var products []models.Product
	err := query.Order("product_id ASC").Find(&products).Error
	return products, err
}

// ListWithManufacturerNumber returns every vendor listing carrying a manufacturer number.
func (r *Repository) ListWithManufacturerNumber(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("vendor_id IS NOT NULL").
		Where("manufacturer_number IS NOT NULL AND manufacturer_number <> ''").
		Order("id ASC").
		Find(&products).Error
	return products, err
}

func (r *Repository) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&products).Error
	return products, err
}

// FindVendorProducts resolves vendor product ids of one vendor.
func (r *Repository) FindVendorProducts(ctx context.Context, vendorID uuid.UUID, productIDs []string) ([]models.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND product_id IN ?", vendorID, productIDs).
		Find(&products).Error
	return products, err
}

// CreateParent inserts a canonical parent; VendorID is always cleared.
func (r *Repository) CreateParent(ctx context.Context, parent *models.Product) error {
	parent.VendorID = nil
	parent.ParentID = nil
	if parent.PriceExpiration.IsZero() {
		parent.PriceExpiration = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(parent).Error
}

// RenameParent applies a non-empty name and a non-nil category to a parent.
func (r *Repository) RenameParent(ctx context.Context, id uuid.UUID, name string, categoryID *uuid.UUID) error {
	updates := map[string]any{}
	if name != "" {
		updates["name"] = name
	}
	if categoryID != nil {
		updates["category_id"] = *categoryID
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND vendor_id IS NULL", id).
		Updates(updates).Error
}

func (r *Repository) SetParent(ctx context.Context, ids []uuid.UUID, parentID uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ?", ids).
		Update("parent_id", parentID).Error
}

// MoveChildren re-parents every child of from onto to.
func (r *Repository) MoveChildren(ctx context.Context, from, to uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("parent_id = ?", from).
		Update("parent_id", to)
	return res.RowsAffected, res.Error
}

// DeleteParents removes canonical parents that no longer have children.
func (r *Repository) DeleteParents(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("id IN ? AND vendor_id IS NULL", ids).
		Where("NOT EXISTS (SELECT 1 FROM products c WHERE c.parent_id = products.id)").
		Delete(&models.Product{}).Error
}

// ListParents returns the canonical parents of a category with their children.
func (r *Repository) ListParents(ctx context.Context, categoryID uuid.UUID) ([]models.Product, map[uuid.UUID][]models.Product, error) {
	var parents []models.Product
	err := r.db.WithContext(ctx).
		Where("vendor_id IS NULL AND category_id = ?", categoryID).
		Order("id ASC").
		Find(&parents).Error
	if err != nil || len(parents) == 0 {
		return parents, nil, err
	}

	ids := make([]uuid.UUID, len(parents))
	for i, p := range parents {
		ids[i] = p.ID
	}
	var children []models.Product
	err = r.db.WithContext(ctx).
		Preload("Vendor").
		Where("parent_id IN ?", ids).
		Order("id ASC").
		Find(&children).Error
	if err != nil {
		return nil, nil, err
	}

	byParent := make(map[uuid.UUID][]models.Product, len(parents))
	for _, child := range children {
		byParent[*child.ParentID] = append(byParent[*child.ParentID], child)
	}
	return parents, byParent, nil
}
