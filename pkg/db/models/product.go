package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordo-backend/pkg/enums"
)

// OtherCategorySlug is the catch-all category matched across every vendor.
const OtherCategorySlug = "other"

// ProductCategory maps one canonical category onto each vendor's own category names.
// A nil VendorCategories behaves like the "other" bucket.
type ProductCategory struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name             string              `gorm:"column:name;not null"`
	Slug             string              `gorm:"column:slug;not null;uniqueIndex"`
	VendorCategories map[string][]string `gorm:"column:vendor_categories;type:jsonb;serializer:json"`
}

// MatchesAllVendors reports whether grouping for this category spans every vendor.
func (c ProductCategory) MatchesAllVendors() bool {
	return c.Slug == OtherCategorySlug || c.VendorCategories == nil
}

// Product is either a vendor listing (VendorID set) or a canonical parent
// (VendorID nil) grouping listings of the same physical product.
type Product struct {
	ID                  uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	VendorID            *uuid.UUID                 `gorm:"column:vendor_id;type:uuid"`
	Vendor              *Vendor                    `gorm:"foreignKey:VendorID"`
	ProductID           string                     `gorm:"column:product_id"`
	ManufacturerNumber  *string                    `gorm:"column:manufacturer_number"`
	Name                string                     `gorm:"column:name;not null"`
	ProductUnit         string                     `gorm:"column:product_unit"`
	URL                 string                     `gorm:"column:url"`
	VendorCategory      string                     `gorm:"column:vendor_category"`
	CategoryID          *uuid.UUID                 `gorm:"column:category_id;type:uuid"`
	ParentID            *uuid.UUID                 `gorm:"column:parent_id;type:uuid"`
	Price               *decimal.Decimal           `gorm:"column:price;type:numeric(10,2)"`
	SpecialPrice        *decimal.Decimal           `gorm:"column:special_price;type:numeric(10,2)"`
	IsSpecialOffer      bool                       `gorm:"column:is_special_offer;not null;default:false"`
	ProductVendorStatus *enums.ProductVendorStatus `gorm:"column:product_vendor_status"`
	LastPriceUpdated    *time.Time                 `gorm:"column:last_price_updated"`
	PriceExpiration     time.Time                  `gorm:"column:price_expiration;not null"`
	InventoryRefs       int                        `gorm:"column:inventory_refs;not null;default:0"`
	CreatedAt           time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}

// IsParent reports whether the row is a canonical parent product.
func (p Product) IsParent() bool {
	return p.VendorID == nil
}

// OfficeProduct is an office scoped view of a product with its own price state.
type OfficeProduct struct {
	ID                  uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	OfficeID            uuid.UUID                  `gorm:"column:office_id;type:uuid;not null"`
	ProductID           uuid.UUID                  `gorm:"column:product_id;type:uuid;not null"`
	Product             *Product                   `gorm:"foreignKey:ProductID"`
	VendorID            *uuid.UUID                 `gorm:"column:vendor_id;type:uuid"`
	Price               *decimal.Decimal           `gorm:"column:price;type:numeric(10,2)"`
	IsInventory         bool                       `gorm:"column:is_inventory;not null;default:false"`
	IsFavorite          bool                       `gorm:"column:is_favorite;not null;default:false"`
	LastOrderDate       *time.Time                 `gorm:"column:last_order_date"`
	LastOrderPrice      *decimal.Decimal           `gorm:"column:last_order_price;type:numeric(10,2)"`
	ProductVendorStatus *enums.ProductVendorStatus `gorm:"column:product_vendor_status"`
	LastPriceUpdated    *time.Time                 `gorm:"column:last_price_updated"`
	PriceExpiration     time.Time                  `gorm:"column:price_expiration;not null"`
	CreatedAt           time.Time                  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                  `gorm:"column:updated_at;autoUpdateTime"`
}
