package models

import (
	"time"

	"github.com/google/uuid"
)

// Vendor is an external dental-supply website orders can be placed on.
type Vendor struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;not null"`
	URL       string    `gorm:"column:url"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Office is the tenant that links vendor credentials and places orders.
type Office struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// OfficeVendor links an office to a vendor account. PasswordSealed is never
// stored in clear text; see pkg/security.
type OfficeVendor struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OfficeID       uuid.UUID `gorm:"column:office_id;type:uuid;not null"`
	VendorID       uuid.UUID `gorm:"column:vendor_id;type:uuid;not null"`
	Vendor         *Vendor   `gorm:"foreignKey:VendorID"`
	Username       string    `gorm:"column:username;not null"`
	PasswordSealed string    `gorm:"column:password_sealed;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
