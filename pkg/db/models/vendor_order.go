package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordo-backend/pkg/enums"
)

// Order aggregates the vendor orders created by one multi-vendor checkout.
type Order struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OfficeID     uuid.UUID               `gorm:"column:office_id;type:uuid;not null"`
	Status       enums.VendorOrderStatus `gorm:"column:status;not null;default:'pending_approval'"`
	OrderDate    time.Time               `gorm:"column:order_date;not null"`
	TotalAmount  decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null"`
	TotalItems   int                     `gorm:"column:total_items;not null;default:0"`
	VendorOrders []VendorOrder           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// VendorOrder is the part of an order fulfilled by one vendor.
type VendorOrder struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID               `gorm:"column:order_id;type:uuid;not null"`
	Order          *Order                  `gorm:"foreignKey:OrderID"`
	VendorID       uuid.UUID               `gorm:"column:vendor_id;type:uuid;not null"`
	Vendor         *Vendor                 `gorm:"foreignKey:VendorID"`
	VendorOrderID  *string                 `gorm:"column:vendor_order_id"`
	Status         enums.VendorOrderStatus `gorm:"column:status;not null;default:'pending_approval'"`
	VendorStatus   *string                 `gorm:"column:vendor_status"`
	Currency       enums.Currency          `gorm:"column:currency;not null;default:'USD'"`
	TotalAmount    decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null"`
	TotalItems     int                     `gorm:"column:total_items;not null;default:0"`
	OrderDate      time.Time               `gorm:"column:order_date;not null"`
	ApprovedBy     *uuid.UUID              `gorm:"column:approved_by;type:uuid"`
	ApprovedAt     *time.Time              `gorm:"column:approved_at"`
	RejectedReason *string                 `gorm:"column:rejected_reason"`
	Nickname       *string                 `gorm:"column:nickname"`
	Products       []VendorOrderProduct    `gorm:"foreignKey:VendorOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// VendorOrderProduct is one line of a vendor order.
type VendorOrderProduct struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	VendorOrderID   uuid.UUID                `gorm:"column:vendor_order_id;type:uuid;not null"`
	ProductID       uuid.UUID                `gorm:"column:product_id;type:uuid;not null"`
	Product         *Product                 `gorm:"foreignKey:ProductID"`
	Quantity        int                      `gorm:"column:quantity;not null;default:0"`
	UnitPrice       decimal.Decimal          `gorm:"column:unit_price;type:numeric(10,2);not null"`
	Status          enums.OrderProductStatus `gorm:"column:status;not null;default:'pending'"`
	VendorStatus    *string                  `gorm:"column:vendor_status"`
	RejectedReason  *enums.RejectReason      `gorm:"column:rejected_reason"`
	BudgetSpendType enums.BudgetSpendType    `gorm:"column:budget_spend_type;not null;default:'dental'"`
	TrackingLink    *string                  `gorm:"column:tracking_link"`
	TrackingNumber  *string                  `gorm:"column:tracking_number"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// Amount returns quantity * unit price.
func (p VendorOrderProduct) Amount() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// OfficeBudget holds one office's budget and spend for a calendar month (YYYY-MM).
type OfficeBudget struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OfficeID           uuid.UUID       `gorm:"column:office_id;type:uuid;not null"`
	Month              string          `gorm:"column:month;not null"`
	DentalBudget       decimal.Decimal `gorm:"column:dental_budget;type:numeric(12,2);not null"`
	DentalSpend        decimal.Decimal `gorm:"column:dental_spend;type:numeric(12,2);not null"`
	OfficeBudget       decimal.Decimal `gorm:"column:office_budget;type:numeric(12,2);not null"`
	OfficeSpend        decimal.Decimal `gorm:"column:office_spend;type:numeric(12,2);not null"`
	MiscellaneousSpend decimal.Decimal `gorm:"column:miscellaneous_spend;type:numeric(12,2);not null"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
