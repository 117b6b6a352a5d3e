package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a missing primary key so inserts behave the same on Postgres and sqlite.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (v *Vendor) BeforeCreate(*gorm.DB) error             { assignID(&v.ID); return nil }
func (o *Office) BeforeCreate(*gorm.DB) error             { assignID(&o.ID); return nil }
func (o *OfficeVendor) BeforeCreate(*gorm.DB) error       { assignID(&o.ID); return nil }
func (c *ProductCategory) BeforeCreate(*gorm.DB) error    { assignID(&c.ID); return nil }
func (p *Product) BeforeCreate(*gorm.DB) error            { assignID(&p.ID); return nil }
func (p *OfficeProduct) BeforeCreate(*gorm.DB) error      { assignID(&p.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error              { assignID(&o.ID); return nil }
func (o *VendorOrder) BeforeCreate(*gorm.DB) error        { assignID(&o.ID); return nil }
func (p *VendorOrderProduct) BeforeCreate(*gorm.DB) error { assignID(&p.ID); return nil }
func (b *OfficeBudget) BeforeCreate(*gorm.DB) error       { assignID(&b.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error        { assignID(&e.ID); return nil }

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&Vendor{},
		&Office{},
		&OfficeVendor{},
		&ProductCategory{},
		&Product{},
		&OfficeProduct{},
		&Order{},
		&VendorOrder{},
		&VendorOrderProduct{},
		&OfficeBudget{},
		&OutboxEvent{},
	}
}
