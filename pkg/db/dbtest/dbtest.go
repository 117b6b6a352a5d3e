// Package dbtest opens throwaway sqlite databases carrying the application
// schema for repository and service tests.
package dbtest

import (
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Schema mirrors the goose migrations with sqlite column types. Decimals are
// stored as TEXT so values round-trip exactly.
var Schema = []string{
	`CREATE TABLE vendors (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE offices (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE office_vendors (
		id TEXT PRIMARY KEY,
		office_id TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		username TEXT NOT NULL,
		password_sealed TEXT NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE product_categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		vendor_categories TEXT
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		vendor_id TEXT,
		product_id TEXT NOT NULL DEFAULT '',
		manufacturer_number TEXT,
		name TEXT NOT NULL,
		product_unit TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		vendor_category TEXT NOT NULL DEFAULT '',
		category_id TEXT,
		parent_id TEXT,
		price TEXT,
		special_price TEXT,
		is_special_offer BOOLEAN NOT NULL DEFAULT 0,
		product_vendor_status TEXT,
		last_price_updated DATETIME,
		price_expiration DATETIME NOT NULL,
		inventory_refs INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_products_vendor_product ON products (vendor_id, product_id) WHERE vendor_id IS NOT NULL`,
	`CREATE TABLE office_products (
		id TEXT PRIMARY KEY,
		office_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		vendor_id TEXT,
		price TEXT,
		is_inventory BOOLEAN NOT NULL DEFAULT 0,
		is_favorite BOOLEAN NOT NULL DEFAULT 0,
		last_order_date DATETIME,
		last_order_price TEXT,
		product_vendor_status TEXT,
		last_price_updated DATETIME,
		price_expiration DATETIME NOT NULL,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		office_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending_approval',
		order_date DATETIME NOT NULL,
		total_amount TEXT NOT NULL DEFAULT '0',
		total_items INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE vendor_orders (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		vendor_id TEXT NOT NULL,
		vendor_order_id TEXT,
		status TEXT NOT NULL DEFAULT 'pending_approval',
		vendor_status TEXT,
		currency TEXT NOT NULL DEFAULT 'USD',
		total_amount TEXT NOT NULL DEFAULT '0',
		total_items INTEGER NOT NULL DEFAULT 0,
		order_date DATETIME NOT NULL,
		approved_by TEXT,
		approved_at DATETIME,
		rejected_reason TEXT,
		nickname TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE vendor_order_products (
		id TEXT PRIMARY KEY,
		vendor_order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 0,
		unit_price TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'pending',
		vendor_status TEXT,
		rejected_reason TEXT,
		budget_spend_type TEXT NOT NULL DEFAULT 'dental',
		tracking_link TEXT,
		tracking_number TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE office_budgets (
		id TEXT PRIMARY KEY,
		office_id TEXT NOT NULL,
		month TEXT NOT NULL,
		dental_budget TEXT NOT NULL DEFAULT '0',
		dental_spend TEXT NOT NULL DEFAULT '0',
		office_budget TEXT NOT NULL DEFAULT '0',
		office_spend TEXT NOT NULL DEFAULT '0',
		miscellaneous_spend TEXT NOT NULL DEFAULT '0',
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (office_id, month)
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
}

// New opens an isolated in-memory database named after the test and applies Schema.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// a single connection keeps the shared in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range Schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}

// MustCreate inserts value or fails the test.
func MustCreate(t testing.TB, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}
