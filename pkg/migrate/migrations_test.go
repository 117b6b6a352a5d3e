package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/ordo-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestProductsMigrationContainsSchemas(t *testing.T) {
	content := readMigration(t, "*_create_products_table.sql")

	checks := []string{
		"CREATE TYPE product_vendor_status AS ENUM",
		"CREATE TABLE IF NOT EXISTS product_categories",
		"CREATE TABLE IF NOT EXISTS products",
		"CREATE TABLE IF NOT EXISTS office_products",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_products_vendor_product",
		"FOREIGN KEY (parent_id) REFERENCES products(id) ON DELETE SET NULL",
		"DROP TABLE IF EXISTS products",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_orders.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS vendor_orders",
		"CREATE TABLE IF NOT EXISTS vendor_order_products",
		"CREATE TABLE IF NOT EXISTS office_budgets",
		"'pending_approval', 'open', 'processing', 'closed', 'rejected'",
		"CREATE TYPE reject_reason AS ENUM ('noneed', 'wrong', 'expensive', 'other')",
		"CREATE TYPE budget_spend_type AS ENUM ('dental', 'office', 'miscellaneous')",
		"FOREIGN KEY (vendor_order_id) REFERENCES vendor_orders(id) ON DELETE CASCADE",
		"CHECK (quantity >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_office_budgets_office_month",
		"DROP TABLE IF EXISTS vendor_orders",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationMatchesEventEnums(t *testing.T) {
	content := readMigration(t, "*_create_outbox_events.sql")
	for _, sub := range []string{
		"'vendor_order_approved'",
		"'vendor_order_rejected'",
		"'vendor_order_status_changed'",
		"'products_grouped'",
		"ux_outbox_events_event_aggregate",
	} {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Vendor Nickname!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_vendor_nickname.sql") {
		t.Fatalf("unexpected file name %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
