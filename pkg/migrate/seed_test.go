package migrate_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/angelmondragon/ordo-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/migrate"
)

type prefixSealer struct {
	err error
}

func (s prefixSealer) Seal(plaintext string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "sealed:" + plaintext, nil
}

func TestSeedSandboxLinksOffice(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()

	first, err := migrate.SeedSandbox(ctx, conn, prefixSealer{}, migrate.SandboxSeed{Username: "demo", Password: "demo-pass"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	second, err := migrate.SeedSandbox(ctx, conn, prefixSealer{}, migrate.SandboxSeed{OfficeName: "Second", Username: "demo", Password: "demo-pass"})
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if first == second {
		t.Fatal("expected a new office per seed")
	}

	var vendorCount int64
	if err := conn.Model(&models.Vendor{}).Where("slug = ?", "sandbox").Count(&vendorCount).Error; err != nil {
		t.Fatalf("count vendors: %v", err)
	}
	if vendorCount != 1 {
		t.Fatalf("expected one sandbox vendor, got %d", vendorCount)
	}

	var account models.OfficeVendor
	if err := conn.Where("office_id = ?", first).First(&account).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	if !strings.HasPrefix(account.PasswordSealed, "sealed:") {
		t.Fatalf("password stored unsealed: %q", account.PasswordSealed)
	}
}

func TestSeedSandboxRejectsMissingInput(t *testing.T) {
	conn := dbtest.New(t)
	ctx := context.Background()

	if _, err := migrate.SeedSandbox(ctx, conn, prefixSealer{}, migrate.SandboxSeed{Password: "x"}); err == nil {
		t.Fatal("expected username error")
	}
	if _, err := migrate.SeedSandbox(ctx, conn, nil, migrate.SandboxSeed{Username: "u", Password: "x"}); err == nil {
		t.Fatal("expected sealer error")
	}
	if _, err := migrate.SeedSandbox(ctx, conn, prefixSealer{err: errors.New("boom")}, migrate.SandboxSeed{Username: "u", Password: "x"}); err == nil {
		t.Fatal("expected seal error")
	}
}
