package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/pkg/db/models"
)

const sandboxSlug = "sandbox"

// Sealer protects vendor passwords before they are stored.
type Sealer interface {
	Seal(plaintext string) (string, error)
}

// SandboxSeed describes the demo office linked to the sandbox vendor.
type SandboxSeed struct {
	OfficeName string
	Username   string
	Password   string
}

// SeedSandbox creates the sandbox vendor row, a demo office and its sandbox
// account. Running it again reuses the vendor and creates another office.
func SeedSandbox(ctx context.Context, conn *gorm.DB, sealer Sealer, seed SandboxSeed) (uuid.UUID, error) {
	if sealer == nil {
		return uuid.Nil, fmt.Errorf("sealer required")
	}
	if strings.TrimSpace(seed.Username) == "" || seed.Password == "" {
		return uuid.Nil, fmt.Errorf("sandbox username and password required")
	}
	name := strings.TrimSpace(seed.OfficeName)
	if name == "" {
		name = "Sandbox Dental"
	}
	sealed, err := sealer.Seal(seed.Password)
	if err != nil {
		return uuid.Nil, fmt.Errorf("seal sandbox password: %w", err)
	}

	var officeID uuid.UUID
	err = conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vendor := models.Vendor{Slug: sandboxSlug, Name: "Sandbox"}
		if err := tx.Where("slug = ?", sandboxSlug).FirstOrCreate(&vendor).Error; err != nil {
			return fmt.Errorf("upsert sandbox vendor: %w", err)
		}
		office := models.Office{Name: name}
		if err := tx.Create(&office).Error; err != nil {
			return fmt.Errorf("create office: %w", err)
		}
		account := models.OfficeVendor{
			OfficeID:       office.ID,
			VendorID:       vendor.ID,
			Username:       strings.TrimSpace(seed.Username),
			PasswordSealed: sealed,
		}
		if err := tx.Create(&account).Error; err != nil {
			return fmt.Errorf("link sandbox vendor: %w", err)
		}
		officeID = office.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return officeID, nil
}
