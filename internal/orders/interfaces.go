package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	"github.com/angelmondragon/ordo-backend/pkg/outbox"
)

// Repository defines persistence operations for vendor orders and the
// credentials used to place them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindVendorOrder(ctx context.Context, id uuid.UUID) (*models.VendorOrder, error)
	UpdateVendorOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateOrderProducts(ctx context.Context, ids []uuid.UUID, updates map[string]any) error
	RejectOrderProducts(ctx context.Context, reasons map[uuid.UUID]*enums.RejectReason) error
	FindOrderProduct(ctx context.Context, id uuid.UUID) (*models.VendorOrderProduct, error)
	FindOfficeVendors(ctx context.Context, officeID uuid.UUID, slugs []string) ([]models.OfficeVendor, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FirstVendorAccount(ctx context.Context, slug string, officeID *uuid.UUID) (*models.OfficeVendor, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CredentialOpener unseals stored vendor passwords.
type CredentialOpener interface {
	Open(sealed string) (string, error)
}

// CheckoutLocker grants at most one concurrent checkout per vendor order.
type CheckoutLocker interface {
	LockCheckout(ctx context.Context, vendorOrderID uuid.UUID) (func(context.Context) error, error)
}

// StatusCheckScheduler enqueues a vendor order for a later status check.
type StatusCheckScheduler interface {
	Schedule(ctx context.Context, member string, at time.Time) error
}

type statusCheckQueue interface {
	StatusCheckScheduler
	Due(ctx context.Context, now time.Time, limit int64) ([]string, error)
	Ack(ctx context.Context, member string) (bool, error)
}

type budgetKeeper interface {
	Recompute(ctx context.Context, officeID uuid.UUID, month string) (*models.OfficeBudget, error)
	MoveSpendCategory(ctx context.Context, officeID uuid.UUID, at time.Time, amount decimal.Decimal, from, to enums.BudgetSpendType) error
}

type vendorCheckout interface {
	ConfirmOrders(ctx context.Context, officeID uuid.UUID, cart map[vendors.Slug][]vendors.CartProduct, shippingMethod string, fake bool) (map[vendors.Slug]VendorResult, error)
}

type clientProvider interface {
	ClientsFor(ctx context.Context, officeID uuid.UUID, slugs []vendors.Slug) (map[vendors.Slug]vendors.Client, error)
}
