package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/internal/vendors/sandbox"
	"github.com/angelmondragon/ordo-backend/pkg/db/dbtest"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
)

type stubClientSource struct {
	client   vendors.Client
	vendor   *models.Vendor
	err      error
	officeID *uuid.UUID
}

func (s *stubClientSource) ClientForVendor(_ context.Context, _ vendors.Slug, officeID *uuid.UUID) (vendors.Client, *models.Vendor, error) {
	s.officeID = officeID
	return s.client, s.vendor, s.err
}

func TestRunnerRefreshesSandboxCatalog(t *testing.T) {
	conn := dbtest.New(t)
	vendor := models.Vendor{Slug: vendors.SlugSandbox.String(), Name: "Sandbox"}
	dbtest.MustCreate(t, conn, &vendor)
	now := time.Now().UTC()
	stale := models.Product{VendorID: &vendor.ID, ProductID: "SBX-200", Name: "Gloves", PriceExpiration: now.Add(-time.Hour)}
	gone := models.Product{VendorID: &vendor.ID, ProductID: "SBX-999", Name: "Retired", PriceExpiration: now.Add(-time.Hour)}
	dbtest.MustCreate(t, conn, &stale)
	dbtest.MustCreate(t, conn, &gone)

	source := &stubClientSource{
		client: sandbox.New(vendors.Credentials{Username: "office", Password: "secret"}),
		vendor: &vendor,
	}
	runner, err := NewRunner(source, NewRepository(conn), testLogger(), Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	summary, err := runner.Refresh(ctx, vendors.SlugSandbox, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Enqueued)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Unavailable)
	assert.Nil(t, source.officeID)

	var refreshed models.Product
	require.NoError(t, conn.First(&refreshed, "id = ?", stale.ID).Error)
	require.NotNil(t, refreshed.Price)
	assert.True(t, decimal.RequireFromString("12.99").Equal(*refreshed.Price))
	assert.True(t, refreshed.PriceExpiration.After(now.Add(23*time.Hour)))

	var retired models.Product
	require.NoError(t, conn.First(&retired, "id = ?", gone.ID).Error)
	require.NotNil(t, retired.ProductVendorStatus)
	assert.Equal(t, enums.ProductVendorStatusUnavailable, *retired.ProductVendorStatus)
}

func TestRunnerPropagatesMissingAccount(t *testing.T) {
	source := &stubClientSource{err: vendors.Wrap(vendors.SlugBenco, "credentials", vendors.ErrUnsupportedVendor, nil)}
	runner, err := NewRunner(source, newMemoryStore(), testLogger(), Config{})
	require.NoError(t, err)

	officeID := uuid.New()
	_, err = runner.Refresh(context.Background(), vendors.SlugBenco, &officeID)
	assert.ErrorIs(t, err, vendors.ErrUnsupportedVendor)
	require.NotNil(t, source.officeID)
	assert.Equal(t, officeID, *source.officeID)
}
