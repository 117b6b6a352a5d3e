package sandbox_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/internal/vendors/sandbox"
	"github.com/angelmondragon/ordo-backend/pkg/config"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	"github.com/angelmondragon/ordo-backend/pkg/httpsession"
)

func newStorefront(t *testing.T) (*sandbox.Site, string, *httpsession.Session) {
	t.Helper()
	site := sandbox.NewSite()
	srv := httptest.NewServer(site.Handler())
	t.Cleanup(srv.Close)
	session, err := httpsession.New(config.VendorsConfig{HTTPTimeout: 5 * time.Second, UserAgent: "ordo-test"})
	require.NoError(t, err)
	t.Cleanup(session.Close)
	return site, srv.URL, session
}

func TestWebClientLogin(t *testing.T) {
	_, siteURL, session := newStorefront(t)
	ctx := context.Background()

	rejected, err := sandbox.NewWebClient(vendors.SlugSandbox, vendors.Credentials{Username: "u", Password: sandbox.RejectedPassword}, session, siteURL)
	require.NoError(t, err)
	assert.ErrorIs(t, rejected.Login(ctx), vendors.ErrAuthenticationFailed)

	client, err := sandbox.NewWebClient(vendors.SlugSandbox, vendors.Credentials{Username: "u", Password: "p"}, session, siteURL)
	require.NoError(t, err)
	require.NoError(t, client.Login(ctx))
}

func TestWebClientCartRequiresLogin(t *testing.T) {
	_, siteURL, session := newStorefront(t)
	client, err := sandbox.NewWebClient(vendors.SlugSandbox, vendors.Credentials{Username: "u", Password: "p"}, session, siteURL)
	require.NoError(t, err)

	err = client.ClearCart(context.Background())
	assert.ErrorIs(t, err, vendors.ErrAuthenticationFailed)
}

func TestWebClientPrices(t *testing.T) {
	_, siteURL, session := newStorefront(t)
	client, err := sandbox.NewWebClient(vendors.SlugSandbox, vendors.Credentials{Username: "u", Password: "p"}, session, siteURL)
	require.NoError(t, err)

	prices, err := client.GetProductsPrices(context.Background(), []vendors.ProductRef{
		{ProductID: "SBX-100"},
		{ProductID: "SBX-900"},
		{ProductID: "NOPE"},
	})
	require.NoError(t, err)
	require.Len(t, prices, 3)

	require.NotNil(t, prices["SBX-100"].Info)
	assert.True(t, prices["SBX-100"].Info.Price.Equal(decimal.RequireFromString("62.50")))
	assert.Equal(t, enums.ProductVendorStatusActive, prices["SBX-100"].Info.VendorStatus)

	require.NotNil(t, prices["SBX-900"].Info)
	assert.Equal(t, enums.ProductVendorStatusDiscontinued, prices["SBX-900"].Info.VendorStatus)

	assert.Nil(t, prices["NOPE"].Info)
	assert.ErrorIs(t, prices["NOPE"].Err, vendors.ErrProductNotFound)
}

func TestWebClientSearchAll(t *testing.T) {
	_, siteURL, session := newStorefront(t)
	client, err := sandbox.NewWebClient(vendors.SlugSandbox, vendors.Credentials{Username: "u", Password: "p"}, session, siteURL)
	require.NoError(t, err)

	page, err := vendors.SearchAll(context.Background(), client, vendors.SearchQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Products, len(sandbox.DefaultCatalog()))
	assert.True(t, page.LastPage)
	assert.Equal(t, 2, page.Page)
	assert.NotEmpty(t, page.Products[0].URL)

	ceiling := decimal.RequireFromString("10")
	cheap, err := client.SearchProducts(context.Background(), vendors.SearchQuery{Text: "cotton", MaxPrice: &ceiling})
	require.NoError(t, err)
	require.Len(t, cheap.Products, 2)
	assert.Equal(t, "SBX-300", cheap.Products[0].ProductID)
}

func TestWebClientOrderRoundTrip(t *testing.T) {
	site, siteURL, session := newStorefront(t)
	ctx := context.Background()
	creds := vendors.Credentials{Username: "office-1", Password: "p"}
	products := []vendors.CartProduct{
		{Product: vendors.ProductRef{ProductID: "SBX-100"}, Quantity: 2},
		{Product: vendors.ProductRef{ProductID: "SBX-200"}, Quantity: 1},
	}

	client, err := sandbox.NewWebClient(vendors.SlugBenco, creds, session, siteURL)
	require.NoError(t, err)
	detail, orderID, err := vendors.ConfirmOrder(ctx, client, products, "", false)
	require.NoError(t, err)
	assert.Equal(t, "BENCO-000001", orderID)
	assert.True(t, detail.Subtotal.Equal(decimal.RequireFromString("137.99")))
	assert.True(t, detail.Shipping.IsZero())
	assert.True(t, detail.Total.Equal(decimal.RequireFromString("137.99")))

	account := site.Account(vendors.SlugBenco, "office-1")
	require.NotNil(t, account)
	assert.Empty(t, account.Cart())
	require.True(t, account.Deliver(orderID))

	// A fresh login sees the same account history.
	again, err := sandbox.NewWebClient(vendors.SlugBenco, creds, session, siteURL)
	require.NoError(t, err)
	require.NoError(t, again.Login(ctx))
	history, err := again.ListOrders(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, orderID, history[0].VendorOrderID)
	assert.True(t, history[0].Delivered)
	assert.False(t, history[0].Cancelled)
	assert.False(t, history[0].UpdatedAt.IsZero())
}

func TestWebClientAddUnknownProduct(t *testing.T) {
	_, siteURL, session := newStorefront(t)
	ctx := context.Background()
	client, err := sandbox.NewWebClient(vendors.SlugSandbox, vendors.Credentials{Username: "u", Password: "p"}, session, siteURL)
	require.NoError(t, err)
	require.NoError(t, client.Login(ctx))

	err = client.AddProductsToCart(ctx, []vendors.CartProduct{{Product: vendors.ProductRef{ProductID: "NOPE"}, Quantity: 1}})
	assert.ErrorIs(t, err, vendors.ErrProductNotFound)

	_, err = client.CheckoutAndReviewOrder(ctx, "")
	assert.ErrorIs(t, err, vendors.ErrVendorSite)
}

func TestRegisterWithSiteBuildsWebClients(t *testing.T) {
	_, siteURL, session := newStorefront(t)
	reg := vendors.NewRegistry()
	require.NoError(t, sandbox.Register(reg, siteURL, vendors.SlugDarby))

	client, err := reg.Make(vendors.SlugDarby, vendors.Credentials{Username: "u", Password: "p"}, session)
	require.NoError(t, err)
	web, ok := client.(*sandbox.WebClient)
	require.True(t, ok)
	assert.Equal(t, vendors.SlugDarby, web.Slug())
	require.NoError(t, web.Login(context.Background()))

	_, err = reg.Make(vendors.SlugSandbox, vendors.Credentials{Username: "u", Password: "p"}, nil)
	assert.Error(t, err)
}
