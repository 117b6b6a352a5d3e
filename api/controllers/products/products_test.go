package products

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/ordo-backend/api/middleware"
	"github.com/angelmondragon/ordo-backend/internal/orders"
	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
)

type stubCatalog struct {
	prices   map[uuid.UUID]vendors.PriceInfo
	search   map[vendors.Slug]orders.SearchResult
	gotIDs   []uuid.UUID
	gotQuery vendors.SearchQuery
	gotSlugs []vendors.Slug
	err      error
}

func (s *stubCatalog) GetProductsPrices(ctx context.Context, officeID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]vendors.PriceInfo, error) {
	s.gotIDs = productIDs
	return s.prices, s.err
}

func (s *stubCatalog) SearchProducts(ctx context.Context, officeID uuid.UUID, query vendors.SearchQuery, slugs []vendors.Slug) (map[vendors.Slug]orders.SearchResult, error) {
	s.gotQuery = query
	s.gotSlugs = slugs
	return s.search, s.err
}

func officeRequest(method, target, body string) *http.Request {
	officeID := uuid.NewString()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(middleware.WithOfficeID(req.Context(), officeID))
}

func TestPricesKeysByProductID(t *testing.T) {
	id := uuid.New()
	special := decimal.RequireFromString("10.00")
	svc := &stubCatalog{prices: map[uuid.UUID]vendors.PriceInfo{
		id: {
			Price:          decimal.RequireFromString("12.99"),
			VendorStatus:   enums.ProductVendorStatusActive,
			IsSpecialOffer: true,
			SpecialPrice:   &special,
		},
	}}

	rec := httptest.NewRecorder()
	Prices(svc, nil).ServeHTTP(rec, officeRequest(http.MethodPost, "/prices", `{"product_ids":["`+id.String()+`","`+uuid.NewString()+`"]}`))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, svc.gotIDs, 2)

	var payload struct {
		Data map[string]struct {
			Price          string `json:"price"`
			IsSpecialOffer bool   `json:"is_special_offer"`
			SpecialPrice   string `json:"special_price"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 1)
	got := payload.Data[id.String()]
	assert.Equal(t, "12.99", got.Price)
	assert.True(t, got.IsSpecialOffer)
	assert.Equal(t, "10", got.SpecialPrice)
}

func TestPricesRequiresIDs(t *testing.T) {
	rec := httptest.NewRecorder()
	Prices(&stubCatalog{}, nil).ServeHTTP(rec, officeRequest(http.MethodPost, "/prices", `{"product_ids":[]}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPricesMapsServiceFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	svc := &stubCatalog{err: errors.New("db down")}
	Prices(svc, nil).ServeHTTP(rec, officeRequest(http.MethodPost, "/prices", `{"product_ids":["`+uuid.NewString()+`"]}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchParsesFiltersAndReportsVendorFailures(t *testing.T) {
	svc := &stubCatalog{search: map[vendors.Slug]orders.SearchResult{
		vendors.SlugDarby: {Page: &vendors.SearchPage{
			Vendor:   vendors.SlugDarby,
			Page:     1,
			LastPage: true,
			Products: []vendors.SearchProduct{{ProductID: "SBX-200", Name: "Nitrile gloves", Price: decimal.RequireFromString("12.99")}},
		}},
		vendors.SlugBenco: {Err: vendors.Wrap(vendors.SlugBenco, "search", vendors.ErrVendorSite, errors.New("503"))},
	}}

	rec := httptest.NewRecorder()
	Search(svc, nil).ServeHTTP(rec, officeRequest(http.MethodGet, "/search?q=+gloves+&min_price=5&max_price=20&vendors=darby,benco", ""))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "gloves", svc.gotQuery.Text)
	require.NotNil(t, svc.gotQuery.MinPrice)
	require.NotNil(t, svc.gotQuery.MaxPrice)
	assert.Equal(t, "5", svc.gotQuery.MinPrice.String())
	assert.Equal(t, "20", svc.gotQuery.MaxPrice.String())
	assert.Equal(t, []vendors.Slug{vendors.SlugDarby, vendors.SlugBenco}, svc.gotSlugs)

	var payload struct {
		Data map[string]struct {
			Page *struct {
				Products []struct {
					ProductID string `json:"product_id"`
				} `json:"products"`
			} `json:"page"`
			Error *struct {
				Code string `json:"code"`
			} `json:"error"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.NotNil(t, payload.Data["darby"].Page)
	assert.Len(t, payload.Data["darby"].Page.Products, 1)
	require.NotNil(t, payload.Data["benco"].Error)
	assert.Equal(t, string(pkgerrors.CodeVendorRejected), payload.Data["benco"].Error.Code)
}

func TestSearchValidation(t *testing.T) {
	cases := map[string]string{
		"missing query":  "/search",
		"bad price":      "/search?q=gloves&min_price=abc",
		"negative price": "/search?q=gloves&max_price=-1",
		"inverted range": "/search?q=gloves&min_price=20&max_price=5",
		"unknown vendor": "/search?q=gloves&vendors=acme",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Search(&stubCatalog{}, nil).ServeHTTP(rec, officeRequest(http.MethodGet, target, ""))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestSearchWithoutVendorsQueriesAll(t *testing.T) {
	svc := &stubCatalog{search: map[vendors.Slug]orders.SearchResult{}}
	rec := httptest.NewRecorder()
	Search(svc, nil).ServeHTTP(rec, officeRequest(http.MethodGet, "/search?q=gloves", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.gotSlugs)
	assert.Nil(t, svc.gotQuery.MinPrice)
}
