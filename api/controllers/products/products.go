package products

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordo-backend/api/controllers/officecontext"
	"github.com/angelmondragon/ordo-backend/api/responses"
	"github.com/angelmondragon/ordo-backend/api/validators"
	"github.com/angelmondragon/ordo-backend/internal/orders"
	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/types"
)

const maxSearchLength = 200

// VendorCatalog is the live vendor lookup surface of the orchestrator.
type VendorCatalog interface {
	GetProductsPrices(ctx context.Context, officeID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]vendors.PriceInfo, error)
	SearchProducts(ctx context.Context, officeID uuid.UUID, query vendors.SearchQuery, slugs []vendors.Slug) (map[vendors.Slug]orders.SearchResult, error)
}

type pricesPayload struct {
	ProductIDs []uuid.UUID `json:"product_ids" validate:"required,min=1,max=200"`
}

// PriceView is the live price of one catalog product.
type PriceView struct {
	Price          decimal.Decimal           `json:"price"`
	VendorStatus   enums.ProductVendorStatus `json:"vendor_status"`
	IsSpecialOffer bool                      `json:"is_special_offer"`
	SpecialPrice   *decimal.Decimal          `json:"special_price,omitempty"`
}

// SearchView is one vendor's slot in the search response, keyed by vendor slug.
type SearchView struct {
	Page  *vendors.SearchPage `json:"page,omitempty"`
	Error *types.APIError     `json:"error,omitempty"`
}

// Prices returns live prices keyed by product id. Products whose vendor failed are absent.
func Prices(svc VendorCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor catalog unavailable"))
			return
		}

		officeID, err := officecontext.ResolveOfficeID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload pricesPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		prices, err := svc.GetProductsPrices(ctx, officeID, payload.ProductIDs)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch prices"))
			return
		}

		out := make(map[string]PriceView, len(prices))
		for id, info := range prices {
			out[id.String()] = PriceView{
				Price:          info.Price,
				VendorStatus:   info.VendorStatus,
				IsSpecialOffer: info.IsSpecialOffer,
				SpecialPrice:   info.SpecialPrice,
			}
		}
		responses.WriteSuccess(w, out)
	}
}

// Search runs a keyword search on the office's vendors.
func Search(svc VendorCatalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "vendor catalog unavailable"))
			return
		}

		officeID, err := officecontext.ResolveOfficeID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		query, slugs, err := parseSearch(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		results, err := svc.SearchProducts(ctx, officeID, query, slugs)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search vendors"))
			return
		}

		out := make(map[string]SearchView, len(results))
		for slug, result := range results {
			if result.Err != nil {
				apiErr := responses.PublicError(vendors.AsAPIError(result.Err))
				out[slug.String()] = SearchView{Error: &apiErr}
				continue
			}
			out[slug.String()] = SearchView{Page: result.Page}
		}
		responses.WriteSuccess(w, out)
	}
}

func parseSearch(r *http.Request) (vendors.SearchQuery, []vendors.Slug, error) {
	values := r.URL.Query()

	text := validators.SanitizeString(values.Get("q"), maxSearchLength)
	if text == "" {
		return vendors.SearchQuery{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "q is required")
	}
	query := vendors.SearchQuery{Text: text, Page: 1}

	var err error
	if query.MinPrice, err = parsePrice(values.Get("min_price"), "min_price"); err != nil {
		return vendors.SearchQuery{}, nil, err
	}
	if query.MaxPrice, err = parsePrice(values.Get("max_price"), "max_price"); err != nil {
		return vendors.SearchQuery{}, nil, err
	}
	if query.MinPrice != nil && query.MaxPrice != nil && query.MinPrice.GreaterThan(*query.MaxPrice) {
		return vendors.SearchQuery{}, nil, pkgerrors.New(pkgerrors.CodeValidation, "min_price must not exceed max_price")
	}

	var slugs []vendors.Slug
	if raw := strings.TrimSpace(values.Get("vendors")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			slug, err := vendors.ParseSlug(part)
			if err != nil {
				return vendors.SearchQuery{}, nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown vendor").
					WithDetails(map[string]any{"vendor": part})
			}
			slugs = append(slugs, slug)
		}
	}
	return query, slugs, nil
}

func parsePrice(raw, field string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil || value.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be a non-negative amount").
			WithDetails(map[string]any{"field": field})
	}
	return &value, nil
}
