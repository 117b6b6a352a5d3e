package checkout

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordo-backend/api/controllers/officecontext"
	"github.com/angelmondragon/ordo-backend/api/responses"
	"github.com/angelmondragon/ordo-backend/api/validators"
	"github.com/angelmondragon/ordo-backend/internal/orders"
	"github.com/angelmondragon/ordo-backend/internal/vendors"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/types"
)

// CartPreparer fills vendor carts and returns each vendor's order review.
type CartPreparer interface {
	CreateOrders(ctx context.Context, officeID uuid.UUID, cart map[vendors.Slug][]vendors.CartProduct, shippingMethod string) (map[vendors.Slug]orders.VendorResult, error)
}

type cartItemPayload struct {
	ProductID string `json:"product_id" validate:"required,max=128"`
	URL       string `json:"url" validate:"omitempty,url"`
	Name      string `json:"name" validate:"max=512"`
	Unit      string `json:"unit" validate:"max=64"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=10000"`
}

type previewPayload struct {
	Vendors        map[string][]cartItemPayload `json:"vendors" validate:"required,min=1,dive,keys,required,endkeys,min=1,dive"`
	ShippingMethod string                       `json:"shipping_method" validate:"max=64"`
}

// VendorPreview is one vendor's slot in the preview response, keyed by vendor slug.
type VendorPreview struct {
	Detail *vendors.VendorOrderDetail `json:"detail,omitempty"`
	Error  *types.APIError            `json:"error,omitempty"`
}

// Preview logs into every vendor in the cart, fills the carts and returns the
// order review of each. Nothing is placed.
func Preview(svc CartPreparer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		officeID, err := officecontext.ResolveOfficeID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload previewPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		cart, err := buildCart(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		results, err := svc.CreateOrders(ctx, officeID, cart, validators.SanitizeString(payload.ShippingMethod, 64))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, previewsFrom(results))
	}
}

func buildCart(payload previewPayload) (map[vendors.Slug][]vendors.CartProduct, error) {
	cart := make(map[vendors.Slug][]vendors.CartProduct, len(payload.Vendors))
	for raw, items := range payload.Vendors {
		slug, err := vendors.ParseSlug(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown vendor").
				WithDetails(map[string]any{"vendor": raw})
		}
		products := make([]vendors.CartProduct, 0, len(items))
		for _, item := range items {
			products = append(products, vendors.CartProduct{
				Product: vendors.ProductRef{
					ProductID: validators.SanitizeString(item.ProductID, 128),
					URL:       item.URL,
					Name:      validators.SanitizeString(item.Name, 512),
					Unit:      validators.SanitizeString(item.Unit, 64),
				},
				Quantity: item.Quantity,
			})
		}
		cart[slug] = products
	}
	return cart, nil
}

func previewsFrom(results map[vendors.Slug]orders.VendorResult) map[string]VendorPreview {
	out := make(map[string]VendorPreview, len(results))
	for slug, result := range results {
		preview := VendorPreview{Detail: result.Detail}
		if result.Err != nil {
			apiErr := responses.PublicError(vendors.AsAPIError(result.Err))
			preview = VendorPreview{Error: &apiErr}
		}
		out[slug.String()] = preview
	}
	return out
}
