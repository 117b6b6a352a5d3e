package orders

import (
	"net/http"

	"github.com/angelmondragon/ordo-backend/api/controllers/officecontext"
	"github.com/angelmondragon/ordo-backend/api/responses"
	"github.com/angelmondragon/ordo-backend/api/validators"
	internalorders "github.com/angelmondragon/ordo-backend/internal/orders"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordo-backend/pkg/errors"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

const (
	vendorOrderIDParam = "vendorOrderId"
	itemIDParam        = "itemId"
)

type rejectedItemPayload struct {
	OrderProductID uuid.UUID `json:"order_product_id" validate:"required"`
	RejectedReason string    `json:"rejected_reason" validate:"required,oneof=noneed wrong expensive other"`
}

type approvePayload struct {
	IsApproved     *bool                 `json:"is_approved" validate:"required"`
	RejectedItems  []rejectedItemPayload `json:"rejected_items" validate:"max=500,dive"`
	RejectedReason string                `json:"rejected_reason" validate:"max=500"`
	ShippingMethod string                `json:"shipping_method" validate:"max=64"`
}

type spendCategoryPayload struct {
	BudgetSpendType string `json:"budget_spend_type" validate:"required,oneof=dental office miscellaneous"`
}

// RejectResult is returned when the approver declines the whole order.
type RejectResult struct {
	VendorOrderID uuid.UUID               `json:"vendor_order_id"`
	Status        enums.VendorOrderStatus `json:"status"`
}

// Approve records the approver's decision on a pending vendor order. An approval
// places the remaining items on the vendor site; is_approved=false closes the order.
func Approve(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		officeID, err := officecontext.ResolveOfficeID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		userID, err := officecontext.ResolveUserID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		vendorOrderID, err := officecontext.ResolveURLID(r, vendorOrderIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithVendorOrderID(ctx, vendorOrderID.String())
		}

		var payload approvePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if !*payload.IsApproved {
			reason := validators.SanitizeString(payload.RejectedReason, 500)
			err := svc.RejectVendorOrder(ctx, internalorders.RejectInput{
				VendorOrderID: vendorOrderID,
				OfficeID:      officeID,
				RejectedBy:    userID,
				Reason:        reason,
			})
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			responses.WriteSuccess(w, RejectResult{VendorOrderID: vendorOrderID, Status: enums.VendorOrderStatusClosed})
			return
		}

		rejected := make([]payloads.RejectedItem, 0, len(payload.RejectedItems))
		for _, item := range payload.RejectedItems {
			rejected = append(rejected, payloads.RejectedItem{
				ItemID: item.OrderProductID,
				Reason: enums.RejectReason(item.RejectedReason),
			})
		}

		result, err := svc.ApproveVendorOrder(ctx, internalorders.ApproveInput{
			VendorOrderID:  vendorOrderID,
			OfficeID:       officeID,
			ApprovedBy:     userID,
			RejectedItems:  rejected,
			ShippingMethod: validators.SanitizeString(payload.ShippingMethod, 64),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SpendCategory moves an order item to another budget bucket.
func SpendCategory(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		officeID, err := officecontext.ResolveOfficeID(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		itemID, err := officecontext.ResolveURLID(r, itemIDParam)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload spendCategoryPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		category := enums.BudgetSpendType(payload.BudgetSpendType)
		if err := svc.UpdateItemSpendCategory(ctx, officeID, itemID, category); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"order_product_id":  itemID,
			"budget_spend_type": category,
		})
	}
}
