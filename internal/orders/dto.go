package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	"github.com/angelmondragon/ordo-backend/pkg/outbox/payloads"
)

// VendorResult is one vendor's slot in a fan-out. Err is set instead of the
// other fields when that vendor failed.
type VendorResult struct {
	Detail  *vendors.VendorOrderDetail
	OrderID string
	Err     error
}

// SearchResult is one vendor's slot in a search fan-out.
type SearchResult struct {
	Page *vendors.SearchPage
	Err  error
}

// ApproveInput carries an approver's decision on a pending vendor order.
type ApproveInput struct {
	VendorOrderID  uuid.UUID
	OfficeID       uuid.UUID
	ApprovedBy     uuid.UUID
	RejectedItems  []payloads.RejectedItem
	ShippingMethod string
	Fake           bool
}

// ApproveResult reports what approval did to the vendor order.
type ApproveResult struct {
	VendorOrderID   uuid.UUID                  `json:"vendor_order_id"`
	Status          enums.VendorOrderStatus    `json:"status"`
	ExternalOrderID *string                    `json:"external_order_id,omitempty"`
	Detail          *vendors.VendorOrderDetail `json:"detail,omitempty"`
	RejectedItems   int                        `json:"rejected_items"`
}

// RejectInput declines a whole pending vendor order.
type RejectInput struct {
	VendorOrderID uuid.UUID
	OfficeID      uuid.UUID
	RejectedBy    uuid.UUID
	Reason        string
}
