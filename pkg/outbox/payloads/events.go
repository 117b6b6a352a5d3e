package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordo-backend/pkg/enums"
)

// RejectedItem names one order line the approver declined.
type RejectedItem struct {
	ItemID uuid.UUID          `json:"item_id"`
	Reason enums.RejectReason `json:"reason"`
}

// VendorOrderApprovedEvent is emitted once an approved vendor order was placed on the vendor site.
type VendorOrderApprovedEvent struct {
	VendorOrderID       uuid.UUID               `json:"vendor_order_id"`
	OrderID             uuid.UUID               `json:"order_id"`
	OfficeID            uuid.UUID               `json:"office_id"`
	Vendor              string                  `json:"vendor"`
	ExternalOrderID     *string                 `json:"external_order_id,omitempty"`
	Status              enums.VendorOrderStatus `json:"status"`
	TotalAmount         decimal.Decimal         `json:"total_amount"`
	RejectedItems       []RejectedItem          `json:"rejected_items,omitempty"`
	StatusCheckDueEpoch int64                   `json:"status_check_due_epoch,omitempty"`
}

// VendorOrderRejectedEvent is emitted when the whole vendor order is declined.
type VendorOrderRejectedEvent struct {
	VendorOrderID uuid.UUID `json:"vendor_order_id"`
	OrderID       uuid.UUID `json:"order_id"`
	OfficeID      uuid.UUID `json:"office_id"`
	Vendor        string    `json:"vendor"`
	Reason        string    `json:"reason"`
}

// VendorOrderStatusChangedEvent reports a reconciliation against the vendor's order history.
type VendorOrderStatusChangedEvent struct {
	VendorOrderID uuid.UUID               `json:"vendor_order_id"`
	OfficeID      uuid.UUID               `json:"office_id"`
	Vendor        string                  `json:"vendor"`
	From          enums.VendorOrderStatus `json:"from"`
	To            enums.VendorOrderStatus `json:"to"`
	VendorStatus  string                  `json:"vendor_status"`
}

// ProductsGroupedEvent summarises one grouping run over a category.
type ProductsGroupedEvent struct {
	Category       string      `json:"category"`
	Clusters       int         `json:"clusters"`
	ParentsCreated int         `json:"parents_created"`
	ParentsMerged  int         `json:"parents_merged"`
	ParentIDs      []uuid.UUID `json:"parent_ids,omitempty"`
}
