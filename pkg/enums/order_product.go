package enums

import "fmt"

// RejectReason records why an approver dropped an item from a vendor order.
type RejectReason string

const (
	RejectReasonNotNeeded RejectReason = "noneed"
	RejectReasonWrongItem RejectReason = "wrong"
	RejectReasonExpensive RejectReason = "expensive"
	RejectReasonOther     RejectReason = "other"
)

var validRejectReasons = []RejectReason{
	RejectReasonNotNeeded,
	RejectReasonWrongItem,
	RejectReasonExpensive,
	RejectReasonOther,
}

// String implements fmt.Stringer.
func (r RejectReason) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RejectReason.
func (r RejectReason) IsValid() bool {
	for _, candidate := range validRejectReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRejectReason converts raw input into a RejectReason.
func ParseRejectReason(value string) (RejectReason, error) {
	for _, candidate := range validRejectReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reject reason %q", value)
}

// OrderProductStatus tracks a single item inside a vendor order.
type OrderProductStatus string

const (
	OrderProductStatusPending    OrderProductStatus = "pending"
	OrderProductStatusProcessing OrderProductStatus = "processing"
	OrderProductStatusShipped    OrderProductStatus = "shipped"
	OrderProductStatusReceived   OrderProductStatus = "received"
	OrderProductStatusRejected   OrderProductStatus = "rejected"
	OrderProductStatusCancelled  OrderProductStatus = "cancelled"
)

// IsValid reports whether the value is a known OrderProductStatus.
func (s OrderProductStatus) IsValid() bool {
	switch s {
	case OrderProductStatusPending, OrderProductStatusProcessing, OrderProductStatusShipped,
		OrderProductStatusReceived, OrderProductStatusRejected, OrderProductStatusCancelled:
		return true
	}
	return false
}
