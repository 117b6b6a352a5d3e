package enums

import "fmt"

// VendorOrderStatus tracks the approval and fulfillment lifecycle of a vendor order.
type VendorOrderStatus string

const (
	VendorOrderStatusPendingApproval VendorOrderStatus = "pending_approval"
	VendorOrderStatusOpen            VendorOrderStatus = "open"
	VendorOrderStatusProcessing      VendorOrderStatus = "processing"
	VendorOrderStatusClosed          VendorOrderStatus = "closed"
	VendorOrderStatusRejected        VendorOrderStatus = "rejected"
)

var validVendorOrderStatuses = []VendorOrderStatus{
	VendorOrderStatusPendingApproval,
	VendorOrderStatusOpen,
	VendorOrderStatusProcessing,
	VendorOrderStatusClosed,
	VendorOrderStatusRejected,
}

// String implements fmt.Stringer.
func (v VendorOrderStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VendorOrderStatus.
func (v VendorOrderStatus) IsValid() bool {
	for _, candidate := range validVendorOrderStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (v VendorOrderStatus) IsTerminal() bool {
	return v == VendorOrderStatusClosed || v == VendorOrderStatusRejected
}

// ParseVendorOrderStatus converts raw input into a VendorOrderStatus.
func ParseVendorOrderStatus(value string) (VendorOrderStatus, error) {
	for _, candidate := range validVendorOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vendor order status %q", value)
}
