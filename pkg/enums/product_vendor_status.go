package enums

import "fmt"

// ProductVendorStatus is the availability a vendor reports for one of its listings.
// Exhausted is internal: the price refresher gave up on the product.
type ProductVendorStatus string

const (
	ProductVendorStatusActive       ProductVendorStatus = "Active"
	ProductVendorStatusUnavailable  ProductVendorStatus = "Unavailable"
	ProductVendorStatusDiscontinued ProductVendorStatus = "Discontinued"
	ProductVendorStatusUnknown      ProductVendorStatus = "Unknown"
	ProductVendorStatusNetworkError ProductVendorStatus = "NetworkError"
	ProductVendorStatusExhausted    ProductVendorStatus = "Exhausted"
)

var validProductVendorStatuses = []ProductVendorStatus{
	ProductVendorStatusActive,
	ProductVendorStatusUnavailable,
	ProductVendorStatusDiscontinued,
	ProductVendorStatusUnknown,
	ProductVendorStatusNetworkError,
	ProductVendorStatusExhausted,
}

// String implements fmt.Stringer.
func (p ProductVendorStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductVendorStatus.
func (p ProductVendorStatus) IsValid() bool {
	for _, candidate := range validProductVendorStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProductVendorStatus converts raw input into a ProductVendorStatus.
func ParseProductVendorStatus(value string) (ProductVendorStatus, error) {
	for _, candidate := range validProductVendorStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product vendor status %q", value)
}
