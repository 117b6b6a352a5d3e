package pricing

import (
	"time"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
)

const day = 24 * time.Hour

// VendorParams tune how one vendor's prices are refreshed.
type VendorParams struct {
	InventoryAge time.Duration
	RegularAge   time.Duration
	RequestRate  float64
	BatchSize    int
	NeedsLogin   bool
}

// DefaultVendorParams applies to vendors missing from the table.
var DefaultVendorParams = VendorParams{
	InventoryAge: 7 * day,
	RegularAge:   14 * day,
	RequestRate:  1,
	BatchSize:    1,
	NeedsLogin:   true,
}

var vendorParams = map[vendors.Slug]VendorParams{
	vendors.SlugNet32:       {InventoryAge: day, RegularAge: 2 * day, RequestRate: 1.5, BatchSize: 1},
	vendors.SlugHenrySchein: {InventoryAge: 7 * day, RegularAge: 7 * day, RequestRate: 5, BatchSize: 20, NeedsLogin: true},
	vendors.SlugBenco:       {InventoryAge: 14 * day, RegularAge: 14 * day, RequestRate: 5, BatchSize: 20, NeedsLogin: true},
	vendors.SlugDarby:       {InventoryAge: 14 * day, RegularAge: 14 * day, RequestRate: 5, BatchSize: 1, NeedsLogin: true},
	vendors.SlugDentalCity:  {InventoryAge: 14 * day, RegularAge: 14 * day, RequestRate: 5, BatchSize: 1, NeedsLogin: true},
	vendors.SlugPatterson:   {InventoryAge: 14 * day, RegularAge: 14 * day, RequestRate: 5, BatchSize: 1, NeedsLogin: true},
	vendors.SlugEdgeEndo:    {InventoryAge: 14 * day, RegularAge: 14 * day, RequestRate: 5, BatchSize: 1, NeedsLogin: true},
	vendors.SlugUltradent:   {InventoryAge: 14 * day, RegularAge: 14 * day, RequestRate: 5, BatchSize: 1, NeedsLogin: true},
	vendors.SlugSandbox:     {InventoryAge: day, RegularAge: day, RequestRate: 20, BatchSize: 5, NeedsLogin: true},
}

// ParamsFor returns the refresh parameters of vendor.
func ParamsFor(vendor vendors.Slug) VendorParams {
	if p, ok := vendorParams[vendor]; ok {
		return p
	}
	return DefaultVendorParams
}

// Age is how long a freshly fetched price stays valid.
func (p VendorParams) Age(inventory bool) time.Duration {
	if inventory {
		return p.InventoryAge
	}
	return p.RegularAge
}
