// Package vendors defines the contract every vendor site adapter fulfils and
// the vendor-agnostic flows built on top of it.
package vendors

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordo-backend/pkg/enums"
)

// Slug identifies a vendor site. It matches vendors.slug.
type Slug string

const (
	SlugNet32       Slug = "net_32"
	SlugHenrySchein Slug = "henry_schein"
	SlugBenco       Slug = "benco"
	SlugDarby       Slug = "darby"
	SlugDentalCity  Slug = "dental_city"
	SlugPatterson   Slug = "patterson"
	SlugEdgeEndo    Slug = "edge_endo"
	SlugUltradent   Slug = "ultradent"
	SlugSandbox     Slug = "sandbox"
)

var knownSlugs = []Slug{
	SlugNet32,
	SlugHenrySchein,
	SlugBenco,
	SlugDarby,
	SlugDentalCity,
	SlugPatterson,
	SlugEdgeEndo,
	SlugUltradent,
	SlugSandbox,
}

// KnownSlugs lists every vendor site in a stable order.
func KnownSlugs() []Slug {
	out := make([]Slug, len(knownSlugs))
	copy(out, knownSlugs)
	return out
}

func (s Slug) String() string {
	return string(s)
}

// IsValid reports whether s names a known vendor site.
func (s Slug) IsValid() bool {
	for _, candidate := range knownSlugs {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSlug converts raw input into a Slug.
func ParseSlug(value string) (Slug, error) {
	for _, candidate := range knownSlugs {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("unknown vendor %q", value)
}

// Credentials are the clear-text login of one office on one vendor site.
type Credentials struct {
	Username string
	Password string
}

// ProductRef names a listing on the vendor site.
type ProductRef struct {
	ProductID string
	URL       string
	Name      string
	Unit      string
}

// PriceInfo is the price a vendor quotes for a listing.
type PriceInfo struct {
	Price          decimal.Decimal
	VendorStatus   enums.ProductVendorStatus
	IsSpecialOffer bool
	SpecialPrice   *decimal.Decimal
}

// PriceResult is the outcome for one listing of a batched price fetch.
type PriceResult struct {
	Info *PriceInfo
	Err  error
}

// SearchQuery is a keyword search on a vendor catalog.
type SearchQuery struct {
	Text     string
	Page     int
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
}

// SearchProduct is one search hit.
type SearchProduct struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	URL       string          `json:"url"`
	Unit      string          `json:"unit,omitempty"`
	Price     decimal.Decimal `json:"price"`
}

// SearchPage is one page of vendor search results.
type SearchPage struct {
	Vendor    Slug            `json:"vendor"`
	TotalSize int             `json:"total_size"`
	Page      int             `json:"page"`
	PageSize  int             `json:"page_size"`
	LastPage  bool            `json:"last_page"`
	Products  []SearchProduct `json:"products"`
}

// CartProduct is a listing and the quantity to order.
type CartProduct struct {
	Product  ProductRef
	Quantity int
}

// VendorOrderDetail is the order review a vendor shows before placing the order.
type VendorOrderDetail struct {
	Subtotal        decimal.Decimal `json:"subtotal_amount"`
	Shipping        decimal.Decimal `json:"shipping_amount"`
	Tax             decimal.Decimal `json:"tax_amount"`
	Total           decimal.Decimal `json:"total_amount"`
	PaymentMethod   string          `json:"payment_method,omitempty"`
	ShippingAddress string          `json:"shipping_address,omitempty"`
}

// Client talks to one vendor site on behalf of one office. A client is not
// safe for concurrent checkout; the orchestrator drives each vendor sequentially.
type Client interface {
	Slug() Slug
	Login(ctx context.Context) error
	GetProductsPrices(ctx context.Context, products []ProductRef) (map[string]PriceResult, error)
	SearchProducts(ctx context.Context, query SearchQuery) (*SearchPage, error)
	AddProductsToCart(ctx context.Context, products []CartProduct) error
	ClearCart(ctx context.Context) error
	RemoveProductFromCart(ctx context.Context, product ProductRef) error
	CheckoutAndReviewOrder(ctx context.Context, shippingMethod string) (*VendorOrderDetail, error)
	PlaceOrder(ctx context.Context, detail *VendorOrderDetail) (string, error)
}

// VendorOrderStatus is what a vendor reports for one placed order.
type VendorOrderStatus struct {
	VendorOrderID string
	Status        string
	Delivered     bool
	Cancelled     bool
	UpdatedAt     time.Time
}

// OrderLister is implemented by adapters that can read the office's order
// history on the vendor site.
type OrderLister interface {
	ListOrders(ctx context.Context, since time.Time) ([]VendorOrderStatus, error)
}
