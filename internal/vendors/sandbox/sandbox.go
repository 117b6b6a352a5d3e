// Package sandbox is a fake vendor used for local development, demo offices
// and tests. Client is the in-memory store; Site serves it as an HTML
// storefront and WebClient drives that storefront over HTTP.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	"github.com/angelmondragon/ordo-backend/pkg/httpsession"
)

const pageSize = 5

// RejectedPassword always fails Login.
const RejectedPassword = "wrong-password"

var (
	freeShippingFrom = decimal.NewFromInt(100)
	flatShipping     = decimal.RequireFromString("9.95")
)

// Product is one listing of the sandbox catalog.
type Product struct {
	ProductID string
	Name      string
	Unit      string
	Price     decimal.Decimal
	Status    enums.ProductVendorStatus
}

// DefaultCatalog is served when no catalog option is given.
func DefaultCatalog() []Product {
	return []Product{
		{ProductID: "SBX-100", Name: "Articaine HCl 4% Epinephrine 1:100,000 Box of 50", Unit: "box", Price: decimal.RequireFromString("62.50")},
		{ProductID: "SBX-101", Name: "Lidocaine 2% Epinephrine 1:100,000 50 ct", Unit: "box", Price: decimal.RequireFromString("41.25")},
		{ProductID: "SBX-200", Name: "Nitrile Gloves Medium 200/bx", Unit: "box", Price: decimal.RequireFromString("12.99")},
		{ProductID: "SBX-201", Name: "Nitrile Gloves Small 200/bx", Unit: "box", Price: decimal.RequireFromString("12.99")},
		{ProductID: "SBX-300", Name: "Cotton Rolls #2 Medium 2000/bx", Unit: "box", Price: decimal.RequireFromString("8.40")},
		{ProductID: "SBX-301", Name: "Cotton Tip Applicators 6in 1000", Unit: "box", Price: decimal.RequireFromString("5.10")},
		{ProductID: "SBX-400", Name: "Prophy Paste Mint Medium 200", Unit: "jar", Price: decimal.RequireFromString("33.00")},
		{ProductID: "SBX-500", Name: "Saliva Ejectors Clear 100", Unit: "bag", Price: decimal.RequireFromString("4.75")},
		{ProductID: "SBX-900", Name: "Discontinued Alginate 1lb", Unit: "bag", Price: decimal.RequireFromString("19.00"), Status: enums.ProductVendorStatusDiscontinued},
	}
}

// Option configures a sandbox client.
type Option func(*Client)

// WithSlug makes the sandbox impersonate another vendor slug.
func WithSlug(slug vendors.Slug) Option {
	return func(c *Client) { c.slug = slug }
}

// WithCatalog replaces the default catalog.
func WithCatalog(products []Product) Option {
	return func(c *Client) {
		c.catalog = map[string]Product{}
		for _, p := range products {
			c.catalog[p.ProductID] = p
		}
	}
}

// WithClock injects the time used for order history.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client implements vendors.Client and vendors.OrderLister.
type Client struct {
	slug     vendors.Slug
	creds    vendors.Credentials
	now      func() time.Time
	mu       sync.Mutex
	catalog  map[string]Product
	cart     map[string]int
	loggedIn bool
	orders   []vendors.VendorOrderStatus
	seq      int
}

var (
	_ vendors.Client      = (*Client)(nil)
	_ vendors.OrderLister = (*Client)(nil)
)

func New(creds vendors.Credentials, opts ...Option) *Client {
	c := &Client{
		slug:  vendors.SlugSandbox,
		creds: creds,
		now:   time.Now,
		cart:  map[string]int{},
	}
	WithCatalog(DefaultCatalog())(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Factory registers the sandbox in a vendors.Registry.
func Factory(opts ...Option) vendors.Factory {
	return func(creds vendors.Credentials, _ *httpsession.Session) (vendors.Client, error) {
		return New(creds, opts...), nil
	}
}

// Register adds the sandbox under its own slug and under every slug in
// impersonate, so demo offices can link any vendor without a real account.
// With a siteURL the clients are WebClients against that storefront;
// otherwise they are in-memory.
func Register(registry *vendors.Registry, siteURL string, impersonate ...vendors.Slug) error {
	factory := func(slug vendors.Slug) vendors.Factory {
		if siteURL != "" {
			return SiteFactory(siteURL, slug)
		}
		if slug == vendors.SlugSandbox {
			return Factory()
		}
		return Factory(WithSlug(slug))
	}
	if err := registry.Register(vendors.SlugSandbox, factory(vendors.SlugSandbox)); err != nil {
		return err
	}
	for _, slug := range impersonate {
		if slug == vendors.SlugSandbox {
			continue
		}
		if err := registry.Register(slug, factory(slug)); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Slug() vendors.Slug { return c.slug }

func (c *Client) Login(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return vendors.Wrap(c.slug, "login", vendors.ErrNetworkConnection, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds.Username == "" || c.creds.Password == "" || c.creds.Password == RejectedPassword {
		c.loggedIn = false
		return vendors.Wrap(c.slug, "login", vendors.ErrAuthenticationFailed, nil)
	}
	c.loggedIn = true
	return nil
}

func (c *Client) GetProductsPrices(ctx context.Context, products []vendors.ProductRef) (map[string]vendors.PriceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, vendors.Wrap(c.slug, "prices", vendors.ErrNetworkConnection, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]vendors.PriceResult, len(products))
	for _, ref := range products {
		p, ok := c.catalog[ref.ProductID]
		if !ok {
			out[ref.ProductID] = vendors.PriceResult{Err: vendors.Wrap(c.slug, "prices", vendors.ErrProductNotFound, nil)}
			continue
		}
		status := p.Status
		if status == "" {
			status = enums.ProductVendorStatusActive
		}
		out[ref.ProductID] = vendors.PriceResult{Info: &vendors.PriceInfo{Price: p.Price, VendorStatus: status}}
	}
	return out, nil
}

func (c *Client) SearchProducts(ctx context.Context, query vendors.SearchQuery) (*vendors.SearchPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, vendors.Wrap(c.slug, "search", vendors.ErrNetworkConnection, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	needle := strings.ToLower(strings.TrimSpace(query.Text))
	var hits []vendors.SearchProduct
	for _, p := range c.catalog {
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		if query.MinPrice != nil && p.Price.LessThan(*query.MinPrice) {
			continue
		}
		if query.MaxPrice != nil && p.Price.GreaterThan(*query.MaxPrice) {
			continue
		}
		hits = append(hits, vendors.SearchProduct{ProductID: p.ProductID, Name: p.Name, Unit: p.Unit, Price: p.Price})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].ProductID < hits[j].ProductID })

	page := query.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(hits) {
		start = len(hits)
	}
	if end > len(hits) {
		end = len(hits)
	}
	return &vendors.SearchPage{
		Vendor:    c.slug,
		TotalSize: len(hits),
		Page:      page,
		PageSize:  pageSize,
		LastPage:  end >= len(hits),
		Products:  hits[start:end],
	}, nil
}

func (c *Client) AddProductsToCart(ctx context.Context, products []vendors.CartProduct) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLogin("add to cart"); err != nil {
		return err
	}
	for _, cp := range products {
		if _, ok := c.catalog[cp.Product.ProductID]; !ok {
			return vendors.Wrap(c.slug, "add to cart", vendors.ErrProductNotFound, fmt.Errorf("product %s", cp.Product.ProductID))
		}
		if cp.Quantity <= 0 {
			return vendors.Wrap(c.slug, "add to cart", vendors.ErrVendorSite, fmt.Errorf("quantity %d", cp.Quantity))
		}
		c.cart[cp.Product.ProductID] += cp.Quantity
	}
	return nil
}

func (c *Client) ClearCart(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLogin("clear cart"); err != nil {
		return err
	}
	c.cart = map[string]int{}
	return nil
}

func (c *Client) RemoveProductFromCart(ctx context.Context, product vendors.ProductRef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLogin("remove from cart"); err != nil {
		return err
	}
	delete(c.cart, product.ProductID)
	return nil
}

func (c *Client) CheckoutAndReviewOrder(ctx context.Context, shippingMethod string) (*vendors.VendorOrderDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLogin("checkout"); err != nil {
		return nil, err
	}
	if len(c.cart) == 0 {
		return nil, vendors.Wrap(c.slug, "checkout", vendors.ErrVendorSite, errors.New("cart is empty"))
	}
	subtotal := decimal.Zero
	for productID, qty := range c.cart {
		subtotal = subtotal.Add(c.catalog[productID].Price.Mul(decimal.NewFromInt(int64(qty))))
	}
	shipping := flatShipping
	if subtotal.GreaterThanOrEqual(freeShippingFrom) {
		shipping = decimal.Zero
	}
	method := shippingMethod
	if method == "" {
		method = "ground"
	}
	return &vendors.VendorOrderDetail{
		Subtotal:        subtotal,
		Shipping:        shipping,
		Tax:             decimal.Zero,
		Total:           subtotal.Add(shipping),
		PaymentMethod:   "account on file",
		ShippingAddress: "sandbox office (" + method + ")",
	}, nil
}

func (c *Client) PlaceOrder(ctx context.Context, detail *vendors.VendorOrderDetail) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireLogin("place order"); err != nil {
		return "", err
	}
	if detail == nil || len(c.cart) == 0 {
		return "", vendors.Wrap(c.slug, "place order", vendors.ErrVendorSite, errors.New("nothing to place"))
	}
	c.seq++
	orderID := fmt.Sprintf("%s-%06d", strings.ToUpper(string(c.slug)), c.seq)
	c.orders = append(c.orders, vendors.VendorOrderStatus{
		VendorOrderID: orderID,
		Status:        "processing",
		UpdatedAt:     c.now(),
	})
	c.cart = map[string]int{}
	return orderID, nil
}

// ListOrders returns the orders placed through this client since the given time.
func (c *Client) ListOrders(ctx context.Context, since time.Time) ([]vendors.VendorOrderStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []vendors.VendorOrderStatus
	for _, o := range c.orders {
		if !o.UpdatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out, nil
}

// Deliver marks a placed order delivered, as the vendor would after shipping.
func (c *Client) Deliver(orderID string) bool {
	return c.settle(orderID, func(o *vendors.VendorOrderStatus) {
		o.Status = "delivered"
		o.Delivered = true
	})
}

// Cancel marks a placed order cancelled on the vendor side.
func (c *Client) Cancel(orderID string) bool {
	return c.settle(orderID, func(o *vendors.VendorOrderStatus) {
		o.Status = "cancelled"
		o.Cancelled = true
	})
}

func (c *Client) settle(orderID string, apply func(*vendors.VendorOrderStatus)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.orders {
		if c.orders[i].VendorOrderID == orderID {
			apply(&c.orders[i])
			c.orders[i].UpdatedAt = c.now()
			return true
		}
	}
	return false
}

// Cart returns a copy of the cart quantities.
func (c *Client) Cart() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.cart))
	for k, v := range c.cart {
		out[k] = v
	}
	return out
}

func (c *Client) requireLogin(op string) error {
	if !c.loggedIn {
		return vendors.Wrap(c.slug, op, vendors.ErrAuthenticationFailed, errors.New("not logged in"))
	}
	return nil
}
