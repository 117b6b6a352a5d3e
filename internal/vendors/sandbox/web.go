package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	"github.com/angelmondragon/ordo-backend/pkg/httpsession"
)

// WebClient drives a sandbox Site over HTTP the way a scraping adapter drives
// a vendor storefront: form login into a cookie jar, then HTML pages parsed
// with goquery.
type WebClient struct {
	slug    vendors.Slug
	creds   vendors.Credentials
	baseURL string
	http    *httpsession.Client
}

var (
	_ vendors.Client      = (*WebClient)(nil)
	_ vendors.OrderLister = (*WebClient)(nil)
)

// NewWebClient binds creds to the storefront at siteURL through session.
func NewWebClient(slug vendors.Slug, creds vendors.Credentials, session *httpsession.Session, siteURL string) (*WebClient, error) {
	if session == nil {
		return nil, errors.New("sandbox web client: http session required")
	}
	siteURL = strings.TrimRight(siteURL, "/")
	if _, err := url.ParseRequestURI(siteURL); err != nil {
		return nil, fmt.Errorf("sandbox web client: site url: %w", err)
	}
	client, err := session.NewClient(siteURL)
	if err != nil {
		return nil, err
	}
	return &WebClient{slug: slug, creds: creds, baseURL: siteURL, http: client}, nil
}

// SiteFactory registers slug as a WebClient against the storefront at siteURL.
func SiteFactory(siteURL string, slug vendors.Slug) vendors.Factory {
	return func(creds vendors.Credentials, session *httpsession.Session) (vendors.Client, error) {
		return NewWebClient(slug, creds, session, siteURL)
	}
}

func (c *WebClient) Slug() vendors.Slug { return c.slug }

func (c *WebClient) Login(ctx context.Context) error {
	return vendors.FormLogin(ctx, c.slug, c.http, vendors.LoginForm{
		URL: "/login",
		Fields: map[string]string{
			"vendor":   string(c.slug),
			"username": c.creds.Username,
			"password": c.creds.Password,
		},
		Authenticated: func(doc *goquery.Document) bool {
			return doc.Find("#account").Length() > 0
		},
	})
}

func (c *WebClient) GetProductsPrices(ctx context.Context, products []vendors.ProductRef) (map[string]vendors.PriceResult, error) {
	params := url.Values{}
	for _, ref := range products {
		params.Add("id", ref.ProductID)
	}
	doc, err := c.get(ctx, "prices", "/products", params)
	if err != nil {
		return nil, err
	}

	out := make(map[string]vendors.PriceResult, len(products))
	doc.Find(".product").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("data-product-id")
		if sel.HasClass("missing") {
			out[id] = vendors.PriceResult{Err: vendors.Wrap(c.slug, "prices", vendors.ErrProductNotFound, nil)}
			return
		}
		price, err := vendors.ParsePrice(sel.Find(".price").Text())
		if err != nil {
			out[id] = vendors.PriceResult{Err: vendors.Wrap(c.slug, "prices", vendors.ErrVendorSite, err)}
			return
		}
		status := enums.ProductVendorStatus(strings.TrimSpace(sel.Find(".status").Text()))
		if status == "" {
			status = enums.ProductVendorStatusActive
		}
		out[id] = vendors.PriceResult{Info: &vendors.PriceInfo{Price: price, VendorStatus: status}}
	})
	for _, ref := range products {
		if _, ok := out[ref.ProductID]; !ok {
			out[ref.ProductID] = vendors.PriceResult{Err: vendors.Wrap(c.slug, "prices", vendors.ErrProductNotFound, nil)}
		}
	}
	return out, nil
}

func (c *WebClient) SearchProducts(ctx context.Context, query vendors.SearchQuery) (*vendors.SearchPage, error) {
	params := url.Values{}
	params.Set("q", query.Text)
	if query.Page > 0 {
		params.Set("page", strconv.Itoa(query.Page))
	}
	if query.MinPrice != nil {
		params.Set("min", query.MinPrice.String())
	}
	if query.MaxPrice != nil {
		params.Set("max", query.MaxPrice.String())
	}
	doc, err := c.get(ctx, "search", "/search", params)
	if err != nil {
		return nil, err
	}

	results := doc.Find("#results")
	if results.Length() == 0 {
		return nil, vendors.Wrap(c.slug, "search", vendors.ErrVendorSite, errors.New("results block missing"))
	}
	page := &vendors.SearchPage{
		Vendor:    c.slug,
		TotalSize: intAttr(results, "data-total"),
		Page:      intAttr(results, "data-page"),
		PageSize:  intAttr(results, "data-page-size"),
		LastPage:  results.AttrOr("data-last", "") == "true",
	}
	var parseErr error
	results.Find(".product").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		price, err := vendors.ParsePrice(sel.Find(".price").Text())
		if err != nil {
			parseErr = err
			return false
		}
		id := sel.AttrOr("data-product-id", "")
		page.Products = append(page.Products, vendors.SearchProduct{
			ProductID: id,
			Name:      strings.TrimSpace(sel.Find(".name").Text()),
			Unit:      strings.TrimSpace(sel.Find(".unit").Text()),
			URL:       c.baseURL + "/products?id=" + url.QueryEscape(id),
			Price:     price,
		})
		return true
	})
	if parseErr != nil {
		return nil, vendors.Wrap(c.slug, "search", vendors.ErrVendorSite, parseErr)
	}
	return page, nil
}

func (c *WebClient) AddProductsToCart(ctx context.Context, products []vendors.CartProduct) error {
	for _, cp := range products {
		err := c.post(ctx, "add to cart", "/cart", map[string]string{
			"product_id": cp.Product.ProductID,
			"quantity":   strconv.Itoa(cp.Quantity),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *WebClient) ClearCart(ctx context.Context) error {
	return c.post(ctx, "clear cart", "/cart/clear", nil)
}

func (c *WebClient) RemoveProductFromCart(ctx context.Context, product vendors.ProductRef) error {
	return c.post(ctx, "remove from cart", "/cart/remove", map[string]string{"product_id": product.ProductID})
}

func (c *WebClient) CheckoutAndReviewOrder(ctx context.Context, shippingMethod string) (*vendors.VendorOrderDetail, error) {
	params := url.Values{}
	if shippingMethod != "" {
		params.Set("method", shippingMethod)
	}
	doc, err := c.get(ctx, "checkout", "/checkout", params)
	if err != nil {
		return nil, err
	}
	review := doc.Find("#review")
	if review.Length() == 0 {
		return nil, vendors.Wrap(c.slug, "checkout", vendors.ErrVendorSite, errors.New("order review missing"))
	}

	amounts := map[string]decimal.Decimal{}
	for _, field := range []string{"subtotal", "shipping", "tax", "total"} {
		amount, err := vendors.ParsePrice(review.Find("." + field).Text())
		if err != nil {
			return nil, vendors.Wrap(c.slug, "checkout", vendors.ErrVendorSite, fmt.Errorf("%s: %w", field, err))
		}
		amounts[field] = amount
	}
	return &vendors.VendorOrderDetail{
		Subtotal:        amounts["subtotal"],
		Shipping:        amounts["shipping"],
		Tax:             amounts["tax"],
		Total:           amounts["total"],
		PaymentMethod:   vendors.Text(doc, "#review .payment"),
		ShippingAddress: vendors.Text(doc, "#review .address"),
	}, nil
}

func (c *WebClient) PlaceOrder(ctx context.Context, _ *vendors.VendorOrderDetail) (string, error) {
	resp, err := c.http.PostForm(ctx, "/orders", nil)
	if err != nil {
		return "", vendors.Wrap(c.slug, "place order", vendors.ErrNetworkConnection, err)
	}
	if kind := vendors.ErrorForStatus(resp.StatusCode()); kind != nil {
		return "", vendors.Wrap(c.slug, "place order", kind, fmt.Errorf("status %d", resp.StatusCode()))
	}
	doc, err := vendors.Document(strings.NewReader(resp.String()))
	if err != nil {
		return "", vendors.Wrap(c.slug, "place order", vendors.ErrVendorSite, err)
	}
	orderID := doc.Find("#confirmation").AttrOr("data-order-id", "")
	if orderID == "" {
		return "", vendors.Wrap(c.slug, "place order", vendors.ErrVendorSite, errors.New("confirmation has no order id"))
	}
	return orderID, nil
}

func (c *WebClient) ListOrders(ctx context.Context, since time.Time) ([]vendors.VendorOrderStatus, error) {
	params := url.Values{}
	if !since.IsZero() {
		params.Set("since", since.UTC().Format(time.RFC3339Nano))
	}
	doc, err := c.get(ctx, "list orders", "/orders", params)
	if err != nil {
		return nil, err
	}
	var out []vendors.VendorOrderStatus
	doc.Find("tr.order").Each(func(_ int, sel *goquery.Selection) {
		updated, _ := time.Parse(time.RFC3339Nano, sel.AttrOr("data-updated", ""))
		out = append(out, vendors.VendorOrderStatus{
			VendorOrderID: sel.AttrOr("data-order-id", ""),
			Status:        sel.AttrOr("data-status", ""),
			Delivered:     sel.AttrOr("data-delivered", "") == "true",
			Cancelled:     sel.AttrOr("data-cancelled", "") == "true",
			UpdatedAt:     updated,
		})
	})
	return out, nil
}

func (c *WebClient) get(ctx context.Context, op, path string, params url.Values) (*goquery.Document, error) {
	req := c.http.R(ctx)
	if len(params) > 0 {
		req.SetQueryParamsFromValues(params)
	}
	resp, err := req.Get(path)
	if err != nil {
		return nil, vendors.Wrap(c.slug, op, vendors.ErrNetworkConnection, err)
	}
	if kind := vendors.ErrorForStatus(resp.StatusCode()); kind != nil {
		return nil, vendors.Wrap(c.slug, op, kind, fmt.Errorf("status %d", resp.StatusCode()))
	}
	doc, err := vendors.Document(strings.NewReader(resp.String()))
	if err != nil {
		return nil, vendors.Wrap(c.slug, op, vendors.ErrVendorSite, err)
	}
	return doc, nil
}

func (c *WebClient) post(ctx context.Context, op, path string, form map[string]string) error {
	resp, err := c.http.PostForm(ctx, path, form)
	if err != nil {
		return vendors.Wrap(c.slug, op, vendors.ErrNetworkConnection, err)
	}
	if kind := vendors.ErrorForStatus(resp.StatusCode()); kind != nil {
		return vendors.Wrap(c.slug, op, kind, fmt.Errorf("status %d", resp.StatusCode()))
	}
	return nil
}

func intAttr(sel *goquery.Selection, name string) int {
	n, _ := strconv.Atoi(sel.AttrOr(name, ""))
	return n
}
