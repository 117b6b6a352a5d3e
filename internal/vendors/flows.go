package vendors

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// SearchResultCap stops SearchAll once more than this many hits were collected.
const SearchResultCap = 10

// SearchAll pages through a vendor search from page 1 until more than
// SearchResultCap hits were collected or the vendor reports the last page.
func SearchAll(ctx context.Context, client Client, query SearchQuery) (*SearchPage, error) {
	result := &SearchPage{Vendor: client.Slug(), Page: 1}
	query.Page = 1
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		page, err := client.SearchProducts(ctx, query)
		if err != nil {
			return result, Wrap(client.Slug(), "search", nil, err)
		}
		if page == nil {
			result.LastPage = true
			return result, nil
		}
		result.Products = append(result.Products, page.Products...)
		result.TotalSize = page.TotalSize
		result.PageSize = page.PageSize
		result.Page = query.Page
		if page.LastPage || len(page.Products) == 0 {
			result.LastPage = true
			return result, nil
		}
		if len(result.Products) > SearchResultCap {
			return result, nil
		}
		query.Page++
	}
}

// CreateOrder logs in, replaces the cart with products and returns the
// vendor's order review. Nothing is purchased.
func CreateOrder(ctx context.Context, client Client, products []CartProduct, shippingMethod string) (*VendorOrderDetail, error) {
	if len(products) == 0 {
		return nil, Wrap(client.Slug(), "create order", ErrVendorSite, errors.New("no products to order"))
	}
	if err := client.Login(ctx); err != nil {
		return nil, Wrap(client.Slug(), "login", nil, err)
	}
	if err := client.ClearCart(ctx); err != nil {
		return nil, Wrap(client.Slug(), "clear cart", nil, err)
	}
	if err := client.AddProductsToCart(ctx, products); err != nil {
		return nil, Wrap(client.Slug(), "add to cart", nil, err)
	}
	detail, err := client.CheckoutAndReviewOrder(ctx, shippingMethod)
	if err != nil {
		return nil, Wrap(client.Slug(), "checkout", nil, err)
	}
	return detail, nil
}

// ConfirmOrder runs CreateOrder and places the order. With fake set the order
// is reviewed but not placed and a random order id is returned.
func ConfirmOrder(ctx context.Context, client Client, products []CartProduct, shippingMethod string, fake bool) (*VendorOrderDetail, string, error) {
	detail, err := CreateOrder(ctx, client, products, shippingMethod)
	if err != nil {
		return nil, "", err
	}
	if fake {
		return detail, uuid.NewString(), nil
	}
	orderID, err := client.PlaceOrder(ctx, detail)
	if err != nil {
		return detail, "", Wrap(client.Slug(), "place order", nil, err)
	}
	return detail, orderID, nil
}
