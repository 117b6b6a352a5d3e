package vendors

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordo-backend/pkg/httpsession"
)

var priceDigits = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// ParsePrice extracts the first amount from vendor price text such as
// "$1,234.50 / box".
func ParsePrice(text string) (decimal.Decimal, error) {
	match := priceDigits.FindString(text)
	if match == "" {
		return decimal.Zero, fmt.Errorf("no price in %q", text)
	}
	return decimal.NewFromString(strings.ReplaceAll(match, ",", ""))
}

// Document parses an HTML response body.
func Document(body io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse vendor html: %w", err)
	}
	return doc, nil
}

// Text returns the trimmed text of the first node matching selector.
func Text(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// LoginForm describes a classic username/password form post.
type LoginForm struct {
	URL    string
	Fields map[string]string
	// Authenticated inspects the response page; nil accepts any 2xx page.
	Authenticated func(doc *goquery.Document) bool
}

// FormLogin posts form through client and fails with ErrAuthenticationFailed
// when the vendor rejects the credentials.
func FormLogin(ctx context.Context, vendor Slug, client *httpsession.Client, form LoginForm) error {
	resp, err := client.PostForm(ctx, form.URL, form.Fields)
	if err != nil {
		return Wrap(vendor, "login", ErrNetworkConnection, err)
	}
	if kind := ErrorForStatus(resp.StatusCode()); kind != nil {
		if kind == ErrProductNotFound || kind == ErrVendorSite {
			kind = ErrAuthenticationFailed
		}
		return Wrap(vendor, "login", kind, fmt.Errorf("status %d", resp.StatusCode()))
	}
	if form.Authenticated == nil {
		return nil
	}
	doc, err := Document(strings.NewReader(resp.String()))
	if err != nil {
		return Wrap(vendor, "login", ErrVendorSite, err)
	}
	if !form.Authenticated(doc) {
		return Wrap(vendor, "login", ErrAuthenticationFailed, nil)
	}
	return nil
}
