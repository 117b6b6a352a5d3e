package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
	"github.com/angelmondragon/ordo-backend/pkg/db/models"
	"github.com/angelmondragon/ordo-backend/pkg/httpsession"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
)

// ErrVendorNotLinked marks a fan-out slot for a vendor the office has no usable credentials for.
var ErrVendorNotLinked = errors.New("vendor not linked to office")

// Orchestrator drives the same vendor flow against every vendor of an office
// at once. One vendor failing never affects the others: its error lands in
// its own result slot.
type Orchestrator struct {
	repo     Repository
	opener   CredentialOpener
	registry *vendors.Registry
	session  *httpsession.Session
	logg     *logger.Logger
}

func NewOrchestrator(repo Repository, opener CredentialOpener, registry *vendors.Registry, session *httpsession.Session, logg *logger.Logger) (*Orchestrator, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if opener == nil {
		return nil, fmt.Errorf("credential opener required")
	}
	if registry == nil {
		return nil, fmt.Errorf("vendor registry required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Orchestrator{repo: repo, opener: opener, registry: registry, session: session, logg: logg}, nil
}

// ClientsFor builds one client per linked vendor of the office. A nil slugs
// selects every linked vendor. Vendors whose credentials cannot be used are
// logged and left out.
func (o *Orchestrator) ClientsFor(ctx context.Context, officeID uuid.UUID, slugs []vendors.Slug) (map[vendors.Slug]vendors.Client, error) {
	var filter []string
	if slugs != nil {
		filter = make([]string, 0, len(slugs))
		for _, slug := range slugs {
			filter = append(filter, slug.String())
		}
	}
	linked, err := o.repo.FindOfficeVendors(ctx, officeID, filter)
	if err != nil {
		return nil, fmt.Errorf("load office vendors: %w", err)
	}

	clients := make(map[vendors.Slug]vendors.Client, len(linked))
	for _, account := range linked {
		if account.Vendor == nil {
			continue
		}
		slug := vendors.Slug(account.Vendor.Slug)
		vendorCtx := o.logg.WithVendor(ctx, slug.String())
		if !o.registry.Supports(slug) {
			o.logg.Warn(vendorCtx, "no client registered for linked vendor")
			continue
		}
		password, err := o.opener.Open(account.PasswordSealed)
		if err != nil {
			o.logg.Error(vendorCtx, "failed to unseal vendor credentials", err)
			continue
		}
		client, err := o.registry.Make(slug, vendors.Credentials{Username: account.Username, Password: password}, o.session)
		if err != nil {
			o.logg.Error(vendorCtx, "failed to build vendor client", err)
			continue
		}
		clients[slug] = client
	}
	return clients, nil
}

// ClientForVendor builds a client from the first account linked to the
// vendor, restricted to one office when officeID is set. It also returns the
// vendor row the account belongs to.
func (o *Orchestrator) ClientForVendor(ctx context.Context, slug vendors.Slug, officeID *uuid.UUID) (vendors.Client, *models.Vendor, error) {
	account, err := o.repo.FirstVendorAccount(ctx, slug.String(), officeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, vendors.Wrap(slug, "credentials", vendors.ErrUnsupportedVendor, ErrVendorNotLinked)
		}
		return nil, nil, fmt.Errorf("load vendor account: %w", err)
	}
	password, err := o.opener.Open(account.PasswordSealed)
	if err != nil {
		return nil, nil, vendors.Wrap(slug, "credentials", vendors.ErrAuthenticationFailed, err)
	}
	client, err := o.registry.Make(slug, vendors.Credentials{Username: account.Username, Password: password}, o.session)
	if err != nil {
		return nil, nil, err
	}
	return client, account.Vendor, nil
}

// CreateOrders reviews the cart on every vendor without placing anything.
func (o *Orchestrator) CreateOrders(ctx context.Context, officeID uuid.UUID, cart map[vendors.Slug][]vendors.CartProduct, shippingMethod string) (map[vendors.Slug]VendorResult, error) {
	return o.checkout(ctx, officeID, cart, func(ctx context.Context, client vendors.Client, products []vendors.CartProduct) VendorResult {
		detail, err := vendors.CreateOrder(ctx, client, products, shippingMethod)
		return VendorResult{Detail: detail, Err: err}
	})
}

// ConfirmOrders reviews and places the cart on every vendor. With fake set
// nothing is placed and each vendor gets a random order id.
func (o *Orchestrator) ConfirmOrders(ctx context.Context, officeID uuid.UUID, cart map[vendors.Slug][]vendors.CartProduct, shippingMethod string, fake bool) (map[vendors.Slug]VendorResult, error) {
	return o.checkout(ctx, officeID, cart, func(ctx context.Context, client vendors.Client, products []vendors.CartProduct) VendorResult {
		detail, orderID, err := vendors.ConfirmOrder(ctx, client, products, shippingMethod, fake)
		return VendorResult{Detail: detail, OrderID: orderID, Err: err}
	})
}

func (o *Orchestrator) checkout(ctx context.Context, officeID uuid.UUID, cart map[vendors.Slug][]vendors.CartProduct, run func(context.Context, vendors.Client, []vendors.CartProduct) VendorResult) (map[vendors.Slug]VendorResult, error) {
	clients, err := o.ClientsFor(ctx, officeID, cartSlugs(cart))
	if err != nil {
		return nil, err
	}

	results := make(map[vendors.Slug]VendorResult, len(cart))
	for slug := range cart {
		if _, ok := clients[slug]; !ok {
			results[slug] = VendorResult{Err: vendors.Wrap(slug, "checkout", vendors.ErrUnsupportedVendor, ErrVendorNotLinked)}
		}
	}
	outcomes := fanOut(ctx, o.logg, clients, func(ctx context.Context, slug vendors.Slug, client vendors.Client) (VendorResult, error) {
		result := run(ctx, client, cart[slug])
		return result, result.Err
	})
	for slug, outcome := range outcomes {
		if outcome.err != nil {
			o.logg.Warn(o.logg.WithVendor(ctx, slug.String()), "vendor checkout failed: "+outcome.err.Error())
			results[slug] = VendorResult{Err: outcome.err}
			continue
		}
		results[slug] = outcome.value
	}
	return results, nil
}

// GetProductsPrices fetches live prices of the given listings from their
// vendors. Vendors that fail contribute no prices.
func (o *Orchestrator) GetProductsPrices(ctx context.Context, officeID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]vendors.PriceInfo, error) {
	products, err := o.repo.FindProducts(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	refs := map[vendors.Slug][]vendors.ProductRef{}
	ids := map[vendors.Slug]map[string]uuid.UUID{}
	for _, product := range products {
		if product.Vendor == nil {
			continue
		}
		slug := vendors.Slug(product.Vendor.Slug)
		refs[slug] = append(refs[slug], vendors.ProductRef{
			ProductID: product.ProductID,
			URL:       product.URL,
			Name:      product.Name,
			Unit:      product.ProductUnit,
		})
		if ids[slug] == nil {
			ids[slug] = map[string]uuid.UUID{}
		}
		ids[slug][product.ProductID] = product.ID
	}
	if len(refs) == 0 {
		return map[uuid.UUID]vendors.PriceInfo{}, nil
	}

	slugs := make([]vendors.Slug, 0, len(refs))
	for slug := range refs {
		slugs = append(slugs, slug)
	}
	clients, err := o.ClientsFor(ctx, officeID, slugs)
	if err != nil {
		return nil, err
	}

	outcomes := fanOut(ctx, o.logg, clients, func(ctx context.Context, slug vendors.Slug, client vendors.Client) (map[string]vendors.PriceResult, error) {
		if err := client.Login(ctx); err != nil {
			return nil, err
		}
		return client.GetProductsPrices(ctx, refs[slug])
	})

	prices := make(map[uuid.UUID]vendors.PriceInfo)
	for slug, outcome := range outcomes {
		if outcome.err != nil {
			o.logg.Warn(o.logg.WithVendor(ctx, slug.String()), "vendor prices unavailable: "+outcome.err.Error())
			continue
		}
		for vendorProductID, result := range outcome.value {
			id, ok := ids[slug][vendorProductID]
			if !ok || result.Err != nil || result.Info == nil {
				continue
			}
			prices[id] = *result.Info
		}
	}
	return prices, nil
}

// SearchProducts runs the query on every selected vendor of the office.
func (o *Orchestrator) SearchProducts(ctx context.Context, officeID uuid.UUID, query vendors.SearchQuery, slugs []vendors.Slug) (map[vendors.Slug]SearchResult, error) {
	clients, err := o.ClientsFor(ctx, officeID, slugs)
	if err != nil {
		return nil, err
	}
	outcomes := fanOut(ctx, o.logg, clients, func(ctx context.Context, _ vendors.Slug, client vendors.Client) (*vendors.SearchPage, error) {
		if err := client.Login(ctx); err != nil {
			return nil, err
		}
		return vendors.SearchAll(ctx, client, query)
	})

	results := make(map[vendors.Slug]SearchResult, len(outcomes))
	for slug, outcome := range outcomes {
		results[slug] = SearchResult{Page: outcome.value, Err: outcome.err}
	}
	return results, nil
}

type vendorOutcome[T any] struct {
	value T
	err   error
}

// fanOut runs fn once per client concurrently and waits for all of them.
// Errors stay in each vendor's outcome so one failing vendor never cancels
// the others. A panic inside fn is recovered into that vendor's error.
func fanOut[T any](ctx context.Context, logg *logger.Logger, clients map[vendors.Slug]vendors.Client, fn func(context.Context, vendors.Slug, vendors.Client) (T, error)) map[vendors.Slug]vendorOutcome[T] {
	var (
		mu  sync.Mutex
		g   errgroup.Group
		out = make(map[vendors.Slug]vendorOutcome[T], len(clients))
	)
	for slug, client := range clients {
		g.Go(func() error {
			var outcome vendorOutcome[T]
			defer func() {
				if r := recover(); r != nil {
					outcome = vendorOutcome[T]{err: vendors.Wrap(slug, "fan-out", vendors.ErrVendorSite, fmt.Errorf("panic: %v", r))}
					logg.Error(logg.WithVendor(ctx, slug.String()), "vendor call panicked", outcome.err)
				}
				mu.Lock()
				out[slug] = outcome
				mu.Unlock()
			}()
			value, err := fn(ctx, slug, client)
			outcome = vendorOutcome[T]{value: value, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func cartSlugs(cart map[vendors.Slug][]vendors.CartProduct) []vendors.Slug {
	slugs := make([]vendors.Slug, 0, len(cart))
	for slug := range cart {
		slugs = append(slugs, slug)
	}
	sort.Slice(slugs, func(i, j int) bool { return slugs[i] < slugs[j] })
	return slugs
}
