package sandbox

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordo-backend/internal/vendors"
)

const sessionCookie = "sbx_session"

// Site serves the sandbox catalog as a small HTML storefront. Accounts are
// keyed by vendor slug and username, so carts and order history survive
// across logins the way they do on a real vendor site.
type Site struct {
	opts []Option

	mu       sync.Mutex
	accounts map[string]*Client
	sessions map[string]*Client
}

// NewSite builds the storefront; opts apply to every account it creates.
func NewSite(opts ...Option) *Site {
	return &Site{
		opts:     opts,
		accounts: map[string]*Client{},
		sessions: map[string]*Client{},
	}
}

// Account returns the store behind one vendor account, or nil before its first login.
func (s *Site) Account(slug vendors.Slug, username string) *Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountKey(slug, username)]
}

// Handler returns the storefront routes.
func (s *Site) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/login", s.login)
	r.Get("/products", s.products)
	r.Get("/search", s.search)
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/cart", s.addToCart)
		r.Post("/cart/remove", s.removeFromCart)
		r.Post("/cart/clear", s.clearCart)
		r.Get("/checkout", s.checkout)
		r.Post("/orders", s.placeOrder)
		r.Get("/orders", s.listOrders)
	})
	return r
}

func accountKey(slug vendors.Slug, username string) string {
	return string(slug) + "/" + username
}

type sessionKey struct{}

func withAccount(ctx context.Context, account *Client) context.Context {
	return context.WithValue(ctx, sessionKey{}, account)
}

func accountFrom(ctx context.Context) *Client {
	account, _ := ctx.Value(sessionKey{}).(*Client)
	return account
}

func (s *Site) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			http.Error(w, "sign in required", http.StatusUnauthorized)
			return
		}
		s.mu.Lock()
		account := s.sessions[cookie.Value]
		s.mu.Unlock()
		if account == nil {
			http.Error(w, "sign in required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), account)))
	})
}

func (s *Site) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	slug, err := vendors.ParseSlug(r.PostForm.Get("vendor"))
	if err != nil {
		http.Error(w, "unknown vendor", http.StatusBadRequest)
		return
	}
	creds := vendors.Credentials{Username: r.PostForm.Get("username"), Password: r.PostForm.Get("password")}

	s.mu.Lock()
	key := accountKey(slug, creds.Username)
	account, ok := s.accounts[key]
	if !ok {
		account = New(creds, append([]Option{WithSlug(slug)}, s.opts...)...)
		s.accounts[key] = account
	}
	s.mu.Unlock()

	account.mu.Lock()
	account.creds = creds
	account.mu.Unlock()
	if err := account.Login(r.Context()); err != nil {
		render(w, http.StatusOK, loginPage, nil)
		return
	}

	sid := uuid.NewString()
	s.mu.Lock()
	s.sessions[sid] = account
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sid, Path: "/", HttpOnly: true})
	render(w, http.StatusOK, loginPage, map[string]string{"User": creds.Username})
}

// products renders the price sheet of the listings named by repeated id params.
func (s *Site) products(w http.ResponseWriter, r *http.Request) {
	catalog := s.catalog()
	ids := r.URL.Query()["id"]
	refs := make([]vendors.ProductRef, len(ids))
	for i, id := range ids {
		refs[i] = vendors.ProductRef{ProductID: id}
	}
	prices, err := catalog.GetProductsPrices(r.Context(), refs)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	rows := make([]productRow, 0, len(ids))
	for _, id := range ids {
		result := prices[id]
		if result.Info == nil {
			rows = append(rows, productRow{ProductID: id, Missing: true})
			continue
		}
		p := catalog.catalog[id]
		rows = append(rows, productRow{
			ProductID: id,
			Name:      p.Name,
			Unit:      p.Unit,
			Price:     money(result.Info.Price),
			Status:    string(result.Info.VendorStatus),
		})
	}
	render(w, http.StatusOK, productsPage, rows)
}

func (s *Site) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := vendors.SearchQuery{Text: q.Get("q")}
	query.Page, _ = strconv.Atoi(q.Get("page"))
	if raw := q.Get("min"); raw != "" {
		lo, err := decimal.NewFromString(raw)
		if err != nil {
			http.Error(w, "bad min price", http.StatusBadRequest)
			return
		}
		query.MinPrice = &lo
	}
	if raw := q.Get("max"); raw != "" {
		hi, err := decimal.NewFromString(raw)
		if err != nil {
			http.Error(w, "bad max price", http.StatusBadRequest)
			return
		}
		query.MaxPrice = &hi
	}
	page, err := s.catalog().SearchProducts(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	rows := make([]productRow, len(page.Products))
	for i, p := range page.Products {
		rows[i] = productRow{ProductID: p.ProductID, Name: p.Name, Unit: p.Unit, Price: money(p.Price)}
	}
	render(w, http.StatusOK, searchPage, map[string]any{
		"Total":    page.TotalSize,
		"Page":     page.Page,
		"PageSize": page.PageSize,
		"Last":     page.LastPage,
		"Products": rows,
	})
}

func (s *Site) addToCart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	qty, err := strconv.Atoi(r.PostForm.Get("quantity"))
	if err != nil {
		http.Error(w, "bad quantity", http.StatusBadRequest)
		return
	}
	err = accountFrom(r.Context()).AddProductsToCart(r.Context(), []vendors.CartProduct{{
		Product:  vendors.ProductRef{ProductID: r.PostForm.Get("product_id")},
		Quantity: qty,
	}})
	s.cartResult(w, r, err)
}

func (s *Site) removeFromCart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	err := accountFrom(r.Context()).RemoveProductFromCart(r.Context(), vendors.ProductRef{ProductID: r.PostForm.Get("product_id")})
	s.cartResult(w, r, err)
}

func (s *Site) clearCart(w http.ResponseWriter, r *http.Request) {
	s.cartResult(w, r, accountFrom(r.Context()).ClearCart(r.Context()))
}

func (s *Site) cartResult(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	cart := accountFrom(r.Context()).Cart()
	render(w, http.StatusOK, cartPage, map[string]int{"Lines": len(cart)})
}

func (s *Site) checkout(w http.ResponseWriter, r *http.Request) {
	detail, err := accountFrom(r.Context()).CheckoutAndReviewOrder(r.Context(), r.URL.Query().Get("method"))
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	render(w, http.StatusOK, reviewPage, map[string]string{
		"Subtotal": money(detail.Subtotal),
		"Shipping": money(detail.Shipping),
		"Tax":      money(detail.Tax),
		"Total":    money(detail.Total),
		"Payment":  detail.PaymentMethod,
		"Address":  detail.ShippingAddress,
	})
}

func (s *Site) placeOrder(w http.ResponseWriter, r *http.Request) {
	account := accountFrom(r.Context())
	detail, err := account.CheckoutAndReviewOrder(r.Context(), "")
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	orderID, err := account.PlaceOrder(r.Context(), detail)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	render(w, http.StatusOK, confirmationPage, orderID)
}

func (s *Site) listOrders(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			http.Error(w, "bad since", http.StatusBadRequest)
			return
		}
		since = parsed
	}
	history, err := accountFrom(r.Context()).ListOrders(r.Context(), since)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	rows := make([]orderRow, len(history))
	for i, o := range history {
		rows[i] = orderRow{
			ID:        o.VendorOrderID,
			Status:    o.Status,
			Updated:   o.UpdatedAt.UTC().Format(time.RFC3339Nano),
			Delivered: o.Delivered,
			Cancelled: o.Cancelled,
		}
	}
	render(w, http.StatusOK, ordersPage, rows)
}

// catalog returns a logged-out store used for public catalog pages.
func (s *Site) catalog() *Client {
	return New(vendors.Credentials{}, s.opts...)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, vendors.ErrAuthenticationFailed):
		return http.StatusUnauthorized
	case errors.Is(err, vendors.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, vendors.ErrNetworkConnection):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

type productRow struct {
	ProductID string
	Name      string
	Unit      string
	Price     string
	Status    string
	Missing   bool
}

type orderRow struct {
	ID        string
	Status    string
	Updated   string
	Delivered bool
	Cancelled bool
}

func render(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = tmpl.Execute(w, data)
}

var (
	loginPage = template.Must(template.New("login").Parse(
		`<html><body>{{with .User}}<div id="account" data-user="{{.}}">Signed in as {{.}}</div>{{else}}<div class="alert">Invalid username or password</div>{{end}}</body></html>`))

	productsPage = template.Must(template.New("products").Parse(
		`<html><body>{{range .}}{{if .Missing}}<div class="product missing" data-product-id="{{.ProductID}}"></div>{{else}}<div class="product" data-product-id="{{.ProductID}}"><span class="name">{{.Name}}</span><span class="unit">{{.Unit}}</span><span class="price">{{.Price}}</span><span class="status">{{.Status}}</span></div>{{end}}{{end}}</body></html>`))

	searchPage = template.Must(template.New("search").Parse(
		`<html><body><div id="results" data-total="{{.Total}}" data-page="{{.Page}}" data-page-size="{{.PageSize}}" data-last="{{.Last}}">{{range .Products}}<div class="product" data-product-id="{{.ProductID}}"><span class="name">{{.Name}}</span><span class="unit">{{.Unit}}</span><span class="price">{{.Price}}</span></div>{{end}}</div></body></html>`))

	cartPage = template.Must(template.New("cart").Parse(
		`<html><body><div id="cart" data-lines="{{.Lines}}"></div></body></html>`))

	reviewPage = template.Must(template.New("review").Parse(
		`<html><body><div id="review"><span class="subtotal">{{.Subtotal}}</span><span class="shipping">{{.Shipping}}</span><span class="tax">{{.Tax}}</span><span class="total">{{.Total}}</span><span class="payment">{{.Payment}}</span><span class="address">{{.Address}}</span></div></body></html>`))

	confirmationPage = template.Must(template.New("confirmation").Parse(
		`<html><body><div id="confirmation" data-order-id="{{.}}">Thank you for your order</div></body></html>`))

	ordersPage = template.Must(template.New("orders").Parse(
		`<html><body><table id="orders">{{range .}}<tr class="order" data-order-id="{{.ID}}" data-status="{{.Status}}" data-updated="{{.Updated}}" data-delivered="{{.Delivered}}" data-cancelled="{{.Cancelled}}"></tr>{{end}}</table></body></html>`))
)
