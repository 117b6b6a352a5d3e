package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/ordo-backend/api/controllers"
	budgetcontrollers "github.com/angelmondragon/ordo-backend/api/controllers/budgets"
	checkoutcontrollers "github.com/angelmondragon/ordo-backend/api/controllers/checkout"
	groupingcontrollers "github.com/angelmondragon/ordo-backend/api/controllers/grouping"
	ordercontrollers "github.com/angelmondragon/ordo-backend/api/controllers/orders"
	productcontrollers "github.com/angelmondragon/ordo-backend/api/controllers/products"
	"github.com/angelmondragon/ordo-backend/api/middleware"
	"github.com/angelmondragon/ordo-backend/internal/orders"
	"github.com/angelmondragon/ordo-backend/pkg/config"
	"github.com/angelmondragon/ordo-backend/pkg/db"
	"github.com/angelmondragon/ordo-backend/pkg/enums"
	"github.com/angelmondragon/ordo-backend/pkg/logger"
	"github.com/angelmondragon/ordo-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	cartService checkoutcontrollers.CartPreparer,
	vendorCatalog productcontrollers.VendorCatalog,
	ordersSvc orders.Service,
	budgetReader budgetcontrollers.Reader,
	groupingService groupingcontrollers.Catalog,
	sandboxSite http.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	vendorPolicy := middleware.NewRateLimitPolicy(
		"vendor",
		cfg.RateLimit.Window,
		cfg.RateLimit.OfficeLimit,
		cfg.RateLimit.IPLimit,
	)

	idempotent := passthrough
	vendorLimited := passthrough
	readiness := map[string]controllers.Pinger{"db": dbP}
	if redisClient != nil {
		idempotent = middleware.Idempotency(redisClient, logg)
		vendorLimited = middleware.RateLimit(vendorPolicy, redisClient, logg)
		readiness["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	if sandboxSite != nil {
		r.Mount("/sandbox", sandboxSite)
	}

	r.Route("/api/v1/offices/{"+middleware.OfficeURLParam+"}", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.OfficeScope(logg))

		r.With(vendorLimited, idempotent).Post("/checkout/preview", checkoutcontrollers.Preview(cartService, logg))
		r.With(vendorLimited).Post("/prices", productcontrollers.Prices(vendorCatalog, logg))
		r.With(vendorLimited).Get("/search", productcontrollers.Search(vendorCatalog, logg))

		r.With(idempotent).Post("/vendor-orders/{vendorOrderId}/approve", ordercontrollers.Approve(ordersSvc, logg))
		r.With(idempotent).Patch("/vendor-order-products/{itemId}/spend-category", ordercontrollers.SpendCategory(ordersSvc, logg))

		r.Get("/budgets/{month}", budgetcontrollers.Get(budgetReader, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))

		r.Route("/grouping", func(r chi.Router) {
			r.Get("/{category}/export.csv", groupingcontrollers.Export(groupingService, logg))
			r.With(idempotent).Post("/import", groupingcontrollers.Import(groupingService, logg))
			r.With(idempotent).Post("/{category}/run", groupingcontrollers.Run(groupingService, logg))
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
