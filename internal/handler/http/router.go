package http

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Maharab24/Bottle-Collection/pkg/health"
	"github.com/Maharab24/Bottle-Collection/pkg/middleware"
)

// ServiceName labels the storefront's logs, metrics and spans.
const ServiceName = "storefront"

// RouterConfig carries the ambient pieces of the router.
type RouterConfig struct {
	Origin     string
	CORS       middleware.CORSConfig
	PprofCIDRs []string
	Registry   *prometheus.Registry
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(h *Handler, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics := middleware.NewHTTPMetrics(reg, ServiceName)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(metrics.Handler)
	r.Use(middleware.Tracing(ServiceName, "/health/", "/metrics", "/static/"))
	r.Use(middleware.RequestLogger(logger, cfg.Origin))
	r.Use(middleware.CORS(cfg.CORS))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	// The badge stream is long-lived: no timeout, no compression.
	r.With(middleware.NoStore).Get("/events", h.Events)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Compress(5))
		r.Use(chimw.Timeout(30 * time.Second))

		static, _ := fs.Sub(assets, "static")
		r.With(middleware.CacheControl(3600)).
			Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

		// Pages
		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Get("/", h.Home)
			r.Get("/bottles", h.Bottles)
			r.Post("/bottles/{id}/increment", h.WidgetIncrement)
			r.Post("/bottles/{id}/decrement", h.WidgetDecrement)
			r.Post("/bottles/{id}/add", h.WidgetAdd)

			r.Get("/cart", h.CartPage)
			r.Post("/cart/items/{id}/increment", h.CartIncrement)
			r.Post("/cart/items/{id}/decrement", h.CartDecrement)
			r.Post("/cart/items/{id}/remove", h.CartRemove)
			r.Post("/cart/checkout", h.Checkout)
		})

		// JSON API
		r.Route("/api/v1", func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.With(middleware.CacheControl(60)).Get("/products", h.ListProducts)
			r.With(middleware.CacheControl(60)).Get("/products/{id}", h.GetProduct)
			r.With(middleware.CacheControl(60)).Get("/categories", h.ListCategories)

			r.Group(func(r chi.Router) {
				r.Use(middleware.NoStore)

				r.Get("/cart", h.GetCart)
				r.Get("/cart/badge", h.GetBadge)
				r.Post("/cart/items", h.AddItem)
				r.Put("/cart/items/{id}", h.UpdateItemQuantity)
				r.Delete("/cart/items/{id}", h.RemoveItem)
			})
		})
	})

	return r
}
