package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mydentalfly/quote-backend/api/controllers"
	"github.com/mydentalfly/quote-backend/api/middleware"
	"github.com/mydentalfly/quote-backend/internal/catalog"
	"github.com/mydentalfly/quote-backend/internal/quote"
	"github.com/mydentalfly/quote-backend/pkg/config"
	"github.com/mydentalfly/quote-backend/pkg/logger"
	pkgredis "github.com/mydentalfly/quote-backend/pkg/redis"
)

// Deps carries everything the HTTP layer needs. Redis is optional; without it
// idempotency records and promo rate limits are disabled.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Catalog  catalog.Provider
	Quotes   quote.Service
	Redis    *pkgredis.Client
	Gatherer prometheus.Gatherer
	Pingers  map[string]controllers.Pinger
}

const actionsRoute = "/api/v1/quotes/{quoteKey}/actions"

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	var (
		idempotencyStore pkgredis.IdempotencyStore
		limiterStore     middleware.RateLimiterStore
	)
	if d.Redis != nil {
		idempotencyStore = d.Redis
		limiterStore = d.Redis
	}

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	promoPolicy := middleware.NewPromoRateLimitPolicy(
		"promo",
		cfg.RateLimit.PromoWindow,
		cfg.RateLimit.PromoIPLimit,
		cfg.RateLimit.PromoKeyLimit,
	)
	promoLimit := middleware.PromoRateLimit(promoPolicy, limiterStore, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Pingers))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/treatments", func(r chi.Router) {
			r.Get("/", controllers.ListTreatments(d.Catalog, logg))
			r.Get("/{treatmentId}", controllers.GetTreatment(d.Catalog, logg))
		})

		r.Route("/quotes", func(r chi.Router) {
			r.With(promoLimit).Post("/", controllers.OpenQuote(d.Quotes, logg))
			r.Route("/{quoteKey}", func(r chi.Router) {
				r.Get("/", controllers.GetQuote(d.Quotes, logg))
				r.With(promoLimit).Post("/actions", controllers.DispatchQuoteAction(d.Quotes, logg))
				r.Post("/submit", controllers.SubmitQuote(d.Quotes, logg))
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Deprecated(actionsRoute))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.With(promoLimit).Post("/api/quotes/{quoteKey}/promo", controllers.LegacyApplyPromo(d.Quotes, logg))
		r.Delete("/api/quotes/{quoteKey}/promo", controllers.LegacyClearPromo(d.Quotes, logg))
		r.Post("/api/integration/quotes/{quoteKey}/special-offer", controllers.LegacyApplySpecialOffer(d.Quotes, logg))
	})

	return r
}
