package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"donationledger/internal/http/handlers"
	"donationledger/internal/middleware"
)

// Options carries the cross-cutting settings the router needs.
type Options struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	writes := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", app.CampaignsList)
			r.With(writes).Post("/", app.CampaignsCreate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.CampaignGet)
				r.Get("/transactions", app.CampaignTransactions)
				r.With(writes).Post("/donations", app.DonationsCreate)
				r.With(writes).Post("/withdrawals", app.WithdrawalsCreate)
				r.With(writes).Post("/resync", app.CampaignResync)
			})
		})

		r.Route("/actions", func(r chi.Router) {
			r.Get("/", app.ActionsList)
			r.Get("/{id}", app.ActionGet)
		})

		r.Get("/stream", app.StreamChanges)
	})

	return r
}
