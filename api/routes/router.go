package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lodgetix/ticket-inventory/api/controllers"
	"github.com/lodgetix/ticket-inventory/api/middleware"
	"github.com/lodgetix/ticket-inventory/pkg/config"
	"github.com/lodgetix/ticket-inventory/pkg/logger"
)

// Dependencies groups what the router hands to its controllers.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	TicketTypes controllers.TicketTypeReader
	States      controllers.StateReporter
	Recomputer  controllers.Recomputer
	Auditor     controllers.Auditor
	Gatherer    prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.API.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/ticket-types", func(r chi.Router) {
		r.Get("/", controllers.ListTicketTypes(deps.TicketTypes, deps.States, logg))
		r.Get("/{ticketTypeId}", controllers.GetTicketType(deps.TicketTypes, deps.States, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		if cfg.API.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.API.RequestTimeout))
		}
		r.Post("/recompute", controllers.AdminRecomputeFull(deps.Recomputer, logg))
		r.Post("/recompute/incremental", controllers.AdminRecomputeIncremental(deps.Recomputer, logg))
		r.Get("/audit", controllers.AdminAudit(deps.Auditor, logg))
	})

	return r
}

