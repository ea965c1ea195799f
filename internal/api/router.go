package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/terraclean-dev/remwatch/internal/aggregate"
	"github.com/terraclean-dev/remwatch/internal/provider"
	"github.com/terraclean-dev/remwatch/internal/ranking"
	"github.com/terraclean-dev/remwatch/internal/rotation"
)

func NewRouter(p provider.Provider, agg *aggregate.Aggregator, rank *ranking.Engine, sched *rotation.Scheduler, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(240))

	dash := NewDashboardHandler(p, agg, rank, sched)
	admin := NewAdminHandler(p, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/agencies", dash.Agencies)
		r.Get("/agencies/{key}/metrics", dash.Metrics)
		r.Get("/agencies/{key}/rankings", dash.Rankings)
		r.Get("/agencies/{key}/lagging", dash.Lagging)
		r.Get("/filters/options", dash.FilterOptions)
		r.Get("/display/current", dash.DisplayCurrent)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminToken))
			r.Post("/admin/reload", admin.Reload)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
