// Package api exposes the ledger and market data over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Status describes the running instance for GET /api/status.
type Status struct {
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	Provider  string `json:"quote_provider"`
	StartTime string `json:"start_time"`
	Uptime    string `json:"uptime"`
}

// NewRouter creates a chi router with every route registered.
func NewRouter(h *Handler, name, provider string, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(requestLogging(logger.Named("http")))
	r.Use(middleware.Recoverer)

	instance := uuid.NewString()
	started := time.Now()

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			WriteJSON(w, http.StatusOK, Status{
				UUID:      instance,
				Name:      name,
				Provider:  provider,
				StartTime: started.Format(time.RFC3339),
				Uptime:    time.Since(started).Round(time.Second).String(),
			})
		})

		r.Route("/market", func(r chi.Router) {
			r.Get("/search", h.Search)
			r.Get("/quote/{symbol}", h.Quote)
			r.Get("/daily/{symbol}", h.DailySeries)
		})

		r.Route("/user", func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/account", h.ProvisionAccount)
			r.Get("/balance", h.Balance)
			r.Get("/portfolio", h.Portfolio)
			r.Get("/valuation", h.Valuation)
			r.Get("/statistics", h.Statistics)
			r.Get("/transactions", h.Transactions)
			r.Post("/transactions", h.PlaceOrder)
		})
	})

	return r
}
