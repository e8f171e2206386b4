// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/danielhkuo/fuelwatch/cliparse"
	"github.com/danielhkuo/fuelwatch/handlers"
	"github.com/danielhkuo/fuelwatch/middleware"
)

func NewRouter(svc handlers.Service, cfg cliparse.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	reportHandler := handlers.NewReportHandler(svc)
	interactionHandler := handlers.NewInteractionHandler(svc)
	statusHandler := handlers.NewStatusHandler(svc)
	userHandler := handlers.NewUserHandler(svc)
	healthHandler := handlers.NewHealthHandler(svc)

	r.Get("/health", healthHandler.Check)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fuelwatch API v1"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.WithLogging)
		r.Use(middleware.Identity(cfg.JWTSecret))

		// Reports
		r.With(middleware.RequireUser).Post("/reports", reportHandler.CreateReport)
		r.Get("/reports", reportHandler.ListReports)
		r.Get("/reports/{id}", reportHandler.GetReport)
		r.With(middleware.RequireUser).Post("/reports/{id}/interactions", interactionHandler.RecordInteraction)

		// Stations
		r.Get("/stations/{id}/status", statusHandler.GetStatus)

		// Users
		r.Get("/users/{id}/trust", userHandler.GetTrust)
		r.Get("/users/{id}/trust/history", userHandler.GetTrustHistory)
		r.Get("/users/{id}/stats", userHandler.GetStats)
	})

	return r
}
