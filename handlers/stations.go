// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/danielhkuo/fuelwatch/auth"
	"github.com/danielhkuo/fuelwatch/middleware"
)

type StatusHandler struct {
	svc Service
}

func NewStatusHandler(svc Service) *StatusHandler {
	return &StatusHandler{svc: svc}
}

// GetStatus handles GET /stations/{id}/status. With ?cached=true the last
// computed snapshot is returned without recomputing, or 404 if there is none.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	stationID := chi.URLParam(r, "id")
	if !auth.ValidUUID(stationID) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "station_id: must be a UUID")
		return
	}

	if r.URL.Query().Get("cached") == "true" {
		status, ok, err := h.svc.CachedStatus(r.Context(), stationID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			middleware.ErrorResponse(w, http.StatusNotFound, "No status computed yet")
			return
		}
		middleware.JSONResponse(w, http.StatusOK, status)
		return
	}

	status, err := h.svc.GetCurrentStatus(r.Context(), stationID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, status)
}
