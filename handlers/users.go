// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/danielhkuo/fuelwatch/middleware"
	"github.com/danielhkuo/fuelwatch/models"
)

type UserHandler struct {
	svc Service
}

func NewUserHandler(svc Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// GetTrust handles GET /users/{id}/trust
func (h *UserHandler) GetTrust(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	score, err := h.svc.GetTrustScore(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.TrustScoreResponse{
		UserID:     userID,
		TrustScore: score,
	})
}

// GetTrustHistory handles GET /users/{id}/trust/history
func (h *UserHandler) GetTrustHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.TrustHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, history)
}

// GetStats handles GET /users/{id}/stats
func (h *UserHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.GetUserStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, stats)
}
