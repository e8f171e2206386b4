// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/danielhkuo/fuelwatch/middleware"
	"github.com/danielhkuo/fuelwatch/models"
)

type InteractionHandler struct {
	svc Service
}

func NewInteractionHandler(svc Service) *InteractionHandler {
	return &InteractionHandler{svc: svc}
}

// RecordInteraction handles POST /reports/{id}/interactions.
// Repeating an interaction replaces the caller's previous one.
func (h *InteractionHandler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	// Parse request
	var req models.InteractRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Apply the vote or flag
	res, err := h.svc.RecordInteraction(r.Context(), chi.URLParam(r, "id"), middleware.UserID(r.Context()), req.InteractionType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, res)
}
