// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielhkuo/fuelwatch/middleware"
)

type HealthHandler struct {
	svc Service
}

func NewHealthHandler(svc Service) *HealthHandler {
	return &HealthHandler{svc: svc}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{"store": "ok"}}
	code := http.StatusOK
	if err := h.svc.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Checks["store"] = "error: " + err.Error()
		code = http.StatusServiceUnavailable
	}
	middleware.JSONResponse(w, code, resp)
}
