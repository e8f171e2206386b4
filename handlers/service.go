// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/fuelwatch/middleware"
	"github.com/danielhkuo/fuelwatch/models"
)

// Service is the engine surface the handlers call. *engine.Engine implements it.
type Service interface {
	SubmitReport(ctx context.Context, userID string, req models.CreateReportRequest) (models.Report, error)
	RecordInteraction(ctx context.Context, reportID, userID string, typ models.InteractionType) (models.InteractResult, error)
	GetCurrentStatus(ctx context.Context, stationID string) (models.StationCurrentStatus, error)
	CachedStatus(ctx context.Context, stationID string) (models.StationCurrentStatus, bool, error)
	GetTrustScore(ctx context.Context, userID string) (float64, error)
	TrustHistory(ctx context.Context, userID string) ([]models.TrustScoreHistory, error)
	GetUserStats(ctx context.Context, userID string) (models.UserStats, error)
	GetReport(ctx context.Context, reportID string) (models.Report, error)
	ListReports(ctx context.Context, q models.ReportQuery) (models.ReportList, error)
	Ping(ctx context.Context) error
}

// writeError maps the error taxonomy to a status code. Validation failures
// carry their reason; internal failures get a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		middleware.ErrorResponse(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, models.ErrValidation):
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrRateLimited):
		middleware.ErrorResponse(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, models.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Not found")
	case errors.Is(err, models.ErrConflict):
		middleware.ErrorResponse(w, http.StatusConflict, "Concurrent modification, please retry")
	default:
		slog.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal error")
	}
}
