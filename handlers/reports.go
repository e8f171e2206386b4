// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/danielhkuo/fuelwatch/middleware"
	"github.com/danielhkuo/fuelwatch/models"
)

type ReportHandler struct {
	svc Service
}

func NewReportHandler(svc Service) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// CreateReport handles POST /reports
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	// Parse request
	var req models.CreateReportRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate and store the report
	report, err := h.svc.SubmitReport(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Return created report
	middleware.JSONResponse(w, http.StatusCreated, models.CreateReportResponse{
		Report:  report,
		Message: "Report submitted",
	})
}

// GetReport handles GET /reports/{id}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, report)
}

// ListReports handles GET /reports?station_id=&reporter_id=&status=&report_type=&limit=&offset=
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := models.ReportQuery{
		StationID:  params.Get("station_id"),
		ReporterID: params.Get("reporter_id"),
		Status:     models.ReportStatus(params.Get("status")),
		ReportType: models.ReportType(params.Get("report_type")),
	}

	var err error
	if q.Limit, err = intParam(params.Get("limit")); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if q.Offset, err = intParam(params.Get("offset")); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	list, err := h.svc.ListReports(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, list)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
