// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

	r.Use(middleware.WithLogging)

Logs request start (method, path, remote) and completion (status, duration_ms).

# Identity

	r.Use(middleware.Identity(cfg.JWTSecret))
	r.With(middleware.RequireUser).Post("/reports", h.Create)

With a JWT secret the caller is the "sub" claim of an HS256 bearer token.
Without one the X-User-ID header from the gateway is trusted. Handlers read
the caller with middleware.UserID(r.Context()).

# CORS

	r.Use(middleware.CORS(cfg.CORSOrigins))

Backed by go-chi/cors. Allows GET, POST and OPTIONS with Content-Type,
Authorization and X-User-ID.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.CreateReportRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

ParseJSONBody rejects unknown fields, trailing data and bodies over 64 KiB.
*/
package middleware
