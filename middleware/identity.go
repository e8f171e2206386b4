// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielhkuo/fuelwatch/auth"
)

// HeaderUserID carries the caller's id when an upstream gateway has
// already authenticated the request.
const HeaderUserID = "X-User-ID"

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID returns ctx carrying userID
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the caller resolved by Identity, or ""
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Identity resolves the caller. With a secret, the subject of an HS256
// bearer token is used and a bad token is rejected with 401. Without one,
// the X-User-ID header set by the gateway is trusted. Requests without
// identity pass through anonymous.
func Identity(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string
			if secret != "" {
				header := r.Header.Get("Authorization")
				if header != "" {
					token, ok := strings.CutPrefix(header, "Bearer ")
					if !ok {
						ErrorResponse(w, http.StatusUnauthorized, "Authorization must be a Bearer token")
						return
					}
					sub, err := auth.ParseUserToken(token, secret)
					if err != nil {
						slog.Debug("token validation failed", "error", err)
						ErrorResponse(w, http.StatusUnauthorized, "Invalid token")
						return
					}
					userID = sub
				}
			} else {
				userID = strings.TrimSpace(r.Header.Get(HeaderUserID))
			}

			if userID != "" {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects anonymous requests with 401
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserID(r.Context()) == "" {
			ErrorResponse(w, http.StatusUnauthorized, "User identity required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
