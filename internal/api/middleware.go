package api

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const visitorIDKey contextKey = "visitorID"

// VisitorID returns the authenticated visitor of the request.
func VisitorID(ctx context.Context) string {
	id, _ := ctx.Value(visitorIDKey).(string)
	return id
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authorization header must be a bearer token")
			return
		}

		visitorID, err := h.signer.ValidateVisitorToken(tokenString)
		if err != nil {
			h.logger.Debug("rejected visitor token", "error", err)
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), visitorIDKey, visitorID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
