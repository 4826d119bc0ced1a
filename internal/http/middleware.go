package http

import (
	"context"
	"net/http"
	"strings"

	"coppia/internal/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

// userID returns the authenticated user from the request context. Empty
// only on routes that skipped the auth middleware.
func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)
	return id
}

// authMiddleware validates the bearer token and stores the user ID in the
// request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			s.metrics.authFailures.Add(1)
			writeError(w, r, auth.ErrMissingToken)
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		claims, err := s.jwt.Validate(token)
		if err != nil {
			s.metrics.authFailures.Add(1)
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimitMiddleware enforces the injected limiter, keyed by user ID when
// authenticated and by remote address otherwise.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			key := userID(r)
			if key == "" {
				key = r.RemoteAddr
			}
			if !s.limiter.Allow(key) {
				s.metrics.rateLimitHits.Add(1)
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
