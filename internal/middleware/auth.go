package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/profitlens/profitlens/internal/utils"
)

type contextKey string

const ClaimsContextKey contextKey = "claims"

// Auth returns middleware that verifies Bearer JWT tokens and stores the
// claims on the request context
func Auth(jwtSecret string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(parts[1], jwtSecret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFrom extracts the verified claims from a request, nil if absent
func ClaimsFrom(r *http.Request) jwt.MapClaims {
	claims, _ := r.Context().Value(ClaimsContextKey).(jwt.MapClaims)
	return claims
}

// IsAdmin reports whether the request carries an admin role claim
func IsAdmin(r *http.Request) bool {
	claims := ClaimsFrom(r)
	if claims == nil {
		return false
	}
	role, _ := claims["role"].(string)
	return role == "admin"
}
