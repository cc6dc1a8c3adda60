// Package middleware provides HTTP middleware for authentication and authorization.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// organizationIDKey is the context key for storing the authenticated organization ID.
const organizationIDKey ContextKey = "organizationID"

// TokenValidator is an interface for validating JWT tokens.
// This allows the middleware to work with any JWT service implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (OrganizationIDGetter, error)
}

// OrganizationIDGetter is an interface for extracting the organization ID from token claims.
type OrganizationIDGetter interface {
	GetOrganizationID() uuid.UUID
}

// AuthMiddleware creates middleware that validates bearer tokens and adds the
// organization ID to the request context.
func AuthMiddleware(jwtService TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w)
				return
			}

			// Handle case-insensitive "Bearer" prefix
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w)
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), organizationIDKey, claims.GetOrganizationID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="autopilot"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// GetOrganizationID extracts the authenticated organization ID from the request context.
func GetOrganizationID(r *http.Request) (uuid.UUID, error) {
	orgID, ok := r.Context().Value(organizationIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("organization ID not found in request context")
	}
	return orgID, nil
}

// WithOrganizationID returns a copy of ctx carrying orgID, for tests and
// internal callers that bypass token validation.
func WithOrganizationID(ctx context.Context, orgID uuid.UUID) context.Context {
	return context.WithValue(ctx, organizationIDKey, orgID)
}
