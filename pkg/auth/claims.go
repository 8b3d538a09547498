// Package auth provides JWT-based authentication for the intelligence engine.
// It validates bearer tokens issued by the BiteBase identity service using
// JWKS endpoints and maps token claims onto roles and restaurant scope.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims represents the JWT claims structure from the BiteBase identity
// service. It embeds RegisteredClaims for standard JWT fields (sub, iss,
// exp, etc.) and adds custom claims for role and restaurant scope.
type Claims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email,omitempty"` // User email address
	Role          string   `json:"role,omitempty"`  // Access role (admin, manager, analyst, viewer)
	RestaurantIDs []string `json:"rids,omitempty"`  // Restaurant UUIDs the user may query
}

// UserRole returns the role claim as a typed Role.
func (c *Claims) UserRole() Role {
	return Role(c.Role)
}

// HasPermission reports whether the token's role grants the permission.
func (c *Claims) HasPermission(p Permission) bool {
	return c.UserRole().Can(p)
}

// CanAccessRestaurant reports whether the restaurant ID is in the token's
// accessible set. Admins are scoped like everyone else: the identity
// service mints them tokens listing every restaurant in their group.
func (c *Claims) CanAccessRestaurant(restaurantID uuid.UUID) bool {
	want := restaurantID.String()
	for _, rid := range c.RestaurantIDs {
		if rid == want {
			return true
		}
	}
	return false
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// ExtractClaimsFromContext extracts the user ID and role from JWT claims
// in context. Returns an error if not authenticated or claims are invalid.
func ExtractClaimsFromContext(ctx context.Context) (string, Role, error) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return "", "", fmt.Errorf("authentication required: no claims in context")
	}

	userID := claims.Subject
	if userID == "" {
		return "", "", fmt.Errorf("missing user ID in JWT claims")
	}

	role := claims.UserRole()
	if !role.Valid() {
		return "", "", fmt.Errorf("unknown role in JWT claims: %q", claims.Role)
	}

	return userID, role, nil
}
