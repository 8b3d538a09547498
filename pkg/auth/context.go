// Context helpers for extracting authentication information from request
// contexts. These simplify access to JWT claims injected by the auth
// middleware.
//
// Example usage in a service:
//
//	func (s *Service) DoSomething(ctx context.Context) error {
//	    userID, err := auth.RequireUserIDFromContext(ctx)
//	    if err != nil {
//	        return fmt.Errorf("authentication required: %w", err)
//	    }
//	    // ...
//	}
package auth

import (
	"context"
	"fmt"
)

// GetUserIDFromContext extracts the user ID from JWT claims in the context.
// Returns empty string if not authenticated or claims are missing.
// Use this when you only need the user ID and can handle empty string gracefully.
func GetUserIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// GetRoleFromContext extracts the role from JWT claims in the context.
// Returns the empty role if not authenticated or claims are missing.
func GetRoleFromContext(ctx context.Context) Role {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.UserRole()
}

// RequireUserIDFromContext extracts the user ID from context and returns an error if not found.
// Use this when user ID is required for the operation.
func RequireUserIDFromContext(ctx context.Context) (string, error) {
	userID := GetUserIDFromContext(ctx)
	if userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// RequireClaimsFromContext extracts the full claims from context.
// Returns an error if the request is not authenticated.
func RequireClaimsFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return nil, fmt.Errorf("authentication required: no claims in context")
	}
	return claims, nil
}
