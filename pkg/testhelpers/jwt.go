// Package testhelpers provides utilities for testing intelligence-engine
// components.
package testhelpers

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// GenerateTestJWT creates a test JWT token for use when verification is
// disabled. The token has a valid structure but no signature (alg: none).
// This is useful for testing auth flows without needing real JWKS validation.
func GenerateTestJWT(sub, role string, restaurantIDs ...string) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))

	payload := fmt.Sprintf(`{"sub":"%s"`, sub)
	if role != "" {
		payload += fmt.Sprintf(`,"role":"%s"`, role)
	}
	if len(restaurantIDs) > 0 {
		quoted := make([]string, len(restaurantIDs))
		for i, rid := range restaurantIDs {
			quoted[i] = fmt.Sprintf("%q", rid)
		}
		payload += fmt.Sprintf(`,"rids":[%s]`, strings.Join(quoted, ","))
	}
	payload += "}"

	encodedPayload := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return fmt.Sprintf("%s.%s.", header, encodedPayload)
}

// GenerateTestJWTWithBearer returns the token with a "Bearer " prefix for
// the Authorization header.
func GenerateTestJWTWithBearer(sub, role string, restaurantIDs ...string) string {
	return "Bearer " + GenerateTestJWT(sub, role, restaurantIDs...)
}
