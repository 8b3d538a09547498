package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// mockJWKSClient is a mock implementation of JWKSClientInterface for testing.
type mockJWKSClient struct {
	claims *Claims
	err    error
}

func (m *mockJWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.claims, nil
}

func (m *mockJWKSClient) Close() {}

func TestAuthService_ValidateRequest_Cookie(t *testing.T) {
	expectedClaims := &Claims{Role: string(RoleAnalyst)}

	service := NewAuthService(&mockJWKSClient{claims: expectedClaims}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: "bitebase_jwt", Value: "test-token"})

	claims, token, err := service.ValidateRequest(req)
	if err != nil {
		t.Fatalf("ValidateRequest failed: %v", err)
	}

	if token != "test-token" {
		t.Errorf("expected token 'test-token', got %q", token)
	}

	if claims.Role != string(RoleAnalyst) {
		t.Errorf("expected role 'analyst', got %q", claims.Role)
	}
}

func TestAuthService_ValidateRequest_AuthHeader(t *testing.T) {
	expectedClaims := &Claims{Role: string(RoleManager)}

	service := NewAuthService(&mockJWKSClient{claims: expectedClaims}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer my-jwt-token")

	claims, token, err := service.ValidateRequest(req)
	if err != nil {
		t.Fatalf("ValidateRequest failed: %v", err)
	}

	if token != "my-jwt-token" {
		t.Errorf("expected token 'my-jwt-token', got %q", token)
	}

	if claims.Role != string(RoleManager) {
		t.Errorf("expected role 'manager', got %q", claims.Role)
	}
}

func TestAuthService_ValidateRequest_CookieTakesPrecedence(t *testing.T) {
	// When both cookie and header are present, cookie should win
	service := NewAuthService(&mockJWKSClient{claims: &Claims{}}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: "bitebase_jwt", Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")

	_, token, err := service.ValidateRequest(req)
	if err != nil {
		t.Fatalf("ValidateRequest failed: %v", err)
	}

	if token != "cookie-token" {
		t.Errorf("expected cookie token to take precedence, got %q", token)
	}
}

func TestAuthService_ValidateRequest_MissingAuth(t *testing.T) {
	service := NewAuthService(&mockJWKSClient{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)

	_, _, err := service.ValidateRequest(req)
	if !errors.Is(err, ErrMissingAuthorization) {
		t.Errorf("expected ErrMissingAuthorization, got %v", err)
	}
}

func TestAuthService_ValidateRequest_InvalidHeaderFormat(t *testing.T) {
	service := NewAuthService(&mockJWKSClient{}, zap.NewNop())

	tests := []string{
		"my-jwt-token",
		"Basic dXNlcjpwYXNz",
		"Bearer too many parts",
	}

	for _, header := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
		req.Header.Set("Authorization", header)

		_, _, err := service.ValidateRequest(req)
		if !errors.Is(err, ErrInvalidAuthFormat) {
			t.Errorf("header %q: expected ErrInvalidAuthFormat, got %v", header, err)
		}
	}
}

func TestAuthService_ValidateRequest_TokenRejected(t *testing.T) {
	tokenErr := errors.New("token expired")
	service := NewAuthService(&mockJWKSClient{err: tokenErr}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer expired-token")

	_, _, err := service.ValidateRequest(req)
	if !errors.Is(err, tokenErr) {
		t.Errorf("expected token error to propagate, got %v", err)
	}
}

func TestAuthService_RequireKnownRole(t *testing.T) {
	service := NewAuthService(&mockJWKSClient{}, zap.NewNop())

	if err := service.RequireKnownRole(&Claims{Role: "manager"}); err != nil {
		t.Errorf("expected manager role to be accepted, got %v", err)
	}

	err := service.RequireKnownRole(&Claims{Role: "wizard"})
	if !errors.Is(err, ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole, got %v", err)
	}

	err = service.RequireKnownRole(&Claims{})
	if !errors.Is(err, ErrUnknownRole) {
		t.Errorf("expected ErrUnknownRole for missing role, got %v", err)
	}
}

func TestAuthService_ValidateRestaurantAccess(t *testing.T) {
	service := NewAuthService(&mockJWKSClient{}, zap.NewNop())

	allowed := uuid.New()
	other := uuid.New()
	claims := &Claims{RestaurantIDs: []string{allowed.String()}}

	if err := service.ValidateRestaurantAccess(claims, allowed); err != nil {
		t.Errorf("expected access to scoped restaurant, got %v", err)
	}

	err := service.ValidateRestaurantAccess(claims, other)
	if !errors.Is(err, ErrRestaurantForbidden) {
		t.Errorf("expected ErrRestaurantForbidden, got %v", err)
	}

	// Empty scope denies everything.
	err = service.ValidateRestaurantAccess(&Claims{}, allowed)
	if !errors.Is(err, ErrRestaurantForbidden) {
		t.Errorf("expected ErrRestaurantForbidden for empty scope, got %v", err)
	}
}
