package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// mockAuthService is a mock implementation of AuthService for testing.
type mockAuthService struct {
	claims      *Claims
	token       string
	validateErr error
	roleErr     error
	scopeErr    error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	if m.validateErr != nil {
		return nil, "", m.validateErr
	}
	return m.claims, m.token, nil
}

func (m *mockAuthService) RequireKnownRole(claims *Claims) error {
	return m.roleErr
}

func (m *mockAuthService) ValidateRestaurantAccess(claims *Claims, restaurantID uuid.UUID) error {
	return m.scopeErr
}

func TestMiddleware_RequireAuth_Success(t *testing.T) {
	claims := &Claims{Role: string(RoleAnalyst)}
	authService := &mockAuthService{claims: claims, token: "test-token"}
	middleware := NewMiddleware(authService, zap.NewNop())

	var handlerCalled bool
	var ctxClaims *Claims
	var ctxToken string

	handler := middleware.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		ctxClaims, _ = GetClaims(r.Context())
		ctxToken, _ = GetToken(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if !handlerCalled {
		t.Error("expected handler to be called")
	}

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	if ctxClaims == nil || ctxClaims.Role != string(RoleAnalyst) {
		t.Error("expected claims to be set in context")
	}

	if ctxToken != "test-token" {
		t.Errorf("expected token 'test-token' in context, got %q", ctxToken)
	}
}

func TestMiddleware_RequireAuth_Unauthorized(t *testing.T) {
	authService := &mockAuthService{validateErr: ErrMissingAuthorization}
	middleware := NewMiddleware(authService, zap.NewNop())

	handler := middleware.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}

	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if response["error"] != "unauthorized" {
		t.Errorf("expected error 'unauthorized', got %q", response["error"])
	}
}

func TestMiddleware_RequireAuth_UnknownRole(t *testing.T) {
	authService := &mockAuthService{
		claims:  &Claims{Role: "wizard"},
		roleErr: ErrUnknownRole,
	}
	middleware := NewMiddleware(authService, zap.NewNop())

	handler := middleware.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rec.Code)
	}
}

func TestMiddleware_RequirePermission_Granted(t *testing.T) {
	claims := &Claims{Role: string(RoleAnalyst)}
	authService := &mockAuthService{claims: claims, token: "test-token"}
	middleware := NewMiddleware(authService, zap.NewNop())

	var handlerCalled bool
	handler := middleware.RequirePermission(PermQueryRun)(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/nlq/process", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if !handlerCalled {
		t.Error("expected handler to be called")
	}

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestMiddleware_RequirePermission_Denied(t *testing.T) {
	// Viewers lack query:run.
	claims := &Claims{Role: string(RoleViewer)}
	authService := &mockAuthService{claims: claims, token: "test-token"}
	middleware := NewMiddleware(authService, zap.NewNop())

	handler := middleware.RequirePermission(PermQueryRun)(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/nlq/process", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rec.Code)
	}

	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if response["error"] != "forbidden" {
		t.Errorf("expected error 'forbidden', got %q", response["error"])
	}
}

func TestMiddleware_RequirePermission_Unauthorized(t *testing.T) {
	authService := &mockAuthService{validateErr: ErrMissingAuthorization}
	middleware := NewMiddleware(authService, zap.NewNop())

	handler := middleware.RequirePermission(PermHistoryRead)(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/nlq/history", nil)
	rec := httptest.NewRecorder()

	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}

func TestClaims_CanAccessRestaurant(t *testing.T) {
	allowed := uuid.New()
	other := uuid.New()

	claims := &Claims{RestaurantIDs: []string{allowed.String(), uuid.NewString()}}

	if !claims.CanAccessRestaurant(allowed) {
		t.Error("expected access to listed restaurant")
	}
	if claims.CanAccessRestaurant(other) {
		t.Error("expected no access to unlisted restaurant")
	}
}
