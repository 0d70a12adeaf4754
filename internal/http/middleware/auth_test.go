package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/pkg/auth"
	"github.com/tendant/tribe-auth/pkg/domain"
)

type stubValidator struct {
	tokens map[string]*domain.Claims
}

func (s stubValidator) ValidateToken(_ context.Context, token string, expected domain.TokenKind) (*domain.Claims, error) {
	claims, ok := s.tokens[token]
	if !ok || claims.Kind != expected {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func testGate() (*auth.Gate, uuid.UUID) {
	id := uuid.New()
	return auth.NewGate(stubValidator{tokens: map[string]*domain.Claims{
		"user-token":    {Subject: id, Email: "u@x.com", Role: domain.RoleUser, Kind: domain.TokenKindAccess},
		"admin-token":   {Subject: uuid.New(), Role: domain.RoleAdmin, Kind: domain.TokenKindAccess},
		"refresh-token": {Subject: id, Role: domain.RoleUser, Kind: domain.TokenKindRefresh},
	}}), id
}

func principalEcho(t *testing.T, want uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok {
			t.Error("principal missing from context")
		} else if want != uuid.Nil && p.ID != want {
			t.Errorf("principal = %v, want %v", p.ID, want)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	gate, userID := testGate()
	handler := Auth(gate)(principalEcho(t, userID))

	tests := []struct {
		name       string
		header     string
		cookie     string
		wantStatus int
	}{
		{name: "bearer header", header: "Bearer user-token", wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer user-token", wantStatus: http.StatusOK},
		{name: "cookie fallback", cookie: "user-token", wantStatus: http.StatusOK},
		{name: "missing", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic dXNlcjpwdw==", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "refresh token as access", header: "Bearer refresh-token", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "access_token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("got status %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestAuth_Roles(t *testing.T) {
	gate, _ := testGate()
	handler := Auth(gate, domain.RoleAdmin)(principalEcho(t, uuid.Nil))

	for token, want := range map[string]int{
		"admin-token": http.StatusOK,
		"user-token":  http.StatusForbidden,
	} {
		req := httptest.NewRequest("POST", "/v1/admin/users/x/logout-all", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("%s: got status %d, want %d", token, w.Code, want)
		}
	}
}

func TestRequireRoles(t *testing.T) {
	gate, _ := testGate()
	handler := Auth(gate)(RequireRoles(domain.RoleOrganizer, domain.RoleAdmin)(principalEcho(t, uuid.Nil)))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer user-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("user: got status %d, want %d", w.Code, http.StatusForbidden)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("admin: got status %d, want %d", w.Code, http.StatusOK)
	}

	// Without Auth in front there is no principal.
	w = httptest.NewRecorder()
	RequireRoles(domain.RoleAdmin)(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no principal: got status %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRecoverAndLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Logging(logger)(Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/explode", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("got status %d, want %d", w.Code, http.StatusInternalServerError)
	}
	out := buf.String()
	if !strings.Contains(out, "panic recovered") {
		t.Errorf("panic not logged: %s", out)
	}
	if !strings.Contains(out, `"status":500`) {
		t.Errorf("request line missing status: %s", out)
	}
}
