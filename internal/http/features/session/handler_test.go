package session

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/internal/http/middleware"
	"github.com/tendant/tribe-auth/internal/httputil"
	"github.com/tendant/tribe-auth/pkg/domain"
)

type fakeService struct {
	refreshErr    error
	logoutAllErr  error
	gotRefresh    string
	gotAccess     string
	loggedOutUser uuid.UUID
}

func (f *fakeService) Refresh(_ context.Context, token string) (*domain.TokenPair, error) {
	f.gotRefresh = token
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &domain.TokenPair{AccessToken: "a2", RefreshToken: "r2", TokenType: "Bearer", ExpiresIn: 900}, nil
}

func (f *fakeService) Logout(_ context.Context, refreshToken, accessToken string) {
	f.gotRefresh = refreshToken
	f.gotAccess = accessToken
}

func (f *fakeService) LogoutAll(_ context.Context, id uuid.UUID) error {
	f.loggedOutUser = id
	return f.logoutAllErr
}

func newHandler(svc Service) *Handler {
	return NewHandler(svc, httputil.TokenTransport{Cookies: httputil.DefaultCookieConfig(), RefreshTTL: time.Hour})
}

func TestRefresh_Validation(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "empty body",
			body:           `{}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "refresh_token is required",
		},
		{
			name:           "empty refresh_token",
			body:           `{"refresh_token": ""}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "refresh_token is required",
		},
		{
			name:           "invalid json",
			body:           `{invalid}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
	}

	svc := &fakeService{}
	handler := newHandler(svc)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			handler.Refresh(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.expectedStatus)
			}

			var response map[string]string
			json.NewDecoder(rec.Body).Decode(&response)
			if response["error"] != tt.expectedError {
				t.Errorf("Error = %q, want %q", response["error"], tt.expectedError)
			}
		})
	}

	if svc.gotRefresh != "" {
		t.Errorf("service should not be called, got token %q", svc.gotRefresh)
	}
}

func TestRefresh_Body(t *testing.T) {
	svc := &fakeService{}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", bytes.NewBufferString(`{"refresh_token":"r1"}`))
	rec := httptest.NewRecorder()

	newHandler(svc).Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.gotRefresh != "r1" {
		t.Errorf("refresh token = %q, want r1", svc.gotRefresh)
	}
	var resp httputil.TokenResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.AccessToken != "a2" || resp.RefreshToken != "r2" {
		t.Errorf("unexpected tokens %+v", resp)
	}
}

func TestRefresh_Cookie(t *testing.T) {
	svc := &fakeService{}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)
	req.Header.Set("X-Client-Type", "web")
	req.AddCookie(&http.Cookie{Name: httputil.RefreshCookie, Value: "r-cookie"})
	rec := httptest.NewRecorder()

	newHandler(svc).Refresh(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if svc.gotRefresh != "r-cookie" {
		t.Errorf("refresh token = %q, want r-cookie", svc.gotRefresh)
	}
	if n := len(rec.Result().Cookies()); n != 2 {
		t.Errorf("got %d cookies, want 2", n)
	}
}

func TestRefresh_Rejected(t *testing.T) {
	for err, want := range map[error]int{
		domain.ErrInvalidToken:             http.StatusUnauthorized,
		domain.ErrTokenExpired:             http.StatusUnauthorized,
		domain.ErrReauthenticationRequired: http.StatusUnauthorized,
	} {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", bytes.NewBufferString(`{"refresh_token":"r1"}`))
		req.Header.Set("X-Client-Type", "web")
		rec := httptest.NewRecorder()

		newHandler(&fakeService{refreshErr: err}).Refresh(rec, req)

		if rec.Code != want {
			t.Errorf("%v: status = %d, want %d", err, rec.Code, want)
		}
		for _, c := range rec.Result().Cookies() {
			if c.MaxAge >= 0 {
				t.Errorf("%v: cookie %s not cleared", err, c.Name)
			}
		}
	}
}

func TestLogout(t *testing.T) {
	svc := &fakeService{}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", bytes.NewBufferString(`{"refresh_token":"r1"}`))
	req.Header.Set("Authorization", "Bearer a1")
	rec := httptest.NewRecorder()

	newHandler(svc).Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if svc.gotRefresh != "r1" || svc.gotAccess != "a1" {
		t.Errorf("logout got refresh=%q access=%q", svc.gotRefresh, svc.gotAccess)
	}

	// Nothing to revoke still succeeds.
	rec = httptest.NewRecorder()
	newHandler(&fakeService{}).Logout(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("empty logout: status = %d, want %d", rec.Code, http.StatusNoContent)
	}
}

func TestLogout_MalformedBodyUsesCookie(t *testing.T) {
	svc := &fakeService{}
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", bytes.NewBufferString(`{not json`))
	req.Header.Set("X-Client-Type", "web")
	req.AddCookie(&http.Cookie{Name: httputil.RefreshCookie, Value: "cookie-refresh"})
	req.AddCookie(&http.Cookie{Name: httputil.AccessCookie, Value: "cookie-access"})
	rec := httptest.NewRecorder()

	newHandler(svc).Logout(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if svc.gotRefresh != "cookie-refresh" || svc.gotAccess != "cookie-access" {
		t.Errorf("logout got refresh=%q access=%q", svc.gotRefresh, svc.gotAccess)
	}
}

func TestLogoutAll(t *testing.T) {
	svc := &fakeService{}
	id := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout/all", nil)
	ctx := context.WithValue(req.Context(), middleware.PrincipalKey, &domain.Principal{ID: id, Role: domain.RoleUser})
	rec := httptest.NewRecorder()

	newHandler(svc).LogoutAll(rec, req.WithContext(ctx))

	if rec.Code != http.StatusNoContent {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if svc.loggedOutUser != id {
		t.Errorf("logged out %v, want %v", svc.loggedOutUser, id)
	}

	rec = httptest.NewRecorder()
	newHandler(svc).LogoutAll(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/logout/all", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no principal: status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
