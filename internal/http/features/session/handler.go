package session

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/internal/http/middleware"
	"github.com/tendant/tribe-auth/internal/httputil"
	"github.com/tendant/tribe-auth/pkg/domain"
)

// Service is the part of auth.SessionService used by session endpoints.
type Service interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, refreshToken, accessToken string)
	LogoutAll(ctx context.Context, identityID uuid.UUID) error
}

// Handler handles session endpoints.
type Handler struct {
	service   Service
	transport httputil.TokenTransport
}

// NewHandler creates a new session handler.
func NewHandler(service Service, transport httputil.TokenTransport) *Handler {
	return &Handler{
		service:   service,
		transport: transport,
	}
}

// RefreshRequest carries a refresh token. Browser clients may omit it and
// rely on the refresh cookie.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token into a new token pair.
// POST /v1/auth/refresh
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	refreshToken := h.transport.RefreshToken(r, req.RefreshToken)
	if refreshToken == "" {
		httputil.Error(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := h.service.Refresh(r.Context(), refreshToken)
	if err != nil {
		h.transport.Clear(w, r)
		httputil.WriteError(w, err)
		return
	}

	h.transport.Write(w, r, http.StatusOK, pair, nil, false)
}

// Logout revokes the presented refresh token and, when sent, the access
// token. It always succeeds; an unreadable body falls back to the cookie.
// POST /v1/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = RefreshRequest{}
	}

	h.service.Logout(r.Context(), h.transport.RefreshToken(r, req.RefreshToken), h.transport.AccessToken(r))
	h.transport.Clear(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll ends every session of the current user.
// POST /v1/auth/logout/all
// Requires authentication
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, domain.ErrInvalidToken)
		return
	}

	if err := h.service.LogoutAll(r.Context(), principal.ID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.transport.Clear(w, r)
	w.WriteHeader(http.StatusNoContent)
}
