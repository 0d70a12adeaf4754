package social

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/tribe-auth/internal/httputil"
	"github.com/tendant/tribe-auth/pkg/auth"
	"github.com/tendant/tribe-auth/pkg/domain"
)

// Service is the part of auth.SessionService used by social sign-in.
type Service interface {
	SocialAuth(ctx context.Context, provider domain.Provider, providerToken string) (*auth.Session, error)
}

// Handler exchanges provider tokens for sessions.
type Handler struct {
	service   Service
	transport httputil.TokenTransport
}

// NewHandler creates a new social sign-in handler.
func NewHandler(service Service, transport httputil.TokenTransport) *Handler {
	return &Handler{
		service:   service,
		transport: transport,
	}
}

// Request carries the credential obtained from the provider SDK: an ID token
// for Google and Apple, an access token for Facebook.
type Request struct {
	Token string `json:"token"`
}

// SignIn signs in or registers through a third-party provider.
// POST /v1/auth/social/{provider}
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req Request
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	provider := domain.Provider(chi.URLParam(r, "provider"))
	session, err := h.service.SocialAuth(r.Context(), provider, req.Token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if session.Created {
		status = http.StatusCreated
	}
	h.transport.Write(w, r, status, session.Tokens, session.Identity, session.Created)
}
