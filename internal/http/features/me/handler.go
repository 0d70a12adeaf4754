package me

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/internal/http/middleware"
	"github.com/tendant/tribe-auth/internal/httputil"
	"github.com/tendant/tribe-auth/pkg/domain"
)

// Service loads identities.
type Service interface {
	Identity(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
}

// Handler handles user profile endpoints.
type Handler struct {
	service Service
}

// NewHandler creates a new profile handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetMe returns the current user's profile.
// GET /v1/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipal(r.Context())
	if !ok {
		httputil.WriteError(w, domain.ErrInvalidToken)
		return
	}

	identity, err := h.service.Identity(r.Context(), principal.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, httputil.NewUserResponse(identity))
}
