package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/internal/http/middleware"
	"github.com/tendant/tribe-auth/internal/httputil"
)

// Service is the part of auth.SessionService used by admin endpoints.
type Service interface {
	LogoutAll(ctx context.Context, identityID uuid.UUID) error
}

// Handler handles administrative endpoints. Routes must be mounted behind
// middleware that admits admins only.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler creates a new admin handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// LogoutAll ends every session of the user named in the path.
// POST /v1/admin/users/{id}/logout-all
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	if err := h.service.LogoutAll(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}

	if principal, ok := middleware.GetPrincipal(r.Context()); ok {
		h.logger.Info("admin ended all sessions", "admin_id", principal.ID, "user_id", id)
	}
	w.WriteHeader(http.StatusNoContent)
}
