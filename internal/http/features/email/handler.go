package email

import (
	"context"
	"net/http"

	"github.com/tendant/tribe-auth/internal/httputil"
	"github.com/tendant/tribe-auth/pkg/auth"
)

// Service is the part of auth.SessionService used by verification endpoints.
type Service interface {
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) auth.Acknowledgement
}

// Handler handles email verification endpoints.
type Handler struct {
	service Service
}

// NewHandler creates a new email verification handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// VerifyRequest carries a verification token from the mailed link.
type VerifyRequest struct {
	Token string `json:"token"`
}

// ResendRequest asks for a fresh verification link.
type ResendRequest struct {
	Email string `json:"email"`
}

// VerifyEmail activates a pending account.
// POST /v1/auth/verify-email
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.Error(w, http.StatusBadRequest, "token is required")
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, auth.Acknowledgement{Message: "Email verified. You can now log in."})
}

// ResendVerification mails a new verification link, superseding earlier
// ones. The reply never reveals whether the account exists.
// POST /v1/auth/resend-verification
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	httputil.JSON(w, http.StatusOK, h.service.ResendVerification(r.Context(), req.Email))
}
