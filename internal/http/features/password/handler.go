package password

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tendant/tribe-auth/internal/httputil"
	"github.com/tendant/tribe-auth/pkg/auth"
	"github.com/tendant/tribe-auth/pkg/domain"
)

// Service is the part of auth.SessionService used by password endpoints.
type Service interface {
	Register(ctx context.Context, email, password string) (*domain.Identity, error)
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	RequestPasswordReset(ctx context.Context, email string) auth.Acknowledgement
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// Handler handles password authentication endpoints.
type Handler struct {
	logger    *slog.Logger
	service   Service
	transport httputil.TokenTransport
}

// NewHandler creates a new password handler.
func NewHandler(logger *slog.Logger, service Service, transport httputil.TokenTransport) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		transport: transport,
	}
}

// CredentialsRequest is the body of register and login requests.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	User    *httputil.UserResponse `json:"user"`
	Message string                 `json:"message"`
}

// ResetRequest asks for a password reset link.
type ResetRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest completes a password reset.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// MessageResponse carries a human readable outcome.
type MessageResponse struct {
	Message string `json:"message"`
}

// Register creates a pending account and mails a verification link.
// POST /v1/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	identity, err := h.service.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.Info("user registered", "user_id", identity.ID)
	httputil.JSON(w, http.StatusCreated, RegisterResponse{
		User:    httputil.NewUserResponse(identity),
		Message: "Registration successful. Check your email to verify your account.",
	})
}

// Login authenticates with email and password.
// POST /v1/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.transport.Write(w, r, http.StatusOK, session.Tokens, session.Identity, false)
}

// RequestPasswordReset mails a reset link. The reply never reveals whether
// the account exists.
// POST /v1/auth/password/reset-request
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		httputil.Error(w, http.StatusBadRequest, "email is required")
		return
	}

	httputil.JSON(w, http.StatusOK, h.service.RequestPasswordReset(r.Context(), req.Email))
}

// ResetPassword sets a new password using a reset token. Every session of
// the account is ended.
// POST /v1/auth/password/reset
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		httputil.Error(w, http.StatusBadRequest, "token and new_password are required")
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.transport.Clear(w, r)
	httputil.JSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset. Please log in again."})
}
