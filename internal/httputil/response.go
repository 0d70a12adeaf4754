package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/tendant/tribe-auth/pkg/domain"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string      `json:"error"`
	Code  domain.Kind `json:"code,omitempty"`
}

// JSON writes payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes a plain error message.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// WriteError maps an error from the auth core onto a status code and a
// stable error kind. The message comes from domain.PublicMessage, never from
// err.Error().
func WriteError(w http.ResponseWriter, err error) {
	JSON(w, StatusFor(err), ErrorResponse{Error: domain.PublicMessage(err), Code: domain.KindOf(err)})
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmailTaken), errors.Is(err, domain.ErrAccountNeedsLinking):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedProvider):
		return http.StatusBadRequest
	}
	switch domain.KindOf(err) {
	case domain.KindInvalidCredentials, domain.KindInvalidToken, domain.KindTokenExpired, domain.KindSocialAuth:
		return http.StatusUnauthorized
	case domain.KindAccountLocked:
		return http.StatusLocked
	case domain.KindAccountNotVerified, domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// DecodeJSON reads a JSON request body into dst. It writes the error reply
// itself and returns false when the body cannot be used.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	Error(w, http.StatusBadRequest, "invalid request body")
	return false
}
