package api

import (
	"net/http"

	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/autherr"
)

const (
	msgBadCredentials   = "Incorrect email or password"
	msgCouldNotValidate = "Could not validate credentials"
	msgInvalidRefresh   = "Invalid refresh token"
	msgNotAuthenticated = "Not authenticated"
	msgInactiveUser     = "Inactive user"
)

func writeUnauthorized(w http.ResponseWriter, code, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, code, msg)
}

// writeAuthError maps an autherr kind to its status. tokenMsg replaces the
// internal detail of token failures so clients cannot tell them apart.
func (h *Handler) writeAuthError(w http.ResponseWriter, r *http.Request, event string, err error, tokenMsg string) {
	switch {
	case autherr.IsSessionRevoked(err):
		writeUnauthorized(w, "session_revoked", "session revoked")
	case autherr.IsToken(err):
		writeUnauthorized(w, "invalid_token", tokenMsg)
	case autherr.IsAuthentication(err):
		writeUnauthorized(w, "authentication_failed", autherr.Message(err, msgBadCredentials))
	case autherr.IsAuthorization(err):
		writeError(w, http.StatusForbidden, "forbidden", autherr.Message(err, "forbidden"))
	case autherr.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation_failed", autherr.Message(err, "invalid request"))
	default:
		h.log.ErrorContext(r.Context(), event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeServerError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}
