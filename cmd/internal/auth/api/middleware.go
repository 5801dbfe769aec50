package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/finovotech001-eng/zuperior-api/cmd/identity"
)

type ctxKey int

const (
	subjectKey ctxKey = iota
	userKey
)

// SubjectFromContext returns the user ID established by RequireAuth. It is
// the only identity downstream handlers may trust.
func SubjectFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(subjectKey).(string)
	return v, ok && v != ""
}

// UserFromContext returns the account loaded by RequireAuth.
func UserFromContext(ctx context.Context) (identity.User, bool) {
	u, ok := ctx.Value(userKey).(identity.User)
	return u, ok
}

// RequireAuth admits requests carrying a bearer access credential with at
// least one live session behind it, for an account that is still active.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			writeUnauthorized(w, "unauthorized", msgNotAuthenticated)
			return
		}

		ctx := r.Context()
		subject, err := h.sessions.ValidateAccess(ctx, tok, h.now())
		if err != nil {
			h.writeAuthError(w, r, "auth.require_auth.fail", err, msgCouldNotValidate)
			return
		}

		u, err := h.users.GetByID(ctx, subject)
		if identity.IsNotFound(err) {
			writeUnauthorized(w, "invalid_token", msgCouldNotValidate)
			return
		}
		if err != nil {
			h.log.ErrorContext(ctx, "auth.require_auth.load_user.fail", "err", err)
			writeServerError(w)
			return
		}
		if !u.Active() {
			writeError(w, http.StatusForbidden, "inactive_user", msgInactiveUser)
			return
		}

		ctx = context.WithValue(ctx, subjectKey, subject)
		ctx = context.WithValue(ctx, userKey, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole must run inside RequireAuth. Admins pass every role check.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, "unauthorized", msgNotAuthenticated)
				return
			}
			if !strings.EqualFold(u.Role, role) && !u.IsAdmin() {
				writeError(w, http.StatusForbidden, "forbidden", fmt.Sprintf("Operation requires %s role", role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func methodOnly(method string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
