package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/finovotech001-eng/zuperior-api/cmd/identity"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/autherr"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/otp"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/reset"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/auth/session"
	"github.com/finovotech001-eng/zuperior-api/cmd/internal/notify"
	"github.com/finovotech001-eng/zuperior-api/cmd/security/password"
)

// Handler serves the account and session endpoints.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.Store
	sessions *session.Service
	resets   *reset.Service
	hasher   password.Hasher
	codes    *otp.MemoryStore
	notifier notify.Dispatcher
	audit    AuditSink

	limiter   *ipLimiter
	dummyHash string
	clock     func() time.Time
}

// HandlerOption configures optional Handler collaborators.
type HandlerOption func(*Handler)

// WithAudit records security events to sink. Without it auditing is off.
func WithAudit(sink AuditSink) HandlerOption {
	return func(h *Handler) {
		h.audit = sink
	}
}

// WithNotifier replaces the default log-only dispatcher.
func WithNotifier(d notify.Dispatcher) HandlerOption {
	return func(h *Handler) {
		if d != nil {
			h.notifier = d
		}
	}
}

// WithCodeStore replaces the default email code store.
func WithCodeStore(s *otp.MemoryStore) HandlerOption {
	return func(h *Handler) {
		if s != nil {
			h.codes = s
		}
	}
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if now != nil {
			h.clock = now
		}
	}
}

func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Service, resets *reset.Service, hasher password.Hasher, opts ...HandlerOption) (*Handler, error) {
	if users == nil || sessions == nil || resets == nil || hasher == nil {
		return nil, errors.New("api: nil dependency")
	}
	if log == nil {
		log = slog.Default()
	}
	cfg = cfg.normalized()

	h := &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		resets:   resets,
		hasher:   hasher,
		codes:    otp.NewMemoryStore(otp.DefaultTTL),
		notifier: notify.LogDispatcher{Log: log},
		limiter:  newIPLimiter(cfg.RatePerMinute, cfg.RateBurst, cfg.RateIdleTTL),
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	// Dummy hash for timing-resistant login checks.
	if hash, err := hasher.Hash("dummy-password-for-timing-only"); err == nil {
		h.dummyHash = hash
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/register", h.handleRegister)
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/login/json", h.handleLoginJSON)
	mux.HandleFunc("/auth/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/forgot-password", h.handleForgotPassword)
	mux.HandleFunc("/auth/reset-password", h.handleResetPassword)
	mux.HandleFunc("/auth/email/send-code", h.handleSendCode)
	mux.HandleFunc("/auth/email/verify-code", h.handleVerifyCode)

	mux.Handle("/auth/logout", methodOnly(http.MethodPost, h.RequireAuth(http.HandlerFunc(h.handleLogout))))
	mux.Handle("/auth/logout-all", methodOnly(http.MethodPost, h.RequireAuth(http.HandlerFunc(h.handleLogoutAll))))
	mux.Handle("/auth/active-sessions", methodOnly(http.MethodGet, h.RequireAuth(http.HandlerFunc(h.handleActiveSessions))))
	mux.Handle("/auth/me", methodOnly(http.MethodGet, h.RequireAuth(http.HandlerFunc(h.handleMe))))

	adminOnly := RequireRole(identity.RoleAdmin)
	mux.Handle("/admin/users/{id}/logout-all", methodOnly(http.MethodPost, h.RequireAuth(adminOnly(http.HandlerFunc(h.handleAdminLogoutAll)))))
}

func (h *Handler) now() time.Time { return h.clock() }

// ---- handlers ----

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registerRequest
	if !readJSON(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	if msg, ok := validateRequest(req); !ok {
		writeError(w, http.StatusBadRequest, "validation_failed", msg)
		return
	}
	if err := h.hasher.Validate(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", reset.PolicyMessage(err))
		return
	}

	ctx := r.Context()
	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.register.hash.fail", "err", err)
		writeServerError(w)
		return
	}

	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Phone:        req.Phone,
		Country:      req.Country,
		Role:         identity.RoleUser,
		Now:          h.now(),
	})
	switch {
	case identity.IsConflict(err):
		writeError(w, http.StatusBadRequest, "email_taken", "Email already registered")
		return
	case identity.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid registration")
		return
	case err != nil:
		h.log.ErrorContext(ctx, "auth.register.create.fail", "err", err)
		writeServerError(w)
		return
	}

	if err := h.notifier.SendWelcome(ctx, notify.Recipient{Email: u.Email, Name: deref(u.Name)}); err != nil {
		h.log.WarnContext(ctx, "auth.register.notify.fail", "user_id", u.ID, "err", err)
	}
	h.log.InfoContext(ctx, "auth.register.success", "user_id", u.ID)

	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// handleLogin accepts the OAuth2 password form, where username is the email.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_form", "invalid request body")
		return
	}
	form := loginForm{
		Username: strings.TrimSpace(r.PostForm.Get("username")),
		Password: r.PostForm.Get("password"),
	}
	if msg, ok := validateRequest(form); !ok {
		writeError(w, http.StatusBadRequest, "validation_failed", msg)
		return
	}

	h.login(w, r, form.Username, form.Password)
}

func (h *Handler) handleLoginJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginJSONRequest
	if !readJSON(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	if msg, ok := validateRequest(req); !ok {
		writeError(w, http.StatusBadRequest, "validation_failed", msg)
		return
	}

	h.login(w, r, strings.TrimSpace(req.Email), req.Password)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request, email, pw string) {
	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())
	email = identity.NormalizeEmail(email)

	// IP-based throttling before DB lookup.
	if ok, retryAfter := h.limiter.allow(ipKey(ip), now); !ok {
		h.auditLoginFailed(ctx, nil, ip, ua, email, "rate_limited")
		writeRateLimited(w, retryAfter)
		return
	}

	u, err := h.users.GetByEmail(ctx, email)
	if err != nil && !identity.IsNotFound(err) {
		h.log.ErrorContext(ctx, "auth.login.lookup.fail", "err", err)
		writeServerError(w)
		return
	}
	if err != nil {
		// Timing resistance: perform a dummy verify when user is missing.
		if h.dummyHash != "" {
			_, _ = h.hasher.Verify(h.dummyHash, pw)
		}
		h.auditLoginFailed(ctx, nil, ip, ua, email, "not_found")
		writeUnauthorized(w, "invalid_credentials", msgBadCredentials)
		return
	}

	okPw, err := h.hasher.Verify(u.PasswordHash, pw)
	if err != nil || !okPw {
		h.auditLoginFailed(ctx, &u.ID, ip, ua, email, "bad_password")
		writeUnauthorized(w, "invalid_credentials", msgBadCredentials)
		return
	}
	if !u.Active() {
		h.auditLoginFailed(ctx, &u.ID, ip, ua, email, "inactive")
		writeError(w, http.StatusForbidden, "inactive_user",
			fmt.Sprintf("You are %s user and not allowed please contact support.", u.StatusLabel()))
		return
	}

	issued, err := h.sessions.IssueSession(ctx, now, u.ID, deviceContext(ip, ua))
	if err != nil {
		h.log.ErrorContext(ctx, "auth.login.issue_session.fail", "err", err)
		writeServerError(w)
		return
	}

	if err := h.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		h.log.WarnContext(ctx, "auth.login.last_login.fail", "err", err, "user_id", u.ID)
	}

	if issued.Evicted != nil {
		h.auditEvicted(ctx, u.ID, issued.Evicted.ID, ip, ua)
	}
	h.auditLoginSuccess(ctx, u.ID, issued.SessionID, ip, ua)

	writeJSON(w, http.StatusOK, toTokenResponse(issued))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req refreshRequest
	if !readJSON(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	if msg, ok := validateRequest(req); !ok {
		writeError(w, http.StatusBadRequest, "validation_failed", msg)
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	issued, err := h.sessions.Rotate(ctx, strings.TrimSpace(req.RefreshToken), h.now(), deviceContext(ip, ua))
	if err != nil {
		if autherr.IsToken(err) {
			h.auditRefreshFailed(ctx, ip, ua)
		}
		h.writeAuthError(w, r, "auth.refresh.fail", err, msgInvalidRefresh)
		return
	}

	h.auditRefreshSuccess(ctx, issued.UserID, issued.SessionID, ip, ua)
	writeJSON(w, http.StatusOK, toTokenResponse(issued))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	subject, _ := SubjectFromContext(r.Context())

	var req refreshRequest
	if !readJSON(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	if msg, ok := validateRequest(req); !ok {
		writeError(w, http.StatusBadRequest, "validation_failed", msg)
		return
	}

	ctx := r.Context()
	revoked, err := h.sessions.Logout(ctx, subject, strings.TrimSpace(req.RefreshToken), h.now())
	if err != nil {
		h.log.ErrorContext(ctx, "auth.logout.fail", "err", err)
		writeServerError(w)
		return
	}
	if revoked {
		h.auditLogout(ctx, subject, clientIP(r, h.cfg.TrustProxy), r.UserAgent())
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Successfully logged out"})
}

func (h *Handler) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject, _ := SubjectFromContext(ctx)

	n, err := h.sessions.LogoutAll(ctx, subject, h.now())
	if err != nil {
		h.log.ErrorContext(ctx, "auth.logout_all.fail", "err", err)
		writeServerError(w)
		return
	}
	h.auditLogoutAll(ctx, subject, n, clientIP(r, h.cfg.TrustProxy), r.UserAgent(), "")

	writeJSON(w, http.StatusOK, logoutAllResponse{
		Message:         "Successfully logged out from all devices",
		SessionsRevoked: n,
	})
}

func (h *Handler) handleActiveSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject, _ := SubjectFromContext(ctx)

	live, err := h.sessions.ActiveSessions(ctx, subject, h.now())
	if err != nil {
		h.log.ErrorContext(ctx, "auth.active_sessions.fail", "err", err)
		writeServerError(w)
		return
	}

	out := make([]sessionResponse, 0, len(live))
	for _, s := range live {
		out = append(out, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, "unauthorized", msgNotAuthenticated)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (h *Handler) handleAdminLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	admin, _ := SubjectFromContext(ctx)
	targetID := strings.TrimSpace(r.PathValue("id"))

	if _, err := h.users.GetByID(ctx, targetID); err != nil {
		if identity.IsNotFound(err) || identity.IsInvalidInput(err) {
			writeError(w, http.StatusNotFound, "not_found", "User not found")
			return
		}
		h.log.ErrorContext(ctx, "auth.admin.logout_all.lookup.fail", "err", err)
		writeServerError(w)
		return
	}

	n, err := h.sessions.RevokeAllForUser(ctx, targetID, h.now(), session.ReasonAdmin)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.admin.logout_all.fail", "err", err)
		writeServerError(w)
		return
	}
	h.auditLogoutAll(ctx, targetID, n, clientIP(r, h.cfg.TrustProxy), r.UserAgent(), admin)

	writeJSON(w, http.StatusOK, logoutAllResponse{
		Message:         "User logged out from all devices",
		SessionsRevoked: n,
	})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	now := h.now()
	ip := clientIP(r, h.cfg.TrustProxy)
	if ok, retryAfter := h.limiter.allow(ipKey(ip), now); !ok {
		writeRateLimited(w, retryAfter)
		return
	}

	var req forgotPasswordRequest
	if !readJSON(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	if msg, ok := validateRequest(req); !ok {
		writeError(w, http.StatusBadRequest, "validation_failed", msg)
		return
	}

	msg, err := h.resets.RequestReset(ctx, req.Email, now)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.forgot_password.fail", "err", err)
		writeServerError(w)
		return
	}
	h.auditResetRequested(ctx, ip, r.UserAgent())

	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req resetPasswordRequest
	if !readJSON(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	if msg, ok := validateRequest(req); !ok {
		writeError(w, http.StatusBadRequest, "validation_failed", msg)
		return
	}

	ctx := r.Context()
	res, err := h.resets.CompleteReset(ctx, strings.TrimSpace(req.Token), req.NewPassword, h.now())
	if err != nil {
		h.writeAuthError(w, r, "auth.reset_password.fail", err, reset.InvalidTokenMessage)
		return
	}
	h.auditResetCompleted(ctx, res.UserID, res.SessionsRevoked, clientIP(r, h.cfg.TrustProxy), r.UserAgent())

	writeJSON(w, http.StatusOK, messageResponse{Message: reset.SuccessMessage})
}

func (h *Handler) handleSendCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	now := h.now()
	if ok, retryAfter := h.limiter.allow(ipKey(clientIP(r, h.cfg.TrustProxy)), now); !ok {
		writeRateLimited(w, retryAfter)
		return
	}

	var req sendCodeRequest
	if !readJSON(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	if msg, ok := validateRequest(req); !ok {
		writeError(w, http.StatusBadRequest, "validation_failed", msg)
		return
	}

	email := identity.NormalizeEmail(req.Email)
	code, expires, err := h.codes.Issue(email, now)
	if err != nil {
		h.log.ErrorContext(ctx, "auth.email_code.issue.fail", "err", err)
		writeServerError(w)
		return
	}
	if err := h.notifier.SendVerificationCode(ctx, email, code, expires); err != nil {
		h.log.WarnContext(ctx, "auth.email_code.notify.fail", "err", err)
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Verification code sent"})
}

func (h *Handler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	now := h.now()
	if ok, retryAfter := h.limiter.allow(ipKey(clientIP(r, h.cfg.TrustProxy)), now); !ok {
		writeRateLimited(w, retryAfter)
		return
	}

	var req verifyCodeRequest
	if !readJSON(w, r, h.cfg.MaxBodyBytes, &req) {
		return
	}
	if msg, ok := validateRequest(req); !ok {
		writeError(w, http.StatusBadRequest, "validation_failed", msg)
		return
	}

	email := identity.NormalizeEmail(req.Email)
	if !h.codes.Verify(email, req.Code, now) {
		writeError(w, http.StatusBadRequest, "invalid_code", "Invalid or expired verification code")
		return
	}

	// Codes may be verified before the account exists.
	if err := h.users.MarkEmailVerified(ctx, email); err != nil && !identity.IsNotFound(err) {
		h.log.ErrorContext(ctx, "auth.email_code.mark_verified.fail", "err", err)
		writeServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, verifyCodeResponse{Message: "Email verified successfully", Verified: true})
}

// ---- helpers ----

func deviceContext(ip net.IP, ua string) session.DeviceContext {
	dev := session.DeviceContext{UserAgent: ua}
	if ua != "" {
		dev.DeviceName = session.InferDevice(ua).DeviceName
	}
	if ip != nil {
		dev.IPAddress = ip.String()
	}
	return dev
}

func ipKey(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
