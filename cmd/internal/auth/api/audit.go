package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEvent is one row of the security audit trail.
type AuditEvent struct {
	Action    string
	UserID    *string
	SessionID *string
	IP        net.IP
	UserAgent string
	Meta      map[string]any
	At        time.Time
}

// AuditSink persists audit events. Failures are the sink's to log; auditing
// never fails a request.
type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent)
}

// PostgresAudit writes events to zuperior.audit_log.
type PostgresAudit struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgresAudit(pool *pgxpool.Pool, log *slog.Logger) *PostgresAudit {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresAudit{pool: pool, log: log}
}

func (a *PostgresAudit) Record(ctx context.Context, ev AuditEvent) {
	if a == nil || a.pool == nil {
		return
	}

	var ipVal any
	if ev.IP != nil {
		ipVal = ev.IP.String()
	}

	var metaVal *string
	if len(ev.Meta) > 0 {
		if b, err := json.Marshal(ev.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := a.pool.Exec(ctx, `
		INSERT INTO zuperior.audit_log (
			user_id, session_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
	`, ev.UserID, ev.SessionID, ev.Action, ev.At, ipVal, trimOrNil(ev.UserAgent), metaVal)
	if err != nil {
		a.log.Error("auth.audit.insert.fail", "err", err, "action", ev.Action)
	}
}

func (h *Handler) auditLoginFailed(ctx context.Context, userID *string, ip net.IP, ua, email, reason string) {
	h.insertAudit(ctx, "auth.login.failed", userID, nil, ip, ua, map[string]any{
		"email":  email,
		"reason": reason,
	})
}

func (h *Handler) auditLoginSuccess(ctx context.Context, userID string, sessionID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.login.success", &userID, &sessionID, ip, ua, nil)
}

func (h *Handler) auditEvicted(ctx context.Context, userID string, evictedID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.session.evicted", &userID, &evictedID, ip, ua, nil)
}

func (h *Handler) auditRefreshSuccess(ctx context.Context, userID string, sessionID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.refresh.success", &userID, &sessionID, ip, ua, nil)
}

func (h *Handler) auditRefreshFailed(ctx context.Context, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.refresh.failed", nil, nil, ip, ua, nil)
}

func (h *Handler) auditLogout(ctx context.Context, userID string, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.logout", &userID, nil, ip, ua, nil)
}

func (h *Handler) auditLogoutAll(ctx context.Context, userID string, n int, ip net.IP, ua string, byAdmin string) {
	meta := map[string]any{"sessions_revoked": n}
	if byAdmin != "" {
		meta["admin_id"] = byAdmin
	}
	h.insertAudit(ctx, "auth.logout_all", &userID, nil, ip, ua, meta)
}

func (h *Handler) auditResetRequested(ctx context.Context, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.password_reset.requested", nil, nil, ip, ua, nil)
}

func (h *Handler) auditResetCompleted(ctx context.Context, userID string, revoked int, ip net.IP, ua string) {
	h.insertAudit(ctx, "auth.password_reset.completed", &userID, nil, ip, ua, map[string]any{
		"sessions_revoked": revoked,
	})
}

func (h *Handler) insertAudit(ctx context.Context, action string, userID *string, sessionID *string, ip net.IP, ua string, meta map[string]any) {
	if h == nil || h.audit == nil {
		return
	}

	action = strings.TrimSpace(action)
	if action == "" {
		return
	}

	h.audit.Record(ctx, AuditEvent{
		Action:    action,
		UserID:    userID,
		SessionID: sessionID,
		IP:        ip,
		UserAgent: ua,
		Meta:      meta,
		At:        h.now(),
	})
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
