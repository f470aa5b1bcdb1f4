package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jmcleod/keyrelay/storage"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditKeyValidated     AuditEvent = "key_validated"
	AuditKeyRejected      AuditEvent = "key_rejected"
	AuditKeyRateLimited   AuditEvent = "key_rate_limited"
	AuditLogout           AuditEvent = "logout"
	AuditChatRelayed      AuditEvent = "chat_relayed"
	AuditChatDenied       AuditEvent = "chat_denied"
	AuditModelSubstituted AuditEvent = "model_substituted"
)

// auditLogger wraps slog.Logger for structured security audit logging,
// optionally persisting events. Key material is never passed here — only
// key type, length, and rejection reasons.
type auditLogger struct {
	logger  *slog.Logger
	store   storage.AuditStore
	metrics *metricsCollector
}

func newAuditLogger(logger *slog.Logger, metrics *metricsCollector) *auditLogger {
	return &auditLogger{
		logger:  logger.With("component", "audit"),
		metrics: metrics,
	}
}

func (al *auditLogger) log(event AuditEvent, r *http.Request, detail string, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	if detail != "" {
		baseAttrs = append(baseAttrs, slog.String("detail", detail))
	}
	baseAttrs = append(baseAttrs, attrs...)

	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)

	if al.metrics != nil {
		al.metrics.recordEvent(event)
	}
	if al.store != nil {
		err := al.store.Append(storage.AuditEvent{
			ID:         uuid.New().String(),
			Event:      string(event),
			RemoteAddr: r.RemoteAddr,
			Detail:     detail,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			al.logger.Error("persisting audit event", "error", err)
		}
	}
}

// logEvent records a successful action.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, extra ...slog.Attr) {
	al.log(event, r, "", extra...)
}

// logFailure records a denied or failed action with its reason.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	al.log(event, r, reason, extra...)
}
