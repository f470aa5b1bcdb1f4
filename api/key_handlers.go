package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmcleod/keyrelay/keys"
	"github.com/jmcleod/keyrelay/provider"
	"github.com/jmcleod/keyrelay/session"
)

const maxKeyBodySize = 4 * 1024

// SubmitKey handles POST /key. The candidate key is shape-checked, then
// probed against the provider, then encrypted and bound to a fresh
// session — all or nothing: on any failure no cookie is set.
func (a *API) SubmitKey(w http.ResponseWriter, r *http.Request) {
	// Rate-limit before any expensive work or outbound call.
	clientIP := extractClientIP(r)
	if blocked, retryAfter := a.submitLimiter.check(clientIP); blocked {
		a.audit.logFailure(AuditKeyRateLimited, r, "ip rate limited",
			slog.String("client_ip", clientIP))
		writeRateLimited(w, retryAfter)
		return
	}

	req, ok := decodeJSON[SubmitKeyRequest](w, r, maxKeyBodySize)
	if !ok {
		return
	}

	candidate := strings.TrimSpace(req.Key)
	result := keys.Validate(candidate)
	if !result.Valid {
		a.submitLimiter.recordFailure(clientIP)
		a.audit.logFailure(AuditKeyRejected, r, result.Reason)
		writeJSON(w, http.StatusBadRequest, formatErrorResponse(result.Reason))
		return
	}

	if err := a.upstream.CheckKey(r.Context(), candidate); err != nil {
		a.submitLimiter.recordFailure(clientIP)
		a.audit.logFailure(AuditKeyRejected, r, "liveness check failed",
			slog.String("key_type", string(result.Type)))
		writeLivenessError(w, err)
		return
	}

	blob, err := a.sealer.Seal([]byte(candidate))
	if err != nil {
		writeInternalError(w, "failed to secure key", err)
		return
	}

	token, err := a.sessions.Issue(string(result.Type), result.Length)
	if err != nil {
		writeInternalError(w, "failed to create session", err)
		return
	}

	a.submitLimiter.recordSuccess(clientIP)
	writeSessionCookies(w, r, token, blob)
	writeCSRFCookie(w, r)

	a.audit.logEvent(AuditKeyValidated, r,
		slog.String("key_type", string(result.Type)),
		slog.Int("key_length", result.Length))
	writeJSON(w, http.StatusOK, SubmitKeyResponse{
		Success: true,
		KeyInfo: KeyInfo{
			Type:   string(result.Type),
			Length: result.Length,
			Format: result.Format(),
		},
	})
}

// formatErrorResponse builds the structured rejection for a key that
// failed the shape check.
func formatErrorResponse(reason string) SubmitKeyErrorResponse {
	detail := &ErrorDetail{
		Title:       "Invalid key format",
		Description: "The key does not match any recognized key format.",
		Action:      "Check that the full key was copied and try again.",
	}
	if reason == keys.ReasonInvalidPrefix {
		detail.Description = "API keys start with the provider prefix \"sk-\"."
	}
	return SubmitKeyErrorResponse{
		Error:       reason,
		FieldErrors: map[string]string{"key": detail.Description},
		Detail:      detail,
	}
}

// writeLivenessError maps a failed liveness probe to a structured,
// actionable response. Raw provider error text never reaches the client.
func writeLivenessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, provider.ErrKeyUnauthorized):
		writeJSON(w, http.StatusUnauthorized, SubmitKeyErrorResponse{
			Error:       "unauthorized",
			FieldErrors: map[string]string{"key": "invalid or expired API key"},
			Detail: &ErrorDetail{
				Title:       "Invalid API key",
				Description: "The provider rejected this key.",
				Action:      "Generate a new key and try again.",
			},
		})
	case errors.Is(err, provider.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, SubmitKeyErrorResponse{
			Error: "rate-limited",
			Detail: &ErrorDetail{
				Title:       "Rate limited",
				Description: "The provider is rate limiting requests for this key.",
				Action:      "Wait before retrying.",
			},
		})
	case errors.Is(err, provider.ErrQuotaExceeded):
		writeJSON(w, http.StatusForbidden, SubmitKeyErrorResponse{
			Error: "quota-exceeded",
			Detail: &ErrorDetail{
				Title:       "Quota exceeded",
				Description: "This key is valid but its account is out of quota.",
				Action:      "Check your billing settings.",
			},
		})
	default:
		writeJSON(w, http.StatusBadGateway, SubmitKeyErrorResponse{
			Error: "upstream-error",
			Detail: &ErrorDetail{
				Title:       "Provider unavailable",
				Description: "The key could not be verified with the provider.",
				Action:      "Try again later.",
			},
		})
	}
}

// Logout handles POST /auth/logout. It clears the session pair
// unconditionally and is idempotent.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookies(w, r)
	clearCSRFCookie(w, r)
	a.audit.logEvent(AuditLogout, r)
	writeJSON(w, http.StatusOK, struct{}{})
}

// SessionStatus handles GET /session. It reports non-secret session
// metadata so the browser app can render its state without holding any
// readable session data itself.
func (a *API) SessionStatus(w http.ResponseWriter, r *http.Request) {
	sess, _, err := a.sessionFromRequest(r)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			// A stale pair is cleared eagerly so it cannot be replayed.
			clearSessionCookies(w, r)
		}
		writeJSON(w, http.StatusOK, SessionStatusResponse{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, SessionStatusResponse{
		Authenticated: true,
		KeyType:       sess.KeyType,
		KeyLength:     sess.KeyLength,
		ExpiresAt:     sess.ExpiresAt.UnixMilli(),
	})
}
