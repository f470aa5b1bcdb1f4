package api

import "github.com/jmcleod/keyrelay/storage"

// SubmitKeyRequest is the JSON body for POST /key.
type SubmitKeyRequest struct {
	Key string `json:"key"`
}

// KeyInfo describes an accepted key. Non-secret metadata only.
type KeyInfo struct {
	Type   string `json:"type"`
	Length int    `json:"length"`
	Format string `json:"format"`
}

// SubmitKeyResponse is returned from POST /key on success.
type SubmitKeyResponse struct {
	Success bool    `json:"success"`
	KeyInfo KeyInfo `json:"keyInfo"`
}

// ErrorDetail is the actionable error surface returned to the browser.
// It never contains raw provider error text or internal error messages.
type ErrorDetail struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action,omitempty"`
}

// SubmitKeyErrorResponse is returned from POST /key on any failure.
type SubmitKeyErrorResponse struct {
	Success     bool              `json:"success"`
	Error       string            `json:"error"`
	FieldErrors map[string]string `json:"fieldErrors,omitempty"`
	Detail      *ErrorDetail      `json:"detail,omitempty"`
}

// ChatRequest is the JSON body for POST /chat.
type ChatRequest struct {
	Message          string `json:"message"`
	Model            string `json:"model,omitempty"`
	DeveloperMessage string `json:"developerMessage,omitempty"`
}

// SessionStatusResponse is returned from GET /session.
type SessionStatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	KeyType       string `json:"keyType,omitempty"`
	KeyLength     int    `json:"keyLength,omitempty"`
	ExpiresAt     int64  `json:"expiresAt,omitempty"`
}

// ListAuditEventsResponse is returned from GET /audit.
type ListAuditEventsResponse struct {
	Events []storage.AuditEvent `json:"events"`
	Meta   PaginationMeta       `json:"meta"`
}

// ErrorResponse is returned for all other error cases.
type ErrorResponse struct {
	Error string `json:"error"`
}
