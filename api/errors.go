package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jmcleod/keyrelay/provider"
)

// Client-facing messages. Session and decryption failures share one
// message deliberately: a caller must not be able to tell a missing
// session apart from a blob that failed to decrypt.
const (
	msgSessionExpired      = "session expired; please re-enter your API key"
	msgKeyRevoked          = "invalid or expired API key; please re-authenticate"
	msgUpstreamUnavailable = "the provider is currently unavailable; try again later"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeInternalError logs the underlying error server-side and returns a
// generic message to the client.
func writeInternalError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

// mapUpstreamError translates a provider error into a client response
// for the chat path. Upstream 401 means the stored credential was most
// likely revoked after encryption, so the client is told to
// re-authenticate rather than shown a generic failure.
func mapUpstreamError(w http.ResponseWriter, err error) {
	var statusErr *provider.StatusError
	switch {
	case errors.Is(err, provider.ErrKeyUnauthorized):
		writeError(w, http.StatusUnauthorized, msgKeyRevoked)
	case errors.Is(err, provider.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "the provider is rate limiting requests; wait before retrying")
	case errors.Is(err, provider.ErrQuotaExceeded):
		writeError(w, http.StatusForbidden, "provider quota exceeded; check your billing")
	case errors.Is(err, provider.ErrTimeout), errors.As(err, &statusErr):
		writeError(w, http.StatusBadGateway, msgUpstreamUnavailable)
	default:
		writeError(w, http.StatusBadGateway, msgUpstreamUnavailable)
	}
}

// decodeJSON reads a size-limited JSON body into T. On failure it writes
// a 400 response and returns ok=false.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, maxBytes int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}
