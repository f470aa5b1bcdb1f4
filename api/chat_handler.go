package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/jmcleod/keyrelay/internal/util"
	"github.com/jmcleod/keyrelay/provider"
	"github.com/jmcleod/keyrelay/session"
)

const (
	maxChatBodySize = 64 * 1024
	maxMessageLen   = 4000

	defaultChatModel = "gpt-4o-mini"
)

var defaultAllowedModels = []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"}

// Chat handles POST /chat: verify the session pair, decrypt the
// credential, forward one upstream call, and relay the response body to
// the client as it arrives.
func (a *API) Chat(w http.ResponseWriter, r *http.Request) {
	sess, blob, err := a.sessionFromRequest(r)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			clearSessionCookies(w, r)
		}
		a.audit.logFailure(AuditChatDenied, r, "no valid session")
		writeError(w, http.StatusUnauthorized, msgSessionExpired)
		return
	}

	key, err := a.sealer.Open(blob)
	if err != nil {
		// Indistinguishable from a missing session on the wire; the real
		// reason goes to the audit log only.
		a.audit.logFailure(AuditChatDenied, r, "credential decryption failed")
		writeError(w, http.StatusUnauthorized, msgSessionExpired)
		return
	}
	defer util.WipeBytes(key)

	req, ok := decodeJSON[ChatRequest](w, r, maxChatBodySize)
	if !ok {
		return
	}

	message := strings.TrimSpace(util.Normalize(req.Message))
	if message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if utf8.RuneCountInString(message) > maxMessageLen {
		writeError(w, http.StatusBadRequest, "message exceeds maximum length")
		return
	}

	model := a.resolveModel(r, req.Model)

	messages := make([]provider.Message, 0, 2)
	if dev := strings.TrimSpace(req.DeveloperMessage); dev != "" {
		messages = append(messages, provider.Message{Role: "system", Content: dev})
	}
	messages = append(messages, provider.Message{Role: "user", Content: message})

	body, err := a.upstream.StreamCompletion(r.Context(), string(key), provider.CompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		a.audit.logFailure(AuditChatDenied, r, "upstream call failed",
			slog.String("key_type", sess.KeyType))
		mapUpstreamError(w, err)
		return
	}
	defer body.Close()

	a.audit.logEvent(AuditChatRelayed, r,
		slog.String("key_type", sess.KeyType),
		slog.String("model", model))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Model-Used", model)
	w.WriteHeader(http.StatusOK)

	relayStream(w, body)
}

// resolveModel whitelists the requested model, silently substituting the
// default for anything unrecognized. The substitution is logged
// server-side but never surfaced to the client.
func (a *API) resolveModel(r *http.Request, requested string) string {
	if requested == "" {
		return a.defaultModel
	}
	if a.allowedModels[requested] {
		return requested
	}
	a.audit.logFailure(AuditModelSubstituted, r, "unrecognized model",
		slog.String("requested", requested),
		slog.String("substituted", a.defaultModel))
	return a.defaultModel
}

// relayStream copies the upstream body to the client as bytes arrive,
// flushing after every chunk. Write blocks when the client stops
// reading, which in turn stops the reads from upstream — backpressure
// propagates without any internal buffering of the body.
func relayStream(w http.ResponseWriter, body io.Reader) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Client went away; stop pulling from upstream.
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			// io.EOF ends the stream cleanly; an upstream abort simply
			// truncates it — no trailing metadata is appended either way.
			return
		}
	}
}
