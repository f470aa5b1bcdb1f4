package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/keyrelay/api"
	"github.com/jmcleod/keyrelay/session"
)

func TestChatStreamsUpstreamBody(t *testing.T) {
	u := newUpstream()
	u.chunks = []string{"AB", "CD"}
	srv := setupServer(t, u)
	client := newClient(t)
	csrf := submitKey(t, client, srv.URL)

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/chat", map[string]string{
		"message": "hello",
	}, map[string]string{"X-CSRF-Token": csrf})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "gpt-4o-mini", resp.Header.Get("X-Model-Used"))

	// The upstream body arrives verbatim: chunks concatenated in order,
	// nothing prepended or appended.
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ABCD", string(body))

	// Exactly one upstream call, with the bearer credential re-derived
	// from the cookie blob.
	u.mu.Lock()
	defer u.mu.Unlock()
	assert.Equal(t, 1, u.chatCalls)
	require.Len(t, u.lastMessages, 1)
	assert.Equal(t, "user", u.lastMessages[0].Role)
	assert.Equal(t, "hello", u.lastMessages[0].Content)
}

func TestChatModelSelection(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		wantModel string
	}{
		{"default when omitted", "", "gpt-4o-mini"},
		{"allowed model honored", "gpt-4o", "gpt-4o"},
		{"unrecognized model silently substituted", "gpt-99-ultra", "gpt-4o-mini"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u := newUpstream()
			srv := setupServer(t, u)
			client := newClient(t)
			csrf := submitKey(t, client, srv.URL)

			resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/chat", map[string]string{
				"message": "hi",
				"model":   tc.requested,
			}, map[string]string{"X-CSRF-Token": csrf})
			defer resp.Body.Close()

			// Substitution is never an error.
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tc.wantModel, resp.Header.Get("X-Model-Used"))

			u.mu.Lock()
			assert.Equal(t, tc.wantModel, u.lastModel)
			u.mu.Unlock()
		})
	}
}

func TestChatDeveloperMessage(t *testing.T) {
	u := newUpstream()
	srv := setupServer(t, u)
	client := newClient(t)
	csrf := submitKey(t, client, srv.URL)

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/chat", map[string]string{
		"message":          "hi",
		"developerMessage": "answer tersely",
	}, map[string]string{"X-CSRF-Token": csrf})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	u.mu.Lock()
	defer u.mu.Unlock()
	require.Len(t, u.lastMessages, 2)
	assert.Equal(t, "system", u.lastMessages[0].Role)
	assert.Equal(t, "answer tersely", u.lastMessages[0].Content)
	assert.Equal(t, "user", u.lastMessages[1].Role)
}

func TestChatMessageValidation(t *testing.T) {
	u := newUpstream()
	srv := setupServer(t, u)
	client := newClient(t)
	csrf := submitKey(t, client, srv.URL)

	tests := []struct {
		name       string
		message    string
		wantStatus int
	}{
		{"empty", "", http.StatusBadRequest},
		{"whitespace only", "   \n\t  ", http.StatusBadRequest},
		{"at limit", strings.Repeat("x", 4000), http.StatusOK},
		{"over limit", strings.Repeat("x", 4001), http.StatusBadRequest},
		{"multibyte at limit", strings.Repeat("é", 4000), http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/chat", map[string]string{
				"message": tc.message,
			}, map[string]string{"X-CSRF-Token": csrf})
			resp.Body.Close()
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestChatWithoutSession(t *testing.T) {
	srv := setupServer(t, newUpstream())
	client := newClient(t)

	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/chat", map[string]string{
		"message": "hi",
	}, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "session expired; please re-enter your API key", body.Error)
}

// chatWithCookies issues a raw chat request with hand-built cookies,
// bypassing the jar.
func chatWithCookies(t *testing.T, srvURL string, cookies []*http.Cookie, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, srvURL+"/api/v1/chat",
		strings.NewReader(`{"message":"hi"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestChatSessionPairFailuresIndistinguishable(t *testing.T) {
	// A missing blob, a corrupted blob, and no cookies at all must all
	// produce byte-identical responses, so a caller cannot probe which
	// half of the pair was rejected.
	srv := setupServer(t, newUpstream())

	sessions := session.NewService([]byte(testSessionSecret))
	token, err := sessions.Issue("legacy", 51)
	require.NoError(t, err)

	csrf := []*http.Cookie{{Name: "csrf-token", Value: "tok"}}
	csrfHeader := map[string]string{"X-CSRF-Token": "tok"}

	read := func(resp *http.Response) (int, string) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	noCookiesStatus, noCookiesBody := read(chatWithCookies(t, srv.URL, nil, nil))
	require.Equal(t, http.StatusUnauthorized, noCookiesStatus)

	missingBlobStatus, missingBlobBody := read(chatWithCookies(t, srv.URL, append(csrf,
		&http.Cookie{Name: "session-token", Value: token},
	), csrfHeader))
	assert.Equal(t, noCookiesStatus, missingBlobStatus)
	assert.Equal(t, noCookiesBody, missingBlobBody)

	corruptBlobStatus, corruptBlobBody := read(chatWithCookies(t, srv.URL, append(csrf,
		&http.Cookie{Name: "session-token", Value: token},
		&http.Cookie{Name: "encrypted-credential", Value: "bm90LWEtcmVhbC1ibG9i"},
	), csrfHeader))
	assert.Equal(t, noCookiesStatus, corruptBlobStatus)
	assert.Equal(t, noCookiesBody, corruptBlobBody)
}

func TestChatExpiredSessionClearsCookies(t *testing.T) {
	srv := setupServer(t, newUpstream())

	// Issue a token that was already stale a day ago.
	sessions := session.NewService([]byte(testSessionSecret))
	session.NowFunc = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	token, err := sessions.Issue("legacy", 51)
	session.NowFunc = time.Now
	require.NoError(t, err)

	resp := chatWithCookies(t, srv.URL, []*http.Cookie{
		{Name: "session-token", Value: token},
		{Name: "encrypted-credential", Value: "bm90LWEtcmVhbC1ibG9i"},
		{Name: "csrf-token", Value: "tok"},
	}, map[string]string{"X-CSRF-Token": "tok"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Both halves of the pair are cleared in the same response.
	cleared := map[string]bool{}
	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 && c.Value == "" {
			cleared[c.Name] = true
		}
	}
	assert.True(t, cleared["session-token"])
	assert.True(t, cleared["encrypted-credential"])
}

func TestChatCSRFRequired(t *testing.T) {
	u := newUpstream()
	srv := setupServer(t, u)
	client := newClient(t)
	submitKey(t, client, srv.URL)

	// No header at all.
	resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/chat", map[string]string{
		"message": "hi",
	}, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Wrong header.
	resp = doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/chat", map[string]string{
		"message": "hi",
	}, map[string]string{"X-CSRF-Token": "not-the-token"})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	u.mu.Lock()
	assert.Equal(t, 0, u.chatCalls)
	u.mu.Unlock()
}

func TestChatUpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		chatStatus int
		wantStatus int
	}{
		{"revoked key", http.StatusUnauthorized, http.StatusUnauthorized},
		{"rate limited", http.StatusTooManyRequests, http.StatusTooManyRequests},
		{"quota exceeded", http.StatusForbidden, http.StatusForbidden},
		{"server error", http.StatusInternalServerError, http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u := newUpstream()
			u.chatStatus = tc.chatStatus
			srv := setupServer(t, u)
			client := newClient(t)
			csrf := submitKey(t, client, srv.URL)

			resp := doJSON(t, client, http.MethodPost, srv.URL+"/api/v1/chat", map[string]string{
				"message": "hi",
			}, map[string]string{"X-CSRF-Token": csrf})
			defer resp.Body.Close()
			assert.Equal(t, tc.wantStatus, resp.StatusCode)

			if tc.chatStatus == http.StatusUnauthorized {
				var body api.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, "invalid or expired API key; please re-authenticate", body.Error)
			}
		})
	}
}
