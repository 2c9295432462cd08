package sso

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*Handler, *fakeProvider) {
	t.Helper()
	f := newFakeProvider(t)
	c := newTestClient(t, f, NewGitHubProvider(), ClientConfig{ClientID: "client"})
	codec, err := NewStateCodec([]byte("test-secret"))
	require.NoError(t, err)

	h := NewHandler(map[string]*Client{"github": c}, NewMemoryStateStore(), codec, HandlerConfig{
		DefaultRedirectURL: "/",
		AllowedHosts:       []string{"app.example.org"},
	}, nil)
	return h, f
}

func serve(h *Handler, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterHandlers(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

// login starts a flow and returns the state the provider would echo back.
func login(t *testing.T, h *Handler, redirectURL string) string {
	t.Helper()
	rec := serve(h, "/auth/login?provider=github&redirect_url="+url.QueryEscape(redirectURL))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/authorize", loc.Path)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestHandler_Providers(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := serve(h, "/auth/providers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var infos []ProviderInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "github", infos[0].Name)
	assert.Equal(t, ProviderID(0), infos[0].ID)
	assert.Len(t, infos[0].SupportedAttributes, 7)
}

func TestHandler_LoginAndCallback(t *testing.T) {
	h, _ := newTestHandler(t)

	var got *Identity
	var gotRedirect string
	h.Next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
		assert.Equal(t, TokenTypeBearer, CredentialFromContext(r.Context()).TokenType)
		gotRedirect = RedirectURLFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	state := login(t, h, "/dashboard")

	rec := serve(h, "/auth/callback?provider=github&code=good-code&state="+url.QueryEscape(state))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	require.NotNil(t, got)
	assert.Equal(t, "octocat", got.Username)
	assert.Equal(t, "/dashboard", gotRedirect)

	// Replaying the same state fails.
	rec = serve(h, "/auth/callback?provider=github&code=good-code&state="+url.QueryEscape(state))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_CallbackRedirectsWithoutNext(t *testing.T) {
	h, _ := newTestHandler(t)
	state := login(t, h, "https://app.example.org/home")

	rec := serve(h, "/auth/callback?provider=github&code=good-code&state="+url.QueryEscape(state))
	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "https://app.example.org/home", rec.Header().Get("Location"))
}

func TestHandler_LoginErrors(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name   string
		target string
	}{
		{"no provider", "/auth/login"},
		{"unknown provider", "/auth/login?provider=myspace"},
		{"foreign redirect", "/auth/login?provider=github&redirect_url=" + url.QueryEscape("https://evil.example.com")},
		{"script redirect", "/auth/login?provider=github&redirect_url=" + url.QueryEscape("javascript:alert(1)")},
		{"backslash redirect", "/auth/login?provider=github&redirect_url=" + url.QueryEscape(`/\evil.example.com`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, serve(h, tt.target).Code)
		})
	}
}

func TestHandler_CallbackErrors(t *testing.T) {
	h, _ := newTestHandler(t)
	valid := login(t, h, "/")

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"provider error", "/auth/callback?provider=github&error=access_denied", http.StatusBadRequest},
		{"missing state", "/auth/callback?provider=github&code=good-code", http.StatusBadRequest},
		{"forged state", "/auth/callback?provider=github&code=good-code&state=abc.def", http.StatusBadRequest},
		{"missing code", "/auth/callback?provider=github&state=" + url.QueryEscape(valid), http.StatusBadRequest},
		{"exchange failure", "/auth/callback?provider=github&code=bad-code&state=" + url.QueryEscape(login(t, h, "/")), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, serve(h, tt.target).Code)
		})
	}
}
