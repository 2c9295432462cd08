package sso

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"federation/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// fakeProvider serves a token and a userinfo endpoint.
type fakeProvider struct {
	*httptest.Server

	mu          sync.Mutex
	tokenBody   map[string]any
	userInfo    string
	userStatus  int
	lastHeaders http.Header
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{
		tokenBody: map[string]any{
			"access_token": "gho_abc",
			"token_type":   "bearer",
			"scope":        "read:user",
		},
		userInfo:   `{"id": 583231, "login": "octocat", "name": "The Octocat", "email": "octocat@example.org"}`,
		userStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad_verification_code"}`))
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(f.tokenBody)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.userStatus)
		w.Write([]byte(f.userInfo))
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeProvider) endpoints() Endpoints {
	return Endpoints{
		AuthURL:     f.URL + "/authorize",
		TokenURL:    f.URL + "/token",
		UserInfoURL: f.URL + "/user",
	}
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishLogin(ctx context.Context, event LoginEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type recordingHandler struct {
	mu      sync.Mutex
	entries []logger.Entry
}

func (h *recordingHandler) Handle(entry logger.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
	return nil
}

func (h *recordingHandler) Close() error { return nil }

func (h *recordingHandler) find(message string) (logger.Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range h.entries {
		if e.Message == message {
			return e, true
		}
	}
	return logger.Entry{}, false
}

func newTestClient(t *testing.T, f *fakeProvider, p Provider, cfg ClientConfig, opts ...ClientOption) *Client {
	t.Helper()
	opts = append([]ClientOption{WithHTTPClient(f.Client())}, opts...)
	c, err := NewClient(0, WithEndpoints(p, f.endpoints()), cfg, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_MissingEndpoint(t *testing.T) {
	_, err := NewClient(2, NewKeycloakProvider(), ClientConfig{ClientID: "id"})
	assert.ErrorIs(t, err, ErrMissingEndpoint)

	_, err = NewClient(2, WithEndpoints(NewKeycloakProvider(), Endpoints{AuthURL: "https://a", TokenURL: "https://t"}), ClientConfig{})
	assert.ErrorIs(t, err, ErrMissingEndpoint)
}

func TestClient_AuthCodeURL(t *testing.T) {
	c, err := NewClient(0, NewGitHubProvider(), ClientConfig{
		ClientID:    "client",
		RedirectURL: "https://app.example.org/auth/callback?provider=github",
		Scopes:      []string{"read:user", "user:email"},
	})
	require.NoError(t, err)

	u := c.AuthCodeURL("xyz")
	assert.Contains(t, u, "https://github.com/login/oauth/authorize?")
	assert.Contains(t, u, "state=xyz")
	assert.Contains(t, u, "client_id=client")
	assert.Contains(t, u, "scope=read%3Auser+user%3Aemail")
	assert.False(t, c.SameOrigin())
}

func TestClient_Login(t *testing.T) {
	f := newFakeProvider(t)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	logs := &recordingHandler{}
	pub := &mockPublisher{}
	pub.On("PublishLogin", mock.Anything, mock.MatchedBy(func(e LoginEvent) bool {
		return e.Provider == "github" && e.IdentityID == "583231" && e.TokenType == "Bearer"
	})).Return(nil).Once()

	c := newTestClient(t, f, NewGitHubProvider(), ClientConfig{
		ClientID:      "client",
		ClientSecret:  "secret",
		AccessHeaders: map[string]string{"User-Agent": "federation-test"},
	},
		WithTracerProvider(tp),
		WithMeterProvider(mp),
		WithPublisher(pub),
		WithLogger(logger.NewLogger(logger.WithHandler(logs), logger.WithLevel(logger.DebugLevel))),
	)

	identity, cred, err := c.Login(context.Background(), "good-code")
	require.NoError(t, err)

	assert.Equal(t, "583231", identity.ID)
	assert.Equal(t, "octocat", identity.Username)
	assert.Equal(t, "The Octocat", identity.Name)
	assert.Equal(t, "github", identity.Provider)
	assert.Equal(t, ProviderID(0), identity.ProviderID)
	assert.Equal(t, "octocat", identity.Data["login"])

	assert.Equal(t, "gho_abc", cred.AccessToken)
	assert.Equal(t, TokenTypeBearer, cred.TokenType)
	assert.Equal(t, "read:user", cred.Scope)

	assert.Equal(t, "federation-test", f.lastHeaders.Get("User-Agent"))
	assert.Equal(t, "Bearer gho_abc", f.lastHeaders.Get("Authorization"))
	pub.AssertExpectations(t)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.Contains(t, names, "sso.Exchange")
	assert.Contains(t, names, "sso.FetchIdentity")

	entry, ok := logs.find("identity normalized")
	require.True(t, ok)
	assert.Equal(t, []string{AttrID, AttrUsername, AttrName, AttrEmail}, entry.Fields["read"])
	assert.Equal(t, []string{AttrLink, AttrLocation, AttrPicture}, entry.Fields["missing"])
	assert.NotEmpty(t, entry.TraceID)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Equal(t, int64(1), sumOf(t, rm, "sso.logins"))
	assert.Equal(t, int64(3), sumOf(t, rm, "sso.identity.missing_fields"))
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestClient_LoginPublishFailureDoesNotFail(t *testing.T) {
	f := newFakeProvider(t)
	pub := &mockPublisher{}
	pub.On("PublishLogin", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	c := newTestClient(t, f, NewGitHubProvider(), ClientConfig{}, WithPublisher(pub))

	identity, _, err := c.Login(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "octocat", identity.Username)
	pub.AssertNumberOfCalls(t, "PublishLogin", 1)
}

// blockingPublisher holds every publish until its context is done.
type blockingPublisher struct {
	called chan struct{}
}

func (p *blockingPublisher) PublishLogin(ctx context.Context, _ LoginEvent) error {
	close(p.called)
	<-ctx.Done()
	return ctx.Err()
}

func TestClient_LoginPublishTimeout(t *testing.T) {
	f := newFakeProvider(t)
	pub := &blockingPublisher{called: make(chan struct{})}
	rec := &recordingHandler{}

	c := newTestClient(t, f, NewGitHubProvider(), ClientConfig{},
		WithPublisher(pub),
		WithPublishTimeout(50*time.Millisecond),
		WithLogger(logger.NewLogger(logger.WithHandler(rec))),
	)

	start := time.Now()
	identity, _, err := c.Login(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "octocat", identity.Username)
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-pub.called:
	default:
		t.Fatal("publisher was not called")
	}
	entry, ok := rec.find("failed to publish login event")
	require.True(t, ok)
	assert.Equal(t, "ERROR", entry.Level)
}

func TestClient_ExchangeErrors(t *testing.T) {
	f := newFakeProvider(t)
	c := newTestClient(t, f, NewGitHubProvider(), ClientConfig{})

	_, err := c.Exchange(context.Background(), "")
	assert.Error(t, err)

	_, err = c.Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestClient_UnrecognizedTokenType(t *testing.T) {
	f := newFakeProvider(t)
	f.tokenBody["token_type"] = "Bearer"
	logs := &recordingHandler{}

	c := newTestClient(t, f, NewGitHubProvider(), ClientConfig{},
		WithLogger(logger.NewLogger(logger.WithHandler(logs))))

	cred, err := c.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, TokenTypeUnknown, cred.TokenType)

	_, ok := logs.find("token type not recognized by provider parser")
	assert.True(t, ok)
}

func TestClient_FetchIdentityErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		malformed bool
	}{
		{"not json", http.StatusOK, `<html>`, true},
		{"json array", http.StatusOK, `[1, 2]`, true},
		{"server error", http.StatusInternalServerError, `{}`, false},
		{"unauthorized", http.StatusUnauthorized, `{"message":"Bad credentials"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeProvider(t)
			f.userStatus = tt.status
			f.userInfo = tt.body
			c := newTestClient(t, f, NewGitHubProvider(), ClientConfig{})

			_, err := c.FetchIdentity(context.Background(), &Credential{AccessToken: "x", TokenType: TokenTypeBearer})
			require.Error(t, err)
			assert.Equal(t, tt.malformed, errors.Is(err, ErrMalformedResponse))
		})
	}
}

func TestClient_FetchIdentityEmptyObject(t *testing.T) {
	for _, body := range []string{`{}`, `null`} {
		f := newFakeProvider(t)
		f.userInfo = body
		c := newTestClient(t, f, NewSAEONProvider(), ClientConfig{})

		identity, err := c.FetchIdentity(context.Background(), &Credential{AccessToken: "x"})
		require.NoError(t, err, body)
		assert.Empty(t, identity.Fields(), body)
		assert.Equal(t, "saeon", identity.Provider)
	}
}

// leakyProvider fills a field it does not declare.
type leakyProvider struct {
	OAuth2
}

func (p *leakyProvider) ParseUser(identity *Identity, data map[string]any) *Identity {
	identity.ID = stringValue(data, "sub")
	identity.Location = "somewhere"
	return identity
}

func TestClient_FetchIdentityRestrictsUnsupportedFields(t *testing.T) {
	f := newFakeProvider(t)
	f.userInfo = `{"sub": "u1"}`
	logs := &recordingHandler{}
	p := &leakyProvider{OAuth2{ProviderName: "leaky", Attributes: SupportedAttributes{ID: true}}}
	c := newTestClient(t, f, p, ClientConfig{}, WithLogger(logger.NewLogger(logger.WithHandler(logs))))

	identity, err := c.FetchIdentity(context.Background(), &Credential{AccessToken: "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{AttrID: "u1"}, identity.Fields())

	entry, ok := logs.find("provider parser filled unsupported identity fields")
	require.True(t, ok)
	assert.Equal(t, []string{AttrLocation}, entry.Fields["cleared"])
}
