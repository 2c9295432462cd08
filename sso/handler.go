package sso

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"federation/logger"
)

// DefaultStateTTL is how long a login attempt may take before its state expires.
const DefaultStateTTL = 10 * time.Minute

// HandlerConfig holds the redirect policy of a Handler
type HandlerConfig struct {
	// Default URL to redirect after successful login
	DefaultRedirectURL string
	// Hosts accepted for absolute redirect URLs
	AllowedHosts []string
	StateTTL     time.Duration
}

// Handler handles SSO authentication for every configured client. After a
// successful callback the identity is placed in the request context and the
// request is passed to Next.
type Handler struct {
	clients map[string]*Client
	states  StateStore
	codec   *StateCodec
	config  HandlerConfig
	log     *logger.Logger

	// Next receives the authenticated request. When nil the user is
	// redirected to the URL carried in the state.
	Next http.Handler
}

// NewHandler creates a Handler. clients is keyed by the name used in the
// provider query parameter.
func NewHandler(clients map[string]*Client, states StateStore, codec *StateCodec, config HandlerConfig, log *logger.Logger) *Handler {
	if config.StateTTL <= 0 {
		config.StateTTL = DefaultStateTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		clients: clients,
		states:  states,
		codec:   codec,
		config:  config,
		log:     log,
	}
}

// ProviderInfo describes a configured provider to the front end
type ProviderInfo struct {
	ID                  ProviderID `json:"id"`
	Name                string     `json:"name"`
	Class               string     `json:"class"`
	SameOrigin          bool       `json:"same_origin"`
	SupportedAttributes []string   `json:"supported_attributes"`
}

// Providers lists the configured providers ordered by id
func (h *Handler) Providers() []ProviderInfo {
	infos := make([]ProviderInfo, 0, len(h.clients))
	for name, c := range h.clients {
		infos = append(infos, ProviderInfo{
			ID:                  c.ID(),
			Name:                name,
			Class:               c.Provider().Name(),
			SameOrigin:          c.SameOrigin(),
			SupportedAttributes: c.Provider().SupportedAttributes().Names(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ID != infos[j].ID {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// ProvidersHandler writes the configured providers as JSON
func (h *Handler) ProvidersHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.Providers()); err != nil {
		h.log.With().Context(r.Context()).WithError(err).Error("failed to write providers")
	}
}

// LoginHandler initiates the SSO flow for a specific provider
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	client, ok := h.client(w, r)
	if !ok {
		return
	}

	redirectURL := r.URL.Query().Get("redirect_url")
	if redirectURL == "" {
		redirectURL = h.config.DefaultRedirectURL
	}
	if !IsValidRedirectURL(redirectURL, h.config.AllowedHosts) {
		http.Error(w, "Invalid redirect URL", http.StatusBadRequest)
		return
	}

	// Generate a state token for CSRF protection
	state, err := GenerateRandomString(32)
	if err != nil {
		http.Error(w, "Failed to generate state token", http.StatusInternalServerError)
		return
	}
	if err := h.states.Save(r.Context(), state, h.config.StateTTL); err != nil {
		h.log.With(logger.F("provider", client.Provider().Name())).
			Context(r.Context()).WithError(err).Error("failed to save state")
		http.Error(w, "Failed to save state token", http.StatusInternalServerError)
		return
	}

	encoded, err := h.codec.Encode(state, redirectURL)
	if err != nil {
		http.Error(w, "Failed to encode state token", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, client.AuthCodeURL(encoded), http.StatusTemporaryRedirect)
}

// CallbackHandler handles the callback from the SSO provider
func (h *Handler) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	client, ok := h.client(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	if code := query.Get("error"); code != "" {
		h.log.With(
			logger.F("provider", client.Provider().Name()),
			logger.F("error", code),
			logger.F("error_description", query.Get("error_description")),
		).Context(r.Context()).Warn("provider returned an error")
		http.Error(w, "Authentication failed: "+code, http.StatusBadRequest)
		return
	}

	encoded := query.Get("state")
	if encoded == "" {
		http.Error(w, "Missing state parameter", http.StatusBadRequest)
		return
	}
	state, redirectURL, err := h.codec.Decode(encoded)
	if err != nil {
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}
	if redirectURL == "" {
		redirectURL = h.config.DefaultRedirectURL
	}

	valid, err := h.states.Consume(r.Context(), state)
	if err != nil {
		h.log.With().Context(r.Context()).WithError(err).Error("failed to consume state")
		http.Error(w, "Failed to validate state token", http.StatusInternalServerError)
		return
	}
	if !valid {
		http.Error(w, "Invalid or expired state token", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "Missing code parameter", http.StatusBadRequest)
		return
	}

	identity, cred, err := client.Login(r.Context(), code)
	if err != nil {
		h.log.With(
			logger.F("provider", client.Provider().Name()),
			logger.F("malformed", errors.Is(err, ErrMalformedResponse)),
		).Context(r.Context()).WithError(err).Error("authentication failed")
		http.Error(w, "Authentication failed", http.StatusBadGateway)
		return
	}

	ctx := WithIdentity(r.Context(), identity, cred)
	ctx = withRedirectURL(ctx, redirectURL)
	if h.Next != nil {
		h.Next.ServeHTTP(w, r.WithContext(ctx))
		return
	}
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}

func (h *Handler) client(w http.ResponseWriter, r *http.Request) (*Client, bool) {
	name := r.URL.Query().Get("provider")
	if name == "" {
		http.Error(w, "Provider not specified", http.StatusBadRequest)
		return nil, false
	}
	c, ok := h.clients[name]
	if !ok {
		http.Error(w, "Provider '"+name+"' not supported", http.StatusBadRequest)
		return nil, false
	}
	return c, true
}

// RegisterHandlers registers the SSO handlers with the provided ServeMux
func (h *Handler) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/auth/providers", h.ProvidersHandler)
	mux.HandleFunc("/auth/login", h.LoginHandler)
	mux.HandleFunc("/auth/callback", h.CallbackHandler)
}
