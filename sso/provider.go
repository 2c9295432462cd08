package sso

// Endpoints are the three fixed URLs of an OAuth2 provider.
type Endpoints struct {
	AuthURL     string `json:"authorization_url" yaml:"authorization"`
	TokenURL    string `json:"token_url" yaml:"token"`
	UserInfoURL string `json:"userinfo_url" yaml:"userinfo"`
}

// Merge returns e with every non-empty field of override applied.
func (e Endpoints) Merge(override Endpoints) Endpoints {
	if override.AuthURL != "" {
		e.AuthURL = override.AuthURL
	}
	if override.TokenURL != "" {
		e.TokenURL = override.TokenURL
	}
	if override.UserInfoURL != "" {
		e.UserInfoURL = override.UserInfoURL
	}
	return e
}

// complete reports whether all three URLs are set.
func (e Endpoints) complete() bool {
	return e.AuthURL != "" && e.TokenURL != "" && e.UserInfoURL != ""
}

// UserParser normalizes a raw userinfo response onto identity.
// Implementations must not block, do I/O or panic; missing or mistyped keys
// leave the corresponding field empty.
type UserParser interface {
	ParseUser(identity *Identity, data map[string]any) *Identity
}

// CredentialsParser normalizes a raw token endpoint response onto cred.
// The same rules as UserParser apply.
type CredentialsParser interface {
	ParseCredentials(cred *Credential, data map[string]any) *Credential
}

// Provider defines the interface every OAuth2 identity provider implements.
type Provider interface {
	// Name returns the unique provider name, e.g. "github"
	Name() string

	// Endpoints returns the authorization, token and userinfo URLs
	Endpoints() Endpoints

	// SameOrigin reports whether the userinfo request is same-origin with
	// the authorization server
	SameOrigin() bool

	// SupportedAttributes declares which Identity fields the provider fills
	SupportedAttributes() SupportedAttributes

	UserParser
	CredentialsParser
}

// IssuerProvider is implemented by providers whose endpoints are derived
// from a configurable issuer URL.
type IssuerProvider interface {
	Provider
	EndpointsForIssuer(issuer string) Endpoints
}

// OAuth2 is the base provider. It carries the static provider configuration
// and passes identities and credentials through unchanged, so a bare OAuth2
// value is a valid Provider.
type OAuth2 struct {
	ProviderName string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Origin       bool
	Attributes   SupportedAttributes
}

func (p *OAuth2) Name() string { return p.ProviderName }

func (p *OAuth2) Endpoints() Endpoints {
	return Endpoints{AuthURL: p.AuthURL, TokenURL: p.TokenURL, UserInfoURL: p.UserInfoURL}
}

func (p *OAuth2) SameOrigin() bool { return p.Origin }

func (p *OAuth2) SupportedAttributes() SupportedAttributes { return p.Attributes }

func (p *OAuth2) ParseUser(identity *Identity, _ map[string]any) *Identity { return identity }

func (p *OAuth2) ParseCredentials(cred *Credential, _ map[string]any) *Credential { return cred }

// overridden wraps a provider with configured endpoints.
type overridden struct {
	Provider
	endpoints Endpoints
}

func (o *overridden) Endpoints() Endpoints { return o.endpoints }

// WithEndpoints returns p with the non-empty URLs of e replacing its own.
// The parsers and capability declaration of p are kept.
func WithEndpoints(p Provider, e Endpoints) Provider {
	if e == (Endpoints{}) {
		return p
	}
	return &overridden{Provider: p, endpoints: p.Endpoints().Merge(e)}
}
