package sso

// GitHubProvider implements the Provider interface for GitHub.
//
// GitHub requires a User-Agent header on every API request, so its
// configuration should carry one in access_headers.
type GitHubProvider struct {
	OAuth2
}

// NewGitHubProvider creates a new GitHub provider
func NewGitHubProvider() *GitHubProvider {
	return &GitHubProvider{OAuth2{
		ProviderName: "github",
		AuthURL:      "https://github.com/login/oauth/authorize",
		TokenURL:     "https://github.com/login/oauth/access_token",
		UserInfoURL:  "https://api.github.com/user",
		Origin:       false,
		Attributes: SupportedAttributes{
			ID:       true,
			Username: true,
			Name:     true,
			Email:    true,
			Link:     true,
			Location: true,
			Picture:  true,
		},
	}}
}

// ParseUser maps the /user response. GitHub sends a numeric id.
func (p *GitHubProvider) ParseUser(identity *Identity, data map[string]any) *Identity {
	identity.ID = idValue(data, "id")
	identity.Username = stringValue(data, "login")
	identity.Name = stringValue(data, "name")
	identity.Email = stringValue(data, "email")
	identity.Link = stringValue(data, "html_url")
	identity.Location = stringValue(data, "location")
	identity.Picture = stringValue(data, "avatar_url")
	return identity
}

// ParseCredentials accepts GitHub's lowercase "bearer".
func (p *GitHubProvider) ParseCredentials(cred *Credential, data map[string]any) *Credential {
	if stringValue(data, "token_type") == "bearer" {
		cred.TokenType = TokenTypeBearer
	}
	return cred
}
