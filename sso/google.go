package sso

// GoogleProvider implements the Provider interface for Google's OpenID
// Connect userinfo endpoint.
type GoogleProvider struct {
	OAuth2
}

// NewGoogleProvider creates a new Google provider
func NewGoogleProvider() *GoogleProvider {
	return &GoogleProvider{OAuth2{
		ProviderName: "google",
		AuthURL:      "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:     "https://oauth2.googleapis.com/token",
		UserInfoURL:  "https://openidconnect.googleapis.com/v1/userinfo",
		Origin:       true,
		Attributes: SupportedAttributes{
			ID:       true,
			Username: true,
			Name:     true,
			Email:    true,
			Link:     true,
			Picture:  true,
		},
	}}
}

func (p *GoogleProvider) ParseUser(identity *Identity, data map[string]any) *Identity {
	identity.ID = stringValue(data, "sub")
	identity.Email = stringValue(data, "email")
	// Google has no handle; the email address doubles as username.
	identity.Username = identity.Email
	identity.Name = firstNonEmpty(fullName(data, "given_name", "family_name"), stringValue(data, "name"))
	identity.Link = stringValue(data, "profile")
	identity.Picture = stringValue(data, "picture")
	return identity
}

func (p *GoogleProvider) ParseCredentials(cred *Credential, data map[string]any) *Credential {
	if stringValue(data, "token_type") == "Bearer" {
		cred.TokenType = TokenTypeBearer
	}
	return cred
}
