package sso

// SAEONProvider implements the Provider interface for the SAEON identity
// service.
type SAEONProvider struct {
	OAuth2
}

// NewSAEONProvider creates a new SAEON provider
func NewSAEONProvider() *SAEONProvider {
	return &SAEONProvider{OAuth2{
		ProviderName: "saeon",
		AuthURL:      "https://identity.saeon.nimbusservices.co.za/oauth2/connect/authorize",
		TokenURL:     "https://identity.saeon.nimbusservices.co.za/oauth2/connect/token",
		UserInfoURL:  "https://identity.saeon.nimbusservices.co.za/oauth2/connect/userinfo",
		Origin:       false,
		Attributes: SupportedAttributes{
			ID:       true,
			Username: true,
			Name:     true,
			Email:    true,
		},
	}}
}

// ParseUser maps the userinfo claims. SAEON has no stable subject in its
// userinfo response; the email address is used as the id.
func (p *SAEONProvider) ParseUser(identity *Identity, data map[string]any) *Identity {
	identity.Username = stringValue(data, "preferred_username")
	identity.Email = stringValue(data, "email")
	identity.ID = identity.Email
	identity.Name = fullName(data, "given_name", "family_name")
	return identity
}

// ParseCredentials only accepts the documented "Bearer" casing.
func (p *SAEONProvider) ParseCredentials(cred *Credential, data map[string]any) *Credential {
	if stringValue(data, "token_type") == "Bearer" {
		cred.TokenType = TokenTypeBearer
	}
	return cred
}
