package sso

import (
	"fmt"
	"strings"
)

// KeycloakProvider implements the Provider interface for a Keycloak realm.
// It has no fixed endpoints; they are derived from the realm issuer URL,
// e.g. https://sso.example.org/realms/acme.
type KeycloakProvider struct {
	OAuth2
}

// NewKeycloakProvider creates a new Keycloak provider
func NewKeycloakProvider() *KeycloakProvider {
	return &KeycloakProvider{OAuth2{
		ProviderName: "keycloak",
		Attributes: SupportedAttributes{
			ID:       true,
			Username: true,
			Name:     true,
			Email:    true,
		},
	}}
}

// EndpointsForIssuer constructs the realm's OpenID Connect endpoints.
func (p *KeycloakProvider) EndpointsForIssuer(issuer string) Endpoints {
	base := strings.TrimRight(issuer, "/")
	return Endpoints{
		AuthURL:     fmt.Sprintf("%s/protocol/openid-connect/auth", base),
		TokenURL:    fmt.Sprintf("%s/protocol/openid-connect/token", base),
		UserInfoURL: fmt.Sprintf("%s/protocol/openid-connect/userinfo", base),
	}
}

func (p *KeycloakProvider) ParseUser(identity *Identity, data map[string]any) *Identity {
	identity.ID = stringValue(data, "sub")
	identity.Username = stringValue(data, "preferred_username")
	identity.Name = fullName(data, "given_name", "family_name")
	identity.Email = stringValue(data, "email")
	return identity
}

func (p *KeycloakProvider) ParseCredentials(cred *Credential, data map[string]any) *Credential {
	if stringValue(data, "token_type") == "Bearer" {
		cred.TokenType = TokenTypeBearer
	}
	return cred
}
