package sso

import "context"

// contextKey is a custom type for context keys
type contextKey string

const (
	identityContextKey   contextKey = "sso.identity"
	credentialContextKey contextKey = "sso.credential"
)

// WithIdentity returns a copy of ctx carrying identity and cred
func WithIdentity(ctx context.Context, identity *Identity, cred *Credential) context.Context {
	ctx = context.WithValue(ctx, identityContextKey, identity)
	return context.WithValue(ctx, credentialContextKey, cred)
}

// IdentityFromContext retrieves the identity placed by the callback handler
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityContextKey).(*Identity)
	return identity
}

// CredentialFromContext retrieves the credential placed by the callback handler
func CredentialFromContext(ctx context.Context) *Credential {
	cred, _ := ctx.Value(credentialContextKey).(*Credential)
	return cred
}

const redirectContextKey contextKey = "sso.redirect"

func withRedirectURL(ctx context.Context, redirectURL string) context.Context {
	return context.WithValue(ctx, redirectContextKey, redirectURL)
}

// RedirectURLFromContext returns the post-login redirect URL carried in the state
func RedirectURLFromContext(ctx context.Context) string {
	u, _ := ctx.Value(redirectContextKey).(string)
	return u
}
