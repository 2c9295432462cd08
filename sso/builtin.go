package sso

// Builtin returns the builtin providers in registration order.
//
// The position of a provider in this list is its ProviderID in the default
// registry. Only ever append to the end: inserting, removing or reordering
// entries changes the ids referenced by stored configuration and users.
func Builtin() []Provider {
	return []Provider{
		NewGitHubProvider(),   // 0
		NewGoogleProvider(),   // 1
		NewKeycloakProvider(), // 2
		NewSAEONProvider(),    // 3
	}
}

// NewDefaultRegistry returns a registry holding the builtin providers. It is
// not sealed, so applications may append their own providers first.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, p := range Builtin() {
		r.MustRegister(p)
	}
	return r
}
