// Package config reads the provider configuration file and binds each entry
// to a registered provider.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"federation/logger"
	"federation/sso"

	"gopkg.in/yaml.v3"
)

// ProviderSettings is one entry of the providers file.
//
//	github:
//	  consumer_key: abc
//	  consumer_secret: xyz
//	  scope: [read:user, user:email]
//	  access_headers:
//	    User-Agent: federation
type ProviderSettings struct {
	// Class names the registered provider; defaults to the entry key.
	Class          string            `yaml:"class"`
	ConsumerKey    string            `yaml:"consumer_key"`
	ConsumerSecret string            `yaml:"consumer_secret"`
	Scope          []string          `yaml:"scope"`
	AccessHeaders  map[string]string `yaml:"access_headers"`
	RedirectURL    string            `yaml:"redirect_url"`
	Issuer         string            `yaml:"issuer"`
	Endpoints      sso.Endpoints     `yaml:"endpoints"`
	Properties     Properties        `yaml:"properties"`
}

// Properties maps identity attribute names to application field names.
type Properties map[string]string

// Apply renames the identity's populated fields. Attributes without a
// mapping keep their own name.
func (p Properties) Apply(identity *sso.Identity) map[string]string {
	fields := identity.Fields()
	out := make(map[string]string, len(fields))
	for name, value := range fields {
		if mapped, ok := p[name]; ok && mapped != "" {
			name = mapped
		}
		out[name] = value
	}
	return out
}

// Validate rejects mappings that name an unknown attribute or that would
// give two attributes the same application field name.
func (p Properties) Validate() error {
	known := make(map[string]bool)
	for _, name := range sso.AttributeNames() {
		known[name] = true
	}
	for name := range p {
		if !known[name] {
			return fmt.Errorf("properties: unknown identity attribute %q", name)
		}
	}

	owner := make(map[string]string)
	for _, name := range sso.AttributeNames() {
		target := name
		if mapped := p[name]; mapped != "" {
			target = mapped
		}
		if other, taken := owner[target]; taken {
			return fmt.Errorf("properties: %q and %q both map to %q", other, name, target)
		}
		owner[target] = name
	}
	return nil
}

// File is the parsed providers file, keyed by configured provider name.
type File struct {
	Providers map[string]ProviderSettings `yaml:"providers"`
}

// Load reads and parses the providers file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading providers file: %w", err)
	}
	return Parse(data)
}

// Parse parses a providers file.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing providers file: %w", err)
	}
	if len(f.Providers) == 0 {
		return nil, errors.New("providers file configures no providers")
	}
	for name, s := range f.Providers {
		if s.ConsumerKey == "" {
			return nil, fmt.Errorf("provider %q: consumer_key is required", name)
		}
		if err := s.Properties.Validate(); err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
	}
	return &f, nil
}

// Binding is a configured provider ready for use.
type Binding struct {
	Name       string
	Client     *sso.Client
	Properties Properties
}

// Bind resolves every configured provider through reg and builds its client.
func Bind(ctx context.Context, reg *sso.Registry, file *File, log *logger.Logger, opts ...sso.ClientOption) (map[string]*Binding, error) {
	if log == nil {
		log = logger.Nop()
	}

	names := make([]string, 0, len(file.Providers))
	for name := range file.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	bindings := make(map[string]*Binding, len(names))
	for _, name := range names {
		s := file.Providers[name]
		class := s.Class
		if class == "" {
			class = name
		}

		p, id, err := reg.LookupName(class)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}

		if ip, ok := p.(sso.IssuerProvider); ok && s.Issuer != "" {
			p = sso.WithEndpoints(p, ip.EndpointsForIssuer(s.Issuer))
		}
		p = sso.WithEndpoints(p, s.Endpoints)

		if class == "github" && s.AccessHeaders["User-Agent"] == "" {
			log.With(logger.F("provider", name)).Context(ctx).
				Warn("github rejects API requests without a User-Agent access header")
		}

		client, err := sso.NewClient(id, p, sso.ClientConfig{
			ClientID:      s.ConsumerKey,
			ClientSecret:  s.ConsumerSecret,
			RedirectURL:   s.RedirectURL,
			Scopes:        s.Scope,
			AccessHeaders: s.AccessHeaders,
		}, opts...)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}

		bindings[name] = &Binding{Name: name, Client: client, Properties: s.Properties}
		log.With(
			logger.F("provider", name),
			logger.F("class", class),
			logger.F("provider_id", int(id)),
		).Context(ctx).Info("provider configured")
	}
	return bindings, nil
}

// Clients returns the clients of bindings keyed by configured name.
func Clients(bindings map[string]*Binding) map[string]*sso.Client {
	clients := make(map[string]*sso.Client, len(bindings))
	for name, b := range bindings {
		clients[name] = b.Client
	}
	return clients
}
