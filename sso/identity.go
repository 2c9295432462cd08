package sso

import (
	"fmt"
	"strings"
)

// Attribute names shared by Identity and SupportedAttributes.
const (
	AttrID       = "id"
	AttrUsername = "username"
	AttrName     = "name"
	AttrEmail    = "email"
	AttrLink     = "link"
	AttrLocation = "location"
	AttrPicture  = "picture"
)

// attributeOrder is the fixed order used for listings and logs.
var attributeOrder = []string{AttrID, AttrUsername, AttrName, AttrEmail, AttrLink, AttrLocation, AttrPicture}

// AttributeNames returns every identity attribute name in listing order.
func AttributeNames() []string {
	return append([]string(nil), attributeOrder...)
}

// Identity represents a user profile normalized across identity providers.
// Empty fields are absent.
type Identity struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Link     string `json:"link,omitempty"`
	Location string `json:"location,omitempty"`
	Picture  string `json:"picture,omitempty"`

	Provider   string     `json:"provider"`
	ProviderID ProviderID `json:"provider_id"`

	// Data is the raw userinfo response the identity was parsed from.
	Data map[string]any `json:"-"`
}

// Fields returns the normalized fields keyed by attribute name.
// Absent fields are omitted.
func (i *Identity) Fields() map[string]string {
	out := make(map[string]string, len(attributeOrder))
	for _, name := range attributeOrder {
		if v := *i.field(name); v != "" {
			out[name] = v
		}
	}
	return out
}

// String returns a single line representation suitable for logs.
func (i *Identity) String() string {
	parts := make([]string, 0, len(attributeOrder))
	for _, name := range attributeOrder {
		if v := *i.field(name); v != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", name, v))
		}
	}
	return fmt.Sprintf("Identity{provider=%s(%d) %s}", i.Provider, i.ProviderID, strings.Join(parts, " "))
}

func (i *Identity) field(name string) *string {
	switch name {
	case AttrID:
		return &i.ID
	case AttrUsername:
		return &i.Username
	case AttrName:
		return &i.Name
	case AttrEmail:
		return &i.Email
	case AttrLink:
		return &i.Link
	case AttrLocation:
		return &i.Location
	case AttrPicture:
		return &i.Picture
	}
	panic("sso: unknown identity attribute " + name)
}

// SupportedAttributes declares which Identity fields a provider can populate.
type SupportedAttributes struct {
	ID       bool `json:"id"`
	Username bool `json:"username"`
	Name     bool `json:"name"`
	Email    bool `json:"email"`
	Link     bool `json:"link"`
	Location bool `json:"location"`
	Picture  bool `json:"picture"`
}

// Supports reports whether the named attribute is declared supported.
func (a SupportedAttributes) Supports(name string) bool {
	switch name {
	case AttrID:
		return a.ID
	case AttrUsername:
		return a.Username
	case AttrName:
		return a.Name
	case AttrEmail:
		return a.Email
	case AttrLink:
		return a.Link
	case AttrLocation:
		return a.Location
	case AttrPicture:
		return a.Picture
	default:
		return false
	}
}

// Names returns the supported attribute names in a fixed order.
func (a SupportedAttributes) Names() []string {
	var names []string
	for _, name := range attributeOrder {
		if a.Supports(name) {
			names = append(names, name)
		}
	}
	return names
}

// Restrict clears every populated field of identity that is not declared
// supported and returns the names of the cleared fields.
func (a SupportedAttributes) Restrict(identity *Identity) []string {
	var cleared []string
	for _, name := range attributeOrder {
		f := identity.field(name)
		if *f != "" && !a.Supports(name) {
			*f = ""
			cleared = append(cleared, name)
		}
	}
	return cleared
}
