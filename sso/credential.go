package sso

import (
	"time"

	"golang.org/x/oauth2"
)

// TokenType is the normalized type of an access token.
type TokenType int

const (
	// TokenTypeUnknown means the provider's token_type was missing or not
	// recognized by its credentials parser.
	TokenTypeUnknown TokenType = iota
	// TokenTypeBearer is an RFC 6750 bearer token.
	TokenTypeBearer
)

func (t TokenType) String() string {
	switch t {
	case TokenTypeBearer:
		return "Bearer"
	default:
		return "unknown"
	}
}

// Credential holds the token material obtained from a provider's token
// endpoint. TokenType is only ever set by a provider's credentials parser.
type Credential struct {
	AccessToken  string
	RefreshToken string
	TokenType    TokenType
	Expiry       time.Time
	Scope        string

	Provider   string
	ProviderID ProviderID
}

// Expired reports whether the access token has a known expiry in the past.
func (c *Credential) Expired() bool {
	return !c.Expiry.IsZero() && time.Now().After(c.Expiry)
}

// OAuth2Token converts the credential back into an oauth2 token for calling
// protected resources.
func (c *Credential) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
	if c.TokenType == TokenTypeBearer {
		tok.TokenType = "Bearer"
	}
	return tok
}

// tokenResponseKeys are the token endpoint fields handed to credentials parsers.
var tokenResponseKeys = []string{"access_token", "token_type", "refresh_token", "expires_in", "scope", "id_token"}

// tokenResponse rebuilds the raw token endpoint fields from an exchanged token.
func tokenResponse(tok *oauth2.Token) map[string]any {
	data := make(map[string]any, len(tokenResponseKeys))
	for _, key := range tokenResponseKeys {
		if v := tok.Extra(key); v != nil {
			data[key] = v
		}
	}
	return data
}

// newCredential copies the engine-managed fields of tok. TokenType stays
// unknown until the provider's parser sets it.
func newCredential(tok *oauth2.Token) *Credential {
	c := &Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		c.Scope = scope
	}
	return c
}
