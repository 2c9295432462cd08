package sso

import (
	"crypto/rand"
	"encoding/base64"
	"net/url"
	"strings"
)

// GenerateRandomBytes returns securely generated random bytes
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateRandomString returns a URL-safe, base64 encoded
// securely generated random string
func GenerateRandomString(s int) (string, error) {
	b, err := GenerateRandomBytes(s)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// IsValidRedirectURL accepts same-site paths ("/dashboard") and absolute
// http(s) URLs whose host is in allowedHosts.
func IsValidRedirectURL(redirectURL string, allowedHosts []string) bool {
	if redirectURL == "" {
		return false
	}

	u, err := url.Parse(redirectURL)
	if err != nil {
		return false
	}

	if !u.IsAbs() {
		// Browsers treat "\" as "/", so "/\host" is scheme-relative too.
		if strings.Contains(redirectURL, `\`) {
			return false
		}
		return strings.HasPrefix(redirectURL, "/") && !strings.HasPrefix(redirectURL, "//") && u.Host == ""
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	for _, host := range allowedHosts {
		if strings.EqualFold(u.Host, host) {
			return true
		}
	}
	return false
}
