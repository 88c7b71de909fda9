package httpclient

import (
	"fmt"
	"net/http"
)

// AuthType identifies the authentication method.
type AuthType int

const (
	// AuthNone disables authentication.
	AuthNone AuthType = iota
	// AuthBearer sends "Authorization: Bearer <token>".
	AuthBearer
	// AuthAPIKey sends the key in a header.
	AuthAPIKey
	// AuthCustom runs a request modifier.
	AuthCustom
)

// AuthConfig configures request authentication.
type AuthConfig struct {
	Type AuthType
	// Token is a static bearer token (AuthBearer).
	Token string
	// TokenSource mints a bearer token per request, taking precedence over
	// Token. Used for short-lived JWTs.
	TokenSource func() (string, error)
	// Key and Name configure AuthAPIKey. Name defaults to "X-API-Key".
	Key  string
	Name string
	// Apply is the request modifier for AuthCustom.
	Apply func(*http.Request)
}

// BearerAuth creates a static bearer token auth config.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Token: token}
}

// BearerTokenSource creates a bearer auth config that asks src for a token on
// every request.
func BearerTokenSource(src func() (string, error)) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, TokenSource: src}
}

// APIKeyAuth creates an API key auth config sent via the given header.
func APIKeyAuth(key, headerName string) *AuthConfig {
	return &AuthConfig{Type: AuthAPIKey, Key: key, Name: headerName}
}

// CustomAuth creates a custom auth config with a request modifier function.
func CustomAuth(fn func(*http.Request)) *AuthConfig {
	return &AuthConfig{Type: AuthCustom, Apply: fn}
}

func (a *AuthConfig) apply(req *http.Request) error {
	if a == nil {
		return nil
	}
	switch a.Type {
	case AuthBearer:
		token := a.Token
		if a.TokenSource != nil {
			t, err := a.TokenSource()
			if err != nil {
				return &Error{Code: ErrCodeAuth, Message: fmt.Sprintf("token source: %v", err), Err: err}
			}
			token = t
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	case AuthAPIKey:
		name := a.Name
		if name == "" {
			name = "X-API-Key"
		}
		req.Header.Set(name, a.Key)
	case AuthCustom:
		if a.Apply != nil {
			a.Apply(req)
		}
	}
	return nil
}
