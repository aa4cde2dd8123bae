package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"strings"
)

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// Key is the expected secret. An empty key rejects every request.
	Key string

	// QueryParam is the query parameter carrying the key.
	// Default: "api_key"
	QueryParam string

	// HeaderName is an alternative header carrying the key.
	// Default: "X-API-Key"
	HeaderName string

	// Principal names the identity granted by the key.
	// Default: "admin"
	Principal string
}

// APIKeyAuthenticator validates a single shared API key.
type APIKeyAuthenticator struct {
	config    APIKeyConfig
	keyDigest [sha256.Size]byte
}

// NewAPIKeyAuthenticator creates a new API key authenticator.
func NewAPIKeyAuthenticator(config APIKeyConfig) *APIKeyAuthenticator {
	if config.QueryParam == "" {
		config.QueryParam = "api_key"
	}
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	if config.Principal == "" {
		config.Principal = "admin"
	}

	a := &APIKeyAuthenticator{config: config}
	if config.Key != "" {
		a.keyDigest = sha256.Sum256([]byte(config.Key))
	}
	return a
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return "api_key"
}

// Configured reports whether a key is set.
func (a *APIKeyAuthenticator) Configured() bool {
	return a.config.Key != ""
}

// Authenticate validates the presented key. The query parameter wins over the
// header when both are present.
func (a *APIKeyAuthenticator) Authenticate(_ context.Context, req *AuthRequest) (*AuthResult, error) {
	presented := req.GetQuery(a.config.QueryParam)
	if presented == "" {
		presented = req.GetHeader(a.config.HeaderName)
	}
	presented = strings.TrimSpace(presented)

	if !a.Configured() {
		return AuthFailure(ErrNotConfigured), nil
	}
	if presented == "" {
		return AuthFailure(ErrMissingCredentials), nil
	}

	// Digests have equal length, so the comparison time does not depend on the
	// presented key.
	digest := sha256.Sum256([]byte(presented))
	if subtle.ConstantTimeCompare(digest[:], a.keyDigest[:]) != 1 {
		return AuthFailure(ErrInvalidCredentials), nil
	}

	return AuthSuccess(&Identity{
		Principal: a.config.Principal,
		Roles:     []string{RoleAdmin},
		Method:    AuthMethodAPIKey,
	}), nil
}

// Ensure APIKeyAuthenticator implements Authenticator
var _ Authenticator = (*APIKeyAuthenticator)(nil)
