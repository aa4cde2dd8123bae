package auth

import (
	"context"
	"net/http"

	"github.com/jonwraymond/agriops/fault"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines.
// - Errors: Authenticate returns (nil, error) for internal errors;
//   returns (AuthResult, nil) for auth failures (check result.Authenticated).
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Authenticate validates credentials and returns a result.
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest contains the credentials presented by a caller.
type AuthRequest struct {
	// Headers contains request headers, canonicalized as in net/http.
	Headers map[string][]string

	// Query contains the URL query parameters.
	Query map[string][]string
}

// FromHTTP builds an AuthRequest from an HTTP request.
func FromHTTP(r *http.Request) *AuthRequest {
	return &AuthRequest{Headers: r.Header, Query: r.URL.Query()}
}

// GetHeader returns the first value for a header, or empty string.
func (r *AuthRequest) GetHeader(key string) string {
	return first(http.Header(r.Headers).Values(key))
}

// GetQuery returns the first value for a query parameter, or empty string.
func (r *AuthRequest) GetQuery(key string) string {
	if r.Query == nil {
		return ""
	}
	return first(r.Query[key])
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// AuthResult is the result of an authentication attempt.
type AuthResult struct {
	// Authenticated is true if authentication succeeded.
	Authenticated bool

	// Identity is the authenticated identity (only if Authenticated=true).
	Identity *Identity

	// Error is the authentication error (only if Authenticated=false).
	Error error
}

// AuthSuccess creates a successful authentication result.
func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{Authenticated: true, Identity: identity}
}

// AuthFailure creates a failed authentication result.
func AuthFailure(err error) *AuthResult {
	return &AuthResult{Error: err}
}

// Require authenticates req and converts a failed attempt into a forbidden
// fault. The caller-facing message never says why the attempt failed.
func Require(ctx context.Context, a Authenticator, req *AuthRequest) (*Identity, error) {
	const op = "auth.require"

	result, err := a.Authenticate(ctx, req)
	if err != nil {
		return nil, fault.Internal(op, err)
	}
	if !result.Authenticated {
		return nil, &fault.Error{Kind: fault.KindForbidden, Op: op, Message: "Unauthorized", Err: result.Error}
	}
	return result.Identity, nil
}
