// Package auth guards the administrative endpoints with a single shared
// secret.
//
// The secret is configured once at startup and compared in constant time. The
// package is transport-agnostic: HTTP handlers build an AuthRequest from the
// query string and headers and pass it to an Authenticator.
package auth
