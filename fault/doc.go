// Package fault defines the error taxonomy shared by every request path.
//
// Each failure is tagged with exactly one Kind. Collaborator packages translate
// their SDK and transport errors into a Kind at their boundary; the HTTP layer
// maps the Kind to a status code and decides how much of the message is safe to
// show. Internal errors never expose their detail to callers.
package fault
