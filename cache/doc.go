// Package cache provides the response cache that sits between request handlers
// and the upstream collaborators.
//
// It provides a Cache interface with an LRU-bounded memory implementation,
// SHA-256-based key derivation for soil payloads and image uploads, rounded
// coordinate keys for weather lookups, per-endpoint freshness policies, a
// deferred background writer, and a Layer that ties them together with request
// coalescing.
package cache
