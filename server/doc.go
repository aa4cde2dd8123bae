// Package server is the HTTP surface of agriops.
//
// Handlers validate input, derive a cache key, and read through the cache
// layer; only a miss reaches the generation, inference or weather
// collaborator, and the fresh result is written back after the response.
// Failures are tagged with a fault kind, which alone decides the status code.
// Error bodies use {"detail": "..."}, except /chat, which answers
// {"error": "..."}.
package server
