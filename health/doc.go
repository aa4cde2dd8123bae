// Package health reports whether the service and its collaborators can serve
// requests.
//
// A Checker reports one component's Status: Healthy, Degraded, or Unhealthy.
// An Aggregator runs every registered checker in parallel under a shared
// timeout and combines their results.
//
// Built-in checkers cover process memory, the response cache, and whether each
// upstream collaborator is configured. An unconfigured collaborator degrades
// the service but does not make it unready: the endpoints that do not need it
// keep working.
//
// # HTTP Endpoints
//
//	mux.Handle("/health", health.StatusHandler(version))      // {"status":"healthy","version":"1.0.0"}
//	mux.Handle("/healthz", health.LivenessHandler())          // OK
//	mux.Handle("/readyz", health.ReadinessHandler(agg))       // OK, DEGRADED or UNHEALTHY
//	mux.Handle("/health/details", health.DetailedHandler(agg, version)) // per-check JSON
package health
