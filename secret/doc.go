// Package secret resolves API keys and other credentials referenced from
// configuration.
//
// A configured value is one of:
//   - a literal: "gsk_live_..."
//   - an environment reference: "${GROQ_API_KEY}"
//   - a provider reference: "secretref:env:GROQ_API_KEY" or
//     "secretref:file:/run/secrets/groq_api_key"
//
// Two providers are built in: "env" reads process environment variables and
// "file" reads a file such as a Docker or Kubernetes mounted secret. Further
// providers can be registered on a Registry.
//
// Resolved values are never logged by this package.
package secret
