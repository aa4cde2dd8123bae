// Package generate turns prompts into free text through a hosted language
// model.
//
// Two providers are supported: Gemini through google.golang.org/genai and any
// OpenAI-compatible chat completion endpoint (Groq by default) through
// github.com/openai/openai-go. Provider errors are translated into fault
// kinds at this boundary. New wraps the selected provider with a
// resilience.Guard and upstream telemetry; a provider without an API key is
// replaced by one that fails every call with a configuration error.
package generate
