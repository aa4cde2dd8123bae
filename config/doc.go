// Package config loads the service configuration.
//
// Values are layered from lowest to highest priority: Default, an optional
// YAML file (with ${VAR} expansion), a .env file, then process environment
// variables. API keys may be written as secretref:<provider>:<ref> and are
// resolved through the secret package by ResolveSecrets.
//
// A missing API key is never a load error; the matching collaborator is built
// in an unconfigured state instead.
package config
