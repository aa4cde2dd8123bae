package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrProviderNotRegistered is returned for a reference to an unknown provider.
var ErrProviderNotRegistered = errors.New("secret: provider is not registered")

// Resolver turns configured values into secrets.
//
// Values of the form "secretref:<provider>:<ref>" are resolved through the
// named provider. Other values are returned after environment expansion,
// strict or lenient according to the resolver mode.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider), strict: strict}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register registers a provider with the resolver.
func (r *Resolver) Register(provider Provider) {
	if r == nil || provider == nil {
		return
	}
	r.providers[provider.Name()] = provider
}

// ResolveValue resolves value. An empty value resolves to "".
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}

	strict := r != nil && r.strict
	expanded := ExpandEnv(value)
	if strict {
		var err error
		if expanded, err = ExpandEnvStrict(value); err != nil {
			return "", err
		}
	}

	providerName, ref, ok := ParseSecretRef(expanded)
	if !ok {
		return expanded, nil
	}
	if r == nil {
		return "", fmt.Errorf("%w: %q", ErrProviderNotRegistered, providerName)
	}

	provider, found := r.providers[providerName]
	if !found {
		return "", fmt.Errorf("%w: %q", ErrProviderNotRegistered, providerName)
	}
	resolved, err := provider.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if strict && resolved == "" {
		return "", fmt.Errorf("secret: provider %q returned empty value", providerName)
	}
	return resolved, nil
}

// ResolveFields resolves every named value in place. The error names the field
// that failed, never its value.
func (r *Resolver) ResolveFields(ctx context.Context, fields map[string]*string) error {
	for name, ptr := range fields {
		if ptr == nil {
			continue
		}
		resolved, err := r.ResolveValue(ctx, *ptr)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", name, err)
		}
		*ptr = resolved
	}
	return nil
}

// Close closes every registered provider.
func (r *Resolver) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, p := range r.providers {
		errs = append(errs, p.Close())
	}
	return errors.Join(errs...)
}

// ParseSecretRef parses a full secret reference of the form:
//
//	secretref:<provider>:<ref>
func ParseSecretRef(value string) (provider string, ref string, ok bool) {
	const prefix = "secretref:"
	if !strings.HasPrefix(value, prefix) {
		return "", "", false
	}
	parts := strings.SplitN(strings.TrimPrefix(value, prefix), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
