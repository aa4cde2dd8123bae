package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	errs := []error{ErrMissingCredentials, ErrInvalidCredentials, ErrNotConfigured}

	for i, err := range errs {
		if !strings.HasPrefix(err.Error(), "auth: ") {
			t.Errorf("%v should be prefixed with auth:", err)
		}
		for j, other := range errs {
			if i != j && errors.Is(err, other) {
				t.Errorf("%v and %v should be distinct", err, other)
			}
		}
	}
}
