package health

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	errs := []error{ErrCheckFailed, ErrCheckTimeout, ErrCheckerNotFound, ErrNotConfigured}
	for i, a := range errs {
		for j, b := range errs {
			if i != j && errors.Is(a, b) {
				t.Errorf("%v and %v should be distinct", a, b)
			}
		}
	}
}

func TestStatus_String(t *testing.T) {
	tests := map[Status]string{
		StatusHealthy:   "healthy",
		StatusDegraded:  "degraded",
		StatusUnhealthy: "unhealthy",
		Status(42):      "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}
