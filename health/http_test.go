package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStatusHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	StatusHandler("1.0.0")(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}
	var body StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" || body.Version != "1.0.0" {
		t.Errorf("body = %+v, want healthy 1.0.0", body)
	}
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("got (%d, %q), want (200, OK)", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != "text/plain" {
		t.Errorf("Content-Type = %v, want text/plain", rec.Header().Get("Content-Type"))
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		wantCode int
		wantBody string
	}{
		{"healthy", Healthy("ok"), http.StatusOK, "OK"},
		{"degraded", Degraded("no key", ErrNotConfigured), http.StatusOK, "DEGRADED"},
		{"unhealthy", Unhealthy("oom", ErrCheckFailed), http.StatusServiceUnavailable, "UNHEALTHY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(time.Second)
			agg.Register(fixed("component", tt.result))

			rec := httptest.NewRecorder()
			ReadinessHandler(agg)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantCode || rec.Body.String() != tt.wantBody {
				t.Errorf("got (%d, %q), want (%d, %q)", rec.Code, rec.Body.String(), tt.wantCode, tt.wantBody)
			}
		})
	}
}

func TestDetailedHandler(t *testing.T) {
	agg := NewAggregator(time.Second)
	agg.Register(fixed("cache", Healthy("cache operational").WithDetails(map[string]any{"entries": 2})))
	agg.Register(fixed("generation", Degraded("not configured", ErrNotConfigured)))

	rec := httptest.NewRecorder()
	DetailedHandler(agg, "1.0.0")(rec, httptest.NewRequest(http.MethodGet, "/health/details", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Status = %d, want 200", rec.Code)
	}
	var body DetailedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" || body.Version != "1.0.0" {
		t.Errorf("body = %+v", body)
	}
	if gen := body.Checks["generation"]; gen.Status != "degraded" || gen.Error != ErrNotConfigured.Error() {
		t.Errorf("generation check = %+v", gen)
	}
	if body.Checks["cache"].Details["entries"] != float64(2) {
		t.Errorf("cache details = %v", body.Checks["cache"].Details)
	}
}
