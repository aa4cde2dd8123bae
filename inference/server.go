package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/jonwraymond/agriops/fault"
	"github.com/jonwraymond/agriops/resilience"
)

// ErrBadPrediction is returned when a model server answers with a body that
// does not hold the expected predictions.
var ErrBadPrediction = errors.New("inference: malformed prediction")

// maxResponseBytes caps how much of a model server response is read.
const maxResponseBytes = 8 << 20

// ModelServer posts predict requests to one model endpoint.
type ModelServer struct {
	url        string
	op         string
	httpClient *http.Client
}

// NewModelServer creates a client for the predict endpoint at url. op names
// the operation in returned faults.
func NewModelServer(url, op string, hc *http.Client) *ModelServer {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &ModelServer{url: url, op: op, httpClient: hc}
}

// URL returns the predict endpoint.
func (s *ModelServer) URL() string { return s.url }

type predictRequest struct {
	Instances any `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// Predict sends instances and returns the first row of predictions.
func (s *ModelServer) Predict(ctx context.Context, instances any) ([]float64, error) {
	body, err := json.Marshal(predictRequest{Instances: instances})
	if err != nil {
		return nil, fault.Internal(s.op, fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fault.Wrap(fault.KindConfiguration, s.op, "Model endpoint is invalid", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fault.Timeout(s.op, "Model server timed out", err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fault.Upstream(s.op, "Model server unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fault.Upstream(s.op, "Model server response unreadable", err)
	}

	if resp.StatusCode != http.StatusOK {
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fault.Upstream(s.op, "Model server unavailable", cause)
		}
		return nil, fault.Upstream(s.op, "Model server rejected the request", resilience.Permanent(cause))
	}

	var out predictResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fault.Upstream(s.op, "Model server returned an invalid response",
			resilience.Permanent(fmt.Errorf("%w: %w", ErrBadPrediction, err)))
	}
	if out.Error != "" {
		return nil, fault.Upstream(s.op, "Model server reported an error",
			resilience.Permanent(fmt.Errorf("%w: %s", ErrBadPrediction, out.Error)))
	}
	if len(out.Predictions) == 0 || len(out.Predictions[0]) == 0 {
		return nil, fault.Upstream(s.op, "Model server returned no predictions", resilience.Permanent(ErrBadPrediction))
	}
	return out.Predictions[0], nil
}
