package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/agriops/fault"
	"github.com/jonwraymond/agriops/resilience"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "mixtral-8x7b-32768",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  Loamy soil, plant rice.  "}}]
}`

func newOpenAIServer(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL + "/openai/v1"})
	require.NoError(t, err)
	return g
}

func TestOpenAI_Generate(t *testing.T) {
	var body map[string]any
	g := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	})

	got, err := g.Generate(context.Background(), "analyze this soil", SoilOptions)
	require.NoError(t, err)
	assert.Equal(t, "Loamy soil, plant rice.", got)

	assert.Equal(t, DefaultOpenAIModel, body["model"])
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)
	assert.EqualValues(t, 1024, body["max_tokens"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
	assert.Equal(t, "analyze this soil", messages[0].(map[string]any)["content"])
}

func TestOpenAI_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`, true},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, true},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"invalid key"}}`, false},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad"}}`, false},
		{"no choices", http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			g := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := g.Generate(context.Background(), "p", ChatOptions)
			require.Error(t, err)
			assert.Equal(t, fault.KindUpstream, fault.KindOf(err))
			assert.Equal(t, tt.transient, resilience.Transient(err))
			assert.EqualValues(t, 1, calls.Load(), "the client must not retry on its own")
		})
	}
}

func TestOpenAI_DeadlineIsTimeout(t *testing.T) {
	g := newOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, "p", ChatOptions)
	require.Error(t, err)
	assert.Equal(t, fault.KindTimeout, fault.KindOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{})
	assert.Equal(t, fault.KindConfiguration, fault.KindOf(err))
}
