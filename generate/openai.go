package generate

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/jonwraymond/agriops/fault"
)

// OpenAI defaults, pointing at Groq.
const (
	DefaultOpenAIBaseURL = "https://api.groq.com/openai/v1"
	DefaultOpenAIModel   = "mixtral-8x7b-32768"
)

// OpenAIConfig configures an OpenAI-compatible generator.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
}

// OpenAI generates text through a chat completions endpoint.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates the generator. Retries are left to the caller's guard.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fault.Configuration("generate.openai", "Generation API key not configured")
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultOpenAIBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(base),
		option.WithMaxRetries(0),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}, nil
}

func (o *OpenAI) Provider() string { return "openai" }

func (o *OpenAI) Configured() bool { return true }

// Model returns the model name sent with each request.
func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	const op = "generate.openai"

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", openAIError(op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fault.Upstream(op, "Generation service returned no choices", ErrEmptyResponse)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fault.Upstream(op, "Generation service returned an empty answer", ErrEmptyResponse)
	}
	return text, nil
}

func openAIError(op string, err error) error {
	if mapped, ok := contextError(op, err); ok {
		return mapped
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return statusError(op, apiErr.StatusCode, err)
	}
	return fault.Upstream(op, "Generation service unreachable", err)
}
