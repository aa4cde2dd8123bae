package generate

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/jonwraymond/agriops/fault"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiConfig configures the Gemini generator.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini generates text through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates the generator.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fault.Configuration("generate.gemini", "Generation API key not configured")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fault.Wrap(fault.KindConfiguration, "generate.gemini", "Generation client could not be created", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Provider() string { return "gemini" }

func (g *Gemini) Configured() bool { return true }

// Model returns the model name sent with each request.
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	const op = "generate.gemini"

	gc := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxTokens > 0 {
		gc.MaxOutputTokens = int32(opts.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), gc)
	if err != nil {
		return "", geminiError(op, err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fault.Upstream(op, "Generation service returned an empty answer", ErrEmptyResponse)
	}
	return text, nil
}

func geminiError(op string, err error) error {
	if mapped, ok := contextError(op, err); ok {
		return mapped
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(op, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return statusError(op, apiErrPtr.Code, err)
	}
	return fault.Upstream(op, "Generation service unreachable", err)
}
