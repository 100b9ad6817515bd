package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient transcribes through the OpenAI audio API via go-openai.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI transcription client. baseURL may be
// empty to use api.openai.com.
func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Name returns the provider name.
func (oc *OpenAIClient) Name() string { return "openai" }

// Model returns the configured model identifier.
func (oc *OpenAIClient) Model() string { return oc.model }

func (oc *OpenAIClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error) {
	resp, err := oc.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       oc.model,
		FilePath:    audioPath,
		Language:    opts.Language,
		Prompt:      opts.Prompt,
		Temperature: float32(opts.Temperature),
		Format:      openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &APIError{Provider: oc.Name(), StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return nil, &APIError{Provider: oc.Name(), StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
		}
		return nil, fmt.Errorf("openai request: %w", err)
	}
	return &Response{
		Text:     resp.Text,
		Language: resp.Language,
		Duration: resp.Duration,
	}, nil
}
