package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error)
	Name() string  // "hosted", "whisper", "openai"
	Model() string // model identifier for logs and history
}

// TranscribeOpts are per-request options. Zero values are omitted.
type TranscribeOpts struct {
	Language    string
	Prompt      string
	Temperature float64
}

// Response is the common transcription result from any provider.
type Response struct {
	Text     string
	Language string
	Duration float64 // audio duration in seconds, 0 if not reported
}

// maxErrorBody caps the upstream body carried in APIError messages.
const maxErrorBody = 300

// APIError is a non-success HTTP status from a transcription API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > maxErrorBody {
		n := maxErrorBody
		for n > 0 && !utf8.RuneStart(body[n]) {
			n--
		}
		body = body[:n] + "..."
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, body)
}

// Options configures NewProvider.
type Options struct {
	Provider string // hosted, whisper, openai
	URL      string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// Default endpoints and models per provider.
const (
	DefaultHostedURL   = "https://api-inference.huggingface.co/models/openai/whisper-large-v3"
	DefaultHostedModel = "openai/whisper-large-v3"
	DefaultWhisperURL  = "http://localhost:8000/v1/audio/transcriptions"
	DefaultOpenAIModel = "whisper-1"
)

// NewProvider creates the provider named in opts.
func NewProvider(opts Options) (Provider, error) {
	switch opts.Provider {
	case "", "hosted":
		url, model := opts.URL, opts.Model
		if url == "" {
			url = DefaultHostedURL
		}
		if model == "" {
			model = DefaultHostedModel
		}
		if opts.APIKey == "" {
			return nil, fmt.Errorf("hosted provider requires STT_API_KEY")
		}
		return NewHostedClient(url, opts.APIKey, model, opts.Timeout), nil
	case "whisper":
		url := opts.URL
		if url == "" {
			url = DefaultWhisperURL
		}
		return NewWhisperClient(url, opts.APIKey, opts.Model, opts.Timeout), nil
	case "openai":
		model := opts.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires STT_API_KEY")
		}
		return NewOpenAIClient(opts.APIKey, opts.URL, model, opts.Timeout), nil
	}
	return nil, fmt.Errorf("unknown STT provider %q", opts.Provider)
}
