package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HostedClient posts raw audio bytes to a hosted inference endpoint
// (Hugging Face style) with a bearer token and reads {"text": ...} back.
type HostedClient struct {
	url     string
	apiKey  string
	model   string
	timeout time.Duration
	client  *http.Client
}

// hostedResponse is the JSON body returned by the hosted endpoint.
type hostedResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// NewHostedClient creates a hosted inference client.
func NewHostedClient(url, apiKey, model string, timeout time.Duration) *HostedClient {
	return &HostedClient{
		url:     url,
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (hc *HostedClient) Name() string { return "hosted" }

// Model returns the configured model identifier.
func (hc *HostedClient) Model() string { return hc.model }

// Transcribe sends the file body as-is. The hosted API ignores opts.
func (hc *HostedClient) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Response, error) {
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hc.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+hc.apiKey)
	req.Header.Set("Content-Type", contentTypeFor(audioPath))
	req.Header.Set("Accept", "application/json")

	resp, err := hc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hosted request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Provider: hc.Name(), StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result hostedResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Error != "" {
		return nil, &APIError{Provider: hc.Name(), StatusCode: resp.StatusCode, Body: result.Error}
	}

	return &Response{Text: result.Text}, nil
}

func contentTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	}
	return "application/octet-stream"
}
