// Package gemini implements genai.Generator on the Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hazardhub/hazardhub/internal/genai"
	"github.com/hazardhub/hazardhub/internal/provider/resilience"
	"github.com/hazardhub/hazardhub/internal/telemetry"
)

const (
	// ProviderName identifies this generator.
	ProviderName = "gemini"

	// DefaultBaseURL is the Gemini API base URL.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "gemini-2.0-flash"

	// DefaultTimeout bounds a single generateContent call.
	DefaultTimeout = 30 * time.Second
)

// ClientConfig holds configuration for the Gemini client.
type ClientConfig struct {
	// APIKey is the Gemini API key (required).
	APIKey string

	// Model is the model name (optional, defaults to DefaultModel).
	Model string

	// BaseURL is the API base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client registered with Registry.
	HTTPClient *resilience.Client

	// Registry receives the default client for health reporting (optional).
	Registry *resilience.Registry

	// Timeout bounds each HTTP call of the default client (default: 30 seconds).
	Timeout time.Duration

	// Metrics records request durations (optional).
	Metrics *telemetry.ProviderMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Gemini API client.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *resilience.Client
	metrics    *telemetry.ProviderMetrics
	logger     zerolog.Logger
}

// NewClient creates a new Gemini client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Registry = cfg.Registry
		clientCfg.Timeout = DefaultTimeout
		if cfg.Timeout > 0 {
			clientCfg.Timeout = cfg.Timeout
		}
		// At most one retry per generation.
		clientCfg.MaxRetries = 1
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Generate sends one generateContent request and returns the text of the first candidate.
func (c *Client) Generate(ctx context.Context, req genai.GenerateRequest) (resp *genai.RawResponse, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordRequest(ctx, ProviderName, "generate-content", time.Since(start), err)
	}()

	body, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		c.baseURL, url.PathEscape(c.model), url.QueryEscape(c.apiKey))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Debug().
		Str("model", c.model).
		Int("prompt_bytes", len(req.UserPrompt)).
		Bool("json", req.JSON).
		Msg("calling generative model")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &genai.Error{Provider: ProviderName, Message: redact(err), Err: genai.ErrUnavailable}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, 8<<10))
		return nil, statusError(httpResp.StatusCode, raw)
	}

	var out generateContentResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, &genai.Error{Provider: ProviderName, Message: "decoding response: " + err.Error(), Err: genai.ErrUnavailable}
	}

	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return nil, &genai.Error{
			Provider: ProviderName,
			Message:  "prompt blocked: " + out.PromptFeedback.BlockReason,
			Err:      genai.ErrRejected,
		}
	}
	if len(out.Candidates) == 0 {
		return nil, &genai.Error{Provider: ProviderName, Message: "no candidates", Err: genai.ErrEmptyResponse}
	}

	first := out.Candidates[0]
	var text strings.Builder
	for _, p := range first.Content.Parts {
		text.WriteString(p.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, &genai.Error{Provider: ProviderName, Message: "empty candidate", Err: genai.ErrEmptyResponse}
	}

	model := out.ModelVersion
	if model == "" {
		model = c.model
	}

	c.logger.Debug().
		Str("model", model).
		Str("finish_reason", first.FinishReason).
		Dur("duration", time.Since(start)).
		Msg("generative model answered")

	return &genai.RawResponse{
		Text:         text.String(),
		Model:        model,
		FinishReason: first.FinishReason,
	}, nil
}

func buildRequest(req genai.GenerateRequest) generateContentRequest {
	body := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.UserPrompt}}}},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &content{Parts: []part{{Text: req.SystemPrompt}}}
	}
	if req.JSON {
		body.GenerationConfig = &generationConfig{ResponseMimeType: "application/json"}
	}
	return body
}

func statusError(code int, raw []byte) error {
	msg := http.StatusText(code)
	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}

	sentinel := genai.ErrRejected
	switch {
	case code == http.StatusTooManyRequests:
		sentinel = genai.ErrRateLimited
	case code >= 500:
		sentinel = genai.ErrUnavailable
	}
	return &genai.Error{Provider: ProviderName, StatusCode: code, Message: msg, Err: sentinel}
}

// redact drops the request URL, which carries the API key, from transport errors.
func redact(err error) string {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Op + ": " + uerr.Err.Error()
	}
	return err.Error()
}

// Ensure Client implements genai.Generator.
var _ genai.Generator = (*Client)(nil)
