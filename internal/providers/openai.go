package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jackzampolin/bitbybit/internal/types"
)

const (
	OpenAIName     = "openai"
	OpenRouterName = "openrouter"

	openRouterBaseURL  = "https://openrouter.ai/api/v1"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAIConfig configures an OpenAI-compatible chat client. OpenRouter is
// reached through the same SDK with its base URL.
type OpenAIConfig struct {
	Type       string // "openai" (default) or "openrouter"
	APIKey     string
	Model      string
	BaseURL    string        // Optional override (tests, proxies)
	RateLimit  int           // Requests per minute
	MaxRetries int           // SDK transport retries
	Timeout    time.Duration // HTTP timeout
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIClient implements LLMClient with the official OpenAI SDK.
type OpenAIClient struct {
	name       string
	model      string
	baseURL    string
	maxRetries int
	limiter    *RateLimiter
	client     openai.Client
}

// NewOpenAIClient creates a chat client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Type == "" {
		cfg.Type = OpenAIName
	}
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.BaseURL == "" && cfg.Type == OpenRouterName {
		cfg.BaseURL = openRouterBaseURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 300 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		name:       cfg.Type,
		model:      cfg.Model,
		baseURL:    cfg.BaseURL,
		maxRetries: cfg.MaxRetries,
		limiter:    NewRateLimiter(cfg.RateLimit),
		client:     openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Model returns the default model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Chat sends a chat completion request. When a response format is given the
// reply is parsed and validated locally, with up to
// maxStructuredRepairAttempts follow-up turns asking the model to fix it.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := append([]Message(nil), req.Messages...)
	result := &ChatResult{Provider: c.name, ModelUsed: model, RequestID: requestID}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		completion, err := c.client.Chat.Completions.New(ctx, c.params(model, req, messages))
		result.Attempts++
		if err != nil {
			return nil, mapOpenAIError(err)
		}
		if len(completion.Choices) == 0 {
			return nil, fmt.Errorf("%s: completion has no choices", c.name)
		}

		result.Content = completion.Choices[0].Message.Content
		result.PromptTokens += int(completion.Usage.PromptTokens)
		result.CompletionTokens += int(completion.Usage.CompletionTokens)
		result.TotalTokens += int(completion.Usage.TotalTokens)
		if completion.Model != "" {
			result.ModelUsed = completion.Model
		}

		if req.ResponseFormat == nil {
			break
		}
		parsed, err := DecodeStructured(result.Content, req.ResponseFormat.JSONSchema)
		if err == nil {
			result.ParsedJSON = parsed
			break
		}
		if attempt >= maxStructuredRepairAttempts {
			result.ExecutionTime = time.Since(start)
			return result, err
		}
		messages = append(messages,
			Message{Role: "assistant", Content: result.Content},
			Message{Role: "user", Content: structuredRepairPrompt(req.ResponseFormat.JSONSchema, result.Content, err)},
		)
	}

	result.ExecutionTime = time.Since(start)
	return result, nil
}

func (c *OpenAIClient) params(model string, req *ChatRequest, messages []Message) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	return params
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			if len(m.Images) == 0 {
				out = append(out, openai.UserMessage(m.Content))
				continue
			}
			parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(m.Content)}
			for _, img := range m.Images {
				parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
				}))
			}
			out = append(out, openai.UserMessage(parts))
		}
	}
	return out
}

// mapOpenAIError turns authentication failures into configuration errors so
// callers can tell a missing key from a transient failure.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: provider rejected credentials (status %d)", types.ErrConfiguration, apiErr.StatusCode)
	case http.StatusTooManyRequests:
		return fmt.Errorf("provider rate limited (status %d): %w", apiErr.StatusCode, err)
	}
	return fmt.Errorf("provider error (status %d): %w", apiErr.StatusCode, err)
}

var _ LLMClient = (*OpenAIClient)(nil)
