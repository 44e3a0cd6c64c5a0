package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/riskassess/backend/internal/metrics"
	"github.com/riskassess/backend/pkg/circuitbreaker"
	"github.com/riskassess/backend/pkg/logger"
)

var (
	// ErrMissingCredential means no API key is configured.
	ErrMissingCredential = errors.New("inference API key is missing")
	// ErrRejectedCredential means the service refused the configured key.
	ErrRejectedCredential = errors.New("inference API key was rejected")
	// ErrUpstream wraps transport, API and circuit breaker failures.
	ErrUpstream = errors.New("inference service request failed")
	// ErrEmptyResponse means the service answered without any text.
	ErrEmptyResponse = errors.New("inference service returned no content")
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Options are the decoding settings for one invocation. Zero fields fall
// back to the client's configured values.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type Client struct {
	client      *openai.Client
	apiKey      string
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
}

func NewClient(cfg Config) *Client {
	oaConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oaConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	cb := circuitbreaker.NewCircuitBreaker("inference", circuitbreaker.Config{
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 1,
		IsFailure:        countsAgainstUpstream,
		OnStateChange: func(_ string, _ circuitbreaker.State, to circuitbreaker.State) {
			metrics.InferenceCircuitState.Set(float64(to))
		},
		Logger: logger.GetLogger(),
	})

	logger.Info("Inference client initialized",
		zap.String("model", cfg.Model),
		zap.String("base_url", oaConfig.BaseURL),
		zap.Bool("credential_configured", cfg.APIKey != ""),
	)

	return &Client{
		client:      openai.NewClientWithConfig(oaConfig),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		cb:          cb,
	}
}

// DefaultOptions returns the configured near-deterministic decoding settings.
func (c *Client) DefaultOptions() Options {
	return Options{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
}

// Invoke sends prompt with schema as the requested response format and
// returns the raw text of the first choice. It makes exactly one request.
func (c *Client) Invoke(ctx context.Context, prompt string, schema jsonschema.Definition, opts Options) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredential
	}

	if opts.Model == "" {
		opts.Model = c.model
	}
	if opts.Temperature == 0 {
		opts.Temperature = c.temperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = c.maxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   SchemaName,
				Schema: &schema,
				Strict: false,
			},
		},
	}

	var content string
	start := time.Now()

	err := c.cb.Execute(ctx, func() error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return classifyTransportError(err)
		}

		metrics.LLMTokensUsed.WithLabelValues(opts.Model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(opts.Model, "completion").Add(float64(resp.Usage.CompletionTokens))

		logger.Debug("Inference completion received",
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			zap.Int("choices", len(resp.Choices)),
		)

		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return ErrEmptyResponse
		}
		content = resp.Choices[0].Message.Content
		return nil
	})

	metrics.InferenceDuration.WithLabelValues(opts.Model).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, ErrUpstream) || errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrRejectedCredential) {
			return "", err
		}
		// breaker rejections and contexts that ended before the call
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	return content, nil
}

func classifyTransportError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %w", ErrRejectedCredential, err)
		}
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusUnauthorized || reqErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %w", ErrRejectedCredential, err)
		}
	}

	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

// countsAgainstUpstream keeps caller cancellations, empty answers and
// credential problems from opening the breaker.
func countsAgainstUpstream(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrRejectedCredential) {
		return false
	}
	return true
}
