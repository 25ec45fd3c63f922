// Package openai answers questions through an OpenAI-compatible chat
// completions endpoint (OpenAI, Ollama, LiteLLM and similar).
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"assistant/internal/domain"
	"assistant/internal/generator"
	"assistant/internal/logging"
)

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultModel      = "gpt-4o-mini"
	DefaultMaxRetries = 3
)

// Config configures the chat completions client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Client implements domain.Generator.
type Client struct {
	api        *goopenai.Client
	model      string
	maxRetries int
	backoff    func(attempt int) time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer
}

var _ domain.Generator = (*Client)(nil)

// NewClient creates a client from cfg. The API key is read from the
// environment variable named by cfg.APIKeyEnv.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	oc := goopenai.DefaultConfig(key)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{Timeout: t}
	return &Client{
		api:        goopenai.NewClientWithConfig(oc),
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		backoff:    retryDelay,
		logger:     logging.Component(logger, "generator").With(slog.String("model", cfg.Model)),
		tracer:     otel.Tracer("assistant/generator/openai"),
	}, nil
}

// Name returns the identifier of this generator implementation.
func (c *Client) Name() string { return "openai" }

// Generate asks the model to answer req.Query from req.Context. Rate limits,
// server errors and transport failures are retried with exponential backoff.
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (text string, err error) {
	ctx, span := c.tracer.Start(ctx, "openai.chat.completions", trace.WithAttributes(
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", c.model),
		attribute.String("session.id", req.SessionID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	creq := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: generator.SystemPrompt(req)},
			{Role: goopenai.ChatMessageRoleUser, Content: req.Query},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		User:        req.SessionID,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.api.CreateChatCompletion(ctx, creq)
		if err == nil {
			if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
				return "", generator.ErrEmptyResponse
			}
			return resp.Choices[0].Message.Content, nil
		}
		lastErr = err
		if !retryable(ctx, err) || attempt == c.maxRetries {
			break
		}
		span.AddEvent("retry", trace.WithAttributes(attribute.Int("attempt", attempt+1)))
		d := c.backoff(attempt)
		c.logger.Warn("chat completion failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", d),
			slog.Any("error", err))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(d):
		}
	}
	return "", fmt.Errorf("chat completion: %w", lastErr)
}

// retryable reports whether err is a rate limit, a server error or a
// transport failure while ctx is still live.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
