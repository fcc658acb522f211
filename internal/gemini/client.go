// Package gemini implements task extraction on top of Google's Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/taskbot/internal/config"
	errs "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/parser"
	"github.com/edgard/taskbot/internal/resilience"
)

// contentGenerator is the subset of genai.Models the client needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client extracts structured task fields with Gemini. It implements parser.Extractor.
type Client struct {
	models        contentGenerator
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	timeout       time.Duration
	retry         resilience.RetryConfig
	breaker       *resilience.CircuitBreaker
}

var _ parser.Extractor = (*Client)(nil)

// NewClient creates a new Gemini client with the provided configuration.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errs.NewConfigError("gemini API key is required", nil)
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c := newClient(gi.Models, cfg, log)
	c.log.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return c, nil
}

func newClient(models contentGenerator, cfg config.GeminiConfig, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	logger := log.With("component", "gemini_client")

	temperature := cfg.Temperature
	contentConfig := &genai.GenerateContentConfig{
		Temperature:       &temperature,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    extractionSchema,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: TaskExtractionSystemInstruction}}},
	}

	return &Client{
		models:        models,
		log:           logger,
		contentConfig: contentConfig,
		modelName:     cfg.ModelName,
		timeout:       cfg.Timeout,
		retry: resilience.RetryConfig{
			MaxAttempts: uint(cfg.MaxRetries) + 1,
			Delay:       cfg.RetryDelay,
			RetryIf:     isRetriable,
			OnRetry: func(n uint, err error) {
				logger.Warn("Retrying Gemini API call", "attempt", n+1, "error", err)
			},
		},
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         "gemini",
			MaxFailures:  cfg.BreakerFailures,
			Timeout:      cfg.Timeout,
			OpenDuration: cfg.BreakerCooldown,
			Logger:       logger,
		}),
	}
}

// Extract implements parser.Extractor. Every failure is reported as a
// ServiceUnavailableError so callers can fall back.
func (c *Client) Extract(ctx context.Context, req parser.ExtractRequest) (*parser.Extraction, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	prompt := fmt.Sprintf(taskExtractionPrompt, req.Now.UTC().Format(time.RFC3339), formatMentions(req.Mentions), req.Text)
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	var resp *genai.GenerateContentResponse
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.WithRetry(ctx, func(ctx context.Context) error {
			var callErr error
			resp, callErr = c.models.GenerateContent(ctx, c.modelName, contents, c.contentConfig)
			return callErr
		}, c.retry)
	})
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini extraction call failed", "error", err, "breaker_state", c.breaker.State())
		return nil, errs.NewServiceUnavailableError("gemini extraction failed", err)
	}

	text, err := c.extractTextFromResponse(ctx, resp)
	if err != nil {
		return nil, errs.NewServiceUnavailableError("gemini returned no usable content", err)
	}

	var out parser.Extraction
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &out); err != nil {
		c.log.WarnContext(ctx, "Failed to decode Gemini extraction", "error", err, "raw_text", text)
		return nil, errs.NewServiceUnavailableError("gemini returned malformed JSON", err)
	}

	c.log.DebugContext(ctx, "Gemini extraction complete",
		"task_name", out.TaskName,
		"assignees", out.Assignees,
		"deadline", out.Deadline,
		"confidence", out.Confidence,
	)
	return &out, nil
}

func (c *Client) extractTextFromResponse(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("nil response")
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reasonMsg)
		return "", fmt.Errorf("blocked by safety filter: %s", reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("empty content, finish reason: %s", finishReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty text")
	}
	return text, nil
}

// isRetriable reports whether a Gemini error is transient (rate limit or server side).
func isRetriable(err error) bool {
	code := 0

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	default:
		return errors.Is(err, resilience.ErrTimeout)
	}

	return code == 429 || code == 500 || code == 503
}

func formatMentions(mentions []parser.Mention) string {
	if len(mentions) == 0 {
		return "(none)"
	}

	var sb strings.Builder
	for _, m := range mentions {
		switch {
		case m.Username != "" && m.Name != "":
			fmt.Fprintf(&sb, "- @%s (%s)\n", m.Username, m.Name)
		case m.Username != "":
			fmt.Fprintf(&sb, "- @%s\n", m.Username)
		default:
			fmt.Fprintf(&sb, "- %s\n", m.Name)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
