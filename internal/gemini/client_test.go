package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/taskbot/internal/config"
	errs "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/parser"
)

type stubGenerator struct {
	responses []*genai.GenerateContentResponse
	errs      []error
	calls     int
	lastModel string
	lastText  string
}

func (s *stubGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := s.calls
	s.calls++
	s.lastModel = model
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		s.lastText = contents[0].Parts[0].Text
	}

	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	var resp *genai.GenerateContentResponse
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	return resp, err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: text}}},
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func testConfig() config.GeminiConfig {
	cfg := config.DefaultConfig().Gemini
	cfg.APIKey = "test"
	cfg.RetryDelay = time.Millisecond
	cfg.MaxRetries = 2
	cfg.BreakerFailures = 2
	return cfg
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractDecodesStructuredOutput(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{responses: []*genai.GenerateContentResponse{
		textResponse("```json\n{\"task_name\":\"Prepare quarterly report\",\"assignees\":[\"john\"],\"deadline\":\"2025-10-20T14:00:00Z\",\"confidence\":0.9}\n```"),
	}}
	c := newClient(gen, testConfig(), quiet())

	now := time.Date(2025, 10, 19, 8, 0, 0, 0, time.UTC)
	got, err := c.Extract(context.Background(), parser.ExtractRequest{
		Text:     "Prepare quarterly report for @john, due tomorrow at 2 PM",
		Mentions: []parser.Mention{{Username: "john"}, {UserID: 5, Name: "Ann"}},
		Now:      now,
	})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if got.TaskName != "Prepare quarterly report" || got.Confidence != 0.9 || got.Deadline != "2025-10-20T14:00:00Z" {
		t.Fatalf("unexpected extraction: %+v", got)
	}
	if gen.lastModel != config.DefaultGeminiModel {
		t.Fatalf("model = %q", gen.lastModel)
	}
	for _, want := range []string{"2025-10-19T08:00:00Z", "- @john", "- Ann", "due tomorrow at 2 PM"} {
		if !strings.Contains(gen.lastText, want) {
			t.Fatalf("prompt missing %q:\n%s", want, gen.lastText)
		}
	}
}

func TestExtractRetriesServerErrors(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{
		errs: []error{&genai.APIError{Code: 503, Message: "overloaded"}, nil},
		responses: []*genai.GenerateContentResponse{
			nil,
			textResponse(`{"task_name":"x","assignees":["a"],"deadline":"2025-10-20T14:00:00Z","confidence":0.8}`),
		},
	}
	c := newClient(gen, testConfig(), quiet())

	if _, err := c.Extract(context.Background(), parser.ExtractRequest{Text: "x", Now: time.Now()}); err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if gen.calls != 2 {
		t.Fatalf("expected a retry, got %d calls", gen.calls)
	}
}

func TestExtractFailuresAreServiceUnavailable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		gen       *stubGenerator
		wantCalls int
	}{
		{
			name:      "client error not retried",
			gen:       &stubGenerator{errs: []error{&genai.APIError{Code: 400, Message: "bad"}}},
			wantCalls: 1,
		},
		{
			name:      "malformed json",
			gen:       &stubGenerator{responses: []*genai.GenerateContentResponse{textResponse("not json")}},
			wantCalls: 1,
		},
		{
			name:      "empty candidates",
			gen:       &stubGenerator{responses: []*genai.GenerateContentResponse{{}}},
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newClient(tt.gen, testConfig(), quiet())
			_, err := c.Extract(context.Background(), parser.ExtractRequest{Text: "x", Now: time.Now()})
			if errs.Code(err) != errs.CodeServiceUnavailable {
				t.Fatalf("expected service unavailable, got %v", err)
			}
			if tt.gen.calls != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", tt.gen.calls, tt.wantCalls)
			}
		})
	}
}

func TestExtractOpensBreaker(t *testing.T) {
	t.Parallel()

	failing := errors.New("connection reset")
	gen := &stubGenerator{errs: []error{failing, failing, failing, failing, failing, failing, failing, failing, failing}}
	cfg := testConfig()
	cfg.MaxRetries = 0
	c := newClient(gen, cfg, quiet())

	for i := 0; i < 3; i++ {
		_, _ = c.Extract(context.Background(), parser.ExtractRequest{Text: "x", Now: time.Now()})
	}

	if gen.calls != cfg.BreakerFailures {
		t.Fatalf("breaker should stop calls after %d failures, got %d", cfg.BreakerFailures, gen.calls)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), config.GeminiConfig{}, quiet())
	if errs.Code(err) != errs.CodeConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}
