// Package parser turns a free-form task description into structured task
// fields. It asks an AI Extractor first and falls back to a strict
// `"name" @user YYYY-MM-DD HH:MM` format when the AI is unavailable or unsure.
package parser

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	errs "github.com/edgard/taskbot/internal/errors"
	"github.com/edgard/taskbot/internal/metrics"
)

// Source records which path produced a ParsedTask.
type Source string

const (
	SourceAI     Source = "ai"
	SourceStrict Source = "strict"
)

// DefaultConfidenceThreshold is the minimum AI confidence accepted without fallback.
const DefaultConfidenceThreshold = 0.7

// Mention is a user reference found in the message. Username is set for
// @username mentions, UserID for mentions of users without a username.
type Mention struct {
	Username string
	UserID   int64
	Name     string
}

// Label returns the mention as it should appear in replies.
func (m Mention) Label() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	return m.Name
}

func (m Mention) same(other Mention) bool {
	if m.UserID != 0 && other.UserID != 0 {
		return m.UserID == other.UserID
	}
	return m.Username != "" && strings.EqualFold(m.Username, other.Username)
}

// ParsedTask holds the structured fields of a task description.
type ParsedTask struct {
	Name       string
	Assignees  []Mention
	Deadline   time.Time
	Confidence float64
	Source     Source
}

// Parser extracts task fields from command text.
type Parser interface {
	Parse(ctx context.Context, text string, mentions []Mention) (*ParsedTask, error)
}

// ExtractRequest is the input handed to an Extractor.
type ExtractRequest struct {
	Text     string
	Mentions []Mention
	Now      time.Time
}

// Extraction is the raw structured output of an Extractor.
type Extraction struct {
	TaskName   string   `json:"task_name"`
	Assignees  []string `json:"assignees"`
	Deadline   string   `json:"deadline"`
	Confidence float64  `json:"confidence"`
}

// Extractor is an AI capability that extracts task fields from natural language.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*Extraction, error)
}

// Option configures a FallbackParser.
type Option func(*FallbackParser)

// WithClock overrides the reference time source.
func WithClock(now func() time.Time) Option {
	return func(p *FallbackParser) { p.now = now }
}

// WithThreshold sets the minimum accepted AI confidence.
func WithThreshold(threshold float64) Option {
	return func(p *FallbackParser) { p.threshold = threshold }
}

// FallbackParser tries the Extractor and falls back to the strict format.
type FallbackParser struct {
	extractor Extractor
	threshold float64
	now       func() time.Time
	log       *slog.Logger
}

// New creates a parser. extractor may be nil, in which case only the strict
// format is understood.
func New(extractor Extractor, logger *slog.Logger, opts ...Option) *FallbackParser {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &FallbackParser{
		extractor: extractor,
		threshold: DefaultConfidenceThreshold,
		now:       time.Now,
		log:       logger.With("component", "task_parser"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse implements Parser.
func (p *FallbackParser) Parse(ctx context.Context, text string, mentions []Mention) (*ParsedTask, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.NewParseError("task description is empty", nil)
	}

	if p.extractor != nil {
		parsed, err := p.parseWithAI(ctx, text, mentions)
		if err == nil {
			metrics.ParseResultsTotal.WithLabelValues(string(SourceAI), "ok").Inc()
			return parsed, nil
		}
		metrics.ParseResultsTotal.WithLabelValues(string(SourceAI), "rejected").Inc()
		p.log.InfoContext(ctx, "AI extraction not usable, trying strict format", "error", err)
	}

	parsed, err := ParseStrict(text, mentions)
	if err != nil {
		metrics.ParseResultsTotal.WithLabelValues(string(SourceStrict), "error").Inc()
		return nil, err
	}
	metrics.ParseResultsTotal.WithLabelValues(string(SourceStrict), "ok").Inc()
	return parsed, nil
}

func (p *FallbackParser) parseWithAI(ctx context.Context, text string, mentions []Mention) (*ParsedTask, error) {
	res, err := p.extractor.Extract(ctx, ExtractRequest{Text: text, Mentions: mentions, Now: p.now().UTC()})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, errs.NewParseError("AI returned no result", nil)
	}

	if res.Confidence < p.threshold {
		return nil, errs.NewParseError("AI confidence below threshold", nil)
	}

	name := strings.TrimSpace(res.TaskName)
	if name == "" {
		return nil, errs.NewParseError("AI returned no task name", nil)
	}

	deadline, err := ParseDeadline(res.Deadline)
	if err != nil {
		return nil, err
	}

	assignees := MatchAssignees(res.Assignees, mentions)
	if len(assignees) == 0 {
		assignees = dedupe(mentions)
	}
	if len(assignees) == 0 {
		return nil, errs.NewParseError("no assignees found", nil)
	}

	p.log.DebugContext(ctx, "AI extraction accepted", "task_name", name, "confidence", res.Confidence)
	return &ParsedTask{
		Name:       name,
		Assignees:  assignees,
		Deadline:   deadline,
		Confidence: res.Confidence,
		Source:     SourceAI,
	}, nil
}

// MatchAssignees maps AI-returned names back to message mentions. Names that
// match no mention are kept as username mentions so resolution can report them.
func MatchAssignees(names []string, mentions []Mention) []Mention {
	var out []Mention
	for _, raw := range names {
		name := strings.TrimPrefix(strings.TrimSpace(raw), "@")
		if name == "" {
			continue
		}

		candidate := Mention{Username: name}
		for _, m := range mentions {
			if strings.EqualFold(m.Username, name) || (m.Name != "" && strings.EqualFold(m.Name, name)) {
				candidate = m
				break
			}
		}
		out = appendUnique(out, candidate)
	}
	return out
}

func dedupe(mentions []Mention) []Mention {
	var out []Mention
	for _, m := range mentions {
		out = appendUnique(out, m)
	}
	return out
}

func appendUnique(list []Mention, m Mention) []Mention {
	for _, existing := range list {
		if existing.same(m) {
			return list
		}
	}
	return append(list, m)
}
