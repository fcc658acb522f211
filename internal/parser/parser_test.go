package parser

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	errs "github.com/edgard/taskbot/internal/errors"
)

type fakeExtractor struct {
	result *Extraction
	err    error
	calls  int
	last   ExtractRequest
}

func (f *fakeExtractor) Extract(_ context.Context, req ExtractRequest) (*Extraction, error) {
	f.calls++
	f.last = req
	return f.result, f.err
}

var fixedNow = time.Date(2025, 10, 19, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func TestParseStrict(t *testing.T) {
	t.Parallel()

	want := time.Date(2025, 10, 20, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		text      string
		mentions  []Mention
		wantName  string
		wantUsers []string
		wantTime  time.Time
		wantErr   bool
	}{
		{
			name:      "tokens",
			text:      `"Prepare presentation" @john @jane 2025-10-20 14:30`,
			wantName:  "Prepare presentation",
			wantUsers: []string{"john", "jane"},
			wantTime:  want,
		},
		{
			name:      "entity mentions win",
			text:      `"Prepare presentation" @john 2025-10-20 14:30`,
			mentions:  []Mention{{Username: "John"}},
			wantName:  "Prepare presentation",
			wantUsers: []string{"John"},
			wantTime:  want,
		},
		{
			name:      "rfc3339 with offset",
			text:      `"Report" @a 2025-10-20T16:30:00+02:00`,
			wantName:  "Report",
			wantUsers: []string{"a"},
			wantTime:  want,
		},
		{
			name:      "curly quotes and duplicate",
			text:      `“Report” @a @a 2025-10-20 14:30`,
			wantName:  "Report",
			wantUsers: []string{"a"},
			wantTime:  want,
		},
		{name: "missing quotes", text: `Report @a 2025-10-20 14:30`, wantErr: true},
		{name: "missing date", text: `"Report" @a tomorrow`, wantErr: true},
		{name: "date only", text: `"Report" @a 2025-10-20`, wantErr: true},
		{name: "no assignee", text: `"Report" 2025-10-20 14:30`, wantErr: true},
		{name: "bad month", text: `"Report" @a 2025-13-20 14:30`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStrict(tt.text, tt.mentions)
			if tt.wantErr {
				if errs.Code(err) != errs.CodeParse {
					t.Fatalf("expected parse error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStrict: %v", err)
			}
			if got.Name != tt.wantName || !got.Deadline.Equal(tt.wantTime) {
				t.Fatalf("got name=%q deadline=%v", got.Name, got.Deadline)
			}
			if got.Source != SourceStrict || got.Confidence != 1.0 {
				t.Fatalf("unexpected source/confidence: %s %v", got.Source, got.Confidence)
			}
			var users []string
			for _, m := range got.Assignees {
				users = append(users, m.Username)
			}
			if !reflect.DeepEqual(users, tt.wantUsers) {
				t.Fatalf("assignees = %v, want %v", users, tt.wantUsers)
			}
		})
	}
}

func TestParseUsesAIWhenConfident(t *testing.T) {
	t.Parallel()

	ext := &fakeExtractor{result: &Extraction{
		TaskName:   "Prepare quarterly report",
		Assignees:  []string{"@John"},
		Deadline:   "2025-10-20T14:00:00Z",
		Confidence: 0.92,
	}}
	p := New(ext, nil, WithClock(clock))

	mentions := []Mention{{Username: "john"}}
	got, err := p.Parse(context.Background(), "Prepare quarterly report for @john, due tomorrow at 2 PM", mentions)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if got.Source != SourceAI || got.Confidence != 0.92 {
		t.Fatalf("expected AI result, got %+v", got)
	}
	if len(got.Assignees) != 1 || got.Assignees[0].Username != "john" {
		t.Fatalf("assignee should map back to the message mention: %+v", got.Assignees)
	}
	if !ext.last.Now.Equal(fixedNow) || len(ext.last.Mentions) != 1 {
		t.Fatalf("extractor did not receive reference time and mentions: %+v", ext.last)
	}
}

func TestParseFallsBack(t *testing.T) {
	t.Parallel()

	strictText := `"Code review" @sarah @tom 2025-10-25 15:00`

	tests := []struct {
		name string
		ext  *fakeExtractor
	}{
		{name: "extractor error", ext: &fakeExtractor{err: errs.NewServiceUnavailableError("gemini down", errors.New("503"))}},
		{name: "low confidence", ext: &fakeExtractor{result: &Extraction{TaskName: "x", Assignees: []string{"sarah"}, Deadline: "2025-10-25T15:00:00Z", Confidence: 0.3}}},
		{name: "bad deadline", ext: &fakeExtractor{result: &Extraction{TaskName: "x", Assignees: []string{"sarah"}, Deadline: "next friday", Confidence: 0.9}}},
		{name: "empty name", ext: &fakeExtractor{result: &Extraction{Assignees: []string{"sarah"}, Deadline: "2025-10-25T15:00:00Z", Confidence: 0.9}}},
		{name: "nil result", ext: &fakeExtractor{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := New(tt.ext, nil, WithClock(clock))
			got, err := p.Parse(context.Background(), strictText, nil)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got.Source != SourceStrict || got.Name != "Code review" || len(got.Assignees) != 2 {
				t.Fatalf("expected strict fallback result, got %+v", got)
			}
			if tt.ext.calls != 1 {
				t.Fatalf("extractor calls = %d", tt.ext.calls)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	p := New(&fakeExtractor{err: errors.New("down")}, nil)

	if _, err := p.Parse(context.Background(), "   ", nil); errs.Code(err) != errs.CodeParse {
		t.Fatalf("empty text: expected parse error, got %v", err)
	}
	if _, err := p.Parse(context.Background(), "do the thing sometime", nil); errs.Code(err) != errs.CodeParse {
		t.Fatalf("unparseable text: expected parse error, got %v", err)
	}
}

func TestParseWithoutExtractor(t *testing.T) {
	t.Parallel()

	p := New(nil, nil)
	got, err := p.Parse(context.Background(), `"Deploy" @ops 2025-11-01 08:00`, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Source != SourceStrict {
		t.Fatalf("expected strict source, got %s", got.Source)
	}
}

func TestStrictAndAIPathsAgree(t *testing.T) {
	t.Parallel()

	mentions := []Mention{{Username: "john"}, {Username: "jane"}}

	strict := New(nil, nil)
	fromStrict, err := strict.Parse(context.Background(), `"Prepare presentation" @john @jane 2025-10-20 14:30`, mentions)
	if err != nil {
		t.Fatalf("strict Parse: %v", err)
	}

	ai := New(&fakeExtractor{result: &Extraction{
		TaskName:   "Prepare presentation",
		Assignees:  []string{"john", "jane"},
		Deadline:   "2025-10-20T14:30:00Z",
		Confidence: 0.95,
	}}, nil, WithClock(clock))
	fromAI, err := ai.Parse(context.Background(), "Prepare presentation for @john and @jane tomorrow 14:30", mentions)
	if err != nil {
		t.Fatalf("ai Parse: %v", err)
	}

	if fromStrict.Name != fromAI.Name || !fromStrict.Deadline.Equal(fromAI.Deadline) {
		t.Fatalf("paths disagree: strict=%+v ai=%+v", fromStrict, fromAI)
	}
	if !reflect.DeepEqual(fromStrict.Assignees, fromAI.Assignees) {
		t.Fatalf("assignees disagree: strict=%v ai=%v", fromStrict.Assignees, fromAI.Assignees)
	}
}

func TestMatchAssignees(t *testing.T) {
	t.Parallel()

	mentions := []Mention{{Username: "alice"}, {UserID: 42, Name: "Bob Smith"}}
	got := MatchAssignees([]string{"ALICE", "Bob Smith", "@ghost", "", "alice"}, mentions)

	want := []Mention{{Username: "alice"}, {UserID: 42, Name: "Bob Smith"}, {Username: "ghost"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MatchAssignees = %+v, want %+v", got, want)
	}
	if got[1].Label() != "Bob Smith" || got[2].Label() != "@ghost" {
		t.Fatalf("unexpected labels %q %q", got[1].Label(), got[2].Label())
	}
}
