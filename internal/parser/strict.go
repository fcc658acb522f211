package parser

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	errs "github.com/edgard/taskbot/internal/errors"
)

// StrictFormat is the documented fallback syntax.
const StrictFormat = `"task name" @user1 @user2 YYYY-MM-DD HH:MM`

var (
	quotedNameRe = regexp.MustCompile(`(?s)^"([^"]+)"(.*)$`)
	deadlineRe   = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}(?::\d{2})?(?:Z|[+-]\d{2}:\d{2})?)\s*$`)
	atTokenRe    = regexp.MustCompile(`@(\w+)`)

	quoteReplacer = strings.NewReplacer("“", `"`, "”", `"`, "«", `"`, "»", `"`)
)

var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseStrict parses `"task name" @user1 @user2 YYYY-MM-DD HH:MM`. Times
// without an offset are UTC. Assignees are taken from mentions when given,
// otherwise from @word tokens in the text.
func ParseStrict(text string, mentions []Mention) (*ParsedTask, error) {
	text = strings.TrimSpace(quoteReplacer.Replace(text))

	m := quotedNameRe.FindStringSubmatch(text)
	if m == nil {
		return nil, errs.NewParseError(fmt.Sprintf("task name must be in quotes, use %s", StrictFormat), nil)
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return nil, errs.NewParseError("task name cannot be empty", nil)
	}
	rest := m[2]

	loc := deadlineRe.FindStringSubmatchIndex(rest)
	if loc == nil {
		return nil, errs.NewParseError("invalid date/time format, use YYYY-MM-DD HH:MM (UTC)", nil)
	}
	deadline, err := ParseDeadline(rest[loc[2]:loc[3]])
	if err != nil {
		return nil, err
	}
	middle := rest[:loc[0]]

	assignees := dedupe(mentions)
	if len(assignees) == 0 {
		for _, tok := range atTokenRe.FindAllStringSubmatch(middle, -1) {
			assignees = appendUnique(assignees, Mention{Username: tok[1]})
		}
	}
	if len(assignees) == 0 {
		return nil, errs.NewParseError("at least one user must be mentioned", nil)
	}

	return &ParsedTask{
		Name:       name,
		Assignees:  assignees,
		Deadline:   deadline,
		Confidence: 1.0,
		Source:     SourceStrict,
	}, nil
}

// ParseDeadline parses an ISO-8601 style timestamp. Values without an
// offset are interpreted as UTC. The result is always in UTC.
func ParseDeadline(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errs.NewParseError("deadline is missing", nil)
	}

	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errs.NewParseError(fmt.Sprintf("could not understand deadline %q", raw), nil)
}
