package sabotage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/c360studio/coderonin/docs"
	"github.com/c360studio/coderonin/llm"
)

// ErrInvalidRequest is returned for requests that fail boundary validation.
var ErrInvalidRequest = errors.New("missing or invalid code / difficulty")

// Request is one chaos-meter trigger.
type Request struct {
	Code        string  `json:"code"`
	Difficulty  float64 `json:"difficulty"`
	Skill       string  `json:"skill,omitempty"`
	EndGoal     string  `json:"endGoal,omitempty"`
	DocQuery    string  `json:"docQuery,omitempty"`
	ChallengeID string  `json:"challengeId,omitempty"`
}

// Validate checks the fields the orchestration relies on.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Code) == "" {
		return fmt.Errorf("%w: code is required", ErrInvalidRequest)
	}
	return nil
}

// Result is the decoded generator reply.
type Result struct {
	SabotagedCode string   `json:"sabotagedCode"`
	Explanation   string   `json:"explanation"`
	Type          Category `json:"type"`
}

// ParseResult strips code fences from a completion, repairs unescaped control characters
// inside string literals and decodes the JSON object.
func ParseResult(completion string) (*Result, error) {
	text := llm.StripCodeFences(strings.TrimSpace(completion))
	repaired := llm.EscapeControlChars(text)

	var result *Result
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return nil, fmt.Errorf("decode sabotage reply: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("decode sabotage reply: null object")
	}
	return result, nil
}

// Generator is the text-generation collaborator. *llm.Client satisfies it.
type Generator interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// DocResolver produces documentation context for a skill. *docs.Resolver satisfies it.
type DocResolver interface {
	Resolve(ctx context.Context, skill, query, fallbackQuery string) (string, docs.Tier)
}

// Outcome labels how an orchestration ended.
type Outcome string

// Orchestration outcomes.
const (
	OutcomeOK              Outcome = "ok"
	OutcomeUnavailable     Outcome = "unavailable"
	OutcomeGenerationError Outcome = "generation_error"
	OutcomeParseError      Outcome = "parse_error"
)

// Report summarises one orchestration for metrics and event sinks.
type Report struct {
	RequestID      string
	Category       Category
	Tactic         string
	Skill          string
	ChallengeID    string
	DocTier        docs.Tier
	Outcome        Outcome
	ErrorKind      llm.ErrorKind
	GenerationTime time.Duration
	Duration       time.Duration
}

// Observer receives a Report after every orchestration. Implementations must not block for
// long; they run on the request path.
type Observer interface {
	Observe(ctx context.Context, report Report)
}
