package sabotage

import (
	"context"
	"log/slog"
	"time"

	"github.com/c360studio/coderonin/docs"
	"github.com/c360studio/coderonin/llm"
	"github.com/google/uuid"
)

// Generation parameters used when no option overrides them.
const (
	DefaultTemperature = 0.4
	DefaultMaxTokens   = 2048
)

// Saboteur orchestrates one sabotage per Run call. It holds no per-request state and is safe
// for concurrent use.
type Saboteur struct {
	generator   Generator
	docs        DocResolver
	registry    *Registry
	observers   []Observer
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

// Option configures a Saboteur.
type Option func(*Saboteur)

// WithGenerator sets the text generator. Without one, every Run reports the feature as
// unavailable.
func WithGenerator(g Generator) Option {
	return func(s *Saboteur) {
		s.generator = g
	}
}

// WithDocResolver sets the documentation resolver.
func WithDocResolver(r DocResolver) Option {
	return func(s *Saboteur) {
		s.docs = r
	}
}

// WithRegistry replaces the default chaos pattern table.
func WithRegistry(r *Registry) Option {
	return func(s *Saboteur) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithObserver adds a sink for per-orchestration reports.
func WithObserver(o Observer) Option {
	return func(s *Saboteur) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithGenerationParams overrides temperature and the output token cap.
func WithGenerationParams(temperature float64, maxTokens int) Option {
	return func(s *Saboteur) {
		s.temperature = temperature
		if maxTokens > 0 {
			s.maxTokens = maxTokens
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Saboteur) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Saboteur.
func New(opts ...Option) *Saboteur {
	s := &Saboteur{
		registry:    DefaultRegistry(),
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Available reports whether a generator is configured.
func (s *Saboteur) Available() bool {
	return s.generator != nil
}

// Registry returns the chaos pattern table in use.
func (s *Saboteur) Registry() *Registry {
	return s.registry
}

// Run performs one sabotage. A nil Result with a nil error means sabotage is unavailable or
// failed for this request (no credential, generator error, undecodable reply); the cause is
// logged. A non-nil error is returned only for requests that fail validation.
func (s *Saboteur) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	requestID := llm.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
		ctx = llm.WithRequestID(ctx, requestID)
	}
	logger := s.logger.With("request_id", requestID)

	category := Classify(req.Difficulty)
	report := Report{
		RequestID:   requestID,
		Category:    category,
		Skill:       req.Skill,
		ChallengeID: req.ChallengeID,
		DocTier:     docs.TierNone,
	}
	startedAt := time.Now()
	defer func() {
		report.Duration = time.Since(startedAt)
		s.observe(ctx, report)
	}()

	if s.generator == nil {
		logger.Warn("Text generation credential not set; sabotage skipped")
		report.Outcome = OutcomeUnavailable
		return nil, nil
	}

	pattern := s.registry.Pick(category)
	report.Tactic = pattern.Name

	var docContext string
	if req.Skill != "" && s.docs != nil {
		query := req.DocQuery
		if query == "" {
			query = docs.QueryFromCode(req.Code, req.Skill)
		}
		docContext, report.DocTier = s.docs.Resolve(ctx, req.Skill, query, docs.DefaultFallbackQuery)
	}

	prompt := BuildPrompt(PromptInput{
		Code:       req.Code,
		Category:   category,
		Pattern:    pattern,
		DocContext: docContext,
		EndGoal:    req.EndGoal,
	})

	logger.Debug("Requesting sabotage",
		"category", category,
		"tactic", pattern.Name,
		"skill", req.Skill,
		"doc_tier", report.DocTier,
		"prompt_len", len(prompt))

	temperature := s.temperature
	genStart := time.Now()
	resp, err := s.generator.Complete(ctx, llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
		MaxTokens:   s.maxTokens,
	})
	report.GenerationTime = time.Since(genStart)
	if err != nil {
		logger.Error("Sabotage generation failed", "category", category, "error", err)
		report.Outcome = OutcomeGenerationError
		report.ErrorKind = llm.KindOf(err)
		return nil, nil
	}

	result, err := ParseResult(resp.Content)
	if err != nil {
		logger.Error("Sabotage reply could not be decoded",
			"category", category,
			"reply_len", len(resp.Content),
			"error", err)
		report.Outcome = OutcomeParseError
		return nil, nil
	}

	if result.Type != category {
		logger.Debug("Generator reported a different category; keeping classified one",
			"reported", result.Type,
			"category", category)
	}
	result.Type = category

	report.Outcome = OutcomeOK
	logger.Info("Sabotage generated",
		"category", category,
		"tactic", pattern.Name,
		"generation_time", report.GenerationTime)
	return result, nil
}

func (s *Saboteur) observe(ctx context.Context, report Report) {
	for _, o := range s.observers {
		o.Observe(ctx, report)
	}
}
