package sabotage_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/c360studio/coderonin/docs"
	"github.com/c360studio/coderonin/llm"
	"github.com/c360studio/coderonin/llm/testutil"
	"github.com/c360studio/coderonin/sabotage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu      sync.Mutex
	reports []sabotage.Report
}

func (o *recordingObserver) Observe(_ context.Context, r sabotage.Report) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, r)
}

func (o *recordingObserver) last(t *testing.T) sabotage.Report {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.reports)
	return o.reports[len(o.reports)-1]
}

type stubDocs struct {
	text  string
	tier  docs.Tier
	calls []string
}

func (d *stubDocs) Resolve(_ context.Context, skill, query, fallback string) (string, docs.Tier) {
	d.calls = append(d.calls, skill+"|"+query+"|"+fallback)
	return d.text, d.tier
}

func TestRun_NoGeneratorIsUnavailable(t *testing.T) {
	obs := &recordingObserver{}
	s := sabotage.New(sabotage.WithObserver(obs))

	result, err := s.Run(context.Background(), sabotage.Request{Code: "print(1)", Difficulty: 10})

	require.NoError(t, err)
	assert.Nil(t, result)
	assert.False(t, s.Available())

	report := obs.last(t)
	assert.Equal(t, sabotage.OutcomeUnavailable, report.Outcome)
	assert.Equal(t, sabotage.CategorySyntax, report.Category)
	assert.NotEmpty(t, report.RequestID)
}

func TestRun_SemanticPandasSabotage(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{{
		Content: `{"sabotagedCode":"df.merge(other, on='id', how='left')","explanation":"hint","type":"semantic"}`,
	}}}
	resolver := &stubDocs{text: "merge docs", tier: docs.TierLive}
	obs := &recordingObserver{}

	s := sabotage.New(
		sabotage.WithGenerator(mock),
		sabotage.WithDocResolver(resolver),
		sabotage.WithObserver(obs),
	)

	result, err := s.Run(context.Background(), sabotage.Request{
		Code:       "merged = df.merge(other, on='id')",
		Difficulty: 80,
		Skill:      "Pandas",
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, sabotage.CategorySemantic, result.Type)
	assert.Equal(t, "hint", result.Explanation)
	assert.Equal(t, "df.merge(other, on='id', how='left')", result.SabotagedCode)
	assert.Equal(t, 1, mock.GetCallCount())

	assert.Equal(t, []string{"Pandas|DataFrame common errors|common errors"}, resolver.calls)

	req := mock.LastRequest()
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "Sabotage Type: SEMANTIC")
	assert.Contains(t, req.Messages[0].Content, "merge docs")
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.4, *req.Temperature)
	assert.Equal(t, 2048, req.MaxTokens)

	report := obs.last(t)
	assert.Equal(t, sabotage.OutcomeOK, report.Outcome)
	assert.Equal(t, docs.TierLive, report.DocTier)
	assert.NotEmpty(t, report.Tactic)
}

func TestRun_ExplicitDocQueryWins(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{{
		Content: `{"sabotagedCode":"x","explanation":"y","type":"logic"}`,
	}}}
	resolver := &stubDocs{}
	s := sabotage.New(sabotage.WithGenerator(mock), sabotage.WithDocResolver(resolver))

	_, err := s.Run(context.Background(), sabotage.Request{
		Code: "df.groupby('k')", Difficulty: 50, Skill: "pandas", DocQuery: "pivot_table",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"pandas|pivot_table|common errors"}, resolver.calls)
}

func TestRun_NoSkillSkipsDocs(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{{
		Content: `{"sabotagedCode":"x","explanation":"y","type":"syntax"}`,
	}}}
	resolver := &stubDocs{text: "should not appear"}
	s := sabotage.New(sabotage.WithGenerator(mock), sabotage.WithDocResolver(resolver))

	_, err := s.Run(context.Background(), sabotage.Request{Code: "x = 1", Difficulty: 0})
	require.NoError(t, err)
	assert.Empty(t, resolver.calls)
	assert.NotContains(t, mock.LastRequest().Messages[0].Content, "documentation context")
}

func TestRun_OverridesReportedType(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{{
		Content: `{"sabotagedCode":"x","explanation":"y","type":"syntax"}`,
	}}}
	s := sabotage.New(sabotage.WithGenerator(mock))

	result, err := s.Run(context.Background(), sabotage.Request{Code: "x = 1", Difficulty: 50})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, sabotage.CategoryLogic, result.Type)
}

func TestRun_RepairsLiteralNewlines(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{{
		Content: "```json\n{\"sabotagedCode\": \"def f():\n    return 1\", \"explanation\": \"look up\", \"type\": \"syntax\"}\n```",
	}}}
	s := sabotage.New(sabotage.WithGenerator(mock))

	result, err := s.Run(context.Background(), sabotage.Request{Code: "def f():\n    return 0", Difficulty: 5})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "def f():\n    return 1", result.SabotagedCode)
}

func TestRun_GenerationErrorIsAbsence(t *testing.T) {
	mock := &testutil.MockLLMClient{Err: llm.NewTransientError(errors.New("upstream 500"))}
	obs := &recordingObserver{}
	s := sabotage.New(sabotage.WithGenerator(mock), sabotage.WithObserver(obs))

	result, err := s.Run(context.Background(), sabotage.Request{Code: "x = 1", Difficulty: 90})

	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 1, mock.GetCallCount(), "no retry")
	assert.Equal(t, sabotage.OutcomeGenerationError, obs.last(t).Outcome)
	assert.Equal(t, llm.KindTransient, obs.last(t).ErrorKind)
}

func TestRun_UndecodableReplyIsAbsence(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{{Content: "Sure! Here is your bug."}}}
	obs := &recordingObserver{}
	s := sabotage.New(sabotage.WithGenerator(mock), sabotage.WithObserver(obs))

	result, err := s.Run(context.Background(), sabotage.Request{Code: "x = 1", Difficulty: 40})

	require.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 1, mock.GetCallCount())
	assert.Equal(t, sabotage.OutcomeParseError, obs.last(t).Outcome)
}

func TestRun_InvalidRequest(t *testing.T) {
	mock := &testutil.MockLLMClient{}
	s := sabotage.New(sabotage.WithGenerator(mock))

	_, err := s.Run(context.Background(), sabotage.Request{Code: "   ", Difficulty: 10})
	assert.ErrorIs(t, err, sabotage.ErrInvalidRequest)
	assert.Zero(t, mock.GetCallCount())
}

func TestRun_PropagatesRequestID(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{{
		Content: `{"sabotagedCode":"x","explanation":"y","type":"logic"}`,
	}}}
	obs := &recordingObserver{}
	s := sabotage.New(sabotage.WithGenerator(mock), sabotage.WithObserver(obs))

	ctx := llm.WithRequestID(context.Background(), "req-7")
	_, err := s.Run(ctx, sabotage.Request{Code: "x = 1", Difficulty: 50})
	require.NoError(t, err)

	assert.Equal(t, "req-7", llm.RequestIDFromContext(mock.GetCapturedContext()))
	assert.Equal(t, "req-7", obs.last(t).RequestID)
}

func TestRun_UsesRegistryForCategory(t *testing.T) {
	mock := &testutil.MockLLMClient{Responses: []*llm.Response{{
		Content: `{"sabotagedCode":"x","explanation":"y","type":"semantic"}`,
	}}}
	reg := sabotage.NewRegistry(map[sabotage.Category][]sabotage.ChaosPattern{
		sabotage.CategorySemantic: {{Name: "Only Tactic", Description: "the only choice"}},
	})
	s := sabotage.New(sabotage.WithGenerator(mock), sabotage.WithRegistry(reg))

	_, err := s.Run(context.Background(), sabotage.Request{Code: "x = 1", Difficulty: 99})
	require.NoError(t, err)
	assert.True(t, strings.Contains(mock.LastRequest().Messages[0].Content, "Specific Tactic: Only Tactic (the only choice)"))
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"plain", `{"sabotagedCode":"a","explanation":"b","type":"logic"}`, "a", false},
		{"fenced", "```json\n{\"sabotagedCode\":\"a\",\"explanation\":\"b\",\"type\":\"logic\"}\n```", "a", false},
		{"literal tab", "{\"sabotagedCode\":\"\tx\",\"explanation\":\"b\",\"type\":\"logic\"}", "\tx", false},
		{"prose", "no json here", "", true},
		{"null", "null", "", true},
		{"truncated", `{"sabotagedCode":"a`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sabotage.ParseResult(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.SabotagedCode)
		})
	}
}
