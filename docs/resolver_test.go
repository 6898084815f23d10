package docs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchCall struct {
	query   string
	library string
}

// stubFetcher returns canned text per query and records every call.
type stubFetcher struct {
	mu      sync.Mutex
	results map[string]string
	errs    map[string]error
	calls   []fetchCall
}

func (f *stubFetcher) FetchDocs(_ context.Context, query, library string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{query: query, library: library})
	if err := f.errs[query]; err != nil {
		return "", err
	}
	return f.results[query], nil
}

func TestResolver_LiveTierFirst(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]string{"merge join": "live merge docs"}}
	r := NewResolver(NewStore(nil), fetcher, nil)

	text, tier := r.Resolve(context.Background(), "Pandas", "merge join", DefaultFallbackQuery)

	assert.Equal(t, "live merge docs", text)
	assert.Equal(t, TierLive, tier)
	require.Len(t, fetcher.calls, 1)
	assert.Equal(t, "pandas", fetcher.calls[0].library)
}

func TestResolver_FallbackQueryBeatsStaticDoc(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]string{
		"merge join":    "",
		"common errors": "live common errors",
	}}
	r := NewResolver(NewStore(nil), fetcher, nil)

	text, tier := r.Resolve(context.Background(), "Pandas", "merge join", "common errors")

	assert.Equal(t, "live common errors", text)
	assert.Equal(t, TierLiveFallback, tier)
	assert.Equal(t, []fetchCall{
		{query: "merge join", library: "pandas"},
		{query: "common errors", library: "pandas"},
	}, fetcher.calls)
}

func TestResolver_NoRetryWhenFallbackEqualsQuery(t *testing.T) {
	fetcher := &stubFetcher{}
	store := NewStore(nil)
	r := NewResolver(store, fetcher, nil)

	text, tier := r.Resolve(context.Background(), "pandas", "common errors", "common errors")

	assert.Len(t, fetcher.calls, 1)
	assert.Equal(t, TierStatic, tier)
	want, _ := store.Get(SkillPandas)
	assert.Equal(t, want, text)
}

func TestResolver_FetchErrorsAreSwallowed(t *testing.T) {
	boom := errors.New("network down")
	fetcher := &stubFetcher{errs: map[string]error{
		"groupby":       boom,
		"common errors": boom,
	}}
	r := NewResolver(NewStore(nil), fetcher, nil)

	text, tier := r.Resolve(context.Background(), "PANDAS", "groupby", "common errors")

	assert.Equal(t, TierStatic, tier)
	assert.Contains(t, text, "DataFrame")
	assert.Len(t, fetcher.calls, 2)
}

func TestResolver_NonLibrarySkillSkipsFetcher(t *testing.T) {
	fetcher := &stubFetcher{results: map[string]string{"common errors": "should not be used"}}
	r := NewResolver(NewStore(nil), fetcher, nil)

	text, tier := r.Resolve(context.Background(), "OOPS", "common errors", "")

	assert.Empty(t, fetcher.calls)
	assert.Equal(t, TierStatic, tier)
	assert.Contains(t, text, "object-oriented")
}

func TestResolver_UnknownSkill(t *testing.T) {
	r := NewResolver(NewStore(nil), &stubFetcher{}, nil)

	text, tier := r.Resolve(context.Background(), "Rust", "common errors", "")

	assert.Empty(t, text)
	assert.Equal(t, TierNone, tier)
}

func TestResolver_NilFetcher(t *testing.T) {
	r := NewResolver(NewStore(nil), nil, nil)

	text, tier := r.Resolve(context.Background(), "Pandas", "groupby", "common errors")

	assert.Equal(t, TierStatic, tier)
	assert.NotEmpty(t, text)
}
