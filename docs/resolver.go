package docs

import (
	"context"
	"log/slog"
)

// Fetcher is the external documentation collaborator. It returns "" with a nil error when
// the library is not registered or nothing was found.
type Fetcher interface {
	FetchDocs(ctx context.Context, query, library string) (string, error)
}

// Tier records which lookup produced the doc context.
type Tier string

// Resolution tiers, in fallback order.
const (
	TierLive         Tier = "live"
	TierLiveFallback Tier = "live_fallback"
	TierStatic       Tier = "static"
	TierNone         Tier = "none"
)

// Resolver implements the tiered doc context lookup.
type Resolver struct {
	store   *Store
	fetcher Fetcher
	logger  *slog.Logger
}

// NewResolver creates a resolver. fetcher may be nil, which disables the live tier.
func NewResolver(store *Store, fetcher Fetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:   store,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Resolve returns documentation for a skill:
//  1. library skills query the live fetcher with query,
//  2. then once more with fallbackQuery if it is set and differs,
//  3. otherwise the static store entry for the normalized skill.
//
// Fetch errors are logged and treated as "no result".
func (r *Resolver) Resolve(ctx context.Context, skill, query, fallbackQuery string) (string, Tier) {
	key := NormalizeSkill(skill)

	if library, ok := key.Library(); ok && r.fetcher != nil {
		if text := r.fetch(ctx, query, library); text != "" {
			return text, TierLive
		}
		if fallbackQuery != "" && fallbackQuery != query {
			if text := r.fetch(ctx, fallbackQuery, library); text != "" {
				return text, TierLiveFallback
			}
		}
	}

	if r.store != nil {
		if text, ok := r.store.Get(key); ok && text != "" {
			return text, TierStatic
		}
	}
	return "", TierNone
}

func (r *Resolver) fetch(ctx context.Context, query, library string) string {
	text, err := r.fetcher.FetchDocs(ctx, query, library)
	if err != nil {
		r.logger.Warn("Docs fetch failed; falling through",
			"library", library,
			"query", query,
			"error", err)
		return ""
	}
	return text
}
