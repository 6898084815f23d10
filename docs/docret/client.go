// Package docret retrieves live library documentation: a site-restricted web search
// followed by fetching the top result pages and converting them to markdown.
package docret

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Defaults for Config fields left zero.
const (
	DefaultSearchURL      = "https://google.serper.dev/search"
	DefaultMaxResults     = 3
	DefaultMaxChars       = 6000
	DefaultTimeout        = 10 * time.Second
	DefaultUserAgent      = "coderonin-docret/1.0"
	DefaultMaxContentSize = 5 * 1024 * 1024
)

// DefaultSites maps library names to the documentation site searched for them.
var DefaultSites = map[string]string{
	"pandas": "pandas.pydata.org/docs",
}

// Config controls search and page retrieval.
type Config struct {
	SearchURL  string
	APIKey     string
	Sites      map[string]string
	MaxResults int
	MaxChars   int
	Timeout    time.Duration
	UserAgent  string
}

func (c Config) withDefaults() Config {
	if c.SearchURL == "" {
		c.SearchURL = DefaultSearchURL
	}
	if len(c.Sites) == 0 {
		c.Sites = DefaultSites
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultMaxChars
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	return c
}

// SearchResult is one organic search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

type searchResponse struct {
	Organic []SearchResult `json:"organic"`
}

// Client fetches documentation for registered libraries.
type Client struct {
	cfg       Config
	http      *http.Client
	pages     PageFetcher
	converter *Converter
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the client used for search requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithPageFetcher replaces the SSRF-guarded page fetcher.
func WithPageFetcher(f PageFetcher) Option {
	return func(cl *Client) { cl.pages = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New creates a documentation client.
func New(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:       cfg,
		http:      &http.Client{Timeout: cfg.Timeout},
		converter: NewConverter(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pages == nil {
		c.pages = NewSafeFetcher(cfg.Timeout, cfg.UserAgent, DefaultMaxContentSize)
	}
	return c
}

// Enabled reports whether live lookups can run at all.
func (c *Client) Enabled() bool {
	return c.cfg.APIKey != ""
}

// FetchDocs returns markdown documentation for query within library's doc site.
// Unregistered libraries and a missing API key yield "" without touching the network.
func (c *Client) FetchDocs(ctx context.Context, query, library string) (string, error) {
	site, ok := c.cfg.Sites[strings.ToLower(library)]
	if !ok || !c.Enabled() {
		return "", nil
	}

	results, err := c.Search(ctx, fmt.Sprintf("site:%s %s", site, query))
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}
	if len(results) > c.cfg.MaxResults {
		results = results[:c.cfg.MaxResults]
	}

	var sections []string
	for _, r := range results {
		page, err := c.fetchPage(ctx, r.Link)
		if err != nil {
			c.logger.Debug("Doc page skipped", "url", r.Link, "error", err)
			continue
		}
		if page.Markdown == "" {
			continue
		}
		title := page.Title
		if title == "" {
			title = r.Title
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", title, page.Markdown))
	}

	if len(sections) == 0 {
		return truncate(formatSnippets(results), c.cfg.MaxChars), nil
	}
	return truncate(strings.Join(sections, "\n\n"), c.cfg.MaxChars), nil
}

// Search runs a single web search and returns its organic results.
func (c *Client) Search(ctx context.Context, q string) ([]SearchResult, error) {
	body, err := json.Marshal(searchRequest{Q: q, Num: c.cfg.MaxResults})
	if err != nil {
		return nil, fmt.Errorf("marshal search: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SearchURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := sr.Organic[:0]
	for _, r := range sr.Organic {
		if r.Link != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, link string) (*Page, error) {
	raw, err := c.pages.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}
	return c.converter.Convert(raw)
}

func formatSnippets(results []SearchResult) string {
	var sb strings.Builder
	for _, r := range results {
		if r.Snippet == "" {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s (%s)\n", r.Title, r.Snippet, r.Link)
	}
	return strings.TrimSpace(sb.String())
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
