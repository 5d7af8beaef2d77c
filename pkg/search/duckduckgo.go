package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"
)

const (
	defaultInstantURL = "https://api.duckduckgo.com/"
	defaultHTMLURL    = "https://html.duckduckgo.com/html/"
	defaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 2 << 20
)

// Result is one web search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Results is the outcome of one lookup.
type Results struct {
	Query string

	// Instant is the direct answer (abstract, definition or answer), if any.
	Instant string

	Web       []Result
	Timestamp time.Time
}

// Empty reports whether nothing was found.
func (r *Results) Empty() bool {
	return r == nil || (r.Instant == "" && len(r.Web) == 0)
}

// DuckDuckGo queries the DuckDuckGo instant answer API and the HTML results
// page. It needs no API key.
type DuckDuckGo struct {
	client     *http.Client
	instantURL string
	htmlURL    string
	userAgent  string
	maxResults int
	logger     *slog.Logger
}

// Option configures a DuckDuckGo client.
type Option func(*DuckDuckGo)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *DuckDuckGo) { d.client = c }
}

// WithEndpoints overrides the instant answer and HTML endpoints.
func WithEndpoints(instantURL, htmlURL string) Option {
	return func(d *DuckDuckGo) {
		d.instantURL = instantURL
		d.htmlURL = htmlURL
	}
}

// WithMaxResults caps the number of web results.
func WithMaxResults(n int) Option {
	return func(d *DuckDuckGo) {
		if n > 0 {
			d.maxResults = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *DuckDuckGo) { d.logger = logger.With("component", "search.duckduckgo") }
}

// NewDuckDuckGo creates a client with a 10 second HTTP timeout and five
// results per query unless configured otherwise.
func NewDuckDuckGo(opts ...Option) *DuckDuckGo {
	d := &DuckDuckGo{
		client:     &http.Client{Timeout: 10 * time.Second},
		instantURL: defaultInstantURL,
		htmlURL:    defaultHTMLURL,
		userAgent:  defaultUserAgent,
		maxResults: 5,
		logger:     slog.Default().With("component", "search.duckduckgo"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Lookup runs the instant answer and web queries concurrently. A failure of
// one source is logged and leaves its part empty; the lookup fails only
// when both sources fail.
func (d *DuckDuckGo) Lookup(ctx context.Context, query string) (*Results, error) {
	clean := CleanQuery(query)
	if clean == "" {
		return nil, fmt.Errorf("empty search query")
	}

	res := &Results{Query: query, Timestamp: time.Now().UTC()}
	var instantErr, webErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.Instant, instantErr = d.instant(gctx, clean)
		return nil
	})
	g.Go(func() error {
		res.Web, webErr = d.web(gctx, clean)
		return nil
	})
	_ = g.Wait()

	if instantErr != nil {
		d.logger.DebugContext(ctx, "instant answer unavailable", "query", clean, "error", instantErr)
	}
	if webErr != nil {
		d.logger.WarnContext(ctx, "web search failed", "query", clean, "error", webErr)
	}
	if instantErr != nil && webErr != nil {
		return nil, fmt.Errorf("search failed: %w", webErr)
	}
	return res, nil
}

type instantAnswer struct {
	Abstract         string `json:"Abstract"`
	AbstractSource   string `json:"AbstractSource"`
	Definition       string `json:"Definition"`
	DefinitionSource string `json:"DefinitionSource"`
	Answer           any    `json:"Answer"`
}

func (d *DuckDuckGo) instant(ctx context.Context, query string) (string, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	body, err := d.get(ctx, d.instantURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}

	var ia instantAnswer
	if err := json.Unmarshal(body, &ia); err != nil {
		return "", fmt.Errorf("failed to decode instant answer: %w", err)
	}

	switch {
	case ia.Abstract != "":
		return fmt.Sprintf("%s (Source: %s)", ia.Abstract, orUnknown(ia.AbstractSource)), nil
	case ia.Definition != "":
		return fmt.Sprintf("%s (Source: %s)", ia.Definition, orUnknown(ia.DefinitionSource)), nil
	}
	// Answer is a string for most queries and an object for widgets.
	if s, ok := ia.Answer.(string); ok {
		return strings.TrimSpace(s), nil
	}
	return "", nil
}

func (d *DuckDuckGo) web(ctx context.Context, query string) ([]Result, error) {
	body, err := d.get(ctx, d.htmlURL+"?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}
	return parseResults(bytes.NewReader(body), d.maxResults)
}

func (d *DuckDuckGo) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Host)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// CleanQuery replaces punctuation other than - + . with spaces and collapses
// whitespace.
func CleanQuery(q string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-', r == '+', r == '.':
			return r
		default:
			return ' '
		}
	}, q)
	return strings.Join(strings.Fields(mapped), " ")
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
