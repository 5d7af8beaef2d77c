package search

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	xhtml "golang.org/x/net/html"
)

// parseResults extracts up to limit hits from a DuckDuckGo HTML results
// page. Each hit is a div.result holding an a.result__a link and an optional
// .result__snippet.
func parseResults(r io.Reader, limit int) ([]Result, error) {
	doc, err := xhtml.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	var results []Result
	seen := make(map[string]bool)

	var walk func(*xhtml.Node) bool
	walk = func(n *xhtml.Node) bool {
		if n.Type == xhtml.ElementNode && n.Data == "div" && hasClass(n, "result") {
			if res, ok := buildResult(n); ok && !seen[res.URL] {
				seen[res.URL] = true
				results = append(results, res)
				if limit > 0 && len(results) >= limit {
					return false
				}
			}
			return true
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(doc)

	return results, nil
}

func buildResult(node *xhtml.Node) (Result, bool) {
	var res Result

	var inspect func(*xhtml.Node)
	inspect = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			if res.URL == "" && n.Data == "a" && hasClass(n, "result__a") {
				res.URL = resultURL(attr(n, "href"))
				res.Title = text(n)
			}
			if res.Snippet == "" && hasClass(n, "result__snippet") {
				res.Snippet = text(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			inspect(c)
		}
	}
	inspect(node)

	return res, res.URL != "" && res.Title != ""
}

// resultURL resolves DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...)
// to the target URL. Only http and https targets are kept.
func resultURL(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if target := u.Query().Get("uddg"); target != "" && strings.HasSuffix(u.Path, "/l/") {
		if u, err = url.Parse(target); err != nil {
			return ""
		}
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ""
	}
	if u.Hostname() == "" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

func hasClass(n *xhtml.Node, class string) bool {
	for _, part := range strings.Fields(attr(n, "class")) {
		if part == class {
			return true
		}
	}
	return false
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// text returns the visible text below n with whitespace collapsed.
func text(n *xhtml.Node) string {
	var b strings.Builder
	var collect func(*xhtml.Node)
	collect = func(n *xhtml.Node) {
		switch {
		case n.Type == xhtml.TextNode:
			b.WriteString(n.Data)
		case n.Type == xhtml.ElementNode && n.Data == "br":
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
