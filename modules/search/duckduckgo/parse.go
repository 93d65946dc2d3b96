package duckduckgo

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/flemzord/majlis/internal/provider"
)

// parseResults walks the DuckDuckGo HTML page and extracts at most max
// organic results. Ads and entries without a title or URL are skipped.
func parseResults(page string, max int) ([]provider.SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("search.duckduckgo: parse html: %w", err)
	}

	var results []provider.SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= max {
			return
		}
		if isResult(n) {
			if r, ok := extractResult(n); ok {
				results = append(results, r)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func isResult(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "div" {
		return false
	}
	classes := strings.Fields(attr(n, "class"))
	result := false
	for _, c := range classes {
		switch c {
		case "result":
			result = true
		case "result--ad":
			return false
		}
	}
	return result
}

func extractResult(n *html.Node) (provider.SearchResult, bool) {
	var r provider.SearchResult
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			switch {
			case node.Data == "a" && hasClass(node, "result__a"):
				r.Title = textContent(node)
				r.URL = decodeRedirect(attr(node, "href"))
			case hasClass(node, "result__snippet"):
				r.Snippet = textContent(node)
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return r, r.Title != "" && r.URL != ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// decodeRedirect unwraps DuckDuckGo redirect links of the form
// //duckduckgo.com/l/?uddg=<escaped target>.
func decodeRedirect(raw string) string {
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return raw
}
