package fetch

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// The selector syntax understood here is deliberately small: a selector
// is a space-separated chain of simple parts, each a tag name, "#id" or
// ".class", matched as descendants. Providers needing richer selectors
// belong behind their own Fetcher implementation.

var collapseRe = regexp.MustCompile(`\s+`)

// ExtractText returns the collapsed text content of the first node
// matching the selector, or "" when nothing matches.
func ExtractText(doc *html.Node, selector string) string {
	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return ""
	}
	node := findFirst(doc, parts)
	if node == nil {
		return ""
	}
	var b strings.Builder
	collectText(node, &b)
	return strings.TrimSpace(collapseRe.ReplaceAllString(b.String(), " "))
}

func findFirst(n *html.Node, parts []string) *html.Node {
	if matches(n, parts[0]) {
		if len(parts) == 1 {
			return n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if found := findDescendant(c, parts[1:]); found != nil {
				return found
			}
		}
		// A matching ancestor without matching descendants is not a
		// match for the whole chain; keep scanning siblings below.
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, parts); found != nil {
			return found
		}
	}
	return nil
}

func findDescendant(n *html.Node, parts []string) *html.Node {
	if matches(n, parts[0]) {
		if len(parts) == 1 {
			return n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if found := findDescendant(c, parts[1:]); found != nil {
				return found
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findDescendant(c, parts); found != nil {
			return found
		}
	}
	return nil
}

func matches(n *html.Node, part string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch {
	case strings.HasPrefix(part, "#"):
		return attrValue(n, "id") == part[1:]
	case strings.HasPrefix(part, "."):
		for _, class := range strings.Fields(attrValue(n, "class")) {
			if class == part[1:] {
				return true
			}
		}
		return false
	default:
		return strings.EqualFold(n.Data, part)
	}
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteString(" ")
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
