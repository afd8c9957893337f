// Package extract turns a fetched HTML body into a Document: a title, a
// boilerplate-stripped text body, and a deduplicated list of resolved
// outlinks. Grounded on the teacher's internal/extract.FromHTML (the
// html.Parse-based DFS text walker and its boilerplate skip-list), extended
// with an outlink-collecting second pass per spec §4.2.
package extract

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hyperifyio/webresearch/internal/urlnorm"
)

// MaxContentLength bounds Document.Text, per spec §4.2 ("truncated to
// max_content_length, recommend 1 MB chars").
const MaxContentLength = 1_000_000

// Outlink is one resolved anchor found on a page, kept together with its
// anchor text so the Planner can apply the term-match preference of
// spec §4.4 step 4(b).
type Outlink struct {
	URL        string
	AnchorText string
}

// Document is the extracted content of one page.
type Document struct {
	Title    string
	Text     string
	Outlinks []Outlink
}

// URLs returns the deduplicated outlink URLs in document order, the shape
// spec §3 names for Page.outlinks.
func (d Document) URLs() []string {
	out := make([]string, len(d.Outlinks))
	for i, o := range d.Outlinks {
		out[i] = o.URL
	}
	return out
}

// FromHTML extracts readable text and outlinks from input, resolving
// relative links against base. It never errors: malformed markup yields a
// best-effort (possibly empty) Document, matching spec §4.2's requirement
// that extraction failures not crash the pipeline. Ok reports whether the
// document yielded a non-empty title or text; callers use it to produce an
// extraction-failed outcome for truly empty documents.
func FromHTML(input []byte, base *url.URL) (Document, bool) {
	node, err := html.Parse(bytes.NewReader(input))
	if err != nil || node == nil {
		return Document{}, false
	}

	title := strings.TrimSpace(findTitle(node))

	content := findFirst(node, "main")
	if content == nil {
		content = findFirst(node, "article")
	}
	if content == nil {
		content = findFirst(node, "body")
	}

	var b strings.Builder
	if content != nil {
		collectText(&b, content, false)
	}
	text := normalizeWhitespace(b.String())
	if len(text) > MaxContentLength {
		text = text[:MaxContentLength]
	}

	outlinks := collectOutlinks(node, base)

	ok := title != "" || text != ""
	return Document{Title: title, Text: text, Outlinks: outlinks}, ok
}

func collectOutlinks(n *html.Node, base *url.URL) []Outlink {
	seen := make(map[string]struct{})
	out := make([]Outlink, 0, 16)
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, "a") {
			for _, attr := range cur.Attr {
				if strings.EqualFold(attr.Key, "href") {
					if resolved, ok := urlnorm.Resolve(base, attr.Val); ok {
						if _, dup := seen[resolved]; !dup {
							seen[resolved] = struct{}{}
							out = append(out, Outlink{URL: resolved, AnchorText: anchorText(cur)})
						}
					}
					break
				}
			}
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func anchorText(a *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(a)
	return strings.TrimSpace(collapseSpaces(b.String()))
}

func findTitle(n *html.Node) string {
	head := findFirst(n, "head")
	if head == nil {
		return ""
	}
	t := findFirst(head, "title")
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return t.FirstChild.Data
}

func findFirst(n *html.Node, tag string) *html.Node {
	var res *html.Node
	var dfs func(*html.Node)
	dfs = func(cur *html.Node) {
		if res != nil {
			return
		}
		if cur.Type == html.ElementNode && strings.EqualFold(cur.Data, tag) {
			res = cur
			return
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			dfs(c)
			if res != nil {
				return
			}
		}
	}
	dfs(n)
	return res
}

func collectText(b *strings.Builder, n *html.Node, inPre bool) {
	if n.Type == html.ElementNode {
		if isBoilerplateContainer(n) {
			return
		}
		name := strings.ToLower(n.Data)
		switch name {
		case "script", "style", "noscript", "template", "nav", "footer", "aside", "iframe":
			return
		case "pre", "code":
			inPre = true
		case "br", "hr":
			b.WriteString("\n")
		case "p", "h1", "h2", "h3", "h4", "h5", "h6", "li":
			b.WriteString("\n")
		case "ul", "ol":
			b.WriteString("\n")
		}
	}

	switch n.Type {
	case html.TextNode:
		data := n.Data
		if !inPre {
			data = strings.ReplaceAll(data, "\t", " ")
			data = strings.ReplaceAll(data, "\r", " ")
		}
		b.WriteString(data)
	case html.CommentNode:
		// HTML comments are dropped by construction: we never write their
		// data to b and never recurse into a comment node's (nonexistent)
		// children.
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(b, c, inPre)
	}

	if n.Type == html.ElementNode {
		name := strings.ToLower(n.Data)
		switch name {
		case "p", "h1", "h2", "h3", "h4", "h5", "h6":
			b.WriteString("\n\n")
		case "li":
			b.WriteString("\n")
		case "pre", "code":
			inPre = false
			b.WriteString("\n")
		}
	}
}

// isBoilerplateContainer returns true if the element looks like a cookie or
// consent banner.
func isBoilerplateContainer(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, attr := range n.Attr {
		key := strings.ToLower(attr.Key)
		if key != "id" && key != "class" && !strings.HasPrefix(key, "data-") && key != "aria-label" && key != "role" {
			continue
		}
		val := strings.ToLower(attr.Val)
		if containsAny(val, []string{"cookie", "consent", "gdpr"}) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, collapseSpaces(trimmed))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

func collapseSpaces(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
