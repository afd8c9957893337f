package extract

import (
	"net/url"
	"strings"
	"testing"
)

func mustBase(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse base: %v", err)
	}
	return u
}

func TestFromHTML_PrefersMainOverBody(t *testing.T) {
	html := `<!doctype html>
	<html>
	  <head><title>Test Page</title></head>
	  <body>
		<nav>Nav should be ignored</nav>
		<main>
		  <h1>Main Heading</h1>
		  <p>This is the main content paragraph.</p>
		</main>
		<footer>Footer text</footer>
	  </body>
	</html>`

	doc, ok := FromHTML([]byte(html), mustBase(t, "http://example.com/"))
	if !ok {
		t.Fatalf("expected ok extraction")
	}
	if doc.Title != "Test Page" {
		t.Fatalf("expected title 'Test Page', got %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "Main Heading") {
		t.Fatalf("expected to contain main heading")
	}
	if strings.Contains(doc.Text, "Nav should be ignored") {
		t.Fatalf("did not expect nav text in extracted content")
	}
	if strings.Contains(doc.Text, "Footer text") {
		t.Fatalf("did not expect footer text in extracted content")
	}
}

func TestFromHTML_FallbackToBody(t *testing.T) {
	html := `<!doctype html>
	<html>
	  <head><title>No Main</title></head>
	  <body>
		<h2>Body Heading</h2>
		<p>Body paragraph</p>
	  </body>
	</html>`

	doc, ok := FromHTML([]byte(html), mustBase(t, "http://example.com/"))
	if !ok {
		t.Fatalf("expected ok extraction")
	}
	if doc.Title != "No Main" {
		t.Fatalf("expected title 'No Main', got %q", doc.Title)
	}
	if !strings.Contains(doc.Text, "Body Heading") || !strings.Contains(doc.Text, "Body paragraph") {
		t.Fatalf("expected body content present, got: %q", doc.Text)
	}
}

func TestFromHTML_StripsScriptStyleAndComments(t *testing.T) {
	html := `<html><head><title>T</title></head><body><main>
		<script>alert('x')</script>
		<style>.a{color:red}</style>
		<!-- a secret comment -->
		<p>Visible text</p>
	</main></body></html>`

	doc, ok := FromHTML([]byte(html), mustBase(t, "http://example.com/"))
	if !ok {
		t.Fatalf("expected ok extraction")
	}
	if strings.Contains(doc.Text, "alert") || strings.Contains(doc.Text, "color:red") || strings.Contains(doc.Text, "secret comment") {
		t.Fatalf("expected boilerplate stripped, got: %q", doc.Text)
	}
	if !strings.Contains(doc.Text, "Visible text") {
		t.Fatalf("expected visible text present")
	}
}

func TestFromHTML_OutlinksResolvedDedupedAndFiltered(t *testing.T) {
	html := `<html><head><title>Links</title></head><body><main>
		<a href="/a">A</a>
		<a href="/a">A again</a>
		<a href="https://other.example/b">B</a>
		<a href="#section">fragment only</a>
		<a href="mailto:x@example.com">mail</a>
		<a href="javascript:void(0)">js</a>
		<a href="data:text/plain;base64,aGk=">data</a>
		<a href="tel:+15551234">tel</a>
	</main></body></html>`

	doc, ok := FromHTML([]byte(html), mustBase(t, "http://example.com/dir/"))
	if !ok {
		t.Fatalf("expected ok extraction")
	}
	urls := doc.URLs()
	if len(urls) != 2 {
		t.Fatalf("expected 2 outlinks after filtering/dedup, got %d: %v", len(urls), urls)
	}
	want := map[string]bool{"http://example.com/a": false, "https://other.example/b": false}
	for _, u := range urls {
		if _, ok := want[u]; !ok {
			t.Fatalf("unexpected outlink %q", u)
		}
		want[u] = true
	}
	for u, seen := range want {
		if !seen {
			t.Fatalf("expected outlink %q", u)
		}
	}
}

func TestFromHTML_EmptyBodyFailsExtraction(t *testing.T) {
	if _, ok := FromHTML([]byte(""), mustBase(t, "http://example.com/")); ok {
		t.Fatalf("expected extraction to fail for empty input")
	}
}

func TestFromHTML_TruncatesToMaxContentLength(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><head><title>Long</title></head><body><main><p>")
	for i := 0; i < MaxContentLength; i++ {
		b.WriteByte('x')
	}
	b.WriteString("</p></main></body></html>")

	doc, ok := FromHTML([]byte(b.String()), mustBase(t, "http://example.com/"))
	if !ok {
		t.Fatalf("expected ok extraction")
	}
	if len(doc.Text) > MaxContentLength {
		t.Fatalf("expected text truncated to %d chars, got %d", MaxContentLength, len(doc.Text))
	}
}
