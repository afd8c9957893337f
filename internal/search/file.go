package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"regexp"
	"strings"
)

// FileProvider loads search results from a local JSON file. It is the
// offline test double named in spec §9 Design Notes ("allowing offline
// test doubles that return canned responses"). The JSON file format is an
// array of objects: {"title": "...", "url": "...", "snippet": "..."}.
type FileProvider struct {
	Path   string
	Policy DomainPolicy // optional: filter results by domain
}

func (f *FileProvider) Name() string { return "file" }

func (f *FileProvider) Search(_ context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("file provider path is empty")
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var raw []Result
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		if r.URL == "" || r.Title == "" {
			continue
		}
		if q == "" || strings.Contains(strings.ToLower(r.Title), q) || strings.Contains(strings.ToLower(r.Snippet), q) || matchesByTokens(q, r.Title+"\n"+r.Snippet) {
			if f.Policy.Denylist != nil || f.Policy.Allowlist != nil {
				if isDomainBlocked(r.URL, f.Policy.Allowlist, f.Policy.Denylist) {
					continue
				}
			}
			r.Rank = len(out)
			r.Source = f.Name()
			out = append(out, r)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// matchesByTokens performs a loose token-based match between the query and
// the candidate text. It returns true when at least two meaningful tokens
// (length >= 3) from the query appear in the text, making the file
// provider usable for longer, natural-language queries in tests.
func matchesByTokens(query, text string) bool {
	query = strings.ToLower(query)
	text = strings.ToLower(text)
	splitter := regexp.MustCompile(`[^a-z0-9]+`)
	qTokens := splitter.Split(query, -1)
	if len(qTokens) == 0 {
		return false
	}
	meaningful := 0
	for _, tok := range qTokens {
		if len(tok) < 3 {
			continue
		}
		if strings.Contains(text, tok) {
			meaningful++
			if meaningful >= 2 {
				return true
			}
		}
	}
	return false
}

// isDomainBlocked reports whether u's host is excluded by policy: denylist
// takes precedence over allowlist.
func isDomainBlocked(rawURL string, allow, deny []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range deny {
		if matchesHost(host, d) {
			return true
		}
	}
	if len(allow) == 0 {
		return false
	}
	for _, a := range allow {
		if matchesHost(host, a) {
			return false
		}
	}
	return true
}

func matchesHost(host, pattern string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
