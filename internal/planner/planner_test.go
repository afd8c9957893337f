package planner

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperifyio/webresearch/internal/fetch"
	"github.com/hyperifyio/webresearch/internal/model"
	"github.com/hyperifyio/webresearch/internal/search"
)

type fakeProvider struct {
	hits []search.Result
	err  error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Search(_ context.Context, _ string, limit int) ([]search.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > 0 && limit < len(f.hits) {
		return f.hits[:limit], nil
	}
	return f.hits, nil
}

func htmlServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(200)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPlanner_SearchFailureYieldsEmptyResult(t *testing.T) {
	p := &Planner{
		Search:  &fakeProvider{err: fmt.Errorf("boom")},
		Fetch:   &fetch.Client{PerRequestTimeout: time.Second},
		Options: Options{MaxInitialResults: 20, MaxLevel2PerPage: 10, Deadline: time.Second},
	}
	result := p.Run(context.Background(), model.Query{Raw: "zxcvbnm_nonsense_42"})
	if !result.SearchFailed {
		t.Fatalf("expected SearchFailed")
	}
	if len(result.Level1Pages) != 0 || len(result.Level2Pages) != 0 {
		t.Fatalf("expected no pages, got %+v", result)
	}
}

func TestPlanner_SingleHitHappyPath(t *testing.T) {
	bServer := htmlServer(t, `<html><head><title>B</title></head><body><main><p>alpha on b</p></main></body></html>`)
	cServer := htmlServer(t, `<html><head><title>C</title></head><body><main><p>alpha on c</p></main></body></html>`)
	aBody := fmt.Sprintf(`<html><head><title>Alpha</title></head><body><main>
		<p>alpha alpha alpha appears here.</p>
		<a href="%s">B link</a>
		<a href="%s">C link</a>
	</main></body></html>`, bServer.URL, cServer.URL)
	aServer := htmlServer(t, aBody)

	provider := &fakeProvider{hits: []search.Result{{URL: aServer.URL, Title: "Alpha", Snippet: "alpha snippet", Rank: 0}}}
	p := &Planner{
		Search: provider,
		Fetch:  &fetch.Client{PerRequestTimeout: 2 * time.Second},
		Options: Options{
			MaxInitialResults: 20,
			MaxLevel2PerPage:  10,
			Deadline:          5 * time.Second,
		},
	}

	result := p.Run(context.Background(), model.Query{Raw: "alpha", Terms: []string{"alpha"}})

	if result.SearchFailed {
		t.Fatalf("did not expect search failure")
	}
	total := len(result.Level1Pages) + len(result.Level2Pages)
	if total != 3 {
		t.Fatalf("expected 3 pages crawled (1 level1 + 2 level2), got %d: level1=%v level2=%v failures=%v",
			total, result.Level1Pages, result.Level2Pages, result.Failures)
	}
	if len(result.Level1Pages) != 1 {
		t.Fatalf("expected 1 level1 page, got %d", len(result.Level1Pages))
	}
	for _, p := range result.Level2Pages {
		if p.ParentURL != aServer.URL {
			t.Fatalf("expected level2 parent to be the level1 URL, got %q", p.ParentURL)
		}
	}
	if result.Level1Pages[0].Relevance <= result.Level2Pages[0].Relevance {
		t.Fatalf("expected level1 (3 occurrences) to score higher than level2 (1 occurrence)")
	}
}

func TestPlanner_Level2CapEnforced(t *testing.T) {
	var links string
	for i := 0; i < 50; i++ {
		srv := htmlServer(t, fmt.Sprintf(`<html><head><title>Leaf %d</title></head><body><main><p>alpha content %d</p></main></body></html>`, i, i))
		links += fmt.Sprintf(`<a href="%s">leaf %d</a>`, srv.URL, i)
	}
	rootServer := htmlServer(t, fmt.Sprintf(`<html><head><title>Root</title></head><body><main><p>alpha root</p>%s</main></body></html>`, links))

	provider := &fakeProvider{hits: []search.Result{{URL: rootServer.URL, Title: "Root", Rank: 0}}}
	p := &Planner{
		Search: provider,
		Fetch:  &fetch.Client{PerRequestTimeout: 2 * time.Second},
		Options: Options{
			MaxInitialResults: 20,
			MaxLevel2PerPage:  10,
			Deadline:          5 * time.Second,
		},
	}

	result := p.Run(context.Background(), model.Query{Raw: "alpha", Terms: []string{"alpha"}})
	if len(result.Level2Pages)+countLevel2Failures(result.Failures) != 10 {
		t.Fatalf("expected exactly 10 level2 URLs attempted, got %d pages + %d failures",
			len(result.Level2Pages), countLevel2Failures(result.Failures))
	}
}

func countLevel2Failures(failures []model.Failure) int {
	n := 0
	for _, f := range failures {
		if f.Level == model.Level2 {
			n++
		}
	}
	return n
}

func TestPlanner_NoURLAppearsTwiceAcrossLevels(t *testing.T) {
	bServer := htmlServer(t, `<html><head><title>B</title></head><body><main><p>alpha</p></main></body></html>`)
	aBody := fmt.Sprintf(`<html><head><title>A</title></head><body><main><p>alpha</p><a href="%s">self via other host too</a></main></body></html>`, bServer.URL)
	aServer := htmlServer(t, aBody)

	provider := &fakeProvider{hits: []search.Result{
		{URL: aServer.URL, Title: "A", Rank: 0},
		{URL: bServer.URL, Title: "B", Rank: 1},
	}}
	p := &Planner{
		Search: provider,
		Fetch:  &fetch.Client{PerRequestTimeout: 2 * time.Second},
		Options: Options{
			MaxInitialResults: 20,
			MaxLevel2PerPage:  10,
			Deadline:          5 * time.Second,
		},
	}

	result := p.Run(context.Background(), model.Query{Raw: "alpha", Terms: []string{"alpha"}})
	seen := make(map[string]bool)
	for _, pg := range result.Level1Pages {
		if seen[pg.URL] {
			t.Fatalf("duplicate URL across run: %s", pg.URL)
		}
		seen[pg.URL] = true
	}
	for _, pg := range result.Level2Pages {
		if seen[pg.URL] {
			t.Fatalf("URL %s appeared in both level1 and level2", pg.URL)
		}
		seen[pg.URL] = true
	}
	// b is already a level1 hit, so it must not also be admitted as a level2 task.
	for _, pg := range result.Level2Pages {
		if pg.URL == bServer.URL {
			t.Fatalf("expected pre-visited level1 URL to be excluded from level2 admission")
		}
	}
}

func TestPlanner_ZeroDeadlineCrawlsNothing(t *testing.T) {
	aServer := htmlServer(t, `<html><head><title>A</title></head><body><main><p>alpha</p></main></body></html>`)
	provider := &fakeProvider{hits: []search.Result{{URL: aServer.URL, Title: "A", Rank: 0}}}
	p := &Planner{
		Search: provider,
		Fetch:  &fetch.Client{PerRequestTimeout: 2 * time.Second},
		Options: Options{
			MaxInitialResults: 20,
			MaxLevel2PerPage:  10,
			Deadline:          0,
		},
	}
	result := p.Run(context.Background(), model.Query{Raw: "alpha", Terms: []string{"alpha"}})
	if len(result.Level1Pages) != 0 {
		t.Fatalf("expected zero level1 pages with a zero deadline, got %d", len(result.Level1Pages))
	}
}
