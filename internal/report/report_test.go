package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperifyio/webresearch/internal/model"
)

func sampleResult() model.ResearchResult {
	return model.ResearchResult{
		Query:      "alpha",
		StartedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC),
		InitialHits: []model.SearchHit{
			{URL: "http://a.example/", Title: "Alpha", Snippet: "snippet", Rank: 0},
		},
		Level1Pages: []model.ScoredPage{
			{Page: model.Page{URL: "http://a.example/", Title: "Alpha", Text: "alpha content", Outlinks: []string{"http://b.example/"}}, Relevance: 0.8},
		},
		Level2Pages: []model.ScoredPage{
			{Page: model.Page{URL: "http://b.example/", ParentURL: "http://a.example/", Title: "Beta", Text: "beta content"}, Relevance: 0.3},
		},
		Summary:              "Research on 'alpha' surveyed 2 pages across 2 domains.",
		KeyFindings:          []string{"Alpha — alpha content (http://a.example/)"},
		TotalPagesCrawled:    2,
		TotalLinksDiscovered: 1,
		Failures: []model.Failure{
			{URL: "http://c.example/", Level: model.Level1, Status: model.StatusTimeout, ErrorKind: model.ErrorKindTimeout},
		},
	}
}

func TestToWire_MapsAllFields(t *testing.T) {
	w := ToWire(sampleResult())
	if w.Query != "alpha" {
		t.Fatalf("expected query alpha, got %q", w.Query)
	}
	if len(w.InitialHits) != 1 || len(w.Level1Pages) != 1 || len(w.Level2Pages) != 1 || len(w.Failures) != 1 {
		t.Fatalf("expected all sections populated, got %+v", w)
	}
	if w.Level1Pages[0].OutlinksCount != 1 {
		t.Fatalf("expected outlinks count 1, got %d", w.Level1Pages[0].OutlinksCount)
	}
	if w.Level2Pages[0].ParentURL != "http://a.example/" {
		t.Fatalf("expected parent url propagated, got %q", w.Level2Pages[0].ParentURL)
	}
}

func TestMarshalJSON_ProducesValidJSON(t *testing.T) {
	data, err := MarshalJSON(sampleResult())
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("expected valid json, got error: %v, data: %s", err, data)
	}
	if decoded["query"] != "alpha" {
		t.Fatalf("expected query field in json, got %v", decoded["query"])
	}
}

func TestExcerpt_TruncatesLongText(t *testing.T) {
	long := make([]rune, excerptLength+100)
	for i := range long {
		long[i] = 'x'
	}
	got := excerpt(string(long))
	if len([]rune(got)) != excerptLength {
		t.Fatalf("expected excerpt length %d, got %d", excerptLength, len([]rune(got)))
	}
}

func TestWritePDF_WritesNonEmptyFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "report.pdf")
	if err := WritePDF(sampleResult(), out); err != nil {
		t.Fatalf("WritePDF error: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat output: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected non-empty pdf output")
	}
}
