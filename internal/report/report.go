// Package report renders a model.ResearchResult into the two downstream
// forms named in spec §6: a JSON wire document and a paginated PDF.
//
// The JSON shape is new (no pack repo emits this wire format), built in the
// plain-struct-plus-json-tag style the whole corpus uses. The PDF renderer
// is adapted from the teacher's internal/app.writeSimplePDF: same
// line-by-line gofpdf approach, generalized from one big Markdown string to
// a ResearchResult's own sections (summary, key findings, level1/level2
// tables, failures).
package report

import (
	"encoding/json"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/hyperifyio/webresearch/internal/model"
)

// WireSearchHit is the JSON shape of one initial search hit.
type WireSearchHit struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Rank    int    `json:"rank"`
}

// WireLevel1Page is the JSON shape of one Level-1 page, per spec §6.
type WireLevel1Page struct {
	URL            string  `json:"url"`
	Title          string  `json:"title"`
	TextExcerpt    string  `json:"text_excerpt"`
	OutlinksCount  int     `json:"outlinks_count"`
	Relevance      float64 `json:"relevance"`
	FetchElapsedMS int64   `json:"fetch_elapsed_ms"`
}

// WireLevel2Page is the JSON shape of one Level-2 page, per spec §6.
type WireLevel2Page struct {
	URL            string  `json:"url"`
	ParentURL      string  `json:"parent_url"`
	Title          string  `json:"title"`
	TextExcerpt    string  `json:"text_excerpt"`
	Relevance      float64 `json:"relevance"`
	FetchElapsedMS int64   `json:"fetch_elapsed_ms"`
}

// WireFailure is the JSON shape of one recorded failure, per spec §6.
type WireFailure struct {
	URL       string `json:"url"`
	Level     int    `json:"level"`
	Status    string `json:"status"`
	HTTPCode  int    `json:"http_code,omitempty"`
	ErrorKind string `json:"error_kind"`
}

// WireResult is the exact JSON shape spec §6 names for ResearchResult.
type WireResult struct {
	Query                string           `json:"query"`
	StartedAt            string           `json:"started_at"`
	FinishedAt           string           `json:"finished_at"`
	ElapsedSeconds       float64          `json:"elapsed_seconds"`
	InitialHits          []WireSearchHit  `json:"initial_hits"`
	Level1Pages          []WireLevel1Page `json:"level1_pages"`
	Level2Pages          []WireLevel2Page `json:"level2_pages"`
	Summary              string           `json:"summary"`
	KeyFindings          []string         `json:"key_findings"`
	TotalPagesCrawled    int              `json:"total_pages_crawled"`
	TotalLinksDiscovered int              `json:"total_links_discovered"`
	Failures             []WireFailure    `json:"failures"`
}

const excerptLength = 500

// ToWire converts a ResearchResult into its JSON wire shape.
func ToWire(r model.ResearchResult) WireResult {
	w := WireResult{
		Query:                r.Query,
		StartedAt:            r.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
		FinishedAt:           r.FinishedAt.Format("2006-01-02T15:04:05Z07:00"),
		ElapsedSeconds:       r.ElapsedSeconds,
		TotalPagesCrawled:    r.TotalPagesCrawled,
		TotalLinksDiscovered: r.TotalLinksDiscovered,
		Summary:              r.Summary,
		KeyFindings:          r.KeyFindings,
	}
	for _, h := range r.InitialHits {
		w.InitialHits = append(w.InitialHits, WireSearchHit{URL: h.URL, Title: h.Title, Snippet: h.Snippet, Rank: h.Rank})
	}
	for _, p := range r.Level1Pages {
		w.Level1Pages = append(w.Level1Pages, WireLevel1Page{
			URL: p.URL, Title: p.Title, TextExcerpt: excerpt(p.Text),
			OutlinksCount: len(p.Outlinks), Relevance: p.Relevance, FetchElapsedMS: p.FetchElapsedMS,
		})
	}
	for _, p := range r.Level2Pages {
		w.Level2Pages = append(w.Level2Pages, WireLevel2Page{
			URL: p.URL, ParentURL: p.ParentURL, Title: p.Title, TextExcerpt: excerpt(p.Text),
			Relevance: p.Relevance, FetchElapsedMS: p.FetchElapsedMS,
		})
	}
	for _, f := range r.Failures {
		w.Failures = append(w.Failures, WireFailure{
			URL: f.URL, Level: int(f.Level), Status: string(f.Status),
			HTTPCode: f.HTTPCode, ErrorKind: string(f.ErrorKind),
		})
	}
	return w
}

// MarshalJSON renders r as indented JSON, the shape consumed by downstream
// tooling per spec §6.
func MarshalJSON(r model.ResearchResult) ([]byte, error) {
	return json.MarshalIndent(ToWire(r), "", "  ")
}

func excerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptLength {
		return text
	}
	return string(runes[:excerptLength])
}

// WritePDF renders a paginated PDF report from r to outPath. Layout is
// intentionally simple: a title section, the summary, the key findings as
// a bulleted list, a page per crawl level listing URL/title/relevance, and
// a failures table, each starting on its own page.
func WritePDF(r model.ResearchResult, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 8, fmt.Sprintf("Research report: %s", r.Query), "", "L", false)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, fmt.Sprintf("Generated %s, elapsed %.1fs, %d pages crawled, %d links discovered.",
		r.FinishedAt.Format("2006-01-02 15:04:05 MST"), r.ElapsedSeconds, r.TotalPagesCrawled, r.TotalLinksDiscovered), "", "L", false)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	if r.Summary == "" {
		pdf.MultiCell(0, 5, "(no summary: no pages were crawled)", "", "L", false)
	} else {
		pdf.MultiCell(0, 5, r.Summary, "", "L", false)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Key findings", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, f := range r.KeyFindings {
		pdf.MultiCell(0, 5, "- "+f, "", "L", false)
	}

	writePageTable(pdf, "Level 1 pages", level1Rows(r.Level1Pages))
	writePageTable(pdf, "Level 2 pages", level2Rows(r.Level2Pages))
	writeFailureTable(pdf, r.Failures)

	return pdf.OutputFileAndClose(outPath)
}

func writePageTable(pdf *gofpdf.Fpdf, heading string, rows [][3]string) {
	if len(rows) == 0 {
		return
	}
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, heading, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.MultiCell(0, 5, row[0], "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		pdf.WriteLinkString(5, row[1], row[1])
		pdf.Ln(5)
		pdf.MultiCell(0, 5, row[2], "", "L", false)
		pdf.Ln(2)
	}
}

func level1Rows(pages []model.ScoredPage) [][3]string {
	rows := make([][3]string, 0, len(pages))
	for _, p := range pages {
		rows = append(rows, [3]string{p.Title, p.URL, fmt.Sprintf("relevance %.2f, %d outlinks, %dms", p.Relevance, len(p.Outlinks), p.FetchElapsedMS)})
	}
	return rows
}

func level2Rows(pages []model.ScoredPage) [][3]string {
	rows := make([][3]string, 0, len(pages))
	for _, p := range pages {
		rows = append(rows, [3]string{p.Title, p.URL, fmt.Sprintf("relevance %.2f, parent %s, %dms", p.Relevance, p.ParentURL, p.FetchElapsedMS)})
	}
	return rows
}

func writeFailureTable(pdf *gofpdf.Fpdf, failures []model.Failure) {
	if len(failures) == 0 {
		return
	}
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 8, "Failures", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, f := range failures {
		line := fmt.Sprintf("[level %d] %s — %s (%s)", f.Level, f.URL, f.Status, f.ErrorKind)
		if f.HTTPCode != 0 {
			line = fmt.Sprintf("%s, http %d", line, f.HTTPCode)
		}
		pdf.MultiCell(0, 5, line, "", "L", false)
	}
}
