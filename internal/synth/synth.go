// Package synth distills the scored pages collected by the Planner into a
// summary paragraph and a ranked list of key findings, then assembles the
// final model.ResearchResult (spec §4.5).
//
// The teacher's internal/synth.Synthesizer calls an LLM chat endpoint under
// a strict citation contract. This package keeps its shape — an injectable
// capability behind a narrow interface, a struct wrapping one call — but
// replaces the LLM body with the deterministic lexical procedure spec §4.5
// specifies, so the same query against the same scored pages always
// produces the same summary and findings.
package synth

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hyperifyio/webresearch/internal/model"
	"github.com/hyperifyio/webresearch/internal/score"
	"github.com/hyperifyio/webresearch/internal/urlnorm"
)

const (
	summaryTopK      = 5
	summarySentences = 3
	summaryMaxChars  = 1500
	keyFindingsTopM  = 10
)

// Summarizer is the capability the assembler depends on; the deterministic
// lexical implementation below is the default, but spec §9's open question
// on optional LLM-backed summarization is served by swapping this
// interface, not by branching inside Assemble.
type Summarizer interface {
	Summarize(query string, terms []string, level1, level2 []model.ScoredPage) (summary string, keyFindings []string)
}

// LexicalSummarizer implements Summarizer with no external calls, per
// spec §4.5.
type LexicalSummarizer struct{}

// Assembler produces the final ResearchResult from one Planner run.
type Assembler struct {
	Summarizer Summarizer
}

// NewAssembler returns an Assembler using the deterministic lexical
// Summarizer, the default per spec §4.5.
func NewAssembler() *Assembler {
	return &Assembler{Summarizer: LexicalSummarizer{}}
}

// Input bundles everything the Assembler needs from one Planner run.
type Input struct {
	Query                model.Query
	InitialHits          []model.SearchHit
	Level1Pages          []model.ScoredPage
	Level2Pages          []model.ScoredPage
	Failures             []model.Failure
	TotalLinksDiscovered int
	SearchFailed         bool
	StartedAt            time.Time
	FinishedAt           time.Time
}

// Assemble builds the final ResearchResult. It never returns an error: a
// failed search or an empty crawl still yields a complete, degraded result
// per spec §7's propagation policy.
func (a *Assembler) Assemble(in Input) model.ResearchResult {
	elapsed := in.FinishedAt.Sub(in.StartedAt).Seconds()

	result := model.ResearchResult{
		Query:                in.Query.Raw,
		StartedAt:            in.StartedAt,
		FinishedAt:           in.FinishedAt,
		ElapsedSeconds:       elapsed,
		InitialHits:          in.InitialHits,
		Level1Pages:          in.Level1Pages,
		Level2Pages:          in.Level2Pages,
		TotalPagesCrawled:    len(in.Level1Pages) + len(in.Level2Pages),
		TotalLinksDiscovered: in.TotalLinksDiscovered,
		Failures:             in.Failures,
	}

	if in.SearchFailed {
		result.Summary = ""
		result.KeyFindings = []string{"search-failure: the search provider returned no usable results for this query"}
		return result
	}

	summarizer := a.Summarizer
	if summarizer == nil {
		summarizer = LexicalSummarizer{}
	}
	summary, findings := summarizer.Summarize(in.Query.Raw, in.Query.Terms, in.Level1Pages, in.Level2Pages)
	result.Summary = summary
	result.KeyFindings = findings
	return result
}

// Summarize implements Summarizer per spec §4.5.
func (LexicalSummarizer) Summarize(query string, terms []string, level1, level2 []model.ScoredPage) (string, []string) {
	ordered := orderedPages(level1, level2)
	total := len(level1) + len(level2)

	summary := buildSummary(query, terms, ordered, total)
	findings := buildKeyFindings(terms, ordered)
	return summary, findings
}

// orderedPages returns level1 followed by level2, each already produced in
// arbitrary fetch-completion order, re-sorted by the §4.3 tie-breaking rule
// so summary and findings construction is deterministic.
func orderedPages(level1, level2 []model.ScoredPage) []model.ScoredPage {
	all := make([]model.ScoredPage, 0, len(level1)+len(level2))
	all = append(all, level1...)
	all = append(all, level2...)
	sort.SliceStable(all, func(i, j int) bool { return score.Less(all[i], all[j]) })
	return all
}

func buildSummary(query string, terms []string, pages []model.ScoredPage, totalPages int) string {
	domains := make(map[string]struct{})
	for _, p := range pages {
		domains[registrableOrHost(p.URL)] = struct{}{}
	}
	lead := fmt.Sprintf("Research on '%s' surveyed %d pages across %d domains.", query, totalPages, len(domains))

	if len(pages) == 0 {
		// Nothing was fetched, whether because the deadline expired before
		// any fetch ran or every fetch failed; an empty summary is more
		// honest than a lead sentence about zero pages.
		return ""
	}

	topK := pages
	if len(topK) > summaryTopK {
		topK = topK[:summaryTopK]
	}

	seenSentences := make(map[string]struct{})
	var b strings.Builder
	b.WriteString(lead)
	remaining := summaryMaxChars - b.Len()

	for _, p := range topK {
		if remaining <= 0 {
			break
		}
		window := sentenceWindow(p.Text, terms, summarySentences)
		for _, sentence := range window {
			key := strings.ToLower(sentence)
			if _, dup := seenSentences[key]; dup {
				continue
			}
			seenSentences[key] = struct{}{}
			chunk := " " + sentence
			if len(chunk) > remaining {
				break
			}
			b.WriteString(chunk)
			remaining -= len(chunk)
		}
	}
	return b.String()
}

func buildKeyFindings(terms []string, pages []model.ScoredPage) []string {
	topM := pages
	if len(topM) > keyFindingsTopM {
		topM = topM[:keyFindingsTopM]
	}

	seenHosts := make(map[string]struct{})
	findings := make([]string, 0, keyFindingsTopM)
	for _, p := range topM {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		host := registrableOrHost(p.URL)
		if _, dup := seenHosts[host]; dup {
			continue
		}
		seenHosts[host] = struct{}{}

		label := p.Title
		if strings.TrimSpace(label) == "" {
			label = host
		}
		lede := firstSentenceWithTerm(p.Text, terms)
		findings = append(findings, fmt.Sprintf("%s — %s (%s)", label, lede, p.URL))
	}
	return findings
}

// sentenceWindow returns up to n sentences from text that each contain at
// least one term, in document order.
func sentenceWindow(text string, terms []string, n int) []string {
	sentences := splitSentences(text)
	out := make([]string, 0, n)
	for _, s := range sentences {
		if len(out) >= n {
			break
		}
		if containsAnyTerm(s, terms) {
			out = append(out, s)
		}
	}
	return out
}

// firstSentenceWithTerm returns the first query-term-bearing sentence in
// text, falling back to the first sentence when none matches or text is
// empty.
func firstSentenceWithTerm(text string, terms []string) string {
	sentences := splitSentences(text)
	for _, s := range sentences {
		if containsAnyTerm(s, terms) {
			return s
		}
	}
	if len(sentences) > 0 {
		return sentences[0]
	}
	return ""
}

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	raw := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func containsAnyTerm(s string, terms []string) bool {
	lower := strings.ToLower(s)
	for _, t := range terms {
		if t != "" && strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func registrableOrHost(rawURL string) string {
	host := hostOf(rawURL)
	if d := urlnorm.RegistrableDomain(host); d != "" {
		return d
	}
	return host
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
