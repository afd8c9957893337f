// Package planner drives the two-level breadth-first crawl of spec §4.4: it
// owns the frontier and the visited set exclusively (spec §9 Design Notes),
// funnels tasks to the Fetcher, applies the Extractor and Scorer to each
// successful fetch, and selects Level-2 candidates from Level-1 outlinks.
//
// The teacher's internal/planner.Planner is an LLM query/outline planner
// with no crawl of its own; this package keeps its shape — an interface
// plus one concrete driving type taking injected collaborators, logged with
// zerolog — but the body is new, grounded on the two-level worker-pool
// pattern in the retrieved blog-search crawler (bounded per-level work,
// one goroutine per task, a WaitGroup per level) and on the teacher's
// internal/aggregate/internal/select packages for URL dedup and
// diversity preference, repurposed here as the Level-2 admission order.
package planner

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/webresearch/internal/extract"
	"github.com/hyperifyio/webresearch/internal/model"
	"github.com/hyperifyio/webresearch/internal/score"
	"github.com/hyperifyio/webresearch/internal/search"
	"github.com/hyperifyio/webresearch/internal/urlnorm"
)

// Options configures one run. Field names mirror spec §6's option table.
type Options struct {
	MaxInitialResults int
	MaxLevel2PerPage  int
	MaxTotalPages     int // 0 = unlimited

	// Deadline bounds only the fetch/extract/score stage, applied once the
	// search call has returned (spec §8 invariant 7: a zero deadline still
	// lets the search succeed, but no Level-1 fetch ever starts).
	Deadline time.Duration
}

// Result is the raw collected output of a run, before synthesis.
type Result struct {
	InitialHits          []model.SearchHit
	Level1Pages          []model.ScoredPage
	Level2Pages          []model.ScoredPage
	Failures             []model.Failure
	TotalLinksDiscovered int
	SearchFailed         bool
}

// Fetcher is the capability the Planner needs from the fetch engine.
type Fetcher interface {
	Fetch(ctx context.Context, task model.CrawlTask) model.FetchOutcome
}

// Planner drives the BFS described in spec §4.4.
type Planner struct {
	Search  search.Provider
	Fetch   Fetcher
	Options Options
}

// Run executes one full search -> crawl -> expand -> crawl pass. ctx governs
// the search call and process-level cancellation; the fetch/extract/score
// stage is separately bound by Options.Deadline once the search returns, so
// a zero deadline still lets the search complete (spec §8 invariant 7). Run
// returns whatever was collected when the deadline fires, never an error,
// per spec §7's propagation policy (the only outward error is
// configuration-error, surfaced earlier).
func (p *Planner) Run(ctx context.Context, q model.Query) Result {
	limit := p.Options.MaxInitialResults
	if limit <= 0 {
		limit = 20
	}
	hits, err := p.Search.Search(ctx, q.Raw, limit)
	if err != nil || len(hits) == 0 {
		if err != nil {
			log.Warn().Err(err).Str("query", q.Raw).Msg("search provider failed")
		} else {
			log.Warn().Str("query", q.Raw).Msg("search provider returned zero hits")
		}
		return Result{SearchFailed: true}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.Options.Deadline)
	defer cancel()

	searchHits := make([]model.SearchHit, 0, len(hits))
	for i, h := range hits {
		rank := h.Rank
		if rank == 0 && i > 0 {
			rank = i
		}
		searchHits = append(searchHits, model.SearchHit{URL: h.URL, Title: h.Title, Snippet: h.Snippet, Rank: rank})
	}

	run := &runState{
		planner:     p,
		terms:       q.Terms,
		initialHits: searchHits,
		visited:     newVisitedSet(),
		maxTotal:    int64(p.Options.MaxTotalPages),
	}

	// Every Level-1 URL is claimed in the visited set before any fetch
	// starts, so no Level-1 page can admit another search hit as Level-2.
	level1Tasks := make([]model.CrawlTask, 0, len(searchHits))
	level1Ranks := make([]int, 0, len(searchHits))
	for _, hit := range searchHits {
		norm, err := urlnorm.Normalize(hit.URL)
		if err != nil {
			run.recordFailure(model.Failure{URL: hit.URL, Level: model.Level1, Status: model.StatusSkipped, ErrorKind: model.ErrorKindNetwork})
			continue
		}
		if !run.visited.addIfAbsent(norm) {
			// Already present among the initial hits themselves: spec §4.4
			// step 2 preserves order but does not require re-processing a
			// duplicate URL.
			continue
		}
		level1Tasks = append(level1Tasks, model.CrawlTask{URL: norm, Level: model.Level1, OriginSnippet: hit.Snippet})
		level1Ranks = append(level1Ranks, hit.Rank)
	}
	run.l1wg.Add(len(level1Tasks))
	for i, task := range level1Tasks {
		go run.processLevel1(fetchCtx, task, level1Ranks[i])
	}

	run.l1wg.Wait()
	run.l2wg.Wait()

	run.sortResults()
	return run.result()
}

// runState holds the mutable state of one Run call.
type runState struct {
	planner *Planner

	terms       []string
	initialHits []model.SearchHit
	visited     *visitedSet
	maxTotal    int64
	admitted    int64 // atomic: pages admitted toward maxTotal

	l1wg sync.WaitGroup
	l2wg sync.WaitGroup

	mu       sync.Mutex
	level1   []model.ScoredPage
	level2   []model.ScoredPage
	failures []model.Failure
	links    int
}

func (r *runState) recordFailure(f model.Failure) {
	r.mu.Lock()
	r.failures = append(r.failures, f)
	r.mu.Unlock()
}

func (r *runState) addLevel1(sp model.ScoredPage) {
	r.mu.Lock()
	r.level1 = append(r.level1, sp)
	r.mu.Unlock()
}

func (r *runState) addLevel2(sp model.ScoredPage) {
	r.mu.Lock()
	r.level2 = append(r.level2, sp)
	r.mu.Unlock()
}

func (r *runState) addLinksDiscovered(n int) {
	r.mu.Lock()
	r.links += n
	r.mu.Unlock()
}

// reserveSlot enforces max_total_pages across both levels. It returns false
// when the cap is already reached, in which case the caller must not fetch.
func (r *runState) reserveSlot() bool {
	if r.maxTotal <= 0 {
		return true
	}
	for {
		cur := atomic.LoadInt64(&r.admitted)
		if cur >= r.maxTotal {
			return false
		}
		if atomic.CompareAndSwapInt64(&r.admitted, cur, cur+1) {
			return true
		}
	}
}

func (r *runState) result() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Result{
		InitialHits:          r.initialHits,
		Level1Pages:          r.level1,
		Level2Pages:          r.level2,
		Failures:             r.failures,
		TotalLinksDiscovered: r.links,
	}
}

func (r *runState) sortResults() {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.SliceStable(r.level1, func(i, j int) bool { return score.Less(r.level1[i], r.level1[j]) })
	sort.SliceStable(r.level2, func(i, j int) bool { return score.Less(r.level2[i], r.level2[j]) })
}

func (r *runState) processLevel1(ctx context.Context, task model.CrawlTask, rank int) {
	defer r.l1wg.Done()

	if !r.reserveSlot() {
		r.recordFailure(model.Failure{URL: task.URL, Level: model.Level1, Status: model.StatusSkipped, ErrorKind: model.ErrorKindNone})
		return
	}

	outcome := r.planner.Fetch.Fetch(ctx, task)
	elapsed := outcome.ElapsedMS
	if outcome.Status != model.StatusOK {
		r.recordFailure(model.Failure{URL: task.URL, Level: model.Level1, Status: outcome.Status, HTTPCode: outcome.HTTPCode, ErrorKind: outcome.ErrorKind})
		return
	}

	base, err := url.Parse(task.URL)
	if err != nil {
		r.recordFailure(model.Failure{URL: task.URL, Level: model.Level1, Status: model.StatusExtractFailed, ErrorKind: model.ErrorKindExtract})
		return
	}
	doc, ok := extract.FromHTML(outcome.BodyBytes, base)
	if !ok {
		r.recordFailure(model.Failure{URL: task.URL, Level: model.Level1, Status: model.StatusExtractFailed, ErrorKind: model.ErrorKindExtract})
		return
	}

	r.addLinksDiscovered(len(doc.Outlinks))

	page := model.Page{
		URL: task.URL, Level: model.Level1, Title: doc.Title, Text: doc.Text,
		Outlinks: doc.URLs(), FetchElapsedMS: elapsed, OriginRank: rank,
	}
	relevance, hitCounts := score.Score(r.queryTerms(), page.Title, page.Text)
	sp := model.ScoredPage{Page: page, Relevance: relevance, TermHitCounts: hitCounts}
	r.addLevel1(sp)

	parentDomain := urlnorm.RegistrableDomain(base.Hostname())
	candidates := selectLevel2(task.URL, parentDomain, doc.Outlinks, r.queryTerms(), r.planner.Options.MaxLevel2PerPage, r.visited)
	r.l2wg.Add(len(candidates))
	for _, childURL := range candidates {
		go r.processLevel2(ctx, task.URL, childURL)
	}
}

func (r *runState) processLevel2(ctx context.Context, parentURL, childURL string) {
	defer r.l2wg.Done()

	if !r.reserveSlot() {
		r.recordFailure(model.Failure{URL: childURL, Level: model.Level2, Status: model.StatusSkipped, ErrorKind: model.ErrorKindNone})
		return
	}

	task := model.CrawlTask{URL: childURL, Level: model.Level2, ParentURL: parentURL}
	outcome := r.planner.Fetch.Fetch(ctx, task)
	if outcome.Status != model.StatusOK {
		r.recordFailure(model.Failure{URL: childURL, Level: model.Level2, Status: outcome.Status, HTTPCode: outcome.HTTPCode, ErrorKind: outcome.ErrorKind})
		return
	}

	base, err := url.Parse(childURL)
	if err != nil {
		r.recordFailure(model.Failure{URL: childURL, Level: model.Level2, Status: model.StatusExtractFailed, ErrorKind: model.ErrorKindExtract})
		return
	}
	doc, ok := extract.FromHTML(outcome.BodyBytes, base)
	if !ok {
		r.recordFailure(model.Failure{URL: childURL, Level: model.Level2, Status: model.StatusExtractFailed, ErrorKind: model.ErrorKindExtract})
		return
	}

	// No Level-3 expansion: Level-2 outlinks are discarded, per spec §4.4
	// step 5.
	page := model.Page{
		URL: childURL, Level: model.Level2, ParentURL: parentURL,
		Title: doc.Title, Text: doc.Text, FetchElapsedMS: outcome.ElapsedMS,
	}
	relevance, hitCounts := score.Score(r.queryTerms(), page.Title, page.Text)
	r.addLevel2(model.ScoredPage{Page: page, Relevance: relevance, TermHitCounts: hitCounts})
}

func (r *runState) queryTerms() []string {
	return r.terms
}

// selectLevel2 applies spec §4.4 step 4's filter-then-prefer rule: http/https
// only (already guaranteed by urlnorm.Resolve), not the parent URL, not
// already visited, preferring cross-host links, then term-matching links,
// then original document order, each tier internally in document order, and
// claiming the visited set so a URL is admitted at most once across the run.
func selectLevel2(parentURL, parentDomain string, outlinks []extract.Outlink, terms []string, maxPerPage int, visited *visitedSet) []string {
	if maxPerPage <= 0 {
		return nil
	}
	type candidate struct {
		url       string
		crossHost bool
		termMatch bool
	}
	candidates := make([]candidate, 0, len(outlinks))
	for _, o := range outlinks {
		if o.URL == parentURL {
			continue
		}
		u, err := url.Parse(o.URL)
		if err != nil {
			continue
		}
		crossHost := urlnorm.RegistrableDomain(u.Hostname()) != parentDomain
		termMatch := containsAnyTerm(o.AnchorText, terms) || containsAnyTerm(u.Path, terms)
		candidates = append(candidates, candidate{url: o.URL, crossHost: crossHost, termMatch: termMatch})
	}

	tiered := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.crossHost {
			tiered = append(tiered, c)
		}
	}
	for _, c := range candidates {
		if !c.crossHost && c.termMatch {
			tiered = append(tiered, c)
		}
	}
	for _, c := range candidates {
		if !c.crossHost && !c.termMatch {
			tiered = append(tiered, c)
		}
	}

	out := make([]string, 0, maxPerPage)
	for _, c := range tiered {
		if len(out) >= maxPerPage {
			break
		}
		if !visited.addIfAbsent(c.url) {
			continue
		}
		out = append(out, c.url)
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

// visitedSet is the single, exclusively-owned record of every URL admitted
// to the frontier across both BFS levels (spec §4.4, §9 Design Notes).
type visitedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: make(map[string]struct{})}
}

// addIfAbsent atomically claims url; it returns true the first time url is
// seen and false on every subsequent call.
func (v *visitedSet) addIfAbsent(u string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[u]; ok {
		return false
	}
	v.seen[u] = struct{}{}
	return true
}
