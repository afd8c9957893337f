// Package score implements the deterministic lexical relevance algorithm of
// spec §4.3. No pack repo scores crawled pages against a query, so this is
// new code; it follows the teacher's internal/budget package's style for
// small, pure numeric helpers (clamped arithmetic, table-driven tests) but
// has no third-party dependency to wire in — see DESIGN.md for why.
package score

import (
	"strings"

	"github.com/hyperifyio/webresearch/internal/model"
)

// Score computes relevance and per-term hit counts for page against the
// query terms, following spec §4.3 steps 1-5 exactly.
func Score(terms []string, title, text string) (float64, map[string]int) {
	bodyLower := strings.ToLower(text)
	titleLower := strings.ToLower(title)

	hitCounts := make(map[string]int, len(terms))
	covered := 0
	bodyHitsTotal := 0
	titleHitsTotal := 0

	for _, term := range terms {
		nBody := strings.Count(bodyLower, term)
		nTitle := strings.Count(titleLower, term)
		hitCounts[term] = nBody + nTitle
		if nBody+nTitle > 0 {
			covered++
		}
		bodyHitsTotal += nBody
		titleHitsTotal += nTitle
	}

	termCount := len(terms)
	if termCount == 0 {
		termCount = 1
	}
	coverage := float64(covered) / float64(termCount)

	denom := float64(len([]rune(bodyLower))) / 500.0
	if denom < 1 {
		denom = 1
	}
	density := float64(bodyHitsTotal) / denom
	if density > 1 {
		density = 1
	}

	titleBoost := float64(titleHitsTotal) / float64(termCount)
	if titleBoost > 1 {
		titleBoost = 1
	}

	relevance := 0.5*coverage + 0.3*density + 0.2*titleBoost
	relevance = clamp(0, 1, relevance)

	return relevance, hitCounts
}

func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Less implements the tie-breaking order of spec §4.3: relevance
// descending, then level ascending (Level-1 before Level-2), then origin
// rank ascending, then URL lexicographic ascending. It returns true if a
// sorts strictly before b under that order.
func Less(a, b model.ScoredPage) bool {
	if a.Relevance != b.Relevance {
		return a.Relevance > b.Relevance
	}
	if a.Level != b.Level {
		return a.Level < b.Level
	}
	if a.OriginRank != b.OriginRank {
		return a.OriginRank < b.OriginRank
	}
	return a.URL < b.URL
}
