// Package query turns a raw natural-language research question into the
// tokenized, deduplicated term set the Scorer needs. Parsing is
// deterministic and lexical only, in keeping with the deterministic-by-
// default stance the rest of the pipeline takes (no semantic NLP).
package query

import (
	"regexp"
	"strings"

	"github.com/hyperifyio/webresearch/internal/model"
)

// stopWords is a small, static English stop-word list. It is intentionally
// conservative: when in doubt a word is kept, since the Scorer's coverage
// term treats every term equally and a missed stop word only dilutes
// coverage rather than corrupting it.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"by": {}, "for": {}, "from": {}, "has": {}, "have": {}, "how": {},
	"in": {}, "into": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "our": {}, "that": {}, "the": {}, "their": {}, "this": {},
	"to": {}, "was": {}, "were": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "who": {}, "why": {}, "will": {}, "with": {}, "you": {},
	"your": {},
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+`)

// New tokenizes raw into a Query: lowercase, split on non-alphanumerics,
// drop stop words, and deduplicate while preserving first-occurrence order.
func New(raw string) model.Query {
	lower := strings.ToLower(raw)
	tokens := tokenRe.FindAllString(lower, -1)

	seen := make(map[string]struct{}, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return model.Query{Raw: raw, Terms: terms}
}
