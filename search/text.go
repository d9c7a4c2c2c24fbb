package search

import (
	"strings"
	"unicode"
)

// stopWords carries no meaning in a verbatim match. Modal verbs and the
// connectives of regulatory drafting ("shall be", "in accordance with")
// would otherwise let any obligation match any control.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "nor": true,
	"of": true, "to": true, "in": true, "on": true, "at": true, "by": true,
	"for": true, "from": true, "with": true, "within": true, "into": true,
	"as": true, "that": true, "this": true, "these": true, "those": true,
	"which": true, "who": true, "whom": true, "where": true, "when": true,
	"it": true, "its": true, "their": true, "is": true, "are": true, "was": true,
	"be": true, "been": true, "being": true, "not": true, "no": true,
	"shall": true, "must": true, "should": true, "may": true, "will": true,
	"can": true, "could": true, "would": true, "do": true, "does": true,
	"have": true, "has": true, "any": true, "all": true, "each": true,
	"every": true, "such": true, "other": true, "accordance": true,
	"pursuant": true, "herein": true, "thereof": true,
}

// queryTerms lowercases text, splits it on whitespace and slashes, trims
// surrounding punctuation and drops stop words. Inner punctuation is kept
// so control codes such as "a.9.1.1" and "data-at-rest" stay whole.
func queryTerms(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '/'
	})
	terms := make([]string, 0, len(words))
	for _, word := range words {
		term := strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))
		if term != "" && !stopWords[term] {
			terms = append(terms, term)
		}
	}
	return terms
}

// coversQuery reports whether every query term appears in document.
// A query made only of stop words covers nothing.
func coversQuery(document, query string) bool {
	want := queryTerms(query)
	if len(want) == 0 {
		return false
	}

	have := make(map[string]bool)
	for _, term := range queryTerms(document) {
		have[term] = true
	}
	for _, term := range want {
		if !have[term] {
			return false
		}
	}
	return true
}
