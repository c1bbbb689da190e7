package match

import (
	"strings"

	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/pageindex"
)

// techTerm describes how one technology name is recovered from OCR output
// that split or mangled it. extra is an additional word predicate beyond the
// normalized-prefix rule.
type techTerm struct {
	extra func(word string) bool
}

// technologyTerms is the closed set of queries the fallback applies to.
// Queries outside this table never reach the lenient rules.
var technologyTerms = map[string]techTerm{
	"c++":        {extra: func(w string) bool { return w == "c" }},
	"javascript": {extra: func(w string) bool { return strings.Contains(w, "js") }},
	"typescript": {},
	"python":     {},
	"java":       {},
	"c#":         {},
	".net":       {},
	"ruby":       {},
	"go":         {},
	"rust":       {},
	"php":        {},
}

// IsTechnologyTerm reports whether a normalized query is in the fallback table.
func IsTechnologyTerm(q string) bool {
	_, ok := technologyTerms[q]
	return ok
}

// Fallback applies the lenient technology-term rules to a query. It returns
// nothing for queries outside the table.
func Fallback(idx *pageindex.Index, query string) []ocr.Block {
	q := Normalize(query)
	if q == "" || idx.Empty() {
		return nil
	}
	return fallback(idx, q)
}

func fallback(idx *pageindex.Index, q string) []ocr.Block {
	term, ok := technologyTerms[q]
	if !ok {
		return nil
	}
	normalized := stripChars(q, "+#.")

	var c collector
	for _, p := range idx.Pages {
		for _, w := range p.Words {
			if strings.HasPrefix(w.Text, normalized) || (term.extra != nil && term.extra(w.Text)) {
				c.add(w.Block)
			}
		}
	}
	return c.blocks
}
