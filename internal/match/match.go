// Package match selects a matching tier from the shape of a query and runs it
// against a page index. When the selected tier finds nothing, a narrow
// technology-term fallback is tried.
package match

import (
	"strings"
	"unicode/utf8"

	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/pageindex"
)

// Tier identifies which strategy produced a result.
type Tier string

const (
	TierNone        Tier = "none"
	TierShortWord   Tier = "short_word"
	TierSpecialChar Tier = "special_char"
	TierPhrase      Tier = "phrase"
	TierLine        Tier = "line"
	TierFallback    Tier = "fallback"
)

const (
	specialChars     = "+#*@$&%"
	shortQueryLen    = 4
	trailingPunct    = ",.;:"
	prefixStripChars = "+#"
)

// Result is the outcome of a search. Blocks is never nil-vs-empty
// significant: an empty result is a normal outcome.
type Result struct {
	Blocks []ocr.Block
	Tier   Tier
}

// Normalize lowercases and trims a query.
func Normalize(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Search runs the selected tier and, if it yields nothing, the fallback.
func Search(idx *pageindex.Index, query string) Result {
	q := Normalize(query)
	if q == "" || idx.Empty() {
		return Result{Tier: TierNone}
	}
	if res := selectTier(idx, q); len(res.Blocks) > 0 {
		return res
	}
	if blocks := fallback(idx, q); len(blocks) > 0 {
		return Result{Blocks: blocks, Tier: TierFallback}
	}
	return Result{Tier: TierNone}
}

// Select runs only the tier chosen for the query, without the fallback.
func Select(idx *pageindex.Index, query string) Result {
	q := Normalize(query)
	if q == "" || idx.Empty() {
		return Result{Tier: TierNone}
	}
	return selectTier(idx, q)
}

// SelectedTier reports the primary tier a normalized query is routed to.
// The phrase tier may still resolve through its line fallback.
func SelectedTier(q string) Tier {
	switch {
	case hasSpecialChar(q):
		return TierSpecialChar
	case isShortWord(q):
		return TierShortWord
	default:
		return TierPhrase
	}
}

func selectTier(idx *pageindex.Index, q string) Result {
	switch SelectedTier(q) {
	case TierSpecialChar:
		return Result{Blocks: matchSpecial(idx, q), Tier: TierSpecialChar}
	case TierShortWord:
		return Result{Blocks: matchShortWord(idx, q), Tier: TierShortWord}
	default:
		return matchPhrase(idx, q)
	}
}

func hasSpecialChar(q string) bool {
	return strings.ContainsAny(q, specialChars)
}

func isShortWord(q string) bool {
	return utf8.RuneCountInString(q) < shortQueryLen && !strings.Contains(q, " ")
}

// matchShortWord accepts exact word matches and the same word followed by a
// single trailing punctuation mark. Prefixes never match.
func matchShortWord(idx *pageindex.Index, q string) []ocr.Block {
	var c collector
	for _, p := range idx.Pages {
		for _, w := range p.Words {
			if w.Text == q || (len(w.Text) == len(q)+1 &&
				strings.HasPrefix(w.Text, q) &&
				strings.ContainsRune(trailingPunct, rune(w.Text[len(q)]))) {
				c.add(w.Block)
			}
		}
	}
	return c.blocks
}

func matchSpecial(idx *pageindex.Index, q string) []ocr.Block {
	stripped := stripChars(q, prefixStripChars)
	var c collector
	for _, p := range idx.Pages {
		for _, w := range p.Words {
			if strings.Contains(w.Text, q) || specialPrefixMatch(w.Text, stripped) {
				c.add(w.Block)
			}
		}
		for _, l := range p.Lines {
			if strings.Contains(l.Text, q) {
				c.add(l.Block)
			}
		}
	}
	return c.blocks
}

// specialPrefixMatch tolerates OCR dropping or doubling '+'/'#' in a token
// like "c++" or "c#". The word must still carry one of those characters:
// without that, "c+" would match a bare "c", a case reserved for the c++
// entry of the technology fallback table.
func specialPrefixMatch(word, stripped string) bool {
	if stripped == "" || !strings.ContainsAny(word, prefixStripChars) {
		return false
	}
	return strings.HasPrefix(stripChars(word, prefixStripChars), stripped)
}

// matchPhrase searches proximity groups on every page first; only when no
// group matches anywhere does it fall back to whole lines.
func matchPhrase(idx *pageindex.Index, q string) Result {
	var c collector
	for _, p := range idx.Pages {
		for _, g := range p.Groups {
			if !strings.Contains(g.Text, q) {
				continue
			}
			for _, w := range g.Words {
				c.add(w.Block)
			}
		}
	}
	if len(c.blocks) > 0 {
		return Result{Blocks: c.blocks, Tier: TierPhrase}
	}

	for _, p := range idx.Pages {
		for _, l := range p.Lines {
			if strings.Contains(l.Text, q) {
				c.add(l.Block)
			}
		}
	}
	return Result{Blocks: c.blocks, Tier: TierLine}
}

func stripChars(s, chars string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(chars, r) {
			return -1
		}
		return r
	}, s)
}

// collector accumulates matched blocks in order, dropping repeats of a block
// id. Blocks without an id are always kept.
type collector struct {
	blocks []ocr.Block
	seen   map[string]struct{}
}

func (c *collector) add(b ocr.Block) {
	if b.ID != "" {
		if c.seen == nil {
			c.seen = make(map[string]struct{})
		}
		if _, dup := c.seen[b.ID]; dup {
			return
		}
		c.seen[b.ID] = struct{}{}
	}
	c.blocks = append(c.blocks, b)
}
