// Package pageindex partitions a document's OCR blocks by page and kind and
// derives proximity groups: the words geometrically contained in each line.
package pageindex

import (
	"sort"
	"strings"

	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr"
)

// Entry pairs a block with its lowercased text. Case is fixed here so every
// query compares against the same representation.
type Entry struct {
	Text  string
	Block ocr.Block
}

// ProximityGroup is the set of words contained in one line's bounding box.
// Text is the space-joined lowercased word text in word-bucket order.
type ProximityGroup struct {
	Line  Entry
	Words []Entry
	Text  string
}

// Page holds the matchable content of a single page.
type Page struct {
	Number int
	Lines  []Entry
	Words  []Entry
	Groups []ProximityGroup
}

// Index is the per-document search structure. It is immutable once built
// and safe for concurrent readers.
type Index struct {
	Pages []*Page
}

// Build derives an Index from a flat block list. It never fails: blocks
// without text (PAGE blocks) and unknown kinds are skipped.
func Build(blocks []ocr.Block) *Index {
	byPage := make(map[int]*Page)
	for _, b := range blocks {
		if !b.HasText() {
			continue
		}
		p, ok := byPage[b.Page]
		if !ok {
			p = &Page{Number: b.Page}
			byPage[b.Page] = p
		}
		entry := Entry{Text: strings.ToLower(b.Text), Block: b}
		switch b.BlockType {
		case ocr.BlockTypeLine:
			p.Lines = append(p.Lines, entry)
		case ocr.BlockTypeWord:
			p.Words = append(p.Words, entry)
		}
	}

	idx := &Index{Pages: make([]*Page, 0, len(byPage))}
	for _, p := range byPage {
		p.Groups = buildGroups(p.Lines, p.Words)
		idx.Pages = append(idx.Pages, p)
	}
	sort.Slice(idx.Pages, func(i, j int) bool { return idx.Pages[i].Number < idx.Pages[j].Number })
	return idx
}

func buildGroups(lines, words []Entry) []ProximityGroup {
	var groups []ProximityGroup
	for _, line := range lines {
		lineBox := line.Block.Geometry.BoundingBox
		var members []Entry
		for _, w := range words {
			if lineBox.Contains(w.Block.Geometry.BoundingBox, ocr.Epsilon) {
				members = append(members, w)
			}
		}
		if len(members) == 0 {
			continue
		}
		texts := make([]string, len(members))
		for i, m := range members {
			texts[i] = m.Text
		}
		groups = append(groups, ProximityGroup{
			Line:  line,
			Words: members,
			Text:  strings.Join(texts, " "),
		})
	}
	return groups
}

// Empty reports whether the index has nothing to match against.
func (idx *Index) Empty() bool {
	return idx == nil || len(idx.Pages) == 0
}

// Page returns the page with the given 1-based number.
func (idx *Index) Page(number int) (*Page, bool) {
	if idx == nil {
		return nil, false
	}
	for _, p := range idx.Pages {
		if p.Number == number {
			return p, true
		}
	}
	return nil, false
}

// Stats summarizes index size for logging.
func (idx *Index) Stats() (pages, lines, words, groups int) {
	if idx == nil {
		return 0, 0, 0, 0
	}
	for _, p := range idx.Pages {
		lines += len(p.Lines)
		words += len(p.Words)
		groups += len(p.Groups)
	}
	return len(idx.Pages), lines, words, groups
}
