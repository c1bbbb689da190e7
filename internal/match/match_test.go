package match

import (
	"testing"

	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/pageindex"
)

func word(id, text string, page int, left, top float64) ocr.Block {
	return ocr.Block{
		ID: id, BlockType: ocr.BlockTypeWord, Text: text, Page: page,
		Geometry: ocr.Geometry{BoundingBox: ocr.BoundingBox{Left: left, Top: top, Width: 0.05, Height: 0.03}},
	}
}

func line(id, text string, page int, left, top, width float64) ocr.Block {
	return ocr.Block{
		ID: id, BlockType: ocr.BlockTypeLine, Text: text, Page: page,
		Geometry: ocr.Geometry{BoundingBox: ocr.BoundingBox{Left: left, Top: top, Width: width, Height: 0.03}},
	}
}

func ids(blocks []ocr.Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.ID
	}
	return out
}

func assertIDs(t *testing.T, got []ocr.Block, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("got blocks %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("got blocks %v, want %v", g, want)
		}
	}
}

func TestSelectedTier(t *testing.T) {
	tests := []struct {
		query string
		want  Tier
	}{
		{"ok", TierShortWord},
		{"abc", TierShortWord},
		{"abcd", TierPhrase},
		{"a b", TierPhrase},
		{"c++", TierSpecialChar},
		{"c#", TierSpecialChar},
		{"$5", TierSpecialChar},
		{"a@b.com", TierSpecialChar},
		{"50% off", TierSpecialChar},
		{"invoice total", TierPhrase},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := SelectedTier(Normalize(tt.query)); got != tt.want {
				t.Errorf("SelectedTier(%q) = %s, want %s", tt.query, got, tt.want)
			}
		})
	}
}

func TestSearch_SpecialCharTakesPrecedenceOverShortWord(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{word("w1", "C++", 1, 0.1, 0.1)})
	res := Search(idx, "c++")
	if res.Tier != TierSpecialChar {
		t.Errorf("expected special_char tier, got %s", res.Tier)
	}
	assertIDs(t, res.Blocks, "w1")
}

func TestSearch_ShortWordPunctuationBoundary(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{
		word("w1", "ok,", 1, 0.1, 0.1),
		word("w2", "okay", 1, 0.2, 0.1),
		word("w3", "OK", 1, 0.3, 0.1),
		word("w4", "ok!", 1, 0.4, 0.1),
		word("w5", "ok.,", 1, 0.5, 0.1),
	})

	res := Search(idx, "  OK ")
	if res.Tier != TierShortWord {
		t.Errorf("expected short_word tier, got %s", res.Tier)
	}
	assertIDs(t, res.Blocks, "w1", "w3")
}

func TestSearch_ShortWordIgnoresLines(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{line("l1", "ok", 1, 0.1, 0.1, 0.2)})
	if res := Search(idx, "ok"); len(res.Blocks) != 0 {
		t.Errorf("short tier must only scan words, got %v", ids(res.Blocks))
	}
}

func TestSearch_PhraseReturnsWholeGroup(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{
		line("l1", "Total due now", 1, 0.1, 0.1, 0.5),
		word("w1", "total", 1, 0.1, 0.1),
		word("w2", "due", 1, 0.2, 0.1),
		word("w3", "now", 1, 0.3, 0.1),
	})

	res := Search(idx, "due now")
	if res.Tier != TierPhrase {
		t.Errorf("expected phrase tier, got %s", res.Tier)
	}
	assertIDs(t, res.Blocks, "w1", "w2", "w3")
}

func TestSearch_PhraseCollectsEveryMatchingGroup(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{
		line("l1", "amount due", 1, 0.1, 0.1, 0.5),
		word("w1", "amount", 1, 0.1, 0.1),
		word("w2", "due", 1, 0.2, 0.1),
		line("l2", "amount due", 2, 0.1, 0.5, 0.5),
		word("w3", "amount", 2, 0.1, 0.5),
		word("w4", "due", 2, 0.2, 0.5),
	})
	assertIDs(t, Search(idx, "amount due").Blocks, "w1", "w2", "w3", "w4")
}

func TestSearch_PhraseFallsBackToLines(t *testing.T) {
	// The words sit outside the line box, so no group contains them.
	idx := pageindex.Build([]ocr.Block{
		line("l1", "Payment terms net thirty", 1, 0.1, 0.1, 0.5),
		word("w1", "payment", 1, 0.1, 0.6),
		word("w2", "terms", 1, 0.2, 0.6),
	})

	res := Search(idx, "terms net")
	if res.Tier != TierLine {
		t.Errorf("expected line tier, got %s", res.Tier)
	}
	assertIDs(t, res.Blocks, "l1")
}

func TestSearch_SpecialUnionsWordsAndLines(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{
		line("l1", "Email: jane@acme.io", 1, 0.1, 0.1, 0.5),
		word("w1", "Email:", 1, 0.1, 0.1),
		word("w2", "jane@acme.io", 1, 0.2, 0.1),
	})

	res := Search(idx, "jane@acme.io")
	if res.Tier != TierSpecialChar {
		t.Errorf("expected special_char tier, got %s", res.Tier)
	}
	assertIDs(t, res.Blocks, "w2", "l1")
}

func TestSearch_SpecialPrefixToleratesMangledSymbols(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{
		word("w1", "C#/.NET", 1, 0.1, 0.1),
		word("w2", "c", 1, 0.2, 0.1),
		word("w3", "c+", 1, 0.3, 0.1),
	})

	assertIDs(t, Search(idx, "c++").Blocks, "w1", "w3")
}

func TestSearch_FallbackActivation(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{word("w1", "c", 1, 0.1, 0.1)})

	res := Search(idx, "C++")
	if res.Tier != TierFallback {
		t.Errorf("expected fallback tier, got %s", res.Tier)
	}
	assertIDs(t, res.Blocks, "w1")

	res = Search(idx, "c+")
	if len(res.Blocks) != 0 || res.Tier != TierNone {
		t.Errorf("c+ is not a technology term, got %v (%s)", ids(res.Blocks), res.Tier)
	}
}

func TestSearch_FallbackJavaScript(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{
		word("w1", "node.js", 1, 0.1, 0.1),
		word("w2", "html", 1, 0.2, 0.1),
	})
	res := Search(idx, "JavaScript")
	if res.Tier != TierFallback {
		t.Errorf("expected fallback tier, got %s", res.Tier)
	}
	assertIDs(t, res.Blocks, "w1")
}

func TestSearch_FallbackOnlyWhenSelectedTierEmpty(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{
		word("w1", "go", 1, 0.1, 0.1),
		word("w2", "golang", 1, 0.2, 0.1),
	})
	res := Search(idx, "go")
	if res.Tier != TierShortWord {
		t.Errorf("expected short_word tier, got %s", res.Tier)
	}
	assertIDs(t, res.Blocks, "w1")
}

func TestFallback_ClosedSet(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{word("w1", "kotlin", 1, 0.1, 0.1)})
	if got := Fallback(idx, "kot"); len(got) != 0 {
		t.Errorf("queries outside the table must not use the fallback, got %v", ids(got))
	}
	if !IsTechnologyTerm(".net") || IsTechnologyTerm("kotlin") {
		t.Error("unexpected technology term table contents")
	}

	idx = pageindex.Build([]ocr.Block{word("w1", "NET", 1, 0.1, 0.1)})
	assertIDs(t, Fallback(idx, ".NET"), "w1")
}

func TestSearch_EmptyInputs(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{word("w1", "total", 1, 0.1, 0.1)})

	for _, q := range []string{"", "   "} {
		if res := Search(idx, q); len(res.Blocks) != 0 || res.Tier != TierNone {
			t.Errorf("query %q should yield nothing, got %v", q, ids(res.Blocks))
		}
	}
	if res := Search(pageindex.Build(nil), "total"); len(res.Blocks) != 0 {
		t.Errorf("empty index should yield nothing, got %v", ids(res.Blocks))
	}
	if res := Search(nil, "total"); len(res.Blocks) != 0 {
		t.Errorf("nil index should yield nothing, got %v", ids(res.Blocks))
	}
}

func TestSearch_DeduplicatesByID(t *testing.T) {
	// Two overlapping lines contain the same words.
	idx := pageindex.Build([]ocr.Block{
		line("l1", "grand total", 1, 0.1, 0.1, 0.5),
		line("l2", "grand total", 1, 0.1, 0.1, 0.5),
		word("w1", "grand", 1, 0.1, 0.1),
		word("w2", "total", 1, 0.2, 0.1),
		word("", "total", 1, 0.4, 0.1),
	})

	res := Search(idx, "grand total")
	got := ids(res.Blocks)
	want := []string{"w1", "w2", "", ""}
	if len(got) != len(want) {
		t.Fatalf("expected w1, w2 once and the id-less word once per group, got %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestSelect_SkipsFallback(t *testing.T) {
	idx := pageindex.Build([]ocr.Block{word("w1", "c", 1, 0.1, 0.1)})
	if res := Select(idx, "c++"); len(res.Blocks) != 0 {
		t.Errorf("Select must not run the fallback, got %v", ids(res.Blocks))
	}
}
