// Package highlight turns an extracted field value into the OCR blocks a
// viewer should outline, tagged with the prompt and key that produced it.
package highlight

import (
	"github.com/adverant/nexus/ocr-highlight-worker/internal/match"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/pageindex"
)

// Provenance identifies the extraction field a query came from.
type Provenance struct {
	PromptID string
	Key      string
}

// Info is the highlight handed to the rendering layer. Blocks is empty, not
// nil, when nothing matched.
type Info struct {
	Blocks   []ocr.Block `json:"blocks"`
	PromptID string      `json:"promptId"`
	Key      string      `json:"key,omitempty"`
	Value    string      `json:"value"`
}

// Resolve searches idx for query and wraps the outcome with its provenance.
// It never fails; an unmatched query yields an Info with no blocks.
func Resolve(idx *pageindex.Index, query string, prov Provenance) Info {
	info, _ := ResolveWithTier(idx, query, prov)
	return info
}

// ResolveWithTier is Resolve that also reports the tier that matched.
func ResolveWithTier(idx *pageindex.Index, query string, prov Provenance) (Info, match.Tier) {
	res := match.Search(idx, query)
	blocks := res.Blocks
	if blocks == nil {
		blocks = []ocr.Block{}
	}
	return Info{
		Blocks:   blocks,
		PromptID: prov.PromptID,
		Key:      prov.Key,
		Value:    query,
	}, res.Tier
}
