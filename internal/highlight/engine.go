package highlight

import (
	"context"
	"fmt"

	"github.com/adverant/nexus/ocr-highlight-worker/internal/blockcache"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/logging"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/match"
)

// DocumentRef names one document of one organization.
type DocumentRef struct {
	OrganizationID string
	DocumentID     string
}

// Engine resolves highlights against the documents held in a block cache.
type Engine struct {
	cache  *blockcache.Cache
	logger *logging.Logger
}

// NewEngine creates an engine over a caller-owned cache
func NewEngine(cache *blockcache.Cache) (*Engine, error) {
	if cache == nil {
		return nil, fmt.Errorf("block cache is required")
	}
	return &Engine{
		cache:  cache,
		logger: logging.NewLogger("HighlightEngine"),
	}, nil
}

// Cache exposes the underlying block cache.
func (e *Engine) Cache() *blockcache.Cache {
	return e.cache
}

// Warm loads a document's blocks if they are not cached yet.
func (e *Engine) Warm(ctx context.Context, ref DocumentRef) error {
	return e.cache.Load(ctx, ref.OrganizationID, ref.DocumentID)
}

// Resolve loads the document if needed and resolves query against it. Only
// the load can fail; the error is then an OCR load error.
func (e *Engine) Resolve(ctx context.Context, ref DocumentRef, query string, prov Provenance) (Info, match.Tier, error) {
	entry, err := e.cache.Get(ctx, ref.OrganizationID, ref.DocumentID)
	if err != nil {
		return Info{}, match.TierNone, err
	}
	info, tier := ResolveWithTier(entry.Index, query, prov)
	e.logger.Debug("highlight resolved",
		"document", entry.Key.String(),
		"prompt_id", prov.PromptID,
		"tier", tier,
		"blocks", len(info.Blocks),
	)
	return info, tier, nil
}

// ResolveLoaded resolves against an already cached document without any
// I/O. A document that is not loaded yields an empty highlight.
func (e *Engine) ResolveLoaded(ref DocumentRef, query string, prov Provenance) Info {
	entry, ok := e.cache.Peek(ref.OrganizationID, ref.DocumentID)
	if !ok {
		return Resolve(nil, query, prov)
	}
	return Resolve(entry.Index, query, prov)
}
