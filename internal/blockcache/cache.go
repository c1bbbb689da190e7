// Package blockcache keeps the OCR blocks of recently viewed documents in
// memory, keyed by (organization, document). Each key is fetched from the
// collaborator at most once while an entry exists, concurrent loads of the
// same key share one fetch, and failures are never cached.
package blockcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	herrors "github.com/adverant/nexus/ocr-highlight-worker/internal/errors"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/logging"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/pageindex"
	"golang.org/x/sync/singleflight"
)

// ErrStaleLoad is returned to waiters of a fetch that finished after Reset.
// The fetched blocks are discarded.
var ErrStaleLoad = errors.New("blockcache: load superseded by reset")

// Fetcher is the block-fetch collaborator.
type Fetcher interface {
	FetchBlocks(ctx context.Context, orgID, docID string) ([]ocr.Block, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, orgID, docID string) ([]ocr.Block, error)

func (f FetcherFunc) FetchBlocks(ctx context.Context, orgID, docID string) ([]ocr.Block, error) {
	return f(ctx, orgID, docID)
}

// Key identifies one document's block list.
type Key struct {
	OrganizationID string
	DocumentID     string
}

func (k Key) String() string {
	return k.OrganizationID + "/" + k.DocumentID
}

// Entry is a loaded block list with its page index built once on insert.
type Entry struct {
	Key      Key
	Blocks   []ocr.Block
	Index    *pageindex.Index
	LoadedAt time.Time
}

// Config holds cache configuration
type Config struct {
	Fetcher      Fetcher
	FetchTimeout time.Duration // default 30s
}

// Cache is owned by its caller; independent caches never share entries.
type Cache struct {
	fetcher      Fetcher
	fetchTimeout time.Duration
	logger       *logging.Logger

	group singleflight.Group

	mu         sync.RWMutex
	entries    map[Key]*Entry
	current    *Entry
	generation uint64
	epochs     map[Key]uint64
}

// loadToken pins a fetch to the cache state it started from. Reset bumps
// gen for every key, Invalidate bumps epoch for one.
type loadToken struct {
	gen   uint64
	epoch uint64
}

// New creates a cache that loads through cfg.Fetcher
func New(cfg *Config) (*Cache, error) {
	if cfg == nil || cfg.Fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Cache{
		fetcher:      cfg.Fetcher,
		fetchTimeout: timeout,
		logger:       logging.NewLogger("BlockCache"),
		entries:      make(map[Key]*Entry),
		epochs:       make(map[Key]uint64),
	}, nil
}

// Load makes the blocks for (orgID, docID) available, fetching them only if
// no entry exists. It is idempotent per key.
func (c *Cache) Load(ctx context.Context, orgID, docID string) error {
	_, err := c.Get(ctx, orgID, docID)
	return err
}

// Get returns the entry for (orgID, docID), loading it if needed. A caller
// whose ctx ends stops waiting; the shared fetch keeps running for others.
func (c *Cache) Get(ctx context.Context, orgID, docID string) (*Entry, error) {
	key := Key{OrganizationID: orgID, DocumentID: docID}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.current = e
		c.mu.Unlock()
		return e, nil
	}
	tok := c.tokenLocked(key)
	c.mu.Unlock()

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(tok, key), func() (interface{}, error) {
		return c.fetch(fetchCtx, key, tok)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		e := res.Val.(*Entry)
		c.mu.Lock()
		if c.entries[key] == e {
			c.current = e
		}
		c.mu.Unlock()
		return e, nil
	}
}

func (c *Cache) tokenLocked(key Key) loadToken {
	return loadToken{gen: c.generation, epoch: c.epochs[key]}
}

// flightKey scopes in-flight fetches to a token so loads issued after Reset
// or Invalidate never join a fetch that will be discarded.
func flightKey(tok loadToken, key Key) string {
	return fmt.Sprintf("%d.%d:%s", tok.gen, tok.epoch, key)
}

func (c *Cache) fetch(ctx context.Context, key Key, tok loadToken) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	start := time.Now()
	blocks, err := c.fetcher.FetchBlocks(ctx, key.OrganizationID, key.DocumentID)
	if err != nil {
		c.logger.Warn("block fetch failed", "key", key.String(), "error", err)
		return nil, herrors.NewOCRLoadError(key.OrganizationID, key.DocumentID, err)
	}

	entry := &Entry{
		Key:      key,
		Blocks:   blocks,
		Index:    pageindex.Build(blocks),
		LoadedAt: time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokenLocked(key) != tok {
		c.logger.Debug("dropping stale block fetch", "key", key.String())
		return nil, ErrStaleLoad
	}
	if existing, ok := c.entries[key]; ok {
		return existing, nil
	}
	c.entries[key] = entry

	pages, lines, words, groups := entry.Index.Stats()
	c.logger.Info("blocks loaded",
		"key", key.String(),
		"blocks", len(blocks),
		"pages", pages,
		"lines", lines,
		"words", words,
		"groups", groups,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return entry, nil
}

// Peek returns a loaded entry without fetching.
func (c *Cache) Peek(orgID, docID string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[Key{OrganizationID: orgID, DocumentID: docID}]
	return e, ok
}

// Blocks returns the loaded block list for a document.
func (c *Cache) Blocks(orgID, docID string) ([]ocr.Block, bool) {
	e, ok := c.Peek(orgID, docID)
	if !ok {
		return nil, false
	}
	return e.Blocks, true
}

// Current returns the most recently loaded entry, or nil.
func (c *Cache) Current() *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// CurrentBlocks returns the block list of the most recently loaded entry.
func (c *Cache) CurrentBlocks() []ocr.Block {
	if e := c.Current(); e != nil {
		return e.Blocks
	}
	return nil
}

// Invalidate drops one document's entry so the next load fetches again. A
// fetch of that document still in flight completes with ErrStaleLoad and
// writes nothing.
func (c *Cache) Invalidate(orgID, docID string) {
	key := Key{OrganizationID: orgID, DocumentID: docID}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.Key == key {
		c.current = nil
	}
	delete(c.entries, key)
	c.epochs[key]++
}

// Reset empties the cache. Fetches still in flight complete with ErrStaleLoad
// and write nothing.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*Entry)
	c.epochs = make(map[Key]uint64)
	c.current = nil
	c.generation++
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
