package blockcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	herrors "github.com/adverant/nexus/ocr-highlight-worker/internal/errors"
	"github.com/adverant/nexus/ocr-highlight-worker/internal/ocr"
)

const (
	orgID = "0b8f8e36-7a55-4f39-9c0e-1a1c6f1f2d11"
	docA  = "4a0d8b1e-2f5b-4c1d-8f55-6d7e7a5b9c01"
	docB  = "4a0d8b1e-2f5b-4c1d-8f55-6d7e7a5b9c02"
)

// fakeFetcher counts fetches and can hold them until released.
type fakeFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func (f *fakeFetcher) FetchBlocks(ctx context.Context, org, doc string) ([]ocr.Block, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return []ocr.Block{{
		ID: doc + "-w1", BlockType: ocr.BlockTypeWord, Text: "total", Page: 1,
		Geometry: ocr.Geometry{BoundingBox: ocr.BoundingBox{Left: 0.1, Top: 0.1, Width: 0.1, Height: 0.02}},
	}}, nil
}

func newTestCache(t *testing.T, f Fetcher) *Cache {
	t.Helper()
	c, err := New(&Config{Fetcher: f, FetchTimeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresFetcher(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New(&Config{}); err == nil {
		t.Error("expected error for missing fetcher")
	}
}

func TestLoad_ReusesEntryPerKey(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestCache(t, f)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := c.Load(ctx, orgID, docA); err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("expected 1 fetch for repeated loads, got %d", got)
	}

	if err := c.Load(ctx, orgID, docB); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("expected a second fetch for another document, got %d", got)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 cached documents, got %d", c.Len())
	}
}

func TestGet_BuildsIndexOnce(t *testing.T) {
	c := newTestCache(t, &fakeFetcher{})
	ctx := context.Background()

	first, err := c.Get(ctx, orgID, docA)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := c.Get(ctx, orgID, docA)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first.Index == nil || first.Index != second.Index {
		t.Error("expected the page index to be memoized on the entry")
	}
}

func TestLoad_FailuresAreNotCached(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	c := newTestCache(t, f)
	ctx := context.Background()

	err := c.Load(ctx, orgID, docA)
	if err == nil {
		t.Fatal("expected load error")
	}
	if !herrors.IsOCRLoadError(err) {
		t.Errorf("expected OCR load error, got %v", err)
	}
	if !errors.Is(err, f.err) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("failed load must not leave an entry")
	}

	f.err = nil
	if err := c.Load(ctx, orgID, docA); err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("expected retry to fetch again, got %d fetches", got)
	}
}

func TestGet_ConcurrentLoadsShareOneFetch(t *testing.T) {
	f := &fakeFetcher{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := newTestCache(t, f)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), orgID, docA)
			errs <- err
		}()
	}

	<-f.started
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Get: %v", err)
		}
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("expected concurrent loads to share 1 fetch, got %d", got)
	}
}

func TestGet_ResetDropsInFlightLoad(t *testing.T) {
	f := &fakeFetcher{started: make(chan struct{}, 2), release: make(chan struct{})}
	c := newTestCache(t, f)

	done := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), orgID, docA)
		done <- err
	}()

	<-f.started
	c.Reset()
	close(f.release)

	if err := <-done; !errors.Is(err, ErrStaleLoad) {
		t.Fatalf("expected ErrStaleLoad, got %v", err)
	}
	if c.Len() != 0 {
		t.Error("stale load must not write to the cache")
	}
	if c.Current() != nil {
		t.Error("stale load must not become current")
	}

	if err := c.Load(context.Background(), orgID, docA); err != nil {
		t.Fatalf("load after reset: %v", err)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("expected a fresh fetch after reset, got %d fetches", got)
	}
}

func TestGet_CallerCancellationLeavesFetchRunning(t *testing.T) {
	f := &fakeFetcher{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := newTestCache(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, orgID, docA)
		done <- err
	}()

	<-f.started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(f.release)
	if _, err := c.Get(context.Background(), orgID, docA); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("expected the abandoned fetch to be reused, got %d fetches", got)
	}
}

func TestCurrentAndInvalidate(t *testing.T) {
	f := &fakeFetcher{}
	c := newTestCache(t, f)
	ctx := context.Background()

	if c.Current() != nil || c.CurrentBlocks() != nil {
		t.Fatal("empty cache should have no current entry")
	}

	_ = c.Load(ctx, orgID, docA)
	_ = c.Load(ctx, orgID, docB)
	if cur := c.Current(); cur == nil || cur.Key.DocumentID != docB {
		t.Fatalf("expected docB to be current, got %+v", cur)
	}

	_ = c.Load(ctx, orgID, docA)
	if cur := c.Current(); cur.Key.DocumentID != docA {
		t.Errorf("a cache hit should make docA current, got %s", cur.Key.DocumentID)
	}
	if blocks := c.CurrentBlocks(); len(blocks) != 1 || blocks[0].ID != docA+"-w1" {
		t.Errorf("unexpected current blocks %+v", blocks)
	}

	c.Invalidate(orgID, docA)
	if c.Current() != nil {
		t.Error("invalidating the current document should clear it")
	}
	if _, ok := c.Blocks(orgID, docA); ok {
		t.Error("invalidated document should not be cached")
	}
	if _, ok := c.Peek(orgID, docB); !ok {
		t.Error("other documents must survive invalidation")
	}

	_ = c.Load(ctx, orgID, docA)
	if got := f.calls.Load(); got != 3 {
		t.Errorf("expected refetch after invalidation, got %d fetches", got)
	}
}

func TestGet_InvalidateDropsInFlightLoad(t *testing.T) {
	f := &fakeFetcher{started: make(chan struct{}, 2), release: make(chan struct{})}
	c := newTestCache(t, f)

	done := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), orgID, docA)
		done <- err
	}()

	<-f.started
	c.Invalidate(orgID, docA)
	close(f.release)

	if err := <-done; !errors.Is(err, ErrStaleLoad) {
		t.Fatalf("expected ErrStaleLoad, got %v", err)
	}
	if _, ok := c.Peek(orgID, docA); ok {
		t.Fatal("a fetch started before eviction must not repopulate the cache")
	}

	if _, err := c.Get(context.Background(), orgID, docA); err != nil {
		t.Fatalf("Get after invalidate: %v", err)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("expected a fresh fetch after invalidate, got %d fetches", got)
	}
}

func TestInvalidate_LeavesOtherInFlightLoads(t *testing.T) {
	f := &fakeFetcher{started: make(chan struct{}, 1), release: make(chan struct{})}
	c := newTestCache(t, f)

	done := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), orgID, docA)
		done <- err
	}()

	<-f.started
	c.Invalidate(orgID, docB)
	close(f.release)

	if err := <-done; err != nil {
		t.Fatalf("evicting another document must not affect this load: %v", err)
	}
	if _, ok := c.Peek(orgID, docA); !ok {
		t.Error("expected docA to be cached")
	}
}
