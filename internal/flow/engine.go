package flow

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/yuanying/epubspread/internal/epub"
)

type cacheKey struct {
	chapter string
	layout  Layout
}

// Engine paginates chapters lazily and caches the breaks per chapter and
// layout. Changing the layout drops every cached entry. Apart from Prefetch
// the engine runs on the caller's goroutine; Prefetch computes off it and
// publishes only if the layout has not changed in the meantime.
type Engine struct {
	r      EntryReader
	images ImageSizer
	logger *slog.Logger

	mu       sync.Mutex
	layout   Layout
	gen      uint64
	pages    map[cacheKey]Breaks
	chunks   map[string][]Chunk
	failed   map[string]error
	inflight map[cacheKey]bool

	wg sync.WaitGroup
}

// NewEngine returns an engine reading chapters through r. A nil logger
// discards output.
func NewEngine(r EntryReader, layout Layout, logger *slog.Logger) (*Engine, error) {
	layout = layout.Normalize()
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		r:        r,
		images:   NewImageCache(r),
		logger:   logger,
		layout:   layout,
		pages:    make(map[cacheKey]Breaks),
		chunks:   make(map[string][]Chunk),
		failed:   make(map[string]error),
		inflight: make(map[cacheKey]bool),
	}, nil
}

// Layout returns the current layout.
func (e *Engine) Layout() Layout {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layout
}

// SetLayout switches the layout. It reports whether the layout changed, in
// which case all cached breaks are dropped.
func (e *Engine) SetLayout(layout Layout) (bool, error) {
	layout = layout.Normalize()
	if err := layout.Validate(); err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if layout == e.layout {
		return false, nil
	}
	e.layout = layout
	e.gen++
	clear(e.pages)
	return true, nil
}

// Paginate returns the page breaks of ch under the current layout, computing
// them on first use.
func (e *Engine) Paginate(ch epub.Chapter) (Breaks, error) {
	e.mu.Lock()
	if err, ok := e.failed[ch.ID]; ok {
		e.mu.Unlock()
		return nil, err
	}
	k := cacheKey{chapter: ch.ID, layout: e.layout}
	if b, ok := e.pages[k]; ok {
		e.mu.Unlock()
		return b, nil
	}
	gen := e.gen
	e.mu.Unlock()

	return e.compute(ch, k, gen)
}

// Prefetch paginates ch in the background under the current layout. It
// does nothing when the result is already cached or being computed.
func (e *Engine) Prefetch(ch epub.Chapter) {
	e.mu.Lock()
	k := cacheKey{chapter: ch.ID, layout: e.layout}
	_, cached := e.pages[k]
	_, failed := e.failed[ch.ID]
	if cached || failed || e.inflight[k] {
		e.mu.Unlock()
		return
	}
	e.inflight[k] = true
	gen := e.gen
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.inflight, k)
			e.mu.Unlock()
		}()
		if _, err := e.compute(ch, k, gen); err != nil {
			e.logger.Debug("prefetch failed", "chapter", ch.Index, "href", ch.Href, "err", err)
		}
	}()
}

// Wait blocks until every running prefetch has finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Cached returns the breaks of ch under the current layout if they are
// already known.
func (e *Engine) Cached(ch epub.Chapter) (Breaks, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.pages[cacheKey{chapter: ch.ID, layout: e.layout}]
	return b, ok
}

// Chunks returns the extracted content of ch. Extraction does not depend on
// the layout and is cached for the engine's lifetime.
func (e *Engine) Chunks(ch epub.Chapter) ([]Chunk, error) {
	e.mu.Lock()
	if err, ok := e.failed[ch.ID]; ok {
		e.mu.Unlock()
		return nil, err
	}
	if c, ok := e.chunks[ch.ID]; ok {
		e.mu.Unlock()
		return c, nil
	}
	e.mu.Unlock()

	chunks, err := e.extract(ch)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.failed[ch.ID] = err
		return nil, err
	}
	e.chunks[ch.ID] = chunks
	return chunks, nil
}

func (e *Engine) extract(ch epub.Chapter) ([]Chunk, error) {
	if isImageType(ch.MediaType) {
		return Extract(nil, ch.MediaType, ch.Href)
	}
	data, err := e.r.ReadEntry(ch.Href)
	if err != nil {
		return nil, fmt.Errorf("read chapter %s: %w", ch.Href, err)
	}
	return Extract(data, ch.MediaType, ch.Href)
}

// compute paginates ch under k.layout and publishes the result if the
// layout generation is still gen.
func (e *Engine) compute(ch epub.Chapter, k cacheKey, gen uint64) (Breaks, error) {
	chunks, err := e.Chunks(ch)
	if err != nil {
		return nil, err
	}
	breaks, err := Paginate(chunks, k.layout, e.images)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		e.logger.Debug("discarding stale pagination", "chapter", ch.Index, "href", ch.Href)
		return breaks, nil
	}
	e.pages[k] = breaks
	return breaks, nil
}
