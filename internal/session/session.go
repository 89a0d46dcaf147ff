// Package session is the reading API a UI shell drives: open a book, turn
// pages, report where the reader is.
package session

import (
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/yuanying/epubspread/internal/epub"
	"github.com/yuanying/epubspread/internal/flow"
	"github.com/yuanying/epubspread/internal/pager"
)

// Navigator is the part of a session a shell needs to turn pages and show
// progress.
type Navigator interface {
	PageNext() (bool, error)
	PagePrev() (bool, error)
	Pos() (float64, error)
	Chapter() (int, error)
	NChapters() (int, error)
	Resize(v flow.Viewport) error
}

var _ Navigator = (*Session)(nil)

// Options configures Open.
type Options struct {
	// Layout defaults to flow.DefaultLayout when its viewport is zero.
	Layout flow.Layout
	// Spread shows two facing pages at a time.
	Spread bool
	// Prefetch paginates the chapters next to the cursor in the background.
	Prefetch bool
	// Logger defaults to discarding output.
	Logger *slog.Logger
}

// Session is one open book. It is not safe for concurrent use.
type Session struct {
	pkg      *epub.Package
	book     *epub.Book
	engine   *flow.Engine
	ctl      *pager.Controller
	logger   *slog.Logger
	prefetch bool

	degraded map[int]error
	closed   bool
}

// Open opens the EPUB at path. Any failure here is fatal for the session.
func Open(path string, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	layout := opts.Layout
	if layout.Viewport == (flow.Viewport{}) {
		layout = flow.DefaultLayout()
	}

	pkg, err := epub.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	book, err := epub.Load(pkg)
	if err != nil {
		pkg.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	engine, err := flow.NewEngine(pkg, layout, logger)
	if err != nil {
		pkg.Close()
		return nil, err
	}

	s := &Session{
		pkg:      pkg,
		book:     book,
		engine:   engine,
		logger:   logger,
		prefetch: opts.Prefetch,
		degraded: make(map[int]error),
	}
	s.ctl, err = pager.New(source{s}, opts.Spread)
	if err != nil {
		pkg.Close()
		return nil, err
	}

	md := book.Metadata()
	logger.Info("opened book", "path", path, "title", md.Title, "chapters", book.ChapterCount())
	s.prefetchAround()
	return s, nil
}

// source feeds the controller, turning pagination failures into a single
// placeholder page.
type source struct {
	s *Session
}

func (src source) ChapterCount() int {
	return src.s.book.ChapterCount()
}

func (src source) Breaks(i int) flow.Breaks {
	s := src.s
	ch, err := s.book.ChapterAt(i)
	if err != nil {
		return flow.Breaks{0}
	}
	b, err := s.engine.Paginate(ch)
	if err != nil {
		s.degrade(ch, err)
		return flow.Breaks{0}
	}
	return b
}

// degrade records why a chapter is shown as a placeholder, warning once.
func (s *Session) degrade(ch epub.Chapter, err error) {
	if _, seen := s.degraded[ch.Index]; seen {
		return
	}
	s.degraded[ch.Index] = err
	s.logger.Warn("chapter replaced by a placeholder page", "chapter", ch.Index, "href", ch.Href, "err", err)
}

func (s *Session) prefetchAround() {
	if !s.prefetch {
		return
	}
	c := s.ctl.Chapter()
	for _, i := range []int{c + 1, c - 1} {
		if ch, err := s.book.ChapterAt(i); err == nil {
			s.engine.Prefetch(ch)
		}
	}
}

func (s *Session) check() error {
	if s.closed {
		return epub.ErrClosed
	}
	return nil
}

// PageNext turns to the next page or spread. It reports false at the end
// of the book.
func (s *Session) PageNext() (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	moved := s.ctl.PageNext()
	if moved {
		s.prefetchAround()
	}
	return moved, nil
}

// PagePrev turns back one page or spread. It reports false at the start of
// the book.
func (s *Session) PagePrev() (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	moved := s.ctl.PagePrev()
	if moved {
		s.prefetchAround()
	}
	return moved, nil
}

// Pos returns reading progress in percent.
func (s *Session) Pos() (float64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.ctl.Pos(), nil
}

func (s *Session) Chapter() (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.ctl.Chapter(), nil
}

func (s *Session) NChapters() (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.ctl.NChapters(), nil
}

func (s *Session) Cursor() (pager.Cursor, error) {
	if err := s.check(); err != nil {
		return pager.Cursor{}, err
	}
	return s.ctl.Cursor(), nil
}

// PagesIn returns the page count of a chapter, paginating it if needed.
func (s *Session) PagesIn(chapter int) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	if chapter < 0 || chapter >= s.ctl.NChapters() {
		return 0, fmt.Errorf("%w: chapter %d", epub.ErrIndexOutOfRange, chapter)
	}
	return s.ctl.PagesIn(chapter), nil
}

func (s *Session) Seek(chapter, page int) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.ctl.Seek(chapter, page); err != nil {
		return err
	}
	s.prefetchAround()
	return nil
}

func (s *Session) SetChapter(chapter int) error {
	return s.Seek(chapter, 0)
}

// SetPos jumps to a progress percentage.
func (s *Session) SetPos(percent float64) error {
	if err := s.check(); err != nil {
		return err
	}
	if err := s.ctl.SetPos(percent); err != nil {
		return err
	}
	s.prefetchAround()
	return nil
}

func (s *Session) SetSpread(on bool) error {
	if err := s.check(); err != nil {
		return err
	}
	s.ctl.SetSpread(on)
	return nil
}

// Layout returns the current layout.
func (s *Session) Layout() (flow.Layout, error) {
	if err := s.check(); err != nil {
		return flow.Layout{}, err
	}
	return s.engine.Layout(), nil
}

// Resize changes the viewport and re-flows the book.
func (s *Session) Resize(v flow.Viewport) error {
	if err := s.check(); err != nil {
		return err
	}
	l := s.engine.Layout()
	l.Viewport = v
	return s.SetLayout(l)
}

// SetLayout changes the layout. The reader stays on the page holding the
// content that was at the top of the page before.
func (s *Session) SetLayout(l flow.Layout) error {
	if err := s.check(); err != nil {
		return err
	}
	offset := s.ctl.Offset()
	changed, err := s.engine.SetLayout(l)
	if err != nil || !changed {
		return err
	}
	before := s.ctl.Cursor()
	s.ctl.Reflow(offset)
	s.logger.Debug("re-flowed", "from", before.String(), "to", s.ctl.Cursor().String(), "offset", offset)
	s.prefetchAround()
	return nil
}

// Spread returns the pages of the current chapter shown on the left and the
// right, honoring the book's page progression direction. A page is -1 when
// that side is blank.
func (s *Session) Spread() (left, right int, err error) {
	if err := s.check(); err != nil {
		return 0, 0, err
	}
	left, right = s.ctl.Spread()
	if s.ctl.SpreadMode() && s.book.RightToLeft() {
		left, right = right, left
	}
	return left, right, nil
}

// PageText returns the text of a page of the current chapter. Images are
// left out; a placeholder page has no text.
func (s *Session) PageText(page int) (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	c := s.ctl.Chapter()
	ch, err := s.book.ChapterAt(c)
	if err != nil {
		return "", err
	}
	chunks, err := s.engine.Chunks(ch)
	if err != nil {
		s.degrade(ch, err)
	}
	b := source{s}.Breaks(c)
	if page < 0 || page >= len(b) {
		return "", fmt.Errorf("%w: page %d of chapter %d", pager.ErrInvalidPosition, page, c)
	}
	if s.degraded[c] != nil {
		return "", nil
	}
	start, end := b.Span(page)
	if end < 0 {
		end = math.MaxInt
	}
	return flow.Text(chunks, start, end), nil
}

// Degraded returns why a chapter was replaced by a placeholder page, or nil.
func (s *Session) Degraded(chapter int) error {
	return s.degraded[chapter]
}

func (s *Session) Metadata() (epub.Metadata, error) {
	if err := s.check(); err != nil {
		return epub.Metadata{}, err
	}
	return s.book.Metadata(), nil
}

// Chapters returns the spine in reading order.
func (s *Session) Chapters() ([]epub.Chapter, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.book.Chapters(), nil
}

// Cover returns the cover image fitted into maxW x maxH.
func (s *Session) Cover(maxW, maxH int) (image.Image, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.book.CoverThumbnail(s.pkg, maxW, maxH)
}

// Close waits for background pagination and releases the archive. Every
// later call fails with epub.ErrClosed.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.engine.Wait()
	return s.pkg.Close()
}
