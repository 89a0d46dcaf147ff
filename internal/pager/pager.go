// Package pager tracks the reader's position in a paginated book.
//
// A Controller holds a cursor (chapter, page) over a Source of per-chapter
// page breaks. Navigation saturates at both ends of the book. In spread
// mode two facing pages are shown at once: every chapter opens on the left
// page of a spread and the cursor always rests on a left (even) page. A
// chapter with an odd page count ends on a spread whose right page is
// blank.
package pager

import (
	"errors"
	"fmt"
	"math"

	"github.com/yuanying/epubspread/internal/flow"
)

var (
	ErrInvalidPosition = errors.New("pager: invalid position")
	ErrNoChapters      = errors.New("pager: book has no chapters")
)

// Cursor is a position in the book.
type Cursor struct {
	Chapter int
	Page    int
}

func (c Cursor) String() string {
	return fmt.Sprintf("%d:%d", c.Chapter, c.Page)
}

// Source supplies page breaks per chapter. Breaks must never be empty; a
// chapter that cannot be paginated is expected to report a single page.
type Source interface {
	ChapterCount() int
	Breaks(chapter int) flow.Breaks
}

// Controller is not safe for concurrent use.
type Controller struct {
	src    Source
	cur    Cursor
	spread bool
}

// New returns a controller positioned at the start of the book.
func New(src Source, spread bool) (*Controller, error) {
	if src.ChapterCount() <= 0 {
		return nil, ErrNoChapters
	}
	return &Controller{src: src, spread: spread}, nil
}

// PagesIn returns the page count of a chapter, or 0 when it does not exist.
func (c *Controller) PagesIn(chapter int) int {
	if chapter < 0 || chapter >= c.src.ChapterCount() {
		return 0
	}
	return max(len(c.src.Breaks(chapter)), 1)
}

// TotalPages sums the page counts of every chapter. It paginates the whole
// book on first use.
func (c *Controller) TotalPages() int {
	total := 0
	for i := 0; i < c.src.ChapterCount(); i++ {
		total += c.PagesIn(i)
	}
	return total
}

func (c *Controller) Cursor() Cursor   { return c.cur }
func (c *Controller) Chapter() int     { return c.cur.Chapter }
func (c *Controller) NChapters() int   { return c.src.ChapterCount() }
func (c *Controller) SpreadMode() bool { return c.spread }

// ChapterLength returns the page count of the current chapter.
func (c *Controller) ChapterLength() int {
	return c.PagesIn(c.cur.Chapter)
}

// step is how far PageNext moves within a chapter.
func (c *Controller) step() int {
	if c.spread && c.cur.Page%2 == 0 {
		return 2
	}
	return 1
}

// PageNext advances by one page, or by one spread in spread mode, crossing
// into the next chapter when the current one is exhausted. It reports
// whether the cursor moved; at the end of the book it does nothing.
func (c *Controller) PageNext() bool {
	if p := c.cur.Page + c.step(); p < c.ChapterLength() {
		c.cur.Page = p
		return true
	}
	if c.cur.Chapter+1 < c.NChapters() {
		c.cur = Cursor{Chapter: c.cur.Chapter + 1}
		return true
	}
	return false
}

// PagePrev is the mirror of PageNext. Entering the previous chapter lands
// on its last page, or on its last spread in spread mode.
func (c *Controller) PagePrev() bool {
	switch {
	case c.spread && c.cur.Page%2 == 1:
		c.cur.Page--
		return true
	case c.spread && c.cur.Page >= 2:
		c.cur.Page -= 2
		return true
	case !c.spread && c.cur.Page > 0:
		c.cur.Page--
		return true
	case c.cur.Chapter > 0:
		ch := c.cur.Chapter - 1
		c.cur = Cursor{Chapter: ch, Page: c.align(c.PagesIn(ch) - 1)}
		return true
	}
	return false
}

// AtEnd reports whether PageNext would not move.
func (c *Controller) AtEnd() bool {
	return c.cur.Chapter == c.NChapters()-1 && c.cur.Page+c.step() >= c.ChapterLength()
}

// Pos returns the reading progress as a percentage. It is 100 only at the
// last position PageNext can reach.
func (c *Controller) Pos() float64 {
	if c.AtEnd() {
		return 100
	}
	before := 0
	for i := 0; i < c.cur.Chapter; i++ {
		before += c.PagesIn(i)
	}
	total := before
	for i := c.cur.Chapter; i < c.NChapters(); i++ {
		total += c.PagesIn(i)
	}
	return float64(before+c.cur.Page) / float64(total) * 100
}

// Seek moves to a page. In spread mode the cursor lands on the left page
// of the spread holding it.
func (c *Controller) Seek(chapter, page int) error {
	if chapter < 0 || chapter >= c.NChapters() {
		return fmt.Errorf("%w: chapter %d not in [0, %d)", ErrInvalidPosition, chapter, c.NChapters())
	}
	if n := c.PagesIn(chapter); page < 0 || page >= n {
		return fmt.Errorf("%w: page %d not in [0, %d) of chapter %d", ErrInvalidPosition, page, n, chapter)
	}
	c.cur = Cursor{Chapter: chapter, Page: c.align(page)}
	return nil
}

// SetChapter moves to the first page of a chapter.
func (c *Controller) SetChapter(chapter int) error {
	return c.Seek(chapter, 0)
}

// SetPos moves to the page at a progress percentage, the inverse of Pos.
func (c *Controller) SetPos(percent float64) error {
	if math.IsNaN(percent) || percent < 0 || percent > 100 {
		return fmt.Errorf("%w: %v%%", ErrInvalidPosition, percent)
	}
	if percent == 100 {
		last := c.NChapters() - 1
		return c.Seek(last, c.PagesIn(last)-1)
	}

	// Pos divides before it multiplies, so a value it returned can land just
	// under a whole page here.
	target := int(math.Floor(percent/100*float64(c.TotalPages()) + 1e-9))
	for i := 0; i < c.NChapters(); i++ {
		n := c.PagesIn(i)
		if target < n {
			return c.Seek(i, target)
		}
		target -= n
	}
	last := c.NChapters() - 1
	return c.Seek(last, c.PagesIn(last)-1)
}

// SetSpread switches spread mode. Turning it on moves the cursor to the
// left page of its spread.
func (c *Controller) SetSpread(on bool) {
	c.spread = on
	c.cur.Page = c.align(c.cur.Page)
}

// Spread returns the pages on screen. right is -1 for a single page or a
// blank facing page.
func (c *Controller) Spread() (left, right int) {
	if !c.spread {
		return c.cur.Page, -1
	}
	if c.cur.Page+1 < c.ChapterLength() {
		return c.cur.Page, c.cur.Page + 1
	}
	return c.cur.Page, -1
}

// Offset returns the content offset at the top of the current page.
func (c *Controller) Offset() int {
	b := c.src.Breaks(c.cur.Chapter)
	if c.cur.Page >= len(b) {
		return 0
	}
	return b[c.cur.Page]
}

// Reflow repositions the cursor after the source was re-paginated so that
// the page shown holds the content offset that was shown before.
func (c *Controller) Reflow(offset int) {
	p := flow.PageOf(c.src.Breaks(c.cur.Chapter), offset)
	c.cur.Page = c.align(min(p, c.ChapterLength()-1))
}

func (c *Controller) align(page int) int {
	if c.spread {
		return page &^ 1
	}
	return page
}
