package flow

import (
	"sort"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// Breaks holds the content offsets at which each page of a chapter begins.
// It always starts with 0 and is strictly increasing; len(Breaks) is the
// page count.
type Breaks []int

// Pages returns the page count.
func (b Breaks) Pages() int {
	return len(b)
}

// Span returns the content range [start, end) of page i. end is -1 for the
// last page.
func (b Breaks) Span(i int) (start, end int) {
	if i < 0 || i >= len(b) {
		return 0, 0
	}
	if i == len(b)-1 {
		return b[i], -1
	}
	return b[i], b[i+1]
}

// PageOf returns the page containing a content offset. Offsets past the end
// land on the last page.
func PageOf(b Breaks, offset int) int {
	if len(b) == 0 || offset <= 0 {
		return 0
	}
	// First break strictly greater than offset, minus one.
	return sort.SearchInts(b, offset+1) - 1
}

// ImageSizer reports the natural size of an image resource.
type ImageSizer interface {
	ImageSize(src string) (width, height int, err error)
}

// cells measures glyphs independently of the process locale so that the
// same content and layout always produce the same breaks.
var cells = &runewidth.Condition{EastAsianWidth: false, StrictEmojiNeutral: true}

type line struct {
	start  int
	height int
	gap    int // vertical space above the line, dropped at the top of a page
}

// Paginate flows chunks into pages. It is a pure function of its inputs
// apart from images, whose sizes come from the sizer; unknown image sizes
// take one line.
func Paginate(chunks []Chunk, layout Layout, images ImageSizer) (Breaks, error) {
	layout = layout.Normalize()
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	lb := &lineBreaker{layout: layout, width: layout.textWidth(), brk: -1}
	for _, c := range chunks {
		if c.Kind == Image {
			lb.image(c, images)
			continue
		}
		lb.text(c)
	}
	lb.closeLine()

	return pack(lb.lines, layout.Height), nil
}

// pack places lines on pages top to bottom. A line that does not fit starts
// a new page unless it is the first on its page.
func pack(lines []line, pageHeight int) Breaks {
	breaks := Breaks{0}
	y := 0
	for _, ln := range lines {
		need := ln.height
		if y > 0 {
			need += ln.gap
		}
		if y > 0 && y+need > pageHeight {
			breaks = append(breaks, ln.start)
			y = ln.height
			continue
		}
		y += need
	}
	return breaks
}

type lineBreaker struct {
	layout Layout
	width  float64
	lines  []line

	open   bool // the current line holds at least one glyph
	start  int
	used   float64
	height int

	// Last break opportunity on the current line: the offset a wrapped
	// line would start at, the width used before it, and the line height
	// on either side of it.
	brk     int
	brkUsed float64
	headH   int
	tailH   int

	gap        int  // gap owed to the next line
	afterImage bool // the next "\n" is swallowed by the image line
}

func (lb *lineBreaker) text(c Chunk) {
	lh := lb.layout.lineHeight(c.Kind)
	cw := lb.layout.cellWidth(c.Kind)

	for i, r := range c.Text {
		off := c.Offset + i
		if r == '\n' {
			lb.newline(off, c.Break && i == len(c.Text)-1)
			continue
		}
		lb.afterImage = false
		if r == utf8.RuneError {
			r = '?'
		}

		cellsW := cells.RuneWidth(r)
		w := float64(cellsW) * cw
		size := utf8.RuneLen(r)

		if r == ' ' {
			if lb.open && lb.used+w > lb.width {
				// The space becomes the line break and is dropped.
				lb.emit(lb.start, lb.height)
				lb.reset(off + size)
				continue
			}
			lb.add(off, w, lh)
			lb.markBreak(off + size)
			continue
		}

		if cellsW >= 2 && lb.open {
			lb.markBreak(off)
		}
		if w > 0 && lb.open && lb.used+w > lb.width {
			lb.wrap(off, w)
		}
		lb.add(off, w, lh)
		if cellsW >= 2 {
			lb.markBreak(off + size)
		}
	}
}

func (lb *lineBreaker) add(off int, w float64, lh int) {
	if !lb.open {
		lb.open = true
		lb.start = off
	}
	lb.used += w
	lb.height = max(lb.height, lh)
	lb.tailH = max(lb.tailH, lh)
}

func (lb *lineBreaker) markBreak(off int) {
	lb.brk = off
	lb.brkUsed = lb.used
	lb.headH = lb.height
	lb.tailH = 0
}

// wrap ends the current line before a glyph of width w at off: at the last
// break opportunity if there is one, and right before the glyph if the
// glyph still does not fit.
func (lb *lineBreaker) wrap(off int, w float64) {
	if lb.brk > lb.start && lb.brk <= off {
		lb.emit(lb.start, lb.headH)
		tail, tailH, brk := lb.used-lb.brkUsed, lb.tailH, lb.brk
		lb.reset(brk)
		if brk == off {
			return
		}
		lb.open = true
		lb.used = tail
		lb.height = tailH
		lb.tailH = tailH
		if lb.used+w <= lb.width {
			return
		}
	}
	lb.emit(lb.start, lb.height)
	lb.reset(off)
}

func (lb *lineBreaker) newline(off int, endsBlock bool) {
	switch {
	case lb.afterImage:
		lb.afterImage = false
	case lb.open:
		lb.emit(lb.start, lb.height)
	default:
		// Empty line.
		lb.emit(off, lb.layout.lineHeight(Normal))
	}
	lb.reset(off + 1)
	if endsBlock {
		lb.gap = lb.layout.blockGap()
	}
}

func (lb *lineBreaker) image(c Chunk, images ImageSizer) {
	lb.closeLine()

	h := lb.layout.lineHeight(Normal)
	if images != nil {
		if w0, h0, err := images.ImageSize(c.Src); err == nil && w0 > 0 && h0 > 0 {
			h = h0
			if float64(w0) > lb.width {
				h = int(float64(h0) * lb.width / float64(w0))
			}
			h = min(max(h, 1), lb.layout.Height)
		}
	}
	lb.emit(c.Offset, h)
	lb.reset(c.End())
	lb.afterImage = true
	if c.Break {
		lb.gap = lb.layout.blockGap()
	}
}

func (lb *lineBreaker) closeLine() {
	if lb.open {
		lb.emit(lb.start, lb.height)
		lb.reset(lb.start)
	}
}

func (lb *lineBreaker) emit(start, height int) {
	lb.lines = append(lb.lines, line{start: start, height: height, gap: lb.gap})
	lb.gap = 0
}

func (lb *lineBreaker) reset(start int) {
	lb.open = false
	lb.start = start
	lb.used = 0
	lb.height = 0
	lb.brk = -1
	lb.brkUsed = 0
	lb.headH = 0
	lb.tailH = 0
}
