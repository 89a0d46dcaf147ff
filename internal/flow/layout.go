package flow

import (
	"fmt"
	"math"
)

const (
	DefaultFontSize   = 16
	DefaultLineHeight = 1.5

	// headerScale enlarges header glyphs and lines.
	headerScale = 1.5
)

// Viewport is the size of one page in layout units.
type Viewport struct {
	Width  int
	Height int
}

// Layout is everything pagination depends on besides the content itself.
// It is comparable and used as part of the pagination cache key.
type Layout struct {
	Viewport
	FontSize   int
	LineHeight float64 // multiple of FontSize
	Margin     int     // left and right, each
}

// DefaultLayout is a portrait page at the default type size.
func DefaultLayout() Layout {
	return Layout{
		Viewport:   Viewport{Width: 600, Height: 800},
		FontSize:   DefaultFontSize,
		LineHeight: DefaultLineHeight,
		Margin:     20,
	}
}

// Normalize fills zero metrics with defaults.
func (l Layout) Normalize() Layout {
	if l.FontSize == 0 {
		l.FontSize = DefaultFontSize
	}
	if l.LineHeight == 0 {
		l.LineHeight = DefaultLineHeight
	}
	return l
}

// Validate checks a normalized layout.
func (l Layout) Validate() error {
	switch {
	case l.Width <= 0 || l.Height <= 0:
		return fmt.Errorf("%w: viewport %dx%d", ErrInvalidLayout, l.Width, l.Height)
	case l.FontSize <= 0:
		return fmt.Errorf("%w: font size %d", ErrInvalidLayout, l.FontSize)
	case l.LineHeight <= 0 || math.IsNaN(l.LineHeight) || math.IsInf(l.LineHeight, 0):
		return fmt.Errorf("%w: line height %v", ErrInvalidLayout, l.LineHeight)
	case l.Margin < 0 || 2*l.Margin >= l.Width:
		return fmt.Errorf("%w: margin %d for width %d", ErrInvalidLayout, l.Margin, l.Width)
	}
	return nil
}

// textWidth is the usable line width.
func (l Layout) textWidth() float64 {
	return float64(l.Width - 2*l.Margin)
}

// cellWidth is the advance of one terminal-style cell: half an em.
func (l Layout) cellWidth(kind ChunkKind) float64 {
	w := float64(l.FontSize) / 2
	if kind == Header {
		w *= headerScale
	}
	return w
}

// lineHeight is the height of a line made of kind glyphs.
func (l Layout) lineHeight(kind ChunkKind) int {
	h := float64(l.FontSize) * l.LineHeight
	if kind == Header {
		h *= headerScale
	}
	return max(int(math.Round(h)), 1)
}

// blockGap is the space after a block.
func (l Layout) blockGap() int {
	return l.lineHeight(Normal) / 2
}
