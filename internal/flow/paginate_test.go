package flow

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/yuanying/epubspread/internal/epubtest"
)

// testLayout has 12-unit lines, 20 cells per line and a 6-unit block gap.
func testLayout(height int) Layout {
	return Layout{
		Viewport:   Viewport{Width: 100, Height: height},
		FontSize:   10,
		LineHeight: 1.2,
	}
}

type fixedSizer struct {
	w, h int
	err  error
}

func (s fixedSizer) ImageSize(string) (int, int, error) {
	return s.w, s.h, s.err
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name   string
		chunks []Chunk
		height int
		images ImageSizer
		want   Breaks
	}{
		{
			name:   "empty content is one page",
			height: 48,
			want:   Breaks{0},
		},
		{
			name:   "wraps at spaces",
			chunks: []Chunk{{Kind: Normal, Text: "aaaa bbbb cccc dddd eeee ffff"}},
			height: 12,
			want:   Breaks{0, 20},
		},
		{
			name:   "hard line breaks fill pages",
			chunks: []Chunk{{Kind: Normal, Text: "l0\nl1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9"}},
			height: 48,
			want:   Breaks{0, 12, 24},
		},
		{
			name: "block gaps take space",
			chunks: []Chunk{
				{Kind: Normal, Text: "x\n", Offset: 0, Break: true},
				{Kind: Normal, Text: "x\n", Offset: 2, Break: true},
				{Kind: Normal, Text: "x\n", Offset: 4, Break: true},
				{Kind: Normal, Text: "x\n", Offset: 6, Break: true},
			},
			height: 48,
			want:   Breaks{0, 6},
		},
		{
			name: "header lines are taller",
			chunks: []Chunk{
				{Kind: Header, Text: "H\n", Offset: 0, Break: true},
				{Kind: Normal, Text: "a\nb\nc", Offset: 2},
			},
			height: 48,
			want:   Breaks{0, 6},
		},
		{
			name:   "long word is split",
			chunks: []Chunk{{Kind: Normal, Text: strings.Repeat("x", 25)}},
			height: 12,
			want:   Breaks{0, 20},
		},
		{
			name:   "wide runes break anywhere",
			chunks: []Chunk{{Kind: Normal, Text: "一二三四五六七八九十一二"}},
			height: 12,
			want:   Breaks{0, 30},
		},
		{
			name: "image is scaled and clamped to the page",
			chunks: []Chunk{
				{Kind: Image, Text: ObjectReplacement, Src: "a.png"},
				{Kind: Normal, Text: "\n", Offset: 3, Break: true},
				{Kind: Normal, Text: "after", Offset: 4},
			},
			height: 48,
			images: fixedSizer{w: 200, h: 400},
			want:   Breaks{0, 4},
		},
		{
			name: "unknown image size takes one line",
			chunks: []Chunk{
				{Kind: Image, Text: ObjectReplacement, Src: "a.png"},
				{Kind: Normal, Text: "\n", Offset: 3, Break: true},
				{Kind: Normal, Text: "after", Offset: 4},
			},
			height: 48,
			images: fixedSizer{err: errors.New("no such image")},
			want:   Breaks{0},
		},
		{
			name: "line taller than the page still gets a page",
			chunks: []Chunk{
				{Kind: Header, Text: "H\n", Offset: 0, Break: true},
				{Kind: Header, Text: "I\n", Offset: 2, Break: true},
			},
			height: 10,
			want:   Breaks{0, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Paginate(tt.chunks, testLayout(tt.height), tt.images)
			if err != nil {
				t.Fatalf("Paginate() failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Paginate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPaginate_DeterministicAndViewportDependent(t *testing.T) {
	content := epubtest.XHTML("t", epubtest.Paragraphs(20, "lorem ipsum dolor sit amet consectetur"))
	chunks, err := Extract([]byte(content), "application/xhtml+xml", "c.xhtml")
	if err != nil {
		t.Fatalf("Extract() failed: %v", err)
	}

	wide := testLayout(48)
	first, err := Paginate(chunks, wide, nil)
	if err != nil {
		t.Fatalf("Paginate() failed: %v", err)
	}
	second, err := Paginate(chunks, wide, nil)
	if err != nil {
		t.Fatalf("Paginate() failed: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Paginate() not deterministic: %v vs %v", first, second)
	}

	narrow := wide
	narrow.Width = 60
	third, err := Paginate(chunks, narrow, nil)
	if err != nil {
		t.Fatalf("Paginate() failed: %v", err)
	}
	if third.Pages() <= first.Pages() {
		t.Errorf("narrow viewport pages = %d, want more than %d", third.Pages(), first.Pages())
	}

	for _, b := range []Breaks{first, third} {
		if b[0] != 0 {
			t.Errorf("first break = %d, want 0", b[0])
		}
		for i := 1; i < len(b); i++ {
			if b[i] <= b[i-1] {
				t.Fatalf("breaks not strictly increasing: %v", b)
			}
		}
	}
}

func TestPaginate_InvalidLayout(t *testing.T) {
	tests := []struct {
		name   string
		layout Layout
	}{
		{name: "zero width", layout: Layout{Viewport: Viewport{Width: 0, Height: 10}}},
		{name: "negative height", layout: Layout{Viewport: Viewport{Width: 10, Height: -1}}},
		{name: "margins eat the page", layout: Layout{Viewport: Viewport{Width: 10, Height: 10}, Margin: 5}},
		{name: "negative font size", layout: Layout{Viewport: Viewport{Width: 10, Height: 10}, FontSize: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Paginate(nil, tt.layout, nil); !errors.Is(err, ErrInvalidLayout) {
				t.Fatalf("Paginate() error = %v, want ErrInvalidLayout", err)
			}
		})
	}
}

func TestLayout_Normalize(t *testing.T) {
	l := Layout{Viewport: Viewport{Width: 10, Height: 10}}.Normalize()
	if l.FontSize != DefaultFontSize || l.LineHeight != DefaultLineHeight {
		t.Errorf("Normalize() = %+v", l)
	}
}

func TestPageOf(t *testing.T) {
	b := Breaks{0, 10, 20}
	tests := []struct {
		offset, want int
	}{
		{-5, 0}, {0, 0}, {9, 0}, {10, 1}, {19, 1}, {20, 2}, {100, 2},
	}
	for _, tt := range tests {
		if got := PageOf(b, tt.offset); got != tt.want {
			t.Errorf("PageOf(%d) = %d, want %d", tt.offset, got, tt.want)
		}
	}
}

func TestBreaks_Span(t *testing.T) {
	b := Breaks{0, 10, 20}
	if s, e := b.Span(1); s != 10 || e != 20 {
		t.Errorf("Span(1) = %d, %d", s, e)
	}
	if s, e := b.Span(2); s != 20 || e != -1 {
		t.Errorf("Span(2) = %d, %d", s, e)
	}
}
