package flow

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/yuanying/epubspread/internal/epub"
)

// ChunkKind classifies a run of text by the formatting that affects flow.
type ChunkKind int

const (
	Normal ChunkKind = iota
	Bold
	Italic
	Header
	Image
)

func (k ChunkKind) String() string {
	switch k {
	case Bold:
		return "bold"
	case Italic:
		return "italic"
	case Header:
		return "header"
	case Image:
		return "image"
	default:
		return "normal"
	}
}

// ObjectReplacement stands in for an image in the content stream.
const ObjectReplacement = "\ufffc"

// Chunk is a run of text sharing one kind. Offset is the byte offset of
// Text in the chapter's content stream (the concatenation of all chunk
// texts). A "\n" in Text is a hard line break; Break marks that the chunk
// closes a block, in which case Text ends with "\n".
type Chunk struct {
	Kind   ChunkKind
	Text   string
	Src    string // archive entry name of an Image chunk
	Offset int
	Break  bool
}

// End returns the offset just past the chunk.
func (c Chunk) End() int {
	return c.Offset + len(c.Text)
}

// blockTags end a block when closed.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Li:         true,
	atom.Tr:         true,
	atom.Blockquote: true,
	atom.Pre:        true,
	atom.Hr:         true,
	atom.Dt:         true,
	atom.Dd:         true,
	atom.Article:    true,
	atom.Section:    true,
	atom.Aside:      true,
	atom.Nav:        true,
	atom.Header:     true,
	atom.Footer:     true,
	atom.Figure:     true,
	atom.Figcaption: true,
	atom.Table:      true,
}

var skipTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Head:     true,
	atom.Title:    true,
	atom.Noscript: true,
}

var headerTags = map[atom.Atom]bool{
	atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true,
}

// Extract splits a spine document into chunks. href is the document's
// archive entry name, used to resolve image references. Image spine items
// become a single Image chunk.
func Extract(content []byte, mediaType, href string) ([]Chunk, error) {
	if isImageType(mediaType) {
		return []Chunk{{Kind: Image, Text: ObjectReplacement, Src: href}}, nil
	}
	if !epub.IsMarkup(mediaType) {
		return nil, fmt.Errorf("%w: media type %q", ErrUnsupportedContent, mediaType)
	}

	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedContent, href)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedContent, href, err)
	}

	x := &extractor{baseDir: path.Dir(href), atLineStart: true}
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	body.Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			x.walk(n, Normal, false)
		}
	})
	x.endBlock()
	return x.chunks, nil
}

func isImageType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(mediaType), "image/")
}

type extractor struct {
	baseDir     string
	chunks      []Chunk
	offset      int
	atLineStart bool // nothing but breaks since the last "\n"
	pendingHole bool // collapsed whitespace waiting for the next word
}

func (x *extractor) walk(n *html.Node, kind ChunkKind, pre bool) {
	switch n.Type {
	case html.TextNode:
		x.text(n.Data, kind, pre)
		return
	case html.ElementNode:
	case html.DocumentNode:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			x.walk(c, kind, pre)
		}
		return
	default:
		return
	}

	a := n.DataAtom
	if skipTags[a] {
		return
	}

	switch {
	case headerTags[a]:
		kind = Header
	case (a == atom.B || a == atom.Strong) && kind != Header:
		kind = Bold
	case (a == atom.I || a == atom.Em) && kind == Normal:
		kind = Italic
	}
	if a == atom.Pre {
		pre = true
	}

	switch a {
	case atom.Br:
		x.lineBreak(kind)
		return
	case atom.Img:
		x.image(attr(n, "src"))
		return
	case atom.Image:
		src := attr(n, "xlink:href")
		if src == "" {
			src = attr(n, "href")
		}
		x.image(src)
		return
	}

	if blockTags[a] {
		x.endBlock()
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		x.walk(c, kind, pre)
	}
	if blockTags[a] {
		x.endBlock()
	}
}

func (x *extractor) text(s string, kind ChunkKind, pre bool) {
	if pre {
		for i, line := range strings.Split(s, "\n") {
			if i > 0 {
				x.lineBreak(kind)
			}
			if line != "" {
				x.emit(kind, line)
			}
		}
		return
	}

	words := strings.Fields(s)
	if len(words) == 0 {
		if s != "" {
			x.pendingHole = true
		}
		return
	}
	first, _ := utf8.DecodeRuneInString(s)
	last, _ := utf8.DecodeLastRuneInString(s)

	text := strings.Join(words, " ")
	if (isSpace(first) || x.pendingHole) && !x.atLineStart {
		text = " " + text
	}
	x.emit(kind, text)
	x.pendingHole = isSpace(last)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f'
}

func (x *extractor) emit(kind ChunkKind, text string) {
	if n := len(x.chunks); n > 0 {
		last := &x.chunks[n-1]
		if last.Kind == kind && kind != Image && !strings.HasSuffix(last.Text, "\n") {
			last.Text += text
			x.offset += len(text)
			x.atLineStart = false
			return
		}
	}
	x.chunks = append(x.chunks, Chunk{Kind: kind, Text: text, Offset: x.offset})
	x.offset += len(text)
	x.atLineStart = false
}

// newline appends "\n" to the stream. Image chunks never carry text other
// than their placeholder, so a newline after one starts a new chunk.
func (x *extractor) newline(kind ChunkKind) *Chunk {
	if n := len(x.chunks); n > 0 && x.chunks[n-1].Kind != Image {
		x.chunks[n-1].Text += "\n"
	} else {
		x.chunks = append(x.chunks, Chunk{Kind: kind, Text: "\n", Offset: x.offset})
	}
	x.offset++
	x.atLineStart = true
	x.pendingHole = false
	return &x.chunks[len(x.chunks)-1]
}

func (x *extractor) lineBreak(kind ChunkKind) {
	x.newline(kind)
}

// endBlock closes the current block. Empty blocks produce nothing.
func (x *extractor) endBlock() {
	x.pendingHole = false
	n := len(x.chunks)
	if n == 0 {
		return
	}
	last := &x.chunks[n-1]
	if last.Break {
		return
	}
	if last.Kind == Image || !strings.HasSuffix(last.Text, "\n") {
		last = x.newline(Normal)
	}
	last.Break = true
	x.atLineStart = true
}

func (x *extractor) image(src string) {
	if src == "" || strings.HasPrefix(src, "data:") {
		return
	}
	// Images stand on their own line.
	if !x.atLineStart {
		x.lineBreak(Normal)
	}
	x.chunks = append(x.chunks, Chunk{
		Kind:   Image,
		Text:   ObjectReplacement,
		Src:    resolvePath(x.baseDir, src),
		Offset: x.offset,
	})
	x.offset += len(ObjectReplacement)
	x.atLineStart = true
	x.pendingHole = false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		name := a.Key
		if a.Namespace != "" {
			name = a.Namespace + ":" + a.Key
		}
		if name == key || a.Key == key {
			return a.Val
		}
	}
	return ""
}

// resolvePath resolves a document-relative reference into an archive
// entry name, e.g. ("text", "../images/photo.jpg") -> "images/photo.jpg".
func resolvePath(baseDir, rel string) string {
	rel, _, _ = strings.Cut(rel, "#")
	if baseDir == "" || baseDir == "." {
		return path.Clean(rel)
	}
	return path.Join(baseDir, rel)
}

// Text returns the content stream between two offsets, with image
// placeholders dropped.
func Text(chunks []Chunk, start, end int) string {
	var sb strings.Builder
	for _, c := range chunks {
		if c.End() <= start || c.Offset >= end {
			continue
		}
		if c.Kind == Image {
			continue
		}
		lo := max(start-c.Offset, 0)
		hi := min(end-c.Offset, len(c.Text))
		sb.WriteString(c.Text[lo:hi])
	}
	return sb.String()
}
