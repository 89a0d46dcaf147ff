package epub

import (
	"fmt"
	"path"
	"strings"
)

// Chapter is one spine entry, in reading order.
type Chapter struct {
	ID        string // manifest id
	Href      string // archive entry name
	MediaType string
	Index     int
	Linear    bool
}

// Book is the content model of an opened package. It is immutable after Load.
type Book struct {
	opf      *OPF
	chapters []Chapter
	byHref   map[string]ManifestItem
}

// Load parses the package document of pkg and builds the chapter sequence
// in spine order.
func Load(pkg *Package) (*Book, error) {
	if pkg.RootFile() == "" {
		return nil, fmt.Errorf("%w: no package document", ErrInvalidManifest)
	}
	data, err := pkg.ReadEntry(pkg.RootFile())
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidManifest, pkg.RootFile(), err)
	}

	opf, err := ParseOPF(data, path.Dir(pkg.RootFile()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	if len(opf.Spine) == 0 {
		return nil, fmt.Errorf("%w: empty spine", ErrInvalidManifest)
	}

	b := &Book{
		opf:      opf,
		chapters: make([]Chapter, 0, len(opf.Spine)),
		byHref:   make(map[string]ManifestItem, len(opf.Manifest)),
	}
	for _, id := range opf.ManifestOrder {
		item := opf.Manifest[id]
		b.byHref[item.Href] = item
	}

	seen := make(map[string]int, len(opf.Spine))
	for _, ref := range opf.Spine {
		item, ok := opf.Manifest[ref.IDRef]
		if !ok {
			return nil, fmt.Errorf("%w: spine item %q not in manifest", ErrInvalidManifest, ref.IDRef)
		}
		if !pkg.Has(item.Href) {
			return nil, fmt.Errorf("%w: spine item %q references missing entry %s", ErrInvalidManifest, ref.IDRef, item.Href)
		}
		// A spine may list an item more than once; later listings get an
		// ordinal suffix so chapter ids stay unique.
		id := item.ID
		if n := seen[item.ID]; n > 0 {
			id = fmt.Sprintf("%s#%d", item.ID, n+1)
		}
		seen[item.ID]++
		b.chapters = append(b.chapters, Chapter{
			ID:        id,
			Href:      item.Href,
			MediaType: item.MediaType,
			Index:     len(b.chapters),
			Linear:    ref.Linear,
		})
	}

	return b, nil
}

// RightToLeft reports whether spreads progress right to left.
func (b *Book) RightToLeft() bool {
	return b.opf.PageProgressionDirection == "rtl"
}

// ChapterCount returns the number of spine entries.
func (b *Book) ChapterCount() int {
	return len(b.chapters)
}

// ChapterAt returns the chapter at a 0-based spine index.
func (b *Book) ChapterAt(index int) (Chapter, error) {
	if index < 0 || index >= len(b.chapters) {
		return Chapter{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(b.chapters))
	}
	return b.chapters[index], nil
}

// Chapters returns a copy of the chapter sequence.
func (b *Book) Chapters() []Chapter {
	out := make([]Chapter, len(b.chapters))
	copy(out, b.chapters)
	return out
}

// Metadata returns the package metadata.
func (b *Book) Metadata() Metadata {
	return b.opf.Metadata
}

// Resource looks up a manifest item by its archive entry name.
func (b *Book) Resource(href string) (ManifestItem, bool) {
	item, ok := b.byHref[normalizePath(href)]
	return item, ok
}

// ResourceMIME returns the declared media type of a manifest entry, or ""
// when the entry is not declared.
func (b *Book) ResourceMIME(href string) string {
	item, ok := b.Resource(href)
	if !ok {
		return ""
	}
	return item.MediaType
}

// IsMarkup reports whether a media type is flowable XHTML/HTML.
func IsMarkup(mediaType string) bool {
	switch strings.ToLower(mediaType) {
	case "application/xhtml+xml", "text/html", "application/x-dtbook+xml":
		return true
	}
	return false
}
