package epub

import (
	"bytes"
	"fmt"
	"image"
	"path"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
)

// CoverInfo describes the image chosen as the book's cover.
type CoverInfo struct {
	ManifestID string
	Href       string
	MediaType  string
	// Method names the rule that found the cover: "properties", "meta",
	// "guide" or "filename".
	Method string
}

// DetectCover picks the cover image. The rules are tried in order:
//  1. a manifest item with the cover-image property (EPUB 3)
//  2. the item named by <meta name="cover"> (EPUB 2)
//  3. an image item referenced by a guide entry of type "cover"
//  4. a raster image whose file name contains "cover"
//
// It returns nil when no rule matches.
func (opf *OPF) DetectCover() *CoverInfo {
	found := func(item ManifestItem, method string) *CoverInfo {
		return &CoverInfo{ManifestID: item.ID, Href: item.Href, MediaType: item.MediaType, Method: method}
	}

	for _, item := range opf.items() {
		if slices.Contains(item.Properties, "cover-image") {
			return found(item, "properties")
		}
	}

	if item, ok := opf.Manifest[opf.Metadata.CoverID]; ok && opf.Metadata.CoverID != "" {
		return found(item, "meta")
	}

	for _, ref := range opf.Guide {
		if ref.Type != "cover" {
			continue
		}
		href, _, _ := strings.Cut(ref.Href, "#")
		for _, item := range opf.items() {
			// A guide entry pointing at a cover page is not an image.
			if isImageMediaType(item.MediaType) && item.Href == href {
				return found(item, "guide")
			}
		}
	}

	for _, item := range opf.items() {
		if isImageMediaType(item.MediaType) && strings.Contains(strings.ToLower(path.Base(item.Href)), "cover") {
			return found(item, "filename")
		}
	}
	return nil
}

// items returns the manifest in declaration order.
func (opf *OPF) items() []ManifestItem {
	out := make([]ManifestItem, 0, len(opf.ManifestOrder))
	for _, id := range opf.ManifestOrder {
		out = append(out, opf.Manifest[id])
	}
	return out
}

// DetectCover detects the cover image of the book.
func (b *Book) DetectCover() *CoverInfo {
	return b.opf.DetectCover()
}

// CoverThumbnail decodes the cover image from pkg and scales it down to fit
// within maxWidth x maxHeight, preserving aspect ratio. Images already inside
// the box are returned unscaled.
func (b *Book) CoverThumbnail(pkg *Package, maxWidth, maxHeight int) (image.Image, error) {
	cover := b.DetectCover()
	if cover == nil {
		return nil, ErrNoCover
	}
	data, err := pkg.ReadEntry(cover.Href)
	if err != nil {
		return nil, err
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode cover %s: %w", cover.Href, err)
	}
	bounds := img.Bounds()
	if maxWidth <= 0 || maxHeight <= 0 || (bounds.Dx() <= maxWidth && bounds.Dy() <= maxHeight) {
		return img, nil
	}
	return imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos), nil
}

// isImageMediaType reports whether a media type is a raster image.
func isImageMediaType(mediaType string) bool {
	if mediaType == "image/svg+xml" {
		return false
	}
	return strings.HasPrefix(mediaType, "image/")
}
