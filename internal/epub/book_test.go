package epub

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"reflect"
	"testing"

	"github.com/yuanying/epubspread/internal/epubtest"
)

func openBook(t *testing.T, path string) (*Package, *Book) {
	t.Helper()
	pkg, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { pkg.Close() })

	book, err := Load(pkg)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return pkg, book
}

func TestLoad_SpineOrder(t *testing.T) {
	// Manifest order differs from spine order; spine wins.
	opf := `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/"><dc:title>Order</dc:title></metadata>
  <manifest>
    <item id="c" href="c.xhtml" media-type="application/xhtml+xml"/>
    <item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>
    <item id="b" href="b.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine>
    <itemref idref="a"/>
    <itemref idref="b" linear="no"/>
    <itemref idref="c"/>
  </spine>
</package>`
	files := map[string][]byte{
		"META-INF/container.xml": []byte(epubtest.ContainerXML),
		"OEBPS/content.opf":      []byte(opf),
		"OEBPS/a.xhtml":          []byte(epubtest.XHTML("a", "<p>a</p>")),
		"OEBPS/b.xhtml":          []byte(epubtest.XHTML("b", "<p>b</p>")),
		"OEBPS/c.xhtml":          []byte(epubtest.XHTML("c", "<p>c</p>")),
	}
	_, book := openBook(t, epubtest.WriteFiles(t, files, nil, true))

	want := []Chapter{
		{ID: "a", Href: "OEBPS/a.xhtml", MediaType: "application/xhtml+xml", Index: 0, Linear: true},
		{ID: "b", Href: "OEBPS/b.xhtml", MediaType: "application/xhtml+xml", Index: 1, Linear: false},
		{ID: "c", Href: "OEBPS/c.xhtml", MediaType: "application/xhtml+xml", Index: 2, Linear: true},
	}
	if got := book.Chapters(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Chapters() = %+v, want %+v", got, want)
	}
	if book.ChapterCount() != 3 {
		t.Errorf("ChapterCount() = %d, want 3", book.ChapterCount())
	}
}

func TestLoad_RepeatedSpineItem(t *testing.T) {
	opf := `<package xmlns="http://www.idpf.org/2007/opf" version="3.0">
  <manifest>
    <item id="a" href="a.xhtml" media-type="application/xhtml+xml"/>
    <item id="b" href="b.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine><itemref idref="a"/><itemref idref="b"/><itemref idref="a"/><itemref idref="a"/></spine>
</package>`
	files := map[string][]byte{
		"META-INF/container.xml": []byte(epubtest.ContainerXML),
		"OEBPS/content.opf":      []byte(opf),
		"OEBPS/a.xhtml":          []byte(epubtest.XHTML("a", "<p>a</p>")),
		"OEBPS/b.xhtml":          []byte(epubtest.XHTML("b", "<p>b</p>")),
	}
	_, book := openBook(t, epubtest.WriteFiles(t, files, nil, true))

	var ids []string
	for _, ch := range book.Chapters() {
		ids = append(ids, ch.ID)
		if ch.Href != "OEBPS/a.xhtml" && ch.Href != "OEBPS/b.xhtml" {
			t.Errorf("chapter %d Href = %q", ch.Index, ch.Href)
		}
	}
	want := []string{"a", "b", "a#2", "a#3"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("chapter ids = %v, want %v", ids, want)
	}
}

func TestLoad_Idempotent(t *testing.T) {
	path := epubtest.Write(t, epubtest.Book{Chapters: []epubtest.Chapter{
		{Body: "<p>one</p>"}, {Body: "<p>two</p>"},
	}})

	_, first := openBook(t, path)
	_, second := openBook(t, path)
	if !reflect.DeepEqual(first.Chapters(), second.Chapters()) {
		t.Fatalf("two loads differ: %+v vs %+v", first.Chapters(), second.Chapters())
	}
}

func TestLoad_InvalidManifest(t *testing.T) {
	chapter := []byte(epubtest.XHTML("c", "<p>c</p>"))
	tests := []struct {
		name  string
		files map[string][]byte
	}{
		{
			name: "missing package document",
			files: map[string][]byte{
				"META-INF/container.xml": []byte(epubtest.ContainerXML),
			},
		},
		{
			name: "empty spine",
			files: map[string][]byte{
				"META-INF/container.xml": []byte(epubtest.ContainerXML),
				"OEBPS/content.opf": []byte(`<package><manifest>
  <item id="c" href="c.xhtml" media-type="application/xhtml+xml"/></manifest><spine/></package>`),
				"OEBPS/c.xhtml": chapter,
			},
		},
		{
			name: "spine idref not in manifest",
			files: map[string][]byte{
				"META-INF/container.xml": []byte(epubtest.ContainerXML),
				"OEBPS/content.opf":      []byte(`<package><manifest/><spine><itemref idref="ghost"/></spine></package>`),
			},
		},
		{
			name: "spine item references missing entry",
			files: map[string][]byte{
				"META-INF/container.xml": []byte(epubtest.ContainerXML),
				"OEBPS/content.opf": []byte(`<package><manifest>
  <item id="c" href="missing.xhtml" media-type="application/xhtml+xml"/></manifest>
  <spine><itemref idref="c"/></spine></package>`),
			},
		},
		{
			name: "unparseable package document",
			files: map[string][]byte{
				"META-INF/container.xml": []byte(epubtest.ContainerXML),
				"OEBPS/content.opf":      []byte(`<package><manifest>`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg, err := Open(epubtest.WriteFiles(t, tt.files, nil, true))
			if err != nil {
				t.Fatalf("Open() failed: %v", err)
			}
			defer pkg.Close()

			_, err = Load(pkg)
			if !errors.Is(err, ErrInvalidManifest) {
				t.Fatalf("Load() error = %v, want ErrInvalidManifest", err)
			}
		})
	}
}

func TestBook_ChapterAt(t *testing.T) {
	_, book := openBook(t, epubtest.Write(t, epubtest.Book{Chapters: []epubtest.Chapter{
		{ID: "intro", Body: "<p>intro</p>"},
	}}))

	ch, err := book.ChapterAt(0)
	if err != nil {
		t.Fatalf("ChapterAt(0) failed: %v", err)
	}
	if ch.ID != "intro" || ch.Href != "OEBPS/text/intro.xhtml" {
		t.Errorf("ChapterAt(0) = %+v", ch)
	}

	for _, idx := range []int{-1, 1, 5} {
		if _, err := book.ChapterAt(idx); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("ChapterAt(%d) error = %v, want ErrIndexOutOfRange", idx, err)
		}
	}
}

func TestBook_MetadataAndResources(t *testing.T) {
	_, book := openBook(t, epubtest.Write(t, epubtest.Book{
		Title:       "Spreads",
		Creator:     "A. Writer",
		Description: "Two pages at a time.",
		Direction:   "rtl",
		Chapters:    []epubtest.Chapter{{Body: "<p>x</p>"}},
		Resources: []epubtest.Resource{
			{ID: "css", Href: "style.css", MediaType: "text/css", Data: []byte("p{}")},
		},
	}))

	md := book.Metadata()
	if md.Title != "Spreads" {
		t.Errorf("Title = %q, want %q", md.Title, "Spreads")
	}
	if len(md.Creators) != 1 || md.Creators[0].Name != "A. Writer" {
		t.Errorf("Creators = %+v", md.Creators)
	}
	if md.Description != "Two pages at a time." {
		t.Errorf("Description = %q", md.Description)
	}
	if !book.RightToLeft() {
		t.Error("RightToLeft() = false, want true")
	}
	if got := book.ResourceMIME("OEBPS/style.css"); got != "text/css" {
		t.Errorf("ResourceMIME() = %q, want %q", got, "text/css")
	}
	if got := book.ResourceMIME("OEBPS/unknown.css"); got != "" {
		t.Errorf("ResourceMIME(unknown) = %q, want empty", got)
	}
}

func TestIsMarkup(t *testing.T) {
	tests := map[string]bool{
		"application/xhtml+xml": true,
		"text/html":             true,
		"image/png":             false,
		"text/css":              false,
	}
	for mt, want := range tests {
		if got := IsMarkup(mt); got != want {
			t.Errorf("IsMarkup(%q) = %v, want %v", mt, got, want)
		}
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestBook_CoverThumbnail(t *testing.T) {
	pkg, book := openBook(t, epubtest.Write(t, epubtest.Book{
		Chapters: []epubtest.Chapter{{Body: "<p>x</p>"}},
		Resources: []epubtest.Resource{
			{ID: "cover", Href: "images/cover.png", MediaType: "image/png", Properties: "cover-image", Data: pngBytes(t, 200, 100)},
		},
	}))

	thumb, err := book.CoverThumbnail(pkg, 50, 50)
	if err != nil {
		t.Fatalf("CoverThumbnail() failed: %v", err)
	}
	if b := thumb.Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("thumbnail size = %dx%d, want 50x25", b.Dx(), b.Dy())
	}

	full, err := book.CoverThumbnail(pkg, 400, 400)
	if err != nil {
		t.Fatalf("CoverThumbnail() failed: %v", err)
	}
	if b := full.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Errorf("unscaled size = %dx%d, want 200x100", b.Dx(), b.Dy())
	}
}

func TestBook_CoverThumbnail_NoCover(t *testing.T) {
	pkg, book := openBook(t, epubtest.Write(t, epubtest.Book{
		Chapters: []epubtest.Chapter{{Body: "<p>x</p>"}},
	}))

	if _, err := book.CoverThumbnail(pkg, 10, 10); !errors.Is(err, ErrNoCover) {
		t.Fatalf("CoverThumbnail() error = %v, want ErrNoCover", err)
	}
}
