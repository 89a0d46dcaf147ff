// Package epubtest builds small EPUB files for tests.
package epubtest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Chapter is one spine document of a generated book.
type Chapter struct {
	ID        string // manifest id; defaults to "ch<N>"
	Href      string // path relative to OEBPS; defaults to "text/<ID>.xhtml"
	MediaType string // defaults to application/xhtml+xml
	Body      string // inner HTML of <body>, wrapped in an XHTML skeleton
	Raw       []byte // used verbatim instead of Body when non-nil
	NonLinear bool
}

// Resource is an extra manifest item (images, stylesheets).
type Resource struct {
	ID         string
	Href       string // relative to OEBPS
	MediaType  string
	Properties string
	Data       []byte
}

// Book describes a generated EPUB.
type Book struct {
	Title       string
	Creator     string
	Language    string
	Description string
	Direction   string // page-progression-direction
	Chapters    []Chapter
	Resources   []Resource
}

// Write writes b as an EPUB into a temp dir and returns its path.
func Write(t testing.TB, b Book) string {
	t.Helper()
	files := map[string][]byte{
		"META-INF/container.xml": []byte(ContainerXML),
		"OEBPS/content.opf":      []byte(b.opf()),
	}
	var order []string
	order = append(order, "META-INF/container.xml", "OEBPS/content.opf")
	for i, ch := range b.Chapters {
		ch = ch.withDefaults(i)
		name := "OEBPS/" + ch.Href
		if ch.Raw != nil {
			files[name] = ch.Raw
		} else {
			files[name] = []byte(XHTML(ch.ID, ch.Body))
		}
		order = append(order, name)
	}
	for _, r := range b.Resources {
		name := "OEBPS/" + r.Href
		files[name] = r.Data
		order = append(order, name)
	}
	return WriteFiles(t, files, order, true)
}

// WriteFiles writes a zip with the given entries. When withMimetype is set a
// stored "mimetype" entry is written first. order fixes the entry order;
// entries of files missing from order are appended afterwards.
func WriteFiles(t testing.TB, files map[string][]byte, order []string, withMimetype bool) string {
	t.Helper()
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	if withMimetype {
		mw, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
		if err != nil {
			t.Fatalf("epubtest: create mimetype: %v", err)
		}
		if _, err := mw.Write([]byte("application/epub+zip")); err != nil {
			t.Fatalf("epubtest: write mimetype: %v", err)
		}
	}

	written := make(map[string]bool, len(files))
	write := func(name string) {
		if written[name] {
			return
		}
		data, ok := files[name]
		if !ok {
			return
		}
		written[name] = true
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("epubtest: create %s: %v", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("epubtest: write %s: %v", name, err)
		}
	}
	for _, name := range order {
		write(name)
	}
	for name := range files {
		write(name)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("epubtest: close writer: %v", err)
	}

	fp := filepath.Join(t.TempDir(), "book.epub")
	if err := os.WriteFile(fp, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("epubtest: write file: %v", err)
	}
	return fp
}

// ContainerXML points at OEBPS/content.opf.
const ContainerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// XHTML wraps body in a minimal XHTML document.
func XHTML(title, body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>` + title + `</title></head>
<body>` + body + `</body>
</html>`
}

// Paragraphs returns n <p> elements each holding text.
func Paragraphs(n int, text string) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString("<p>")
		sb.WriteString(text)
		sb.WriteString("</p>")
	}
	return sb.String()
}

func (c Chapter) withDefaults(i int) Chapter {
	if c.ID == "" {
		c.ID = fmt.Sprintf("ch%d", i+1)
	}
	if c.Href == "" {
		c.Href = "text/" + c.ID + ".xhtml"
	}
	if c.MediaType == "" {
		c.MediaType = "application/xhtml+xml"
	}
	return c
}

func (b Book) opf() string {
	title := b.Title
	if title == "" {
		title = "Test Book"
	}
	lang := b.Language
	if lang == "" {
		lang = "en"
	}

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
`)
	fmt.Fprintf(&sb, "    <dc:title>%s</dc:title>\n", title)
	fmt.Fprintf(&sb, "    <dc:language>%s</dc:language>\n", lang)
	sb.WriteString("    <dc:identifier id=\"uid\">urn:uuid:epubtest</dc:identifier>\n")
	if b.Creator != "" {
		fmt.Fprintf(&sb, "    <dc:creator>%s</dc:creator>\n", b.Creator)
	}
	if b.Description != "" {
		fmt.Fprintf(&sb, "    <dc:description>%s</dc:description>\n", b.Description)
	}
	sb.WriteString("  </metadata>\n  <manifest>\n")
	for i, ch := range b.Chapters {
		ch = ch.withDefaults(i)
		fmt.Fprintf(&sb, "    <item id=%q href=%q media-type=%q/>\n", ch.ID, ch.Href, ch.MediaType)
	}
	for _, r := range b.Resources {
		if r.Properties != "" {
			fmt.Fprintf(&sb, "    <item id=%q href=%q media-type=%q properties=%q/>\n", r.ID, r.Href, r.MediaType, r.Properties)
		} else {
			fmt.Fprintf(&sb, "    <item id=%q href=%q media-type=%q/>\n", r.ID, r.Href, r.MediaType)
		}
	}
	sb.WriteString("  </manifest>\n")
	if b.Direction != "" {
		fmt.Fprintf(&sb, "  <spine page-progression-direction=%q>\n", b.Direction)
	} else {
		sb.WriteString("  <spine>\n")
	}
	for i, ch := range b.Chapters {
		ch = ch.withDefaults(i)
		if ch.NonLinear {
			fmt.Fprintf(&sb, "    <itemref idref=%q linear=\"no\"/>\n", ch.ID)
		} else {
			fmt.Fprintf(&sb, "    <itemref idref=%q/>\n", ch.ID)
		}
	}
	sb.WriteString("  </spine>\n</package>")
	return sb.String()
}
