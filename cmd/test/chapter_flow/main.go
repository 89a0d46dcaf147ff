// Test program for chapter extraction and pagination
//
// Usage:
//
//	go run ./cmd/test/chapter_flow/main.go <epub-file-path> [chapter-index] [width] [height]
//
// This program will:
// - Open and load the EPUB file
// - Extract the chunks of one chapter (default: 0)
// - Paginate the chapter for the given viewport (default: 600x800)
// - Print every chunk and the first characters of every page
package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/yuanying/epubspread/internal/epub"
	"github.com/yuanying/epubspread/internal/flow"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/test/chapter_flow/main.go <epub-file> [chapter-index] [width] [height]")
		os.Exit(1)
	}

	epubPath := os.Args[1]
	index := intArg(2, 0)
	layout := flow.DefaultLayout()
	layout.Width = intArg(3, layout.Width)
	layout.Height = intArg(4, layout.Height)

	pkg, err := epub.Open(epubPath)
	if err != nil {
		log.Fatalf("Failed to open EPUB: %v", err)
	}
	defer pkg.Close()

	book, err := epub.Load(pkg)
	if err != nil {
		log.Fatalf("Failed to load EPUB: %v", err)
	}

	ch, err := book.ChapterAt(index)
	if err != nil {
		log.Fatalf("Failed to get chapter: %v", err)
	}
	fmt.Printf("Chapter %d: %s (%s)\n", ch.Index, ch.Href, ch.MediaType)

	content, err := pkg.ReadEntry(ch.Href)
	if err != nil {
		log.Fatalf("Failed to read chapter: %v", err)
	}
	chunks, err := flow.Extract(content, ch.MediaType, ch.Href)
	if err != nil {
		log.Fatalf("Failed to extract chapter: %v", err)
	}

	fmt.Printf("\n=== Chunks (%d) ===\n", len(chunks))
	for i, c := range chunks {
		text := strings.ReplaceAll(c.Text, "\n", `\n`)
		if len(text) > 60 {
			text = text[:60] + "..."
		}
		suffix := ""
		if c.Break {
			suffix = " [break]"
		}
		if c.Kind == flow.Image {
			text = c.Src
		}
		fmt.Printf("%4d. @%-6d %-7s %s%s\n", i+1, c.Offset, c.Kind, text, suffix)
	}

	breaks, err := flow.Paginate(chunks, layout, flow.NewImageCache(pkg))
	if err != nil {
		log.Fatalf("Failed to paginate: %v", err)
	}

	fmt.Printf("\n=== Pages (%d) at %dx%d ===\n", breaks.Pages(), layout.Width, layout.Height)
	for i := range breaks.Pages() {
		start, end := breaks.Span(i)
		if end < 0 {
			end = math.MaxInt
		}
		text := strings.Join(strings.Fields(flow.Text(chunks, start, end)), " ")
		if len(text) > 60 {
			text = text[:60] + "..."
		}
		fmt.Printf("%4d. @%-6d %s\n", i+1, start, text)
	}
}

func intArg(i, def int) int {
	if len(os.Args) <= i {
		return def
	}
	n, err := strconv.Atoi(os.Args[i])
	if err != nil {
		log.Fatalf("Invalid argument %q: %v", os.Args[i], err)
	}
	return n
}
