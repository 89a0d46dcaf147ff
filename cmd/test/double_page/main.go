// Test program for double-page navigation
//
// Usage:
//
//	go run ./cmd/test/double_page/main.go <epub-file-path>
//
// This program will:
// - Open the EPUB file in spread mode
// - Turn pages forward until the end of the book, printing the progress
//   label and the pages shown on each side
// - Turn pages back to the start of the book
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/yuanying/epubspread/internal/flow"
	"github.com/yuanying/epubspread/internal/session"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/test/double_page/main.go <epub-file>")
		os.Exit(1)
	}

	layout := flow.DefaultLayout()
	layout.Viewport = flow.Viewport{Width: 500, Height: 600}

	s, err := session.Open(os.Args[1], session.Options{
		Layout: layout,
		Spread: true,
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	})
	if err != nil {
		log.Fatalf("Failed to open EPUB: %v", err)
	}
	defer s.Close()

	fmt.Println("=== Forward ===")
	forward := 1
	show(s)
	for {
		moved, err := s.PageNext()
		if err != nil {
			log.Fatalf("PageNext failed: %v", err)
		}
		if !moved {
			break
		}
		forward++
		show(s)
	}

	fmt.Println("\n=== Backward ===")
	backward := 1
	for {
		moved, err := s.PagePrev()
		if err != nil {
			log.Fatalf("PagePrev failed: %v", err)
		}
		if !moved {
			break
		}
		backward++
	}
	show(s)

	fmt.Printf("\n✓ %d spreads forward, %d back\n", forward, backward)
	if forward != backward {
		log.Fatalf("forward and backward walks differ")
	}
}

func show(s *session.Session) {
	pos, err := s.Pos()
	if err != nil {
		log.Fatalf("Pos failed: %v", err)
	}
	chapter, _ := s.Chapter()
	n, _ := s.NChapters()
	left, right, _ := s.Spread()
	fmt.Printf("%5.2f%% / %d / %d  [%s | %s]\n", pos, chapter+1, n, side(left), side(right))
}

func side(page int) string {
	if page < 0 {
		return "-"
	}
	return fmt.Sprint(page + 1)
}
