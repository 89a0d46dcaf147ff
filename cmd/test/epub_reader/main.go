// Test program for the EPUB archive reader
//
// Usage:
//
//	go run ./cmd/test/epub_reader/main.go <epub-file-path> (<entry-name> ...)
//
// This program tests the following functionality:
// - Opening EPUB files (ZIP archive)
// - Validating the mimetype entry
// - Extracting the package document path from container.xml
// - Listing all entries in archive order
// - Reading entries, and failing to read after Close
package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/yuanying/epubspread/internal/epub"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/test/epub_reader/main.go <epub-file> (<entry-name> ...)")
		os.Exit(1)
	}

	epubPath := os.Args[1]
	entries := os.Args[2:]

	fmt.Printf("Opening EPUB file: %s\n", epubPath)
	pkg, err := epub.Open(epubPath)
	if err != nil {
		log.Fatalf("Failed to open EPUB: %v", err)
	}

	fmt.Printf("✓ EPUB opened successfully\n")
	fmt.Printf("Package document: %s\n\n", pkg.RootFile())

	names := pkg.ListEntries()
	fmt.Printf("Total entries: %d\n", len(names))
	fmt.Println("\nEntry list:")
	for _, name := range names {
		fmt.Printf("  - %s\n", name)
	}

	fmt.Println("\nReading package document...")
	opf, err := pkg.ReadEntry(pkg.RootFile())
	if err != nil {
		log.Fatalf("Failed to read package document: %v", err)
	}
	fmt.Printf("✓ Package document read successfully (%d bytes)\n", len(opf))

	for _, name := range entries {
		fmt.Printf("\nReading entry: %s\n", name)
		content, err := pkg.ReadEntry(name)
		if err != nil {
			log.Fatalf("Failed to read entry %s: %v", name, err)
		}
		fmt.Printf("✓ Entry %s read successfully (%d bytes)\n", name, len(content))
		fmt.Printf("Content:\n%s\n", string(content))
	}

	if err := pkg.Close(); err != nil {
		log.Fatalf("Failed to close EPUB: %v", err)
	}
	if _, err := pkg.ReadEntry(pkg.RootFile()); !errors.Is(err, epub.ErrClosed) {
		log.Fatalf("Read after Close returned %v, want ErrClosed", err)
	}
	fmt.Println("✓ Reads fail after Close")

	fmt.Println("\n✓ All tests passed!")
}
