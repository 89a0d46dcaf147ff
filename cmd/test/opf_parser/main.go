// Test program for the content model
//
// Usage:
//   go run ./cmd/test/opf_parser/main.go <epub-file-path>
//
// This program will:
// - Open the EPUB file
// - Load the package document
// - Display metadata (title, authors, language, etc.)
// - Summarize the manifest
// - Show the chapters in spine order
// - Show the detected cover image

package main

import (
	"fmt"
	"os"

	"github.com/yuanying/epubspread/internal/epub"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <epub-file-path>\n", os.Args[0])
		os.Exit(1)
	}

	epubPath := os.Args[1]

	fmt.Println("=== EPUB Content Model Test ===")
	fmt.Printf("File: %s\n\n", epubPath)

	pkg, err := epub.Open(epubPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening EPUB: %v\n", err)
		os.Exit(1)
	}
	defer pkg.Close()

	book, err := epub.Load(pkg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading EPUB: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✓ Package document loaded successfully")

	md := book.Metadata()
	fmt.Println("--- Metadata ---")
	fmt.Printf("Title:       %s\n", md.Title)
	fmt.Printf("Language:    %s\n", md.Language)
	fmt.Printf("Identifier:  %s\n", md.Identifier)
	if len(md.Creators) > 0 {
		fmt.Println("Creators:")
		for i, creator := range md.Creators {
			role := creator.Role
			if role == "" {
				role = "unknown"
			}
			fmt.Printf("  %d. %s (role: %s)\n", i+1, creator.Name, role)
		}
	}
	if md.Publisher != "" {
		fmt.Printf("Publisher:   %s\n", md.Publisher)
	}
	if md.Description != "" {
		fmt.Printf("Description: %s\n", md.Description)
	}
	if book.RightToLeft() {
		fmt.Println("Direction:   right to left")
	}

	fmt.Printf("\n--- Chapters ---\n")
	fmt.Printf("Total: %d\n\n", book.ChapterCount())
	for _, ch := range book.Chapters() {
		linear := "yes"
		if !ch.Linear {
			linear = "no"
		}
		fmt.Printf("  %d. %s [%s] (%s, linear: %s)\n", ch.Index+1, ch.Href, ch.ID, ch.MediaType, linear)
	}

	fmt.Printf("\n--- Cover ---\n")
	if cover := book.DetectCover(); cover != nil {
		fmt.Printf("Cover Image: %s (%s)\n", cover.Href, cover.MediaType)
	} else {
		fmt.Println("Cover Image: (not found)")
	}

	fmt.Println("\n=== Test Completed Successfully ===")
}
