package epub

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strings"
	"sync"
)

// maxEntrySize caps the decompressed size of a single entry.
const maxEntrySize int64 = 256 * 1024 * 1024

const mimetypeEPUB = "application/epub+zip"

// Package provides access to the entries of an opened EPUB container.
// Entry reads may run concurrently with each other; Close waits for
// in-flight reads to finish.
type Package struct {
	path    string
	mu      sync.RWMutex
	zr      *zip.ReadCloser
	files   map[string]*zip.File
	lower   map[string]*zip.File
	names   []string
	opfPath string
	closed  bool
}

// container.xml structure
type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// Open opens an EPUB file and validates its container structure.
func Open(path string) (*Package, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}

	p := &Package{
		path:  path,
		zr:    zr,
		files: make(map[string]*zip.File, len(zr.File)),
		lower: make(map[string]*zip.File, len(zr.File)),
		names: make([]string, 0, len(zr.File)),
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := normalizePath(f.Name)
		p.files[name] = f
		if _, dup := p.lower[strings.ToLower(name)]; !dup {
			p.lower[strings.ToLower(name)] = f
		}
		p.names = append(p.names, name)
	}

	if err := p.validateMimetype(); err != nil {
		zr.Close()
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if err := p.parseContainer(); err != nil {
		zr.Close()
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return p, nil
}

// Path returns the filesystem path the package was opened from.
func (p *Package) Path() string {
	return p.path
}

// RootFile returns the path of the OPF package document.
func (p *Package) RootFile() string {
	return p.opfPath
}

// ListEntries returns the entry names in archive order.
func (p *Package) ListEntries() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil
	}
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Has reports whether an entry exists.
func (p *Package) Has(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.lookup(name) != nil
}

// ReadEntry reads the full contents of an entry.
func (p *Package) ReadEntry(name string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}

	f := p.lookup(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryMissing, name)
	}
	if f.UncompressedSize64 > uint64(maxEntrySize) {
		return nil, fmt.Errorf("%w: entry %s exceeds %d bytes", ErrCorrupt, name, maxEntrySize)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrCorrupt, name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrCorrupt, name, err)
	}
	if int64(len(data)) > maxEntrySize {
		return nil, fmt.Errorf("%w: entry %s exceeds %d bytes", ErrCorrupt, name, maxEntrySize)
	}
	return data, nil
}

// Close releases the archive handle. Later reads fail with ErrClosed.
func (p *Package) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.zr.Close()
}

// lookup finds an entry by exact name, then case-insensitively.
func (p *Package) lookup(name string) *zip.File {
	name = normalizePath(name)
	if f, ok := p.files[name]; ok {
		return f
	}
	return p.lower[strings.ToLower(name)]
}

// validateMimetype checks that the mimetype file exists and is valid
func (p *Package) validateMimetype() error {
	f, ok := p.files["mimetype"]
	if !ok {
		return ErrMimetypeNotFound
	}

	if f.Method != zip.Store {
		return ErrMimetypeCompressed
	}

	content, err := p.readFile(f)
	if err != nil {
		return fmt.Errorf("failed to read mimetype: %w", err)
	}

	if strings.TrimSpace(string(content)) != mimetypeEPUB {
		return ErrInvalidMimetype
	}

	return nil
}

// parseContainer parses container.xml to extract OPF path
func (p *Package) parseContainer() error {
	f := p.lookup("META-INF/container.xml")
	if f == nil {
		return ErrContainerNotFound
	}
	content, err := p.readFile(f)
	if err != nil {
		return ErrContainerNotFound
	}

	var c container
	if err := xml.Unmarshal(content, &c); err != nil {
		return fmt.Errorf("failed to parse container.xml: %w", err)
	}

	for _, rf := range c.Rootfiles.Rootfile {
		if rf.FullPath == "" {
			continue
		}
		if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
			p.opfPath = normalizePath(rf.FullPath)
			return nil
		}
	}

	// If no media-type match, use the first one
	if len(c.Rootfiles.Rootfile) > 0 && c.Rootfiles.Rootfile[0].FullPath != "" {
		p.opfPath = normalizePath(c.Rootfiles.Rootfile[0].FullPath)
		return nil
	}

	return ErrOPFPathNotFound
}

func (p *Package) readFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, maxEntrySize))
}

// normalizePath normalizes entry names (URL escapes, ./ and leading / prefixes)
func normalizePath(name string) string {
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	name = strings.TrimPrefix(name, "./")
	return strings.TrimPrefix(name, "/")
}
