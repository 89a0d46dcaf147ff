package epub

import "errors"

// Sentinel errors returned by the epub package.
var (
	// ErrNotFound indicates the package path does not resolve.
	ErrNotFound = errors.New("epub: package not found")

	// ErrCorrupt indicates the file is not a readable EPUB container
	// (not a zip, bad mimetype, missing or invalid container.xml).
	ErrCorrupt = errors.New("epub: corrupt package")

	// ErrInvalidManifest indicates the OPF package document is missing,
	// has no spine, or references entries that do not exist.
	ErrInvalidManifest = errors.New("epub: invalid manifest")

	// ErrEntryMissing indicates the requested entry is not in the archive.
	ErrEntryMissing = errors.New("epub: entry missing")

	// ErrClosed indicates the package was used after Close.
	ErrClosed = errors.New("epub: package closed")

	// ErrIndexOutOfRange indicates a chapter index outside [0, ChapterCount).
	ErrIndexOutOfRange = errors.New("epub: chapter index out of range")

	// ErrNoCover indicates no cover image could be detected.
	ErrNoCover = errors.New("epub: no cover image found")
)

// Container validation failures. They are wrapped together with ErrCorrupt.
var (
	ErrInvalidMimetype    = errors.New("invalid mimetype: must be 'application/epub+zip'")
	ErrMimetypeCompressed = errors.New("mimetype must not be compressed")
	ErrMimetypeNotFound   = errors.New("mimetype file not found")
	ErrContainerNotFound  = errors.New("META-INF/container.xml not found")
	ErrOPFPathNotFound    = errors.New("OPF path not found in container.xml")
)
