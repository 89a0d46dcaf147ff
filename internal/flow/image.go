package flow

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	_ "golang.org/x/image/webp"
)

// maxImagePixels bounds the images a page makes room for. Larger images
// count as unknown size.
const maxImagePixels = 100 * 1000 * 1000

// EntryReader reads archive entries by name.
type EntryReader interface {
	ReadEntry(name string) ([]byte, error)
}

type imageSize struct {
	w, h int
	err  error
}

// ImageCache measures images by decoding only their headers and remembers
// the result per entry name. It is safe for concurrent use.
type ImageCache struct {
	r     EntryReader
	mu    sync.Mutex
	sizes map[string]imageSize
}

func NewImageCache(r EntryReader) *ImageCache {
	return &ImageCache{r: r, sizes: make(map[string]imageSize)}
}

// ImageSize implements ImageSizer.
func (c *ImageCache) ImageSize(src string) (int, int, error) {
	c.mu.Lock()
	s, ok := c.sizes[src]
	c.mu.Unlock()
	if ok {
		return s.w, s.h, s.err
	}

	s = c.measure(src)

	c.mu.Lock()
	c.sizes[src] = s
	c.mu.Unlock()
	return s.w, s.h, s.err
}

func (c *ImageCache) measure(src string) imageSize {
	data, err := c.r.ReadEntry(src)
	if err != nil {
		return imageSize{err: err}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return imageSize{err: fmt.Errorf("measure %s: %w", src, err)}
	}
	if pixels := uint64(cfg.Width) * uint64(cfg.Height); pixels > maxImagePixels {
		return imageSize{err: fmt.Errorf("measure %s: image too large: %dx%d", src, cfg.Width, cfg.Height)}
	}
	return imageSize{w: cfg.Width, h: cfg.Height}
}
