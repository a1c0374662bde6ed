// Package assets decodes product overlay images and keeps them in memory
// for the lifetime of the process.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"

	"github.com/ayusman/kundan/internal/catalog"
	"github.com/ayusman/kundan/internal/log"
)

// MaxDimension bounds the width and height of an overlay image.
const MaxDimension = 4096

var (
	// ErrUnsupported is returned for data that is not PNG, JPEG or WebP.
	ErrUnsupported = errors.New("unsupported image format")
	// ErrTooLarge is returned when an image exceeds MaxDimension.
	ErrTooLarge = errors.New("image too large")
)

// Products looks up catalog entries.
type Products interface {
	GetByID(id string) (*catalog.Product, error)
}

type entry struct {
	path string
	img  image.Image
}

// Loader resolves product IDs to decoded images. Images are shared
// read-only between sessions and reloaded only when a product's image
// path changes.
type Loader struct {
	products Products
	baseDir  string
	log      *logrus.Entry

	mu    sync.Mutex
	cache map[string]entry
}

// NewLoader creates a Loader. Relative image paths resolve against baseDir.
func NewLoader(products Products, baseDir string, logger *logrus.Entry) *Loader {
	if logger == nil {
		logger = log.Discard()
	}
	return &Loader{
		products: products,
		baseDir:  baseDir,
		log:      logger,
		cache:    make(map[string]entry),
	}
}

// Load returns the overlay image of product id.
func (l *Loader) Load(ctx context.Context, id string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := l.products.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", id, err)
	}
	path := p.ImagePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.baseDir, path)
	}

	l.mu.Lock()
	if e, ok := l.cache[id]; ok && e.path == path {
		l.mu.Unlock()
		return e.img, nil
	}
	l.mu.Unlock()

	img, err := DecodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", id, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[id] = entry{path: path, img: img}
	l.mu.Unlock()

	l.log.WithFields(log.Fields{"product": id, "size": img.Bounds().Size()}).Debug("overlay image loaded")
	return img, nil
}

// Invalidate drops the cached image of product id.
func (l *Loader) Invalidate(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, id)
}

// Cached returns how many images are held.
func (l *Loader) Cached() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.cache)
}

// DecodeFile decodes the image at path.
func DecodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(bytes.NewReader(data))
	return img, err
}

// Decode checks the header of r and decodes it, returning the format name.
func Decode(r io.ReadSeeker) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupported
		}
		return nil, "", fmt.Errorf("read image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: empty image", ErrUnsupported)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, "", err
	}
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", format, err)
	}
	return img, format, nil
}
