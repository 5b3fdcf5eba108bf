// Package assets resolves recipe and ingredient image names against a local
// image directory and renders resized copies for the API.
package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/nfnt/resize"
)

// Placeholder is the image name used when no asset matches.
const Placeholder = "placeholder"

// MaxThumbnailWidth bounds requested thumbnail widths. Resizing allocates
// width² pixels for the placeholder, so larger requests are refused.
const MaxThumbnailWidth = 2048

// ErrWidthTooLarge is returned for widths above MaxThumbnailWidth.
var ErrWidthTooLarge = fmt.Errorf("thumbnail width exceeds %d", MaxThumbnailWidth)

var extensions = []string{".png", ".jpg", ".jpeg"}

// Library looks up images in a file system. A nil file system has no images.
type Library struct {
	fsys fs.FS
}

// NewLibrary creates a library over fsys.
func NewLibrary(fsys fs.FS) *Library {
	return &Library{fsys: fsys}
}

// NewDirLibrary creates a library over a directory. An empty dir yields a
// library with no images.
func NewDirLibrary(dir string) *Library {
	if dir == "" {
		return NewLibrary(nil)
	}
	return NewLibrary(os.DirFS(dir))
}

// lookup returns the file backing name. Names are matched lowercased, with
// or without one of the known extensions.
func (l *Library) lookup(name string) (string, bool) {
	if l.fsys == nil {
		return "", false
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || strings.ContainsAny(name, `/\`) || !fs.ValidPath(name) {
		return "", false
	}

	candidates := []string{name}
	if path.Ext(name) == "" {
		candidates = candidates[:0]
		for _, ext := range extensions {
			candidates = append(candidates, name+ext)
		}
	}
	for _, c := range candidates {
		if info, err := fs.Stat(l.fsys, c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}

// Has reports whether an asset exists for name.
func (l *Library) Has(name string) bool {
	_, ok := l.lookup(name)
	return ok
}

// Resolve returns the lowercased name if an asset exists for it and
// Placeholder otherwise.
func (l *Library) Resolve(name string) string {
	if !l.Has(name) {
		return Placeholder
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// Thumbnail renders the image for name at the given width, keeping the
// aspect ratio. A width of 0 keeps the original size. Unknown names render
// the placeholder. It returns the encoded bytes and their content type.
func (l *Library) Thumbnail(name string, width uint) ([]byte, string, error) {
	if width > MaxThumbnailWidth {
		return nil, "", ErrWidthTooLarge
	}

	img, format, err := l.open(name)
	if err != nil {
		return nil, "", err
	}

	if width > 0 {
		img = resize.Resize(width, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	contentType := "image/png"
	switch format {
	case "jpeg":
		contentType = "image/jpeg"
		err = jpeg.Encode(&buf, img, nil)
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), contentType, nil
}

func (l *Library) open(name string) (image.Image, string, error) {
	file, ok := l.lookup(name)
	if !ok {
		return PlaceholderImage(), "png", nil
	}

	f, err := l.fsys.Open(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image %s: %w", file, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image %s: %w", file, err)
	}
	return img, format, nil
}

// PlaceholderImage draws the generic stand-in image: a grey tile with a
// darker frame.
func PlaceholderImage() image.Image {
	const size, border = 256, 12
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 160, G: 160, B: 160, A: 255}}, image.Point{}, draw.Src)
	inner := image.Rect(border, border, size-border, size-border)
	draw.Draw(img, inner, &image.Uniform{C: color.RGBA{R: 224, G: 224, B: 224, A: 255}}, image.Point{}, draw.Src)
	return img
}
