// Package raster converts between encoded images and the flattened RGBA
// frames the comparator works on.
package raster

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/nfnt/resize"
)

const dataURLMarker = ";base64,"

// DefaultMaxPixels bounds the declared size of a decoded image: sixteen
// 400x300 frames.
const DefaultMaxPixels = 16 * 400 * 300

// Decode reads a PNG of at most DefaultMaxPixels and returns it as a tight
// NRGBA frame.
func Decode(r io.Reader) (*image.NRGBA, error) {
	return DecodeLimit(r, DefaultMaxPixels)
}

// DecodeLimit is Decode with an explicit pixel budget. The header is
// checked before any pixel data is read, so an oversized image is refused
// with ErrFrameSize without allocating its frame.
func DecodeLimit(r io.Reader, maxPixels int) (*image.NRGBA, error) {
	var head bytes.Buffer
	cfg, err := png.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if cfg.Width > maxPixels || cfg.Height > maxPixels || cfg.Width*cfg.Height > maxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrFrameSize, cfg.Width, cfg.Height, maxPixels)
	}

	img, err := png.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}
	return ToNRGBA(img), nil
}

// DecodeBase64 decodes a base64 PNG of at most DefaultMaxPixels. A data
// URL such as "data:image/png;base64,...." is accepted as well.
func DecodeBase64(s string) (*image.NRGBA, error) {
	return DecodeBase64Limit(s, DefaultMaxPixels)
}

// DecodeBase64Limit is DecodeBase64 with an explicit pixel budget.
func DecodeBase64Limit(s string, maxPixels int) (*image.NRGBA, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, dataURLMarker)
		if i < 0 {
			return nil, fmt.Errorf("%w: data url is not base64", ErrDecode)
		}
		s = s[i+len(dataURLMarker):]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return DecodeLimit(bytes.NewReader(raw), maxPixels)
}

// LoadFile decodes the PNG at path and normalizes it to a w x h frame.
func LoadFile(path string, w, h int) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return Normalize(img, w, h), nil
}

// ToNRGBA copies img into a zero-origin NRGBA whose stride is exactly four
// bytes per pixel. An image that already has that shape is returned as is.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) && n.Stride == 4*n.Rect.Dx() {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Normalize returns img as a w x h NRGBA frame, resizing with bilinear
// interpolation when the size differs.
func Normalize(img image.Image, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return ToNRGBA(img)
	}
	return ToNRGBA(resize.Resize(uint(w), uint(h), img, resize.Bilinear))
}

// FromPixels wraps a flattened RGBA buffer as a w x h frame. The buffer is
// not copied.
func FromPixels(pix []byte, w, h int) (*image.NRGBA, error) {
	if w <= 0 || h <= 0 || len(pix) != w*h*4 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrFrameSize, len(pix), w, h)
	}
	return &image.NRGBA{Pix: pix, Stride: 4 * w, Rect: image.Rect(0, 0, w, h)}, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return enc.Encode(w, img)
}
