package raster

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/phanxgames/canopy"
)

// DefaultMaxSurfaceSize is the largest surface edge Backend allocates.
const DefaultMaxSurfaceSize = 16384

// Backend is the software canopy.Backend.
type Backend struct {
	// MaxSurfaceSize bounds surface width and height. Larger requests fail
	// with canopy.ErrResourceExhausted.
	MaxSurfaceSize int
}

// New creates a backend with DefaultMaxSurfaceSize.
func New() *Backend {
	return &Backend{MaxSurfaceSize: DefaultMaxSurfaceSize}
}

var _ canopy.Backend = (*Backend)(nil)

// NewSurface allocates a transparent surface.
func (b *Backend) NewSurface(width, height int) (canopy.Surface, error) {
	limit := b.MaxSurfaceSize
	if limit <= 0 {
		limit = DefaultMaxSurfaceSize
	}
	if width <= 0 || height <= 0 || width > limit || height > limit {
		return nil, fmt.Errorf("%w: surface %dx%d outside 1..%d", canopy.ErrResourceExhausted, width, height, limit)
	}
	s := &Surface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
	s.canvas = newCanvas(s.img)
	return s, nil
}

// NewImage copies src into a premultiplied image.
func (b *Backend) NewImage(src image.Image) (canopy.Image, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, &canopy.ParamError{Kind: "image", Field: "src", Value: src, Reason: "must be a non-empty image"}
	}
	return &Image{img: toRGBA(src)}, nil
}

// Image is a premultiplied in-memory image.
type Image struct {
	img      *image.RGBA
	disposed bool
}

// WrapRGBA adopts img without copying.
func WrapRGBA(img *image.RGBA) *Image { return &Image{img: img} }

// RGBA returns the underlying pixels, or nil once disposed.
func (i *Image) RGBA() *image.RGBA {
	if i.disposed {
		return nil
	}
	return i.img
}

func (i *Image) Width() int  { return i.img.Bounds().Dx() }
func (i *Image) Height() int { return i.img.Bounds().Dy() }

// Dispose drops the pixel buffer.
func (i *Image) Dispose() {
	i.disposed = true
}

// IsDisposed reports whether Dispose was called.
func (i *Image) IsDisposed() bool { return i.disposed }

// ToImage converts to straight alpha.
func (i *Image) ToImage() (*image.NRGBA, error) {
	if i.disposed {
		return nil, canopy.ErrDisposed
	}
	return imaging.Clone(i.img), nil
}

// Surface is an offscreen RGBA buffer.
type Surface struct {
	img      *image.RGBA
	canvas   *Canvas
	disposed bool
}

func (s *Surface) Width() int            { return s.img.Bounds().Dx() }
func (s *Surface) Height() int           { return s.img.Bounds().Dy() }
func (s *Surface) Canvas() canopy.Canvas { return s.canvas }

// RGBA exposes the surface pixels.
func (s *Surface) RGBA() *image.RGBA { return s.img }

// Flush closes layers left open; drawing is otherwise immediate.
func (s *Surface) Flush() error {
	if s.disposed {
		return canopy.ErrDisposed
	}
	s.canvas.restoreAll()
	return nil
}

// Snapshot copies the pixels into a new Image.
func (s *Surface) Snapshot() (canopy.Image, error) {
	if s.disposed {
		return nil, canopy.ErrDisposed
	}
	return &Image{img: cloneRGBA(s.img)}, nil
}

func (s *Surface) Dispose() {
	s.disposed = true
}

func imageOf(img canopy.Image) *image.RGBA {
	ri, ok := img.(*Image)
	if !ok || ri == nil || ri.disposed {
		return nil
	}
	return ri.img
}

func toRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
