package canopy

import (
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
)

// DefaultMaxSurfaceSize is the largest surface edge EbitenBackend allocates.
const DefaultMaxSurfaceSize = 8192

// EbitenBackend renders with Ebitengine. Surfaces are offscreen
// ebiten.Images; effects are Kage shaders and triangle meshes. Like all
// Ebitengine drawing it must be used from the game goroutine.
type EbitenBackend struct {
	// MaxSurfaceSize bounds surface width and height. Larger requests fail
	// with ErrResourceExhausted.
	MaxSurfaceSize int

	pool renderTexturePool
}

// NewEbitenBackend creates a backend with DefaultMaxSurfaceSize.
func NewEbitenBackend() *EbitenBackend {
	return &EbitenBackend{MaxSurfaceSize: DefaultMaxSurfaceSize}
}

// NewSurface allocates an offscreen surface.
func (b *EbitenBackend) NewSurface(width, height int) (Surface, error) {
	limit := b.MaxSurfaceSize
	if limit <= 0 {
		limit = DefaultMaxSurfaceSize
	}
	if width <= 0 || height <= 0 || width > limit || height > limit {
		return nil, fmt.Errorf("%w: surface %dx%d outside 1..%d", ErrResourceExhausted, width, height, limit)
	}
	img := ebiten.NewImageWithOptions(image.Rect(0, 0, width, height), &ebiten.NewImageOptions{Unmanaged: true})
	s := &ebitenSurface{img: img}
	s.canvas = newEbitenCanvas(img, &b.pool)
	return s, nil
}

// NewImage uploads src.
func (b *EbitenBackend) NewImage(src image.Image) (Image, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, paramErr("image", "src", src, "must be a non-empty image")
	}
	return &ebitenImage{img: ebiten.NewImageFromImage(src)}, nil
}

// ScreenCanvas returns a canvas drawing directly into screen, typically the
// image passed to ebiten.Game.Draw.
func (b *EbitenBackend) ScreenCanvas(screen *ebiten.Image) Canvas {
	return newEbitenCanvas(screen, &b.pool)
}

// Dispose frees pooled layer textures.
func (b *EbitenBackend) Dispose() {
	b.pool.Dispose()
}

// WrapEbitenImage adopts img as an Image; disposing the result deallocates
// img.
func WrapEbitenImage(img *ebiten.Image) Image {
	return &ebitenImage{img: img}
}

// EbitenImageOf returns the ebiten.Image behind img, or nil when img does
// not come from EbitenBackend or has been disposed.
func EbitenImageOf(img Image) *ebiten.Image {
	return ebitenImageOf(img)
}

func ebitenImageOf(img Image) *ebiten.Image {
	ei, ok := img.(*ebitenImage)
	if !ok || ei == nil || ei.disposed {
		return nil
	}
	return ei.img
}

// --- images ---

type ebitenImage struct {
	img      *ebiten.Image
	disposed bool
}

func (i *ebitenImage) Width() int  { return i.img.Bounds().Dx() }
func (i *ebitenImage) Height() int { return i.img.Bounds().Dy() }

func (i *ebitenImage) Dispose() {
	if i.disposed {
		return
	}
	i.disposed = true
	i.img.Deallocate()
}

// ToImage reads the pixels back from the GPU.
func (i *ebitenImage) ToImage() (*image.NRGBA, error) {
	if i.disposed {
		return nil, ErrDisposed
	}
	b := i.img.Bounds()
	pixels := make([]byte, 4*b.Dx()*b.Dy())
	i.img.ReadPixels(pixels)
	return unpremultiply(pixels, b.Dx(), b.Dy()), nil
}

// --- surfaces ---

type ebitenSurface struct {
	img      *ebiten.Image
	canvas   *ebitenCanvas
	disposed bool
}

func (s *ebitenSurface) Width() int     { return s.img.Bounds().Dx() }
func (s *ebitenSurface) Height() int    { return s.img.Bounds().Dy() }
func (s *ebitenSurface) Canvas() Canvas { return s.canvas }

// Flush closes layers left open. Ebitengine submits draw calls itself at
// the end of the frame.
func (s *ebitenSurface) Flush() error {
	if s.disposed {
		return ErrDisposed
	}
	s.canvas.restoreAll()
	return nil
}

func (s *ebitenSurface) Snapshot() (Image, error) {
	if s.disposed {
		return nil, ErrDisposed
	}
	b := s.img.Bounds()
	snap := ebiten.NewImage(b.Dx(), b.Dy())
	copyImage(snap, s.img)
	return &ebitenImage{img: snap}, nil
}

func (s *ebitenSurface) Dispose() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.canvas.restoreAll()
	s.img.Deallocate()
}

// --- blend modes ---

// EbitenBlend returns the ebiten.Blend value corresponding to this BlendMode.
func (b BlendMode) EbitenBlend() ebiten.Blend {
	switch b {
	case BlendNormal:
		return ebiten.BlendSourceOver
	case BlendAdd:
		return ebiten.BlendLighter
	case BlendMultiply:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorDestinationColor,
			BlendFactorSourceAlpha:      ebiten.BlendFactorDestinationAlpha,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceAlpha,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendScreen:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorOne,
			BlendFactorSourceAlpha:      ebiten.BlendFactorOne,
			BlendFactorDestinationRGB:   ebiten.BlendFactorOneMinusSourceColor,
			BlendFactorDestinationAlpha: ebiten.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendErase:
		return ebiten.BlendDestinationOut
	case BlendMask:
		return ebiten.Blend{
			BlendFactorSourceRGB:        ebiten.BlendFactorZero,
			BlendFactorSourceAlpha:      ebiten.BlendFactorZero,
			BlendFactorDestinationRGB:   ebiten.BlendFactorSourceAlpha,
			BlendFactorDestinationAlpha: ebiten.BlendFactorSourceAlpha,
			BlendOperationRGB:           ebiten.BlendOperationAdd,
			BlendOperationAlpha:         ebiten.BlendOperationAdd,
		}
	case BlendBelow:
		return ebiten.BlendDestinationOver
	case BlendNone:
		return ebiten.BlendCopy
	default:
		return ebiten.BlendSourceOver
	}
}

// --- white pixel ---

var whitePixelImage *ebiten.Image

// ensureWhitePixel returns the 1x1 white source image solid fills sample.
// It is cut from a 3x3 image so linear filtering never reads outside it.
func ensureWhitePixel() *ebiten.Image {
	if whitePixelImage == nil {
		base := ebiten.NewImage(3, 3)
		base.Fill(color.White)
		whitePixelImage = base.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
	}
	return whitePixelImage
}
