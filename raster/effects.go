package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"github.com/phanxgames/canopy"
)

type shaderKind uint8

const (
	shaderColor shaderKind = iota
	shaderImage
)

type shader struct {
	kind         shaderKind
	color        canopy.Color
	img          *image.RGBA
	tileX, tileY canopy.TileMode
	local        canopy.Matrix
}

func (*shader) Capability() canopy.Capability { return canopy.CapShader }

// colorFunc returns a rasterx colour function sampling the shader image in
// device space. ctm maps the shader's local space to device pixels.
func (s *shader) colorFunc(ctm canopy.Matrix, opacity float64) func(x, y int) color.Color {
	inv := ctm.Multiply(s.local).Invert()
	b := s.img.Bounds()
	w, h := b.Dx(), b.Dy()
	alpha := uint32(math.Round(clamp01(opacity) * 0xffff))
	return func(x, y int) color.Color {
		fx, fy := inv.Apply(float64(x)+0.5, float64(y)+0.5)
		ix, okx := tileCoord(int(math.Floor(fx)), w, s.tileX)
		iy, oky := tileCoord(int(math.Floor(fy)), h, s.tileY)
		if !okx || !oky {
			return color.RGBA{}
		}
		c := s.img.RGBAAt(b.Min.X+ix, b.Min.Y+iy)
		if alpha == 0xffff {
			return c
		}
		return color.RGBA64{
			R: uint16(uint32(c.R) * 0x101 * alpha / 0xffff),
			G: uint16(uint32(c.G) * 0x101 * alpha / 0xffff),
			B: uint16(uint32(c.B) * 0x101 * alpha / 0xffff),
			A: uint16(uint32(c.A) * 0x101 * alpha / 0xffff),
		}
	}
}

// tileCoord maps v into [0, n) with mode. Decal reports false outside.
func tileCoord(v, n int, mode canopy.TileMode) (int, bool) {
	if n <= 0 {
		return 0, false
	}
	switch mode {
	case canopy.TileClamp:
		return min(max(v, 0), n-1), true
	case canopy.TileRepeat:
		return ((v % n) + n) % n, true
	case canopy.TileMirror:
		t := ((v % (2 * n)) + 2*n) % (2 * n)
		if t >= n {
			t = 2*n - 1 - t
		}
		return t, true
	default:
		return v, v >= 0 && v < n
	}
}

// --- colour filters ---

type colorFilter struct {
	ops []canopy.ColorOp
}

func (*colorFilter) Capability() canopy.Capability { return canopy.CapColorFilter }

func (f *colorFilter) apply(src *image.RGBA) *image.RGBA {
	out := imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		in := canopy.Color{
			R: float64(c.R) / 255,
			G: float64(c.G) / 255,
			B: float64(c.B) / 255,
			A: float64(c.A) / 255,
		}
		return canopy.ApplyColorOps(f.ops, in).NRGBA()
	})
	return toRGBA(out)
}

// --- image filters ---

type filterKind uint8

const (
	filterBlur filterKind = iota
	filterOffset
	filterColor
)

type imageFilter struct {
	kind   filterKind
	sigmaX float64
	sigmaY float64
	mode   canopy.TileMode
	dx, dy float64
	cf     *colorFilter
	input  *imageFilter
}

func (*imageFilter) Capability() canopy.Capability { return canopy.CapImageFilter }

// apply returns a new filtered image; src is not modified. Parameters are
// scaled into device space by ctm.
func (f *imageFilter) apply(src *image.RGBA, ctm canopy.Matrix) *image.RGBA {
	if f.input != nil {
		src = f.input.apply(src, ctm)
	}
	switch f.kind {
	case filterBlur:
		sx := f.sigmaX * math.Hypot(ctm[0], ctm[1])
		sy := f.sigmaY * math.Hypot(ctm[2], ctm[3])
		return blur(src, sx, sy, f.mode)
	case filterOffset:
		dx := ctm[0]*f.dx + ctm[2]*f.dy
		dy := ctm[1]*f.dx + ctm[3]*f.dy
		out := image.NewRGBA(src.Bounds())
		shift := image.Pt(int(math.Round(dx)), int(math.Round(dy)))
		draw.Draw(out, src.Bounds().Add(shift), src, src.Bounds().Min, draw.Src)
		return out
	default:
		if f.cf == nil {
			return cloneRGBA(src)
		}
		return f.cf.apply(src)
	}
}

// blurSigma folds per-axis sigmas into the single sigma imaging supports:
// the geometric mean, or the mean when one axis is zero.
func blurSigma(sx, sy float64) float64 {
	if sx > 0 && sy > 0 {
		return math.Sqrt(sx * sy)
	}
	return (sx + sy) / 2
}

// blur pads src by three sigmas using mode, blurs it and crops the result
// back to src's bounds.
func blur(src *image.RGBA, sx, sy float64, mode canopy.TileMode) *image.RGBA {
	sigma := blurSigma(sx, sy)
	if sigma <= 0 {
		return cloneRGBA(src)
	}
	pad := int(math.Ceil(3 * sigma))
	padded := padImage(src, pad, mode)
	blurred := imaging.Blur(padded, sigma)
	b := src.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, blurred, image.Pt(pad, pad), draw.Src)
	return out
}

// padImage returns src surrounded by pad pixels sampled with mode.
func padImage(src *image.RGBA, pad int, mode canopy.TileMode) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewRGBA(image.Rect(0, 0, w+2*pad, h+2*pad))
	if mode == canopy.TileDecal {
		draw.Draw(out, image.Rect(pad, pad, pad+w, pad+h), src, b.Min, draw.Src)
		return out
	}
	for y := 0; y < h+2*pad; y++ {
		sy, _ := tileCoord(y-pad, h, mode)
		for x := 0; x < w+2*pad; x++ {
			sx, _ := tileCoord(x-pad, w, mode)
			out.SetRGBA(x, y, src.RGBAAt(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return out
}

// --- path effects ---

type pathEffect struct {
	ops []canopy.PathOp
}

func (*pathEffect) Capability() canopy.Capability { return canopy.CapPathEffect }

// dashOnly reports whether the effect is a single dash pattern, which the
// rasterx dasher can stroke natively.
func (p *pathEffect) dashOnly() bool {
	return len(p.ops) == 1 && len(p.ops[0].Intervals) > 0
}

// --- constructors ---

func (b *Backend) NewBlurImageFilter(sigmaX, sigmaY float64, mode canopy.TileMode, input canopy.ImageFilter) (canopy.ImageFilter, error) {
	in, _ := input.(*imageFilter)
	return &imageFilter{kind: filterBlur, sigmaX: sigmaX, sigmaY: sigmaY, mode: mode, input: in}, nil
}

func (b *Backend) NewOffsetImageFilter(dx, dy float64, input canopy.ImageFilter) (canopy.ImageFilter, error) {
	in, _ := input.(*imageFilter)
	return &imageFilter{kind: filterOffset, dx: dx, dy: dy, input: in}, nil
}

func (b *Backend) NewColorFilterImageFilter(cf canopy.ColorFilter, input canopy.ImageFilter) (canopy.ImageFilter, error) {
	in, _ := input.(*imageFilter)
	c, _ := cf.(*colorFilter)
	return &imageFilter{kind: filterColor, cf: c, input: in}, nil
}

func (b *Backend) NewMatrixColorFilter(m [20]float64) (canopy.ColorFilter, error) {
	return &colorFilter{ops: []canopy.ColorOp{canopy.MatrixOp(m)}}, nil
}

func (b *Backend) NewBlendColorFilter(c canopy.Color, mode canopy.BlendMode) (canopy.ColorFilter, error) {
	return &colorFilter{ops: []canopy.ColorOp{canopy.BlendOp(c, mode)}}, nil
}

func (b *Backend) NewComposeColorFilter(outer, inner canopy.ColorFilter) (canopy.ColorFilter, error) {
	var oo, io []canopy.ColorOp
	if o, ok := outer.(*colorFilter); ok {
		oo = o.ops
	}
	if i, ok := inner.(*colorFilter); ok {
		io = i.ops
	}
	return &colorFilter{ops: canopy.ComposeColorOps(oo, io)}, nil
}

func (b *Backend) NewColorShader(c canopy.Color) (canopy.Shader, error) {
	return &shader{kind: shaderColor, color: c}, nil
}

func (b *Backend) NewImageShader(img canopy.Image, tileX, tileY canopy.TileMode, local canopy.Matrix) (canopy.Shader, error) {
	ri := imageOf(img)
	if ri == nil {
		return nil, fmt.Errorf("image shader from %T: %w", img, canopy.ErrUnsupported)
	}
	return &shader{kind: shaderImage, img: ri, tileX: tileX, tileY: tileY, local: local}, nil
}

// NewRuntimeEffect always fails: there is no CPU shader language.
func (b *Backend) NewRuntimeEffect(source string) (canopy.RuntimeEffect, error) {
	return nil, fmt.Errorf("raster runtime shader: %w", canopy.ErrUnsupported)
}

func (b *Backend) NewDashPathEffect(intervals []float64, phase float64) (canopy.PathEffect, error) {
	iv := append([]float64(nil), intervals...)
	return &pathEffect{ops: []canopy.PathOp{{Intervals: iv, Phase: phase}}}, nil
}

func (b *Backend) NewCornerPathEffect(radius float64) (canopy.PathEffect, error) {
	return &pathEffect{ops: []canopy.PathOp{{Corner: radius}}}, nil
}

func (b *Backend) NewComposePathEffect(outer, inner canopy.PathEffect) (canopy.PathEffect, error) {
	var oo, io []canopy.PathOp
	if o, ok := outer.(*pathEffect); ok {
		oo = o.ops
	}
	if i, ok := inner.(*pathEffect); ok {
		io = i.ops
	}
	return &pathEffect{ops: canopy.ComposePathOps(oo, io)}, nil
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
