package canopy

import "image"

// Disposer is implemented by every backend object that owns native memory.
// Dispose must be safe to call more than once.
type Disposer interface {
	Dispose()
}

// Image is an immutable backend image: a decoded frame, a surface snapshot
// or an uploaded bitmap.
type Image interface {
	Disposer
	Width() int
	Height() int
}

// PixelReader is implemented by images whose pixels can be read back.
type PixelReader interface {
	// ToImage copies the pixels into a new straight-alpha image.
	ToImage() (*image.NRGBA, error)
}

// Surface is an offscreen render target.
type Surface interface {
	Disposer
	Width() int
	Height() int
	Canvas() Canvas
	// Flush submits pending drawing work.
	Flush() error
	// Snapshot copies the current contents into a new Image owned by the caller.
	Snapshot() (Image, error)
}

// PaintStyle selects between filling and stroking a shape.
type PaintStyle uint8

const (
	StyleFill PaintStyle = iota
	StyleStroke
)

func (s PaintStyle) String() string {
	if s == StyleStroke {
		return "stroke"
	}
	return "fill"
}

// Paint carries colour, compositing and effect state for one draw call.
// Effect fields hold resolved backend handles and may be nil.
type Paint struct {
	Color       Color
	Opacity     float64 // multiplies Color.A; 1 is opaque
	Style       PaintStyle
	StrokeWidth float64
	BlendMode   BlendMode

	Shader      Shader
	ImageFilter ImageFilter
	ColorFilter ColorFilter
	PathEffect  PathEffect
}

// DefaultPaint returns an opaque black fill, the paint used when nil is passed
// to a Canvas method.
func DefaultPaint() Paint {
	return Paint{Color: ColorBlack, Opacity: 1, StrokeWidth: 1}
}

// EffectiveColor returns Color with Opacity folded into alpha.
func (p *Paint) EffectiveColor() Color {
	c := p.Color
	c.A *= p.Opacity
	return c
}

// Canvas records drawing into a surface, a layer or the screen.
// A nil *Paint means DefaultPaint().
type Canvas interface {
	Clear(c Color)
	Save()
	// SaveLayer starts an offscreen layer composited through p on Restore.
	SaveLayer(p *Paint)
	Restore()
	Concat(m Matrix)

	DrawPaint(p *Paint)
	DrawRect(r Rect, p *Paint)
	DrawRoundRect(r Rect, rx, ry float64, p *Paint)
	DrawCircle(center Vec2, radius float64, p *Paint)
	DrawLine(p0, p1 Vec2, p *Paint)
	DrawImage(img Image, x, y float64, p *Paint)
	DrawImageRect(img Image, src, dst Rect, p *Paint)
}

// Effect is a resolved native effect object.
type Effect interface {
	Capability() Capability
}

// Shader, ImageFilter, ColorFilter and PathEffect name the four effect
// families. Handles report their family through Capability.
type (
	Shader      interface{ Effect }
	ImageFilter interface{ Effect }
	ColorFilter interface{ Effect }
	PathEffect  interface{ Effect }
)

// RuntimeEffect is a compiled shader program. MakeShader binds uniforms and
// child shaders; children are bound to the program's image inputs in order.
type RuntimeEffect interface {
	Disposer
	MakeShader(uniforms map[string]any, children []Shader) (Shader, error)
}

// Backend builds surfaces, images and effect objects. Constructors validate
// nothing beyond what the native library requires; parameter domains are
// checked by the resolver before a backend is called.
type Backend interface {
	NewSurface(width, height int) (Surface, error)
	NewImage(src image.Image) (Image, error)

	NewBlurImageFilter(sigmaX, sigmaY float64, mode TileMode, input ImageFilter) (ImageFilter, error)
	NewOffsetImageFilter(dx, dy float64, input ImageFilter) (ImageFilter, error)
	NewColorFilterImageFilter(cf ColorFilter, input ImageFilter) (ImageFilter, error)

	NewMatrixColorFilter(m [20]float64) (ColorFilter, error)
	NewBlendColorFilter(c Color, mode BlendMode) (ColorFilter, error)
	// NewComposeColorFilter returns outer(inner(x)).
	NewComposeColorFilter(outer, inner ColorFilter) (ColorFilter, error)

	NewColorShader(c Color) (Shader, error)
	NewImageShader(img Image, tileX, tileY TileMode, local Matrix) (Shader, error)
	NewRuntimeEffect(source string) (RuntimeEffect, error)

	NewDashPathEffect(intervals []float64, phase float64) (PathEffect, error)
	NewCornerPathEffect(radius float64) (PathEffect, error)
	// NewComposePathEffect returns outer(inner(path)).
	NewComposePathEffect(outer, inner PathEffect) (PathEffect, error)
}

// IdentityColorMatrix is the 4x5 colour matrix that leaves colours unchanged.
var IdentityColorMatrix = [20]float64{
	1, 0, 0, 0, 0,
	0, 1, 0, 0, 0,
	0, 0, 1, 0, 0,
	0, 0, 0, 1, 0,
}

// ComposeColorMatrices returns the matrix equivalent to applying inner then
// outer. Rows are [r g b a offset].
func ComposeColorMatrices(outer, inner [20]float64) [20]float64 {
	var out [20]float64
	for row := 0; row < 4; row++ {
		for col := 0; col < 5; col++ {
			var v float64
			for k := 0; k < 4; k++ {
				v += outer[row*5+k] * inner[k*5+col]
			}
			if col == 4 {
				v += outer[row*5+4]
			}
			out[row*5+col] = v
		}
	}
	return out
}

// ApplyColorMatrix transforms a straight-alpha colour by m and clamps the
// result to [0, 1].
func ApplyColorMatrix(m [20]float64, c Color) Color {
	in := [4]float64{c.R, c.G, c.B, c.A}
	var out [4]float64
	for row := 0; row < 4; row++ {
		v := m[row*5+4]
		for k := 0; k < 4; k++ {
			v += m[row*5+k] * in[k]
		}
		out[row] = clamp01(v)
	}
	return Color{out[0], out[1], out[2], out[3]}
}

// BlendColors composites src over dst with mode, both straight-alpha, and
// returns a straight-alpha result.
func BlendColors(src, dst Color, mode BlendMode) Color {
	sr, sg, sb, sa := src.Premultiplied()
	dr, dg, db, da := dst.Premultiplied()
	var r, g, b, a float64
	switch mode {
	case BlendAdd:
		r, g, b, a = sr+dr, sg+dg, sb+db, sa+da
	case BlendMultiply:
		r = sr*dr + sr*(1-da) + dr*(1-sa)
		g = sg*dg + sg*(1-da) + dg*(1-sa)
		b = sb*db + sb*(1-da) + db*(1-sa)
		a = sa + da*(1-sa)
	case BlendScreen:
		r, g, b = sr+dr-sr*dr, sg+dg-sg*dg, sb+db-sb*db
		a = sa + da - sa*da
	case BlendErase:
		r, g, b, a = dr*(1-sa), dg*(1-sa), db*(1-sa), da*(1-sa)
	case BlendMask:
		r, g, b, a = dr*sa, dg*sa, db*sa, da*sa
	case BlendBelow:
		r, g, b, a = dr+sr*(1-da), dg+sg*(1-da), db+sb*(1-da), da+sa*(1-da)
	case BlendNone:
		r, g, b, a = sr, sg, sb, sa
	default:
		r, g, b, a = sr+dr*(1-sa), sg+dg*(1-sa), sb+db*(1-sa), sa+da*(1-sa)
	}
	a = clamp01(a)
	if a == 0 {
		return ColorTransparent
	}
	return Color{clamp01(r / a), clamp01(g / a), clamp01(b / a), a}
}
