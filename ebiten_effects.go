package canopy

import (
	"fmt"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- Kage shader sources ---
// All shaders use //kage:unit pixels. Ebitengine uses premultiplied alpha;
// shaders un-premultiply before processing and re-premultiply output.

// tileFuncs is shared by every shader that samples with a tile mode.
// Modes: 0 decal, 1 clamp, 2 repeat, 3 mirror.
const tileFuncs = `
func wrapCoord(x, lo, n, mode float) float {
	t := x - lo
	if mode == 1 {
		t = clamp(t, 0.5, n-0.5)
	} else if mode == 2 {
		t = mod(t, n)
	} else if mode == 3 {
		t = mod(t, 2*n)
		if t >= n {
			t = 2*n - t
		}
		t = clamp(t, 0.5, n-0.5)
	}
	return lo + t
}

func outside(x, lo, n float) bool {
	return x < lo || x >= lo+n
}

func tileSample(p vec2, modeX, modeY float) vec4 {
	origin := imageSrc0Origin()
	size := imageSrc0Size()
	if modeX == 0 && outside(p.x, origin.x, size.x) {
		return vec4(0)
	}
	if modeY == 0 && outside(p.y, origin.y, size.y) {
		return vec4(0)
	}
	q := vec2(wrapCoord(p.x, origin.x, size.x, modeX), wrapCoord(p.y, origin.y, size.y, modeY))
	return imageSrc0UnsafeAt(q)
}
`

const colorMatrixShaderSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		c.rgb /= c.a
	}
	r := Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4]
	g := Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9]
	b := Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14]
	a := Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19]
	r = clamp(r, 0, 1)
	g = clamp(g, 0, 1)
	b = clamp(b, 0, 1)
	a = clamp(a, 0, 1)
	return vec4(r*a, g*a, b*a, a)
}
`

// blendColorShaderSrc composites the constant Color (premultiplied) over
// the source pixels with Mode, matching BlendColors.
const blendColorShaderSrc = `//kage:unit pixels
package main

var Color vec4
var Mode float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	d := imageSrc0At(src)
	s := Color
	if Mode == 1 {
		return clamp(s+d, 0, 1)
	}
	if Mode == 2 {
		rgb := s.rgb*d.rgb + s.rgb*(1-d.a) + d.rgb*(1-s.a)
		return vec4(rgb, s.a+d.a*(1-s.a))
	}
	if Mode == 3 {
		return vec4(s.rgb+d.rgb-s.rgb*d.rgb, s.a+d.a-s.a*d.a)
	}
	if Mode == 4 {
		return d * (1 - s.a)
	}
	if Mode == 5 {
		return d * s.a
	}
	if Mode == 6 {
		return d + s*(1-d.a)
	}
	if Mode == 7 {
		return s
	}
	return s + d*(1-s.a)
}
`

const blurShaderSrc = `//kage:unit pixels
package main

var Sigma float
var Dir vec2
var Mode float
` + tileFuncs + `
func Fragment(dst vec4, src vec2, color vec4) vec4 {
	if Sigma <= 0 {
		return tileSample(src, Mode, Mode)
	}
	radius := ceil(Sigma * 3)
	stride := max(radius/32, 1)
	sum := vec4(0)
	wsum := 0.0
	for i := -32; i <= 32; i++ {
		off := float(i) * stride
		w := exp(-(off*off)/(2*Sigma*Sigma)) * step(abs(off), radius)
		sum += tileSample(src+Dir*off, Mode, Mode) * w
		wsum += w
	}
	return sum / wsum
}
`

const imageShaderSrc = `//kage:unit pixels
package main

var TileX float
var TileY float
` + tileFuncs + `
func Fragment(dst vec4, src vec2, color vec4) vec4 {
	return tileSample(src, TileX, TileY) * color.a
}
`

// --- Lazy shader compilation (single-threaded, like the rest of drawing) ---

var (
	colorMatrixShader *ebiten.Shader
	blendColorShader  *ebiten.Shader
	blurShader        *ebiten.Shader
	imageTileShader   *ebiten.Shader
)

func ensureShader(dst **ebiten.Shader, name, src string) *ebiten.Shader {
	if *dst == nil {
		s, err := ebiten.NewShader([]byte(src))
		if err != nil {
			panic("canopy: failed to compile " + name + " shader: " + err.Error())
		}
		*dst = s
	}
	return *dst
}

func ensureColorMatrixShader() *ebiten.Shader {
	return ensureShader(&colorMatrixShader, "color matrix", colorMatrixShaderSrc)
}

func ensureBlendColorShader() *ebiten.Shader {
	return ensureShader(&blendColorShader, "blend color", blendColorShaderSrc)
}

func ensureBlurShader() *ebiten.Shader {
	return ensureShader(&blurShader, "blur", blurShaderSrc)
}

func ensureImageTileShader() *ebiten.Shader {
	return ensureShader(&imageTileShader, "image tile", imageShaderSrc)
}

// --- Shaders ---

type shaderKind uint8

const (
	shaderColor shaderKind = iota
	shaderImage
	shaderRuntime
)

// ebitenShader is the Shader handle of EbitenBackend.
type ebitenShader struct {
	kind shaderKind

	color Color

	image        *ebiten.Image
	tileX, tileY TileMode
	local        Matrix // image space to local space

	program  *ebiten.Shader
	uniforms map[string]any
	images   [4]*ebiten.Image
	srcSpace Matrix // local space to the bound images' space
}

func (*ebitenShader) Capability() Capability { return CapShader }

// ebitenRuntimeEffect is a compiled Kage program.
type ebitenRuntimeEffect struct {
	shader   *ebiten.Shader
	disposed bool
}

func (e *ebitenRuntimeEffect) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.shader.Deallocate()
}

// MakeShader binds uniforms and child shaders. Children must be image
// shaders of equal size; they are bound to imageSrc0..3 in order and the
// first child's local matrix maps shape coordinates into image pixels.
func (e *ebitenRuntimeEffect) MakeShader(uniforms map[string]any, children []Shader) (Shader, error) {
	if e.disposed {
		return nil, ErrDisposed
	}
	if len(children) > 4 {
		return nil, paramErr("runtimeShader", "children", len(children), "at most 4 image inputs")
	}
	s := &ebitenShader{
		kind:     shaderRuntime,
		program:  e.shader,
		uniforms: kageUniforms(uniforms),
		srcSpace: IdentityMatrix,
	}
	for i, c := range children {
		child, ok := c.(*ebitenShader)
		if !ok || child.kind != shaderImage {
			return nil, fmt.Errorf("runtime shader child %d: only image shaders can be bound: %w", i, ErrUnsupported)
		}
		if i > 0 && child.image.Bounds().Size() != s.images[0].Bounds().Size() {
			return nil, paramErr("runtimeShader", "children", i, "image inputs must share one size")
		}
		s.images[i] = child.image
		if i == 0 {
			s.srcSpace = child.local.Invert()
		}
	}
	return s, nil
}

// kageUniforms converts uniform values to the float32 forms Kage expects.
func kageUniforms(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch v := v.(type) {
		case float64:
			out[k] = float32(v)
		case int:
			out[k] = float32(v)
		case int32:
			out[k] = float32(v)
		case []float64:
			fs := make([]float32, len(v))
			for i, f := range v {
				fs[i] = float32(f)
			}
			out[k] = fs
		default:
			out[k] = v
		}
	}
	return out
}

// --- Colour filters ---

// ebitenColorFilter is the ColorFilter handle of EbitenBackend.
type ebitenColorFilter struct {
	ops []ColorOp
}

func (*ebitenColorFilter) Capability() Capability { return CapColorFilter }

// apply runs the filter over src into a new pooled image.
func (f *ebitenColorFilter) apply(pool *renderTexturePool, src *ebiten.Image) *ebiten.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	current := src
	for _, op := range f.ops {
		dst := pool.Acquire(w, h)
		var opts ebiten.DrawRectShaderOptions
		opts.Images[0] = current
		opts.Blend = ebiten.BlendCopy
		if op.Blend {
			r, g, bl, a := op.Color.Premultiplied()
			opts.Uniforms = map[string]any{
				"Color": []float32{float32(r), float32(g), float32(bl), float32(a)},
				"Mode":  float32(op.Mode),
			}
			dst.DrawRectShader(w, h, ensureBlendColorShader(), &opts)
		} else {
			m := make([]float32, 20)
			for i, v := range op.Matrix {
				m[i] = float32(v)
			}
			opts.Uniforms = map[string]any{"Matrix": m}
			dst.DrawRectShader(w, h, ensureColorMatrixShader(), &opts)
		}
		if current != src {
			pool.Release(current)
		}
		current = dst
	}
	if current == src {
		dst := pool.Acquire(w, h)
		copyImage(dst, src)
		return dst
	}
	return current
}

// --- Image filters ---

type filterKind uint8

const (
	filterBlur filterKind = iota
	filterOffset
	filterColor
)

// ebitenImageFilter is the ImageFilter handle of EbitenBackend. Filters run
// in layer (device) space: sigmas and offsets are scaled by the transform
// active when the layer was opened.
type ebitenImageFilter struct {
	kind   filterKind
	sigmaX float64
	sigmaY float64
	mode   TileMode
	dx, dy float64
	cf     *ebitenColorFilter
	input  *ebitenImageFilter
}

func (*ebitenImageFilter) Capability() Capability { return CapImageFilter }

// apply filters src into a new pooled image; src is left untouched.
func (f *ebitenImageFilter) apply(pool *renderTexturePool, src *ebiten.Image, ctm Matrix) *ebiten.Image {
	if f.input != nil {
		in := f.input.apply(pool, src, ctm)
		defer pool.Release(in)
		src = in
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	switch f.kind {
	case filterBlur:
		sx, sy := deviceSigmas(f.sigmaX, f.sigmaY, ctm)
		tmp := pool.Acquire(w, h)
		blurPass(tmp, src, sx, 1, 0, f.mode)
		dst := pool.Acquire(w, h)
		blurPass(dst, tmp, sy, 0, 1, f.mode)
		pool.Release(tmp)
		return dst
	case filterOffset:
		dx := ctm[0]*f.dx + ctm[2]*f.dy
		dy := ctm[1]*f.dx + ctm[3]*f.dy
		dst := pool.Acquire(w, h)
		var op ebiten.DrawImageOptions
		op.GeoM.Translate(dx, dy)
		dst.DrawImage(src, &op)
		return dst
	default:
		if f.cf == nil {
			dst := pool.Acquire(w, h)
			copyImage(dst, src)
			return dst
		}
		return f.cf.apply(pool, src)
	}
}

// deviceSigmas scales local sigmas by the transform's axis lengths.
func deviceSigmas(sx, sy float64, m Matrix) (float64, float64) {
	return sx * math.Hypot(m[0], m[1]), sy * math.Hypot(m[2], m[3])
}

// blurPass runs one separable Gaussian pass along (dirX, dirY).
func blurPass(dst, src *ebiten.Image, sigma, dirX, dirY float64, mode TileMode) {
	b := src.Bounds()
	var opts ebiten.DrawRectShaderOptions
	opts.Images[0] = src
	opts.Blend = ebiten.BlendCopy
	opts.Uniforms = map[string]any{
		"Sigma": float32(sigma),
		"Dir":   []float32{float32(dirX), float32(dirY)},
		"Mode":  float32(mode),
	}
	dst.DrawRectShader(b.Dx(), b.Dy(), ensureBlurShader(), &opts)
}

func copyImage(dst, src *ebiten.Image) {
	var op ebiten.DrawImageOptions
	op.Blend = ebiten.BlendCopy
	dst.DrawImage(src, &op)
}

// --- Path effects ---

// ebitenPathEffect is the PathEffect handle of EbitenBackend.
type ebitenPathEffect struct {
	ops []PathOp
}

func (*ebitenPathEffect) Capability() Capability { return CapPathEffect }

// --- Backend constructors ---

func (b *EbitenBackend) NewBlurImageFilter(sigmaX, sigmaY float64, mode TileMode, input ImageFilter) (ImageFilter, error) {
	in, _ := input.(*ebitenImageFilter)
	return &ebitenImageFilter{kind: filterBlur, sigmaX: sigmaX, sigmaY: sigmaY, mode: mode, input: in}, nil
}

func (b *EbitenBackend) NewOffsetImageFilter(dx, dy float64, input ImageFilter) (ImageFilter, error) {
	in, _ := input.(*ebitenImageFilter)
	return &ebitenImageFilter{kind: filterOffset, dx: dx, dy: dy, input: in}, nil
}

func (b *EbitenBackend) NewColorFilterImageFilter(cf ColorFilter, input ImageFilter) (ImageFilter, error) {
	in, _ := input.(*ebitenImageFilter)
	c, _ := cf.(*ebitenColorFilter)
	return &ebitenImageFilter{kind: filterColor, cf: c, input: in}, nil
}

func (b *EbitenBackend) NewMatrixColorFilter(m [20]float64) (ColorFilter, error) {
	return &ebitenColorFilter{ops: []ColorOp{MatrixOp(m)}}, nil
}

func (b *EbitenBackend) NewBlendColorFilter(c Color, mode BlendMode) (ColorFilter, error) {
	return &ebitenColorFilter{ops: []ColorOp{BlendOp(c, mode)}}, nil
}

func (b *EbitenBackend) NewComposeColorFilter(outer, inner ColorFilter) (ColorFilter, error) {
	o, _ := outer.(*ebitenColorFilter)
	i, _ := inner.(*ebitenColorFilter)
	var oo, io []ColorOp
	if o != nil {
		oo = o.ops
	}
	if i != nil {
		io = i.ops
	}
	return &ebitenColorFilter{ops: ComposeColorOps(oo, io)}, nil
}

func (b *EbitenBackend) NewColorShader(c Color) (Shader, error) {
	return &ebitenShader{kind: shaderColor, color: c}, nil
}

func (b *EbitenBackend) NewImageShader(img Image, tileX, tileY TileMode, local Matrix) (Shader, error) {
	ei := ebitenImageOf(img)
	if ei == nil {
		return nil, fmt.Errorf("image shader from %T: %w", img, ErrUnsupported)
	}
	return &ebitenShader{kind: shaderImage, image: ei, tileX: tileX, tileY: tileY, local: local}, nil
}

func (b *EbitenBackend) NewRuntimeEffect(source string) (RuntimeEffect, error) {
	s, err := ebiten.NewShader([]byte(source))
	if err != nil {
		return nil, paramErr("runtimeShader", "source", firstLine(source), err.Error())
	}
	return &ebitenRuntimeEffect{shader: s}, nil
}

func (b *EbitenBackend) NewDashPathEffect(intervals []float64, phase float64) (PathEffect, error) {
	iv := append([]float64(nil), intervals...)
	return &ebitenPathEffect{ops: []PathOp{{Intervals: iv, Phase: phase}}}, nil
}

func (b *EbitenBackend) NewCornerPathEffect(radius float64) (PathEffect, error) {
	return &ebitenPathEffect{ops: []PathOp{{Corner: radius}}}, nil
}

func (b *EbitenBackend) NewComposePathEffect(outer, inner PathEffect) (PathEffect, error) {
	o, _ := outer.(*ebitenPathEffect)
	i, _ := inner.(*ebitenPathEffect)
	var oo, io []PathOp
	if o != nil {
		oo = o.ops
	}
	if i != nil {
		io = i.ops
	}
	return &ebitenPathEffect{ops: ComposePathOps(oo, io)}, nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
