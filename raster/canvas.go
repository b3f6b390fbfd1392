package raster

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/phanxgames/canopy"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
)

type state struct {
	m     canopy.Matrix
	layer *layer
}

// layer is an offscreen buffer opened by SaveLayer, the size of its parent.
type layer struct {
	img    *image.RGBA
	parent *image.RGBA
	paint  canopy.Paint
	ctm    canopy.Matrix
}

// Canvas draws into an *image.RGBA.
type Canvas struct {
	target *image.RGBA
	m      canopy.Matrix
	stack  []state
}

var _ canopy.Canvas = (*Canvas)(nil)

func newCanvas(img *image.RGBA) *Canvas {
	return &Canvas{target: img, m: canopy.IdentityMatrix}
}

// NewCanvas returns a canvas drawing into img.
func NewCanvas(img *image.RGBA) *Canvas { return newCanvas(img) }

// Matrix returns the current transform.
func (c *Canvas) Matrix() canopy.Matrix { return c.m }

// Depth returns the number of open saves and layers.
func (c *Canvas) Depth() int { return len(c.stack) }

func (c *Canvas) Clear(col canopy.Color) {
	draw.Draw(c.target, c.target.Bounds(), image.NewUniform(col.RGBA()), image.Point{}, draw.Src)
}

func (c *Canvas) Save() {
	c.stack = append(c.stack, state{m: c.m})
}

func (c *Canvas) SaveLayer(p *canopy.Paint) {
	l := &layer{
		img:    image.NewRGBA(c.target.Bounds()),
		parent: c.target,
		paint:  resolvePaint(p),
		ctm:    c.m,
	}
	c.stack = append(c.stack, state{m: c.m, layer: l})
	c.target = l.img
}

func (c *Canvas) Restore() {
	n := len(c.stack)
	if n == 0 {
		return
	}
	st := c.stack[n-1]
	c.stack = c.stack[:n-1]
	c.m = st.m
	if l := st.layer; l != nil {
		src := l.img
		if f, ok := l.paint.ImageFilter.(*imageFilter); ok {
			src = f.apply(src, l.ctm)
		}
		if cf, ok := l.paint.ColorFilter.(*colorFilter); ok {
			src = cf.apply(src)
		}
		composite(l.parent, src, l.paint.EffectiveColor().A, l.paint.BlendMode)
		c.target = l.parent
	}
}

func (c *Canvas) restoreAll() {
	for len(c.stack) > 0 {
		c.Restore()
	}
}

func (c *Canvas) Concat(m canopy.Matrix) {
	c.m = c.m.Multiply(m)
}

func (c *Canvas) DrawPaint(p *canopy.Paint) {
	paint := resolvePaint(p)
	if needsLayer(&paint, false) {
		c.withLayer(&paint, c.DrawPaint)
		return
	}
	b := c.target.Bounds()
	device := canopy.RectContour(canopy.Rect{
		X: float64(b.Min.X), Y: float64(b.Min.Y),
		Width: float64(b.Dx()), Height: float64(b.Dy()),
	})
	paint.Style = canopy.StyleFill
	c.rasterize([]canopy.Contour{device}, &paint, canopy.IdentityMatrix, nil, 0)
}

func (c *Canvas) DrawRect(r canopy.Rect, p *canopy.Paint) {
	c.drawShape([]canopy.Contour{canopy.RectContour(r)}, p)
}

func (c *Canvas) DrawRoundRect(r canopy.Rect, rx, ry float64, p *canopy.Paint) {
	c.drawShape([]canopy.Contour{canopy.RoundRectContour(r, rx, ry)}, p)
}

func (c *Canvas) DrawCircle(center canopy.Vec2, radius float64, p *canopy.Paint) {
	if radius <= 0 {
		return
	}
	c.drawShape([]canopy.Contour{canopy.EllipseContour(center, radius, radius)}, p)
}

func (c *Canvas) DrawLine(p0, p1 canopy.Vec2, p *canopy.Paint) {
	paint := resolvePaint(p)
	paint.Style = canopy.StyleStroke
	c.drawShape([]canopy.Contour{{Points: []canopy.Vec2{p0, p1}}}, &paint)
}

func (c *Canvas) DrawImage(img canopy.Image, x, y float64, p *canopy.Paint) {
	if img == nil {
		return
	}
	w, h := float64(img.Width()), float64(img.Height())
	c.DrawImageRect(img, canopy.Rect{Width: w, Height: h}, canopy.Rect{X: x, Y: y, Width: w, Height: h}, p)
}

func (c *Canvas) DrawImageRect(img canopy.Image, src, dst canopy.Rect, p *canopy.Paint) {
	ri := imageOf(img)
	if ri == nil || src.Empty() || dst.Empty() {
		return
	}
	paint := resolvePaint(p)
	if needsLayer(&paint, true) {
		c.withLayer(&paint, func(inner *canopy.Paint) { c.DrawImageRect(img, src, dst, inner) })
		return
	}
	m := c.m.
		Multiply(canopy.TranslateMatrix(dst.X, dst.Y)).
		Multiply(canopy.ScaleMatrix(dst.Width/src.Width, dst.Height/src.Height)).
		Multiply(canopy.TranslateMatrix(-src.X, -src.Y))
	b := ri.Bounds()
	sr := image.Rect(
		b.Min.X+int(src.X), b.Min.Y+int(src.Y),
		b.Min.X+int(src.X+src.Width), b.Min.Y+int(src.Y+src.Height),
	)
	opts := &xdraw.Options{
		SrcMask: image.NewUniform(color.Alpha16{A: uint16(clamp01(paint.EffectiveColor().A) * 0xffff)}),
	}
	xdraw.BiLinear.Transform(c.target, aff3(m), ri, sr, xdraw.Over, opts)
}

// needsLayer reports whether p must go through an offscreen layer: image
// filters, blend modes other than source-over, and colour filters that
// cannot be folded into a solid colour.
func needsLayer(p *canopy.Paint, forImage bool) bool {
	if p.ImageFilter != nil || p.BlendMode != canopy.BlendNormal {
		return true
	}
	if p.ColorFilter == nil {
		return false
	}
	if forImage {
		return true
	}
	s, ok := p.Shader.(*shader)
	return ok && s.kind == shaderImage
}

func (c *Canvas) withLayer(p *canopy.Paint, draw func(inner *canopy.Paint)) {
	c.SaveLayer(&canopy.Paint{
		Color:       canopy.ColorWhite,
		Opacity:     p.Opacity * p.Color.A,
		BlendMode:   p.BlendMode,
		ImageFilter: p.ImageFilter,
		ColorFilter: p.ColorFilter,
	})
	inner := *p
	inner.ImageFilter = nil
	inner.ColorFilter = nil
	inner.BlendMode = canopy.BlendNormal
	inner.Opacity = 1
	inner.Color.A = 1
	draw(&inner)
	c.Restore()
}

func (c *Canvas) drawShape(cs []canopy.Contour, p *canopy.Paint) {
	paint := resolvePaint(p)
	if needsLayer(&paint, false) {
		c.withLayer(&paint, func(inner *canopy.Paint) { c.drawShape(cs, inner) })
		return
	}
	var dashes []float64
	var phase float64
	if pe, ok := paint.PathEffect.(*pathEffect); ok {
		if paint.Style == canopy.StyleStroke && pe.dashOnly() {
			scale := c.m.ScaleFactor()
			for _, v := range pe.ops[0].Intervals {
				dashes = append(dashes, v*scale)
			}
			phase = pe.ops[0].Phase * scale
		} else {
			cs = canopy.ApplyPathOps(cs, pe.ops)
		}
	}
	c.rasterize(cs, &paint, c.m, dashes, phase)
}

// rasterize fills or strokes local-space contours through ctm.
func (c *Canvas) rasterize(cs []canopy.Contour, p *canopy.Paint, ctm canopy.Matrix, dashes []float64, phase float64) {
	b := c.target.Bounds()
	w, h := b.Dx(), b.Dy()
	scanner := rasterx.NewScannerGV(w, h, c.target, b)
	setPaintColor(scanner, p, ctm)

	var adder rasterx.Adder
	if p.Style == canopy.StyleStroke {
		width := p.StrokeWidth * ctm.ScaleFactor()
		if width <= 0 {
			width = 1
		}
		d := rasterx.NewDasher(w, h, scanner)
		d.SetStroke(fixedInt(width), fixedInt(4), rasterx.ButtCap, nil, rasterx.FlatGap, rasterx.MiterClip, dashes, phase)
		adder = d
		defer d.Draw()
	} else {
		f := rasterx.NewFiller(w, h, scanner)
		adder = f
		defer f.Draw()
	}
	t := &rasterx.MatrixAdder{Adder: adder, M: matrix2D(ctm)}
	for _, ct := range cs {
		if len(ct.Points) < 2 {
			continue
		}
		t.Start(rasterx.ToFixedP(ct.Points[0].X, ct.Points[0].Y))
		for _, pt := range ct.Points[1:] {
			t.Line(rasterx.ToFixedP(pt.X, pt.Y))
		}
		t.Stop(ct.Closed)
	}
}

func setPaintColor(scanner *rasterx.ScannerGV, p *canopy.Paint, ctm canopy.Matrix) {
	col := p.EffectiveColor()
	if s, ok := p.Shader.(*shader); ok {
		if s.kind == shaderImage {
			scanner.SetColor(rasterx.ColorFunc(s.colorFunc(ctm, p.Opacity)))
			return
		}
		col = s.color
		col.A *= p.Opacity
	}
	if cf, ok := p.ColorFilter.(*colorFilter); ok {
		col = canopy.ApplyColorOps(cf.ops, col)
	}
	scanner.SetColor(col.RGBA())
}

// composite draws src over dst with alpha and mode.
func composite(dst, src *image.RGBA, alpha float64, mode canopy.BlendMode) {
	alpha = clamp01(alpha)
	b := dst.Bounds().Intersect(src.Bounds())
	if mode == canopy.BlendNormal {
		mask := image.NewUniform(color.Alpha16{A: uint16(alpha * 0xffff)})
		draw.DrawMask(dst, b, src, b.Min, mask, image.Point{}, draw.Over)
		return
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			s := straight(src.RGBAAt(x, y))
			s.A *= alpha
			d := straight(dst.RGBAAt(x, y))
			dst.SetRGBA(x, y, canopy.BlendColors(s, d, mode).RGBA())
		}
	}
}

func straight(c color.RGBA) canopy.Color {
	if c.A == 0 {
		return canopy.ColorTransparent
	}
	a := float64(c.A)
	return canopy.Color{R: float64(c.R) / a, G: float64(c.G) / a, B: float64(c.B) / a, A: a / 255}
}

func resolvePaint(p *canopy.Paint) canopy.Paint {
	if p == nil {
		return canopy.DefaultPaint()
	}
	return *p
}

func matrix2D(m canopy.Matrix) rasterx.Matrix2D {
	return rasterx.Matrix2D{A: m[0], B: m[1], C: m[2], D: m[3], E: m[4], F: m[5]}
}

func aff3(m canopy.Matrix) f64.Aff3 {
	return f64.Aff3{m[0], m[2], m[4], m[1], m[3], m[5]}
}

func fixedInt(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}
