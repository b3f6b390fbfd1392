package canopy

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

type canvasState struct {
	m     Matrix
	layer *canvasLayer
}

// canvasLayer is an offscreen image opened by SaveLayer. It has the size of
// the target it was opened on and shares its coordinate space.
type canvasLayer struct {
	img    *ebiten.Image
	parent *ebiten.Image
	paint  Paint
	ctm    Matrix
}

// ebitenCanvas draws into an ebiten.Image. Shapes are tessellated into
// triangles in device space; layers and filters borrow pooled textures.
type ebitenCanvas struct {
	target *ebiten.Image
	pool   *renderTexturePool
	m      Matrix
	stack  []canvasState
	mesh   meshBuffer
}

func newEbitenCanvas(target *ebiten.Image, pool *renderTexturePool) *ebitenCanvas {
	return &ebitenCanvas{target: target, pool: pool, m: IdentityMatrix}
}

func (c *ebitenCanvas) Clear(col Color) {
	c.target.Clear()
	if col.A > 0 {
		c.target.Fill(col.RGBA())
	}
}

func (c *ebitenCanvas) Save() {
	c.stack = append(c.stack, canvasState{m: c.m})
}

func (c *ebitenCanvas) SaveLayer(p *Paint) {
	paint := resolvePaint(p)
	b := c.target.Bounds()
	layer := &canvasLayer{
		img:    c.pool.Acquire(b.Dx(), b.Dy()),
		parent: c.target,
		paint:  paint,
		ctm:    c.m,
	}
	c.stack = append(c.stack, canvasState{m: c.m, layer: layer})
	c.target = layer.img
}

func (c *ebitenCanvas) Restore() {
	n := len(c.stack)
	if n == 0 {
		return
	}
	st := c.stack[n-1]
	c.stack = c.stack[:n-1]
	c.m = st.m
	if st.layer != nil {
		c.compositeLayer(st.layer)
		c.target = st.layer.parent
	}
}

// restoreAll closes every open save and layer.
func (c *ebitenCanvas) restoreAll() {
	for len(c.stack) > 0 {
		c.Restore()
	}
}

func (c *ebitenCanvas) compositeLayer(l *canvasLayer) {
	src := l.img
	var filtered []*ebiten.Image
	if f, ok := l.paint.ImageFilter.(*ebitenImageFilter); ok {
		src = f.apply(c.pool, src, l.ctm)
		filtered = append(filtered, src)
	}
	if cf, ok := l.paint.ColorFilter.(*ebitenColorFilter); ok {
		src = cf.apply(c.pool, src)
		filtered = append(filtered, src)
	}
	b := l.parent.Bounds()
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(float64(b.Min.X), float64(b.Min.Y))
	op.ColorScale.ScaleAlpha(float32(clamp01(l.paint.EffectiveColor().A)))
	op.Blend = l.paint.BlendMode.EbitenBlend()
	l.parent.DrawImage(src, &op)
	for _, img := range filtered {
		c.pool.Release(img)
	}
	c.pool.Release(l.img)
}

func (c *ebitenCanvas) Concat(m Matrix) {
	c.m = c.m.Multiply(m)
}

func (c *ebitenCanvas) DrawPaint(p *Paint) {
	b := c.target.Bounds()
	device := Rect{float64(b.Min.X), float64(b.Min.Y), float64(b.Dx()), float64(b.Dy())}
	paint := resolvePaint(p)
	if c.needsLayer(&paint, false) {
		c.withLayer(&paint, c.DrawPaint)
		return
	}
	paint.Style = StyleFill
	paint.PathEffect = nil
	saved := c.m
	c.m = IdentityMatrix
	c.drawContours([]Contour{RectContour(device)}, &paint, saved)
	c.m = saved
}

func (c *ebitenCanvas) DrawRect(r Rect, p *Paint) {
	c.drawShape([]Contour{RectContour(r)}, p)
}

func (c *ebitenCanvas) DrawRoundRect(r Rect, rx, ry float64, p *Paint) {
	c.drawShape([]Contour{RoundRectContour(r, rx, ry)}, p)
}

func (c *ebitenCanvas) DrawCircle(center Vec2, radius float64, p *Paint) {
	if radius <= 0 {
		return
	}
	c.drawShape([]Contour{EllipseContour(center, radius, radius)}, p)
}

func (c *ebitenCanvas) DrawLine(p0, p1 Vec2, p *Paint) {
	paint := resolvePaint(p)
	paint.Style = StyleStroke
	c.drawShape([]Contour{{Points: []Vec2{p0, p1}}}, &paint)
}

func (c *ebitenCanvas) DrawImage(img Image, x, y float64, p *Paint) {
	if img == nil {
		return
	}
	w, h := float64(img.Width()), float64(img.Height())
	c.DrawImageRect(img, Rect{0, 0, w, h}, Rect{x, y, w, h}, p)
}

func (c *ebitenCanvas) DrawImageRect(img Image, src, dst Rect, p *Paint) {
	ei := ebitenImageOf(img)
	if ei == nil || src.Empty() || dst.Empty() {
		return
	}
	paint := resolvePaint(p)
	if c.needsLayer(&paint, true) {
		c.withLayer(&paint, func(inner *Paint) { c.DrawImageRect(img, src, dst, inner) })
		return
	}
	b := ei.Bounds()
	sub := ei.SubImage(image.Rect(
		b.Min.X+int(src.X), b.Min.Y+int(src.Y),
		b.Min.X+int(src.X+src.Width), b.Min.Y+int(src.Y+src.Height),
	)).(*ebiten.Image)

	var op ebiten.DrawImageOptions
	op.GeoM.Scale(dst.Width/src.Width, dst.Height/src.Height)
	op.GeoM.Translate(dst.X, dst.Y)
	op.GeoM.Concat(geoM(c.m))
	op.ColorScale.ScaleAlpha(float32(clamp01(paint.EffectiveColor().A)))
	op.Blend = paint.BlendMode.EbitenBlend()
	op.Filter = ebiten.FilterLinear
	c.target.DrawImage(sub, &op)
}

// needsLayer reports whether p must be drawn through an offscreen layer:
// image filters always, colour filters unless they can be folded into a
// solid colour.
func (c *ebitenCanvas) needsLayer(p *Paint, forImage bool) bool {
	if p.ImageFilter != nil {
		return true
	}
	if p.ColorFilter == nil {
		return false
	}
	if forImage {
		return true
	}
	s, ok := p.Shader.(*ebitenShader)
	return ok && s.kind != shaderColor
}

// withLayer draws through a layer carrying p's filters, blend mode and
// opacity; draw receives the paint to use inside the layer.
func (c *ebitenCanvas) withLayer(p *Paint, draw func(inner *Paint)) {
	c.SaveLayer(&Paint{
		Color:       ColorWhite,
		Opacity:     p.Opacity * p.Color.A,
		BlendMode:   p.BlendMode,
		ImageFilter: p.ImageFilter,
		ColorFilter: p.ColorFilter,
	})
	inner := *p
	inner.ImageFilter = nil
	inner.ColorFilter = nil
	inner.BlendMode = BlendNormal
	inner.Opacity = 1
	inner.Color.A = 1
	draw(&inner)
	c.Restore()
}

func (c *ebitenCanvas) drawShape(cs []Contour, p *Paint) {
	paint := resolvePaint(p)
	if c.needsLayer(&paint, false) {
		c.withLayer(&paint, func(inner *Paint) { c.drawShape(cs, inner) })
		return
	}
	if pe, ok := paint.PathEffect.(*ebitenPathEffect); ok {
		cs = ApplyPathOps(cs, pe.ops)
	}
	c.drawContours(TransformContours(cs, c.m), &paint, c.m)
}

// drawContours tessellates device-space contours and submits them. ctm is
// the transform shader coordinates are relative to.
func (c *ebitenCanvas) drawContours(cs []Contour, p *Paint, ctm Matrix) {
	shader, _ := p.Shader.(*ebitenShader)
	col := p.EffectiveColor()
	if shader != nil && shader.kind == shaderColor {
		col = shader.color
		col.A *= p.Opacity
		shader = nil
	}
	if cf, ok := p.ColorFilter.(*ebitenColorFilter); ok {
		col = ApplyColorOps(cf.ops, col)
	}
	vc := premulColor(col)
	if shader != nil {
		a := float32(clamp01(p.Opacity))
		vc = [4]float32{a, a, a, a}
	}

	halfW := p.StrokeWidth * ctm.ScaleFactor() / 2
	if halfW < 0.5 {
		halfW = 0.5
	}
	c.mesh.reset()
	for _, ct := range cs {
		need := 2 * (len(ct.Points) + 1)
		if !c.mesh.fits(need) {
			c.submit(p, shader, ctm)
			c.mesh.reset()
		}
		if p.Style == StyleStroke {
			c.mesh.appendStroke(ct.Points, ct.Closed, halfW, vc)
		} else {
			c.mesh.appendFan(ct.Points, vc)
		}
	}
	c.submit(p, shader, ctm)
}

func (c *ebitenCanvas) submit(p *Paint, shader *ebitenShader, ctm Matrix) {
	if c.mesh.empty() {
		return
	}
	blend := p.BlendMode.EbitenBlend()
	if shader == nil {
		var op ebiten.DrawTrianglesOptions
		op.Blend = blend
		c.target.DrawTriangles(c.mesh.verts, c.mesh.inds, ensureWhitePixel(), &op)
		return
	}
	var op ebiten.DrawTrianglesShaderOptions
	op.Blend = blend
	switch shader.kind {
	case shaderImage:
		c.mesh.mapSource(ctm.Multiply(shader.local).Invert())
		op.Images[0] = shader.image
		op.Uniforms = map[string]any{
			"TileX": float32(shader.tileX),
			"TileY": float32(shader.tileY),
		}
		c.target.DrawTrianglesShader(c.mesh.verts, c.mesh.inds, ensureImageTileShader(), &op)
	case shaderRuntime:
		c.mesh.mapSource(shader.srcSpace.Multiply(ctm.Invert()))
		op.Images = shader.images
		op.Uniforms = shader.uniforms
		c.target.DrawTrianglesShader(c.mesh.verts, c.mesh.inds, shader.program, &op)
	}
}

// resolvePaint copies p, substituting DefaultPaint for nil.
func resolvePaint(p *Paint) Paint {
	if p == nil {
		return DefaultPaint()
	}
	return *p
}

// geoM converts m to an ebiten.GeoM.
func geoM(m Matrix) ebiten.GeoM {
	var g ebiten.GeoM
	g.SetElement(0, 0, m[0])
	g.SetElement(1, 0, m[1])
	g.SetElement(0, 1, m[2])
	g.SetElement(1, 1, m[3])
	g.SetElement(0, 2, m[4])
	g.SetElement(1, 2, m[5])
	return g
}
