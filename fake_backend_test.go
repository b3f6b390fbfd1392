package canopy

import (
	"fmt"
	"image"
	"time"
)

// fakeBackend records every object it builds and every canvas call made on
// its surfaces, in order, into log.
type fakeBackend struct {
	log      []string
	effects  []*fakeEffect
	runtimes []*fakeRuntime
	images   []*fakeImage
	surfaces []*fakeSurface
	calls    map[string]int

	surfaceErr error
	runtimeErr error
	flushErr   error
	snapErr    error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: make(map[string]int)}
}

func (b *fakeBackend) record(s string) { b.log = append(b.log, s) }

func (b *fakeBackend) effect(c Capability, kind string, args ...any) *fakeEffect {
	b.calls[kind]++
	e := &fakeEffect{cap: c, kind: kind, args: args}
	b.effects = append(b.effects, e)
	return e
}

func (b *fakeBackend) NewSurface(w, h int) (Surface, error) {
	b.calls["surface"]++
	if b.surfaceErr != nil {
		return nil, b.surfaceErr
	}
	s := &fakeSurface{b: b, w: w, h: h}
	s.canvas = &fakeCanvas{b: b}
	b.surfaces = append(b.surfaces, s)
	return s, nil
}

func (b *fakeBackend) NewImage(src image.Image) (Image, error) {
	r := src.Bounds()
	return b.newImage(r.Dx(), r.Dy()), nil
}

func (b *fakeBackend) newImage(w, h int) *fakeImage {
	img := &fakeImage{id: len(b.images) + 1, w: w, h: h}
	b.images = append(b.images, img)
	return img
}

func (b *fakeBackend) NewBlurImageFilter(sx, sy float64, mode TileMode, input ImageFilter) (ImageFilter, error) {
	return b.effect(CapImageFilter, "blur", sx, sy, mode, input), nil
}

func (b *fakeBackend) NewOffsetImageFilter(dx, dy float64, input ImageFilter) (ImageFilter, error) {
	return b.effect(CapImageFilter, "offset", dx, dy, input), nil
}

func (b *fakeBackend) NewColorFilterImageFilter(cf ColorFilter, input ImageFilter) (ImageFilter, error) {
	return b.effect(CapImageFilter, "colorFilterImage", cf, input), nil
}

func (b *fakeBackend) NewMatrixColorFilter(m [20]float64) (ColorFilter, error) {
	return b.effect(CapColorFilter, "matrix", m), nil
}

func (b *fakeBackend) NewBlendColorFilter(c Color, mode BlendMode) (ColorFilter, error) {
	return b.effect(CapColorFilter, "blendColor", c, mode), nil
}

func (b *fakeBackend) NewComposeColorFilter(outer, inner ColorFilter) (ColorFilter, error) {
	return b.effect(CapColorFilter, "composeColor", outer, inner), nil
}

func (b *fakeBackend) NewColorShader(c Color) (Shader, error) {
	return b.effect(CapShader, "colorShader", c), nil
}

func (b *fakeBackend) NewImageShader(img Image, tx, ty TileMode, local Matrix) (Shader, error) {
	return b.effect(CapShader, "imageShader", img, tx, ty, local), nil
}

func (b *fakeBackend) NewRuntimeEffect(source string) (RuntimeEffect, error) {
	b.calls["runtimeEffect"]++
	if b.runtimeErr != nil {
		return nil, b.runtimeErr
	}
	r := &fakeRuntime{b: b, source: source}
	b.runtimes = append(b.runtimes, r)
	return r, nil
}

func (b *fakeBackend) NewDashPathEffect(intervals []float64, phase float64) (PathEffect, error) {
	return b.effect(CapPathEffect, "dash", intervals, phase), nil
}

func (b *fakeBackend) NewCornerPathEffect(radius float64) (PathEffect, error) {
	return b.effect(CapPathEffect, "corner", radius), nil
}

func (b *fakeBackend) NewComposePathEffect(outer, inner PathEffect) (PathEffect, error) {
	return b.effect(CapPathEffect, "composePath", outer, inner), nil
}

type fakeEffect struct {
	cap      Capability
	kind     string
	args     []any
	disposed int
}

func (e *fakeEffect) Capability() Capability { return e.cap }
func (e *fakeEffect) Dispose()               { e.disposed++ }

type fakeRuntime struct {
	b        *fakeBackend
	source   string
	disposed int
}

func (r *fakeRuntime) Dispose() { r.disposed++ }

func (r *fakeRuntime) MakeShader(uniforms map[string]any, children []Shader) (Shader, error) {
	return r.b.effect(CapShader, "runtimeShader", uniforms, children), nil
}

type fakeImage struct {
	id       int
	w, h     int
	disposed int
}

func (i *fakeImage) Width() int  { return i.w }
func (i *fakeImage) Height() int { return i.h }
func (i *fakeImage) Dispose()    { i.disposed++ }

type fakeSurface struct {
	b        *fakeBackend
	w, h     int
	canvas   *fakeCanvas
	disposed int
}

func (s *fakeSurface) Width() int     { return s.w }
func (s *fakeSurface) Height() int    { return s.h }
func (s *fakeSurface) Canvas() Canvas { return s.canvas }
func (s *fakeSurface) Dispose()       { s.disposed++ }

func (s *fakeSurface) Flush() error {
	s.b.record("flush")
	return s.b.flushErr
}

func (s *fakeSurface) Snapshot() (Image, error) {
	s.b.record("snapshot")
	if s.b.snapErr != nil {
		return nil, s.b.snapErr
	}
	return s.b.newImage(s.w, s.h), nil
}

// fakeCanvas records calls as short strings, for example "rect" or
// "image#2@-450,100".
type fakeCanvas struct {
	b      *fakeBackend
	paints []Paint
	depth  int
}

func (c *fakeCanvas) paint(p *Paint) {
	if p == nil {
		c.paints = append(c.paints, DefaultPaint())
		return
	}
	c.paints = append(c.paints, *p)
}

func (c *fakeCanvas) Clear(col Color) { c.b.record("clear " + col.String()) }

func (c *fakeCanvas) Save() {
	c.depth++
	c.b.record("save")
}

func (c *fakeCanvas) SaveLayer(p *Paint) {
	c.depth++
	c.paint(p)
	c.b.record("saveLayer")
}

func (c *fakeCanvas) Restore() {
	c.depth--
	c.b.record("restore")
}

func (c *fakeCanvas) Concat(m Matrix) { c.b.record(fmt.Sprintf("concat %v,%v", m[4], m[5])) }

func (c *fakeCanvas) DrawPaint(p *Paint) {
	c.paint(p)
	c.b.record("fill")
}

func (c *fakeCanvas) DrawRect(r Rect, p *Paint) {
	c.paint(p)
	c.b.record("rect")
}
func (c *fakeCanvas) DrawRoundRect(r Rect, rx, ry float64, p *Paint) {
	c.paint(p)
	c.b.record("roundRect")
}
func (c *fakeCanvas) DrawCircle(center Vec2, radius float64, p *Paint) {
	c.paint(p)
	c.b.record("circle")
}
func (c *fakeCanvas) DrawLine(p0, p1 Vec2, p *Paint) {
	c.paint(p)
	c.b.record("line")
}
func (c *fakeCanvas) DrawImage(img Image, x, y float64, p *Paint) {
	c.paint(p)
	id := 0
	if fi, ok := img.(*fakeImage); ok {
		id = fi.id
	}
	c.b.record(fmt.Sprintf("image#%d@%v,%v", id, x, y))
}
func (c *fakeCanvas) DrawImageRect(img Image, src, dst Rect, p *Paint) {
	c.paint(p)
	c.b.record("imageRect")
}

// fakeSource hands out a fresh image per frame, or err.
type fakeSource struct {
	b      *fakeBackend
	err    error
	frames []*fakeImage
	ready  bool
}

func (s *fakeSource) NextFrame(ts time.Duration) (Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	img := s.b.newImage(8, 8)
	s.frames = append(s.frames, img)
	return img, nil
}

// readySource is a fakeSource that also reports readiness.
type readySource struct {
	fakeSource
}

func (s *readySource) Ready() bool { return s.ready }
