package canopy

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// maxMeshVertices keeps indices within uint16.
const maxMeshVertices = 65000

// whitePixelSrc is the centre of the white pixel in its parent image.
const whitePixelSrc = 1.5

// meshBuffer accumulates triangles for one draw call. Slices grow to a
// high-water mark and are reused across draws.
type meshBuffer struct {
	verts []ebiten.Vertex
	inds  []uint16
}

func (m *meshBuffer) reset() {
	m.verts = m.verts[:0]
	m.inds = m.inds[:0]
}

func (m *meshBuffer) empty() bool { return len(m.inds) == 0 }

// fits reports whether n more vertices can be added.
func (m *meshBuffer) fits(n int) bool { return len(m.verts)+n <= maxMeshVertices }

func (m *meshBuffer) vertex(p Vec2, col [4]float32) {
	m.verts = append(m.verts, ebiten.Vertex{
		DstX:   float32(p.X),
		DstY:   float32(p.Y),
		SrcX:   whitePixelSrc,
		SrcY:   whitePixelSrc,
		ColorR: col[0], ColorG: col[1], ColorB: col[2], ColorA: col[3],
	})
}

// appendFan adds a fan-triangulated polygon. Vertex 0 is the hub, so the
// polygon must be convex or star-shaped around its first point.
func (m *meshBuffer) appendFan(pts []Vec2, col [4]float32) {
	n := len(pts)
	if n < 3 {
		return
	}
	base := uint16(len(m.verts))
	for _, p := range pts {
		m.vertex(p, col)
	}
	for i := 0; i < n-2; i++ {
		m.inds = append(m.inds, base, base+uint16(i+1), base+uint16(i+2))
	}
}

// appendStroke adds a ribbon of width 2*halfW along pts with mitred joins.
// Closed contours join the last point back to the first.
func (m *meshBuffer) appendStroke(pts []Vec2, closed bool, halfW float64, col [4]float32) {
	n := len(pts)
	if n < 2 || (closed && n < 3) {
		closed = false
	}
	if n < 2 {
		return
	}
	count := n
	if closed {
		count = n + 1
	}
	base := uint16(len(m.verts))
	for i := 0; i < count; i++ {
		idx := i % n
		var nx, ny float64
		switch {
		case !closed && idx == 0:
			nx, ny = perpendicular(pts[0], pts[1])
		case !closed && idx == n-1:
			nx, ny = perpendicular(pts[n-2], pts[n-1])
		default:
			prev := pts[(idx-1+n)%n]
			next := pts[(idx+1)%n]
			nx0, ny0 := perpendicular(prev, pts[idx])
			nx1, ny1 := perpendicular(pts[idx], next)
			nx, ny = nx0+nx1, ny0+ny1
			ln := math.Sqrt(nx*nx + ny*ny)
			if ln > 1e-10 {
				nx /= ln
				ny /= ln
			} else {
				nx, ny = nx0, ny0
			}
			// Scale to keep the width at the miter, clamped to 2x so sharp
			// corners do not spike.
			if dot := nx0*nx + ny0*ny; dot > 0.1 {
				scale := math.Min(1/dot, 2)
				nx *= scale
				ny *= scale
			}
		}
		p := pts[idx]
		m.vertex(Vec2{p.X + nx*halfW, p.Y + ny*halfW}, col)
		m.vertex(Vec2{p.X - nx*halfW, p.Y - ny*halfW}, col)
	}
	for i := 0; i < count-1; i++ {
		v := base + uint16(i*2)
		m.inds = append(m.inds, v, v+1, v+2, v+1, v+3, v+2)
	}
}

// mapSource sets every vertex's source position to srcM applied to its
// destination position.
func (m *meshBuffer) mapSource(srcM Matrix) {
	for i := range m.verts {
		v := &m.verts[i]
		x, y := srcM.Apply(float64(v.DstX), float64(v.DstY))
		v.SrcX, v.SrcY = float32(x), float32(y)
	}
}

// perpendicular returns the unit left-perpendicular of the segment from a to b.
func perpendicular(a, b Vec2) (float64, float64) {
	dx := b.X - a.X
	dy := b.Y - a.Y
	ln := math.Sqrt(dx*dx + dy*dy)
	if ln < 1e-10 {
		return 0, -1
	}
	return -dy / ln, dx / ln
}

// premulColor returns c premultiplied as vertex colour components.
func premulColor(c Color) [4]float32 {
	r, g, b, a := c.Premultiplied()
	return [4]float32{float32(r), float32(g), float32(b), float32(a)}
}
