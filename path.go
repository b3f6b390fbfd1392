package canopy

import "math"

// Contour is a polyline. Closed joins the last point back to the first.
type Contour struct {
	Points []Vec2
	Closed bool
}

// RectContour returns the four corners of r, clockwise from the top-left.
func RectContour(r Rect) Contour {
	return Contour{
		Points: []Vec2{
			{r.X, r.Y},
			{r.X + r.Width, r.Y},
			{r.X + r.Width, r.Y + r.Height},
			{r.X, r.Y + r.Height},
		},
		Closed: true,
	}
}

// RoundRectContour returns r with elliptical corners of radii (rx, ry).
// Radii are clamped to half the rectangle's size; zero radii give a plain
// rectangle.
func RoundRectContour(r Rect, rx, ry float64) Contour {
	rx = math.Min(math.Max(rx, 0), r.Width/2)
	ry = math.Min(math.Max(ry, 0), r.Height/2)
	if rx <= 0 || ry <= 0 {
		return RectContour(r)
	}
	n := arcSegments(math.Max(rx, ry)) / 4
	if n < 2 {
		n = 2
	}
	corners := [4]struct {
		cx, cy, start float64
	}{
		{r.X + r.Width - rx, r.Y + ry, -math.Pi / 2},
		{r.X + r.Width - rx, r.Y + r.Height - ry, 0},
		{r.X + rx, r.Y + r.Height - ry, math.Pi / 2},
		{r.X + rx, r.Y + ry, math.Pi},
	}
	pts := make([]Vec2, 0, 4*(n+1))
	for _, c := range corners {
		for i := 0; i <= n; i++ {
			a := c.start + float64(i)/float64(n)*math.Pi/2
			sin, cos := math.Sincos(a)
			pts = append(pts, Vec2{c.cx + cos*rx, c.cy + sin*ry})
		}
	}
	return Contour{Points: pts, Closed: true}
}

// EllipseContour approximates an ellipse with a closed polygon.
func EllipseContour(center Vec2, rx, ry float64) Contour {
	n := arcSegments(math.Max(rx, ry))
	pts := make([]Vec2, n)
	for i := range pts {
		sin, cos := math.Sincos(float64(i) / float64(n) * 2 * math.Pi)
		pts[i] = Vec2{center.X + cos*rx, center.Y + sin*ry}
	}
	return Contour{Points: pts, Closed: true}
}

// arcSegments picks a segment count for a full circle of radius r so that
// each chord is about 4 units long.
func arcSegments(r float64) int {
	n := int(math.Ceil(2 * math.Pi * r / 4))
	return min(max(n, 16), 256)
}

// segments calls fn for every edge of c, including the closing edge.
func (c Contour) segments(fn func(a, b Vec2)) {
	n := len(c.Points)
	for i := 0; i+1 < n; i++ {
		fn(c.Points[i], c.Points[i+1])
	}
	if c.Closed && n > 2 {
		fn(c.Points[n-1], c.Points[0])
	}
}

// Length returns the total length of c's edges.
func (c Contour) Length() float64 {
	var l float64
	c.segments(func(a, b Vec2) { l += dist(a, b) })
	return l
}

func dist(a, b Vec2) float64 { return math.Hypot(b.X-a.X, b.Y-a.Y) }

func lerp(a, b Vec2, t float64) Vec2 {
	return Vec2{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t}
}

// DashContours splits contours into open "on" runs. intervals alternate
// on and off lengths and must sum to more than zero; phase shifts the
// pattern start. The pattern restarts for every contour.
func DashContours(cs []Contour, intervals []float64, phase float64) []Contour {
	var total float64
	for _, v := range intervals {
		total += v
	}
	if total <= 0 || len(intervals) < 2 {
		return cs
	}
	start := math.Mod(phase, total)
	if start < 0 {
		start += total
	}

	var out []Contour
	for _, c := range cs {
		idx := 0
		left := intervals[0]
		for off := start; off > 0; {
			if off < left {
				left -= off
				break
			}
			off -= left
			idx = (idx + 1) % len(intervals)
			left = intervals[idx]
		}

		var cur []Vec2
		c.segments(func(a, b Vec2) {
			segLen := dist(a, b)
			pos := 0.0
			for pos < segLen {
				step := math.Min(left, segLen-pos)
				on := idx%2 == 0
				if on {
					p0 := lerp(a, b, pos/segLen)
					p1 := lerp(a, b, (pos+step)/segLen)
					if len(cur) == 0 {
						cur = append(cur, p0)
					}
					cur = append(cur, p1)
				}
				pos += step
				left -= step
				if left <= 1e-9 {
					if on && len(cur) > 1 {
						out = append(out, Contour{Points: cur})
					}
					cur = nil
					idx = (idx + 1) % len(intervals)
					left = intervals[idx]
				}
			}
		})
		if len(cur) > 1 {
			out = append(out, Contour{Points: cur})
		}
	}
	return out
}

// RoundContourCorners replaces every corner with a quadratic curve that
// starts and ends radius away from the corner along its edges. Edges shorter
// than twice the radius shrink the curve to fit.
func RoundContourCorners(cs []Contour, radius float64) []Contour {
	if radius <= 0 {
		return cs
	}
	const steps = 8
	out := make([]Contour, 0, len(cs))
	for _, c := range cs {
		n := len(c.Points)
		if n < 3 {
			out = append(out, c)
			continue
		}
		pts := make([]Vec2, 0, n*(steps+1))
		for i := 0; i < n; i++ {
			cur := c.Points[i]
			if !c.Closed && (i == 0 || i == n-1) {
				pts = append(pts, cur)
				continue
			}
			prev := c.Points[(i-1+n)%n]
			next := c.Points[(i+1)%n]
			d0, d1 := dist(prev, cur), dist(cur, next)
			if d0 == 0 || d1 == 0 {
				pts = append(pts, cur)
				continue
			}
			r := math.Min(radius, math.Min(d0, d1)/2)
			in := lerp(cur, prev, r/d0)
			outPt := lerp(cur, next, r/d1)
			for s := 0; s <= steps; s++ {
				t := float64(s) / steps
				q0 := lerp(in, cur, t)
				q1 := lerp(cur, outPt, t)
				pts = append(pts, lerp(q0, q1, t))
			}
		}
		out = append(out, Contour{Points: pts, Closed: c.Closed})
	}
	return out
}

// TransformContours maps every point through m.
func TransformContours(cs []Contour, m Matrix) []Contour {
	if m.IsIdentity() {
		return cs
	}
	out := make([]Contour, len(cs))
	for i, c := range cs {
		pts := make([]Vec2, len(c.Points))
		for j, p := range c.Points {
			pts[j].X, pts[j].Y = m.Apply(p.X, p.Y)
		}
		out[i] = Contour{Points: pts, Closed: c.Closed}
	}
	return out
}
