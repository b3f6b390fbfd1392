package canopy

import "math"

// FitRects returns the source rectangle (in image pixels) and destination
// rectangle that place an image of size w x h into dst according to fit.
// An empty dst draws the image at its natural size from dst's origin.
func FitRects(fit Fit, w, h float64, dst Rect) (src, out Rect) {
	full := Rect{0, 0, w, h}
	if dst.Empty() {
		return full, Rect{dst.X, dst.Y, w, h}
	}
	if w <= 0 || h <= 0 {
		return full, dst
	}
	switch fit {
	case FitFill:
		return full, dst
	case FitContain:
		s := math.Min(dst.Width/w, dst.Height/h)
		return full, centered(dst, w*s, h*s)
	case FitCover:
		s := math.Max(dst.Width/w, dst.Height/h)
		return centered(full, dst.Width/s, dst.Height/s), dst
	case FitFitWidth:
		s := dst.Width / w
		if h*s > dst.Height {
			return centered(full, w, dst.Height/s), dst
		}
		return full, centered(dst, dst.Width, h*s)
	case FitFitHeight:
		s := dst.Height / h
		if w*s > dst.Width {
			return centered(full, dst.Width/s, h), dst
		}
		return full, centered(dst, w*s, dst.Height)
	case FitScaleDown:
		s := math.Min(1, math.Min(dst.Width/w, dst.Height/h))
		return full, centered(dst, w*s, h*s)
	default: // FitNone
		cw := math.Min(w, dst.Width)
		ch := math.Min(h, dst.Height)
		return centered(full, cw, ch), centered(dst, cw, ch)
	}
}

// centered returns a w x h rectangle centred in r.
func centered(r Rect, w, h float64) Rect {
	return Rect{r.X + (r.Width-w)/2, r.Y + (r.Height-h)/2, w, h}
}
