package canopy

// ColorOp is one step of a colour filter chain: either a 4x5 matrix or a
// blend of a constant colour over the input. Backends keep colour filters
// as op lists so that composition is a concatenation.
type ColorOp struct {
	Matrix [20]float64
	Blend  bool
	Color  Color
	Mode   BlendMode
}

// MatrixOp returns a matrix step.
func MatrixOp(m [20]float64) ColorOp { return ColorOp{Matrix: m} }

// BlendOp returns a constant-colour blend step.
func BlendOp(c Color, mode BlendMode) ColorOp {
	return ColorOp{Blend: true, Color: c, Mode: mode}
}

// Apply runs the step on a straight-alpha colour.
func (op ColorOp) Apply(c Color) Color {
	if op.Blend {
		return BlendColors(op.Color, c, op.Mode)
	}
	return ApplyColorMatrix(op.Matrix, c)
}

// ApplyColorOps runs ops in order.
func ApplyColorOps(ops []ColorOp, c Color) Color {
	for _, op := range ops {
		c = op.Apply(c)
	}
	return c
}

// ComposeColorOps returns the chain applying inner then outer. Adjacent
// matrix steps are folded into one.
func ComposeColorOps(outer, inner []ColorOp) []ColorOp {
	out := make([]ColorOp, 0, len(inner)+len(outer))
	for _, ops := range [2][]ColorOp{inner, outer} {
		for _, op := range ops {
			if n := len(out); n > 0 && !op.Blend && !out[n-1].Blend {
				out[n-1].Matrix = ComposeColorMatrices(op.Matrix, out[n-1].Matrix)
				continue
			}
			out = append(out, op)
		}
	}
	return out
}

// PathOp is one step of a path effect chain: a dash pattern or a corner
// rounding radius.
type PathOp struct {
	Intervals []float64
	Phase     float64
	Corner    float64
}

// ApplyPathOps rewrites contours through ops in order.
func ApplyPathOps(cs []Contour, ops []PathOp) []Contour {
	for _, op := range ops {
		if len(op.Intervals) > 0 {
			cs = DashContours(cs, op.Intervals, op.Phase)
		} else {
			cs = RoundContourCorners(cs, op.Corner)
		}
	}
	return cs
}

// ComposePathOps returns the chain applying inner then outer.
func ComposePathOps(outer, inner []PathOp) []PathOp {
	out := make([]PathOp, 0, len(inner)+len(outer))
	out = append(out, inner...)
	return append(out, outer...)
}
