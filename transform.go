package canopy

import "math"

// Matrix is a 2D affine matrix stored as [a, b, c, d, tx, ty]:
//
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
type Matrix [6]float64

// IdentityMatrix is the identity affine matrix.
var IdentityMatrix = Matrix{1, 0, 0, 1, 0, 0}

// TranslateMatrix returns a translation by (x, y).
func TranslateMatrix(x, y float64) Matrix { return Matrix{1, 0, 0, 1, x, y} }

// ScaleMatrix returns a scale by (sx, sy).
func ScaleMatrix(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// RotateMatrix returns a rotation by theta radians (clockwise on screen).
func RotateMatrix(theta float64) Matrix {
	sin, cos := math.Sincos(theta)
	return Matrix{cos, sin, -sin, cos, 0, 0}
}

// Multiply returns m * c (c is applied first).
func (m Matrix) Multiply(c Matrix) Matrix {
	return Matrix{
		m[0]*c[0] + m[2]*c[1],
		m[1]*c[0] + m[3]*c[1],
		m[0]*c[2] + m[2]*c[3],
		m[1]*c[2] + m[3]*c[3],
		m[0]*c[4] + m[2]*c[5] + m[4],
		m[1]*c[4] + m[3]*c[5] + m[5],
	}
}

// Invert returns the inverse of m, or the identity if m is singular.
func (m Matrix) Invert() Matrix {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return IdentityMatrix
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return Matrix{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// Apply transforms the point (x, y).
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// IsIdentity reports whether m is exactly the identity.
func (m Matrix) IsIdentity() bool { return m == IdentityMatrix }

// ScaleFactor returns the geometric mean of the axis scales. Used to scale
// stroke widths and blur radii into device space.
func (m Matrix) ScaleFactor() float64 {
	return math.Sqrt(math.Abs(m[0]*m[3] - m[1]*m[2]))
}

// localTransform computes the node's local matrix from its transform fields.
//
// Composition order:
//
//	Translate(-PivotX, -PivotY) -> Scale -> Skew -> Rotate -> Translate(X, Y)
func localTransform(n *Node) Matrix {
	sx := n.ScaleX
	sy := n.ScaleY

	sin, cos := math.Sincos(n.Rotation)

	var tanSkewX, tanSkewY float64
	if n.SkewX != 0 {
		tanSkewX = math.Tan(n.SkewX)
	}
	if n.SkewY != 0 {
		tanSkewY = math.Tan(n.SkewY)
	}

	a := sx
	b := tanSkewY * sx
	c := tanSkewX * sy
	d := sy

	px := n.PivotX
	py := n.PivotY
	preTx := -px*sx - tanSkewX*py*sy
	preTy := -tanSkewY*px*sx - py*sy

	ra := cos*a - sin*b
	rb := sin*a + cos*b
	rc := cos*c - sin*d
	rd := sin*c + cos*d
	rtx := cos*preTx - sin*preTy
	rty := sin*preTx + cos*preTy

	return Matrix{ra, rb, rc, rd, rtx + n.X, rty + n.Y}
}

// --- Transform property setters ---

// SetPosition sets the node's local X and Y and marks the tree dirty.
func (n *Node) SetPosition(x, y float64) {
	n.X = x
	n.Y = y
	n.MarkDirty()
}

// SetScale sets ScaleX and ScaleY and marks the tree dirty.
func (n *Node) SetScale(sx, sy float64) {
	n.ScaleX = sx
	n.ScaleY = sy
	n.MarkDirty()
}

// SetRotation sets the rotation (in radians) and marks the tree dirty.
func (n *Node) SetRotation(r float64) {
	n.Rotation = r
	n.MarkDirty()
}

// SetSkew sets SkewX and SkewY and marks the tree dirty.
func (n *Node) SetSkew(sx, sy float64) {
	n.SkewX = sx
	n.SkewY = sy
	n.MarkDirty()
}

// SetPivot sets PivotX and PivotY and marks the tree dirty.
func (n *Node) SetPivot(px, py float64) {
	n.PivotX = px
	n.PivotY = py
	n.MarkDirty()
}

// SetOpacity sets the opacity multiplier and marks the tree dirty.
func (n *Node) SetOpacity(a float64) {
	n.Opacity = a
	n.MarkDirty()
}

// SetVisible shows or hides the node's subtree.
func (n *Node) SetVisible(v bool) {
	n.Visible = v
	n.MarkDirty()
}
