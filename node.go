package canopy

import "strconv"

// NodeKind distinguishes what a Node contributes to the frame.
type NodeKind uint8

const (
	KindGroup       NodeKind = iota // transform, opacity and paint scope for its children
	KindFill                        // fills the whole canvas
	KindRect                        // axis-aligned rectangle
	KindRoundRect                   // rectangle with elliptical corners
	KindCircle                      // circle around Center
	KindLine                        // segment from P0 to P1
	KindImage                       // image from an ImageSource placed into Rect
	KindDeclaration                 // effect declaration, produces no commands
)

var nodeKindNames = [...]string{"group", "fill", "rect", "roundRect", "circle", "line", "image", "declaration"}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "NodeKind(" + strconv.Itoa(int(k)) + ")"
}

// IsDrawing reports whether nodes of this kind emit a draw command.
func (k NodeKind) IsDrawing() bool {
	return k >= KindFill && k <= KindImage
}

// ImageSource supplies the image an image node draws. CurrentImage may
// return nil when nothing is available yet; the draw is then skipped.
type ImageSource interface {
	CurrentImage() Image
}

// StaticImage is an ImageSource that always returns the same image.
type StaticImage struct {
	Image Image
}

// CurrentImage returns s.Image.
func (s StaticImage) CurrentImage() Image { return s.Image }

// nodeIDCounter is a plain counter; trees are built on one goroutine.
var nodeIDCounter uint32

func nextNodeID() uint32 {
	nodeIDCounter++
	return nodeIDCounter
}

// Node is the scene graph element. A single flat struct is used for all node
// kinds; the fields that matter depend on Kind.
//
// Setting fields directly is allowed; call MarkDirty afterwards so the owning
// Scene rebuilds on its next Update.
type Node struct {
	// Identity
	ID   uint32
	Name string
	Kind NodeKind

	// Hierarchy
	Parent   *Node
	children []*Node

	// Transform (local)
	X, Y         float64
	ScaleX       float64
	ScaleY       float64
	Rotation     float64
	SkewX, SkewY float64
	PivotX       float64
	PivotY       float64

	Opacity float64
	Visible bool

	// Paint (drawing nodes)
	Color       Color
	Style       PaintStyle
	StrokeWidth float64
	BlendMode   BlendMode

	// Refs binds paint slots to named declarations anywhere in the tree.
	Refs map[Capability]string

	// Geometry
	Rect   Rect    // rect, roundRect, image destination
	RX, RY float64 // roundRect corner radii
	Center Vec2    // circle
	Radius float64 // circle
	P0, P1 Vec2    // line

	// Image
	Source ImageSource
	Fit    Fit

	// Declaration
	Decl *Declaration

	// Metadata
	UserData any

	dirty    bool
	disposed bool
}

// nodeDefaults sets the field values shared by all constructors.
func nodeDefaults(n *Node) {
	n.ID = nextNodeID()
	n.ScaleX = 1
	n.ScaleY = 1
	n.Opacity = 1
	n.Visible = true
	n.Color = ColorBlack
	n.StrokeWidth = 1
	n.dirty = true
}

func newNode(name string, kind NodeKind) *Node {
	n := &Node{Name: name, Kind: kind}
	nodeDefaults(n)
	return n
}

// NewGroup creates a group node with no visual output of its own.
func NewGroup(name string) *Node {
	return newNode(name, KindGroup)
}

// NewFill creates a node that fills the whole canvas with c.
func NewFill(name string, c Color) *Node {
	n := newNode(name, KindFill)
	n.Color = c
	return n
}

// NewRect creates a rectangle node.
func NewRect(name string, r Rect) *Node {
	n := newNode(name, KindRect)
	n.Rect = r
	return n
}

// NewRoundRect creates a rounded rectangle node.
func NewRoundRect(name string, r Rect, rx, ry float64) *Node {
	n := newNode(name, KindRoundRect)
	n.Rect = r
	n.RX, n.RY = rx, ry
	return n
}

// NewCircle creates a circle node.
func NewCircle(name string, center Vec2, radius float64) *Node {
	n := newNode(name, KindCircle)
	n.Center = center
	n.Radius = radius
	return n
}

// NewLine creates a line node. Lines are always stroked.
func NewLine(name string, p0, p1 Vec2) *Node {
	n := newNode(name, KindLine)
	n.P0, n.P1 = p0, p1
	n.Style = StyleStroke
	return n
}

// NewImage creates an image node drawing src into dst with the given fit.
func NewImage(name string, src ImageSource, dst Rect, fit Fit) *Node {
	n := newNode(name, KindImage)
	n.Source = src
	n.Rect = dst
	n.Fit = fit
	return n
}

// NewDeclaration creates a declaration node. Its declaration children are its
// inputs.
func NewDeclaration(name string, props Props) *Node {
	n := newNode(name, KindDeclaration)
	n.Decl = &Declaration{props: props, owner: n}
	return n
}

// SetRef binds a paint slot to the declaration registered under name.
func (n *Node) SetRef(slot Capability, name string) {
	if n.Refs == nil {
		n.Refs = make(map[Capability]string, 1)
	}
	n.Refs[slot] = name
	n.MarkDirty()
}

// --- Tree manipulation ---

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or child is an ancestor of this node (cycle).
func (n *Node) AddChild(child *Node) {
	if child == nil {
		panic("canopy: cannot add nil child")
	}
	if globalDebug {
		debugCheckDisposed(n, "AddChild (parent)")
		debugCheckDisposed(child, "AddChild (child)")
	}
	if isAncestor(child, n) {
		panic("canopy: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
		child.Parent.MarkDirty()
	}
	child.Parent = n
	n.children = append(n.children, child)
	n.MarkDirty()
	if globalDebug {
		debugCheckTreeDepth(child)
		debugCheckChildCount(n)
	}
}

// AddChildAt inserts child at the given index.
// Same reparenting and cycle-check behavior as AddChild.
func (n *Node) AddChildAt(child *Node, index int) {
	if child == nil {
		panic("canopy: cannot add nil child")
	}
	if globalDebug {
		debugCheckDisposed(n, "AddChildAt (parent)")
		debugCheckDisposed(child, "AddChildAt (child)")
	}
	if isAncestor(child, n) {
		panic("canopy: adding child would create a cycle")
	}
	if index < 0 || index > len(n.children) {
		panic("canopy: child index out of range")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
		child.Parent.MarkDirty()
	}
	child.Parent = n
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	n.MarkDirty()
}

// RemoveChild detaches child from this node.
// Panics if child.Parent != n.
func (n *Node) RemoveChild(child *Node) {
	if child.Parent != n {
		panic("canopy: child's parent is not this node")
	}
	n.removeChildByPtr(child)
	child.Parent = nil
	n.MarkDirty()
}

// RemoveChildAt removes and returns the child at the given index.
func (n *Node) RemoveChildAt(index int) *Node {
	if index < 0 || index >= len(n.children) {
		panic("canopy: child index out of range")
	}
	child := n.children[index]
	copy(n.children[index:], n.children[index+1:])
	n.children[len(n.children)-1] = nil
	n.children = n.children[:len(n.children)-1]
	child.Parent = nil
	n.MarkDirty()
	return child
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// RemoveChildren detaches all children from this node.
// Children are NOT disposed.
func (n *Node) RemoveChildren() {
	for _, child := range n.children {
		child.Parent = nil
	}
	n.children = n.children[:0]
	n.MarkDirty()
}

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// ChildAt returns the child at the given index.
func (n *Node) ChildAt(index int) *Node {
	return n.children[index]
}

// FindChild returns the first descendant (pre-order) named name, or nil.
func (n *Node) FindChild(name string) *Node {
	for _, c := range n.children {
		if c.Name == name {
			return c
		}
		if found := c.FindChild(name); found != nil {
			return found
		}
	}
	return nil
}

// MarkDirty flags the node and its ancestors so the owning Scene rebuilds.
func (n *Node) MarkDirty() {
	for p := n; p != nil; p = p.Parent {
		p.dirty = true
	}
}

// Dirty reports whether the node changed since the last successful build.
func (n *Node) Dirty() bool { return n.dirty }

// --- Disposal ---

// Dispose removes this node from its parent, marks it as disposed, releases
// any resolved effect it holds and recursively disposes all descendants.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.RemoveFromParent()
	n.dispose()
}

func (n *Node) dispose() {
	n.disposed = true
	n.ID = 0
	for _, child := range n.children {
		child.Parent = nil
		child.dispose()
	}
	n.children = nil
	n.Parent = nil
	if n.Decl != nil {
		n.Decl.release()
		n.Decl.owner = nil
		n.Decl = nil
	}
	n.Source = nil
	n.Refs = nil
	n.UserData = nil
}

// IsDisposed returns true if this node has been disposed.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// --- Helpers ---

// isAncestor reports whether candidate is an ancestor of node.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from n.children without clearing child.Parent.
// Uses copy+nil to avoid retaining a dangling pointer in the backing array.
func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}

// clearDirty resets the dirty flag on n and its descendants.
func clearDirty(n *Node) {
	n.dirty = false
	for _, c := range n.children {
		clearDirty(c)
	}
}
