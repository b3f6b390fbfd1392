package canopy

import "testing"

// --- Constructor defaults ---

func assertNodeDefaults(t *testing.T, n *Node, name string, kind NodeKind) {
	t.Helper()
	if n.ID == 0 {
		t.Error("ID should be non-zero")
	}
	if n.Name != name {
		t.Errorf("Name = %q, want %q", n.Name, name)
	}
	if n.Kind != kind {
		t.Errorf("Kind = %v, want %v", n.Kind, kind)
	}
	if n.ScaleX != 1 || n.ScaleY != 1 {
		t.Errorf("Scale = (%v, %v), want (1, 1)", n.ScaleX, n.ScaleY)
	}
	if n.Opacity != 1 {
		t.Errorf("Opacity = %v, want 1", n.Opacity)
	}
	if !n.Visible {
		t.Error("Visible should be true")
	}
	if !n.Dirty() {
		t.Error("a new node should be dirty")
	}
}

func TestConstructorDefaults(t *testing.T) {
	tests := []struct {
		n    *Node
		name string
		kind NodeKind
	}{
		{NewGroup("g"), "g", KindGroup},
		{NewFill("f", ColorRed), "f", KindFill},
		{NewRect("r", Rect{}), "r", KindRect},
		{NewRoundRect("rr", Rect{}, 1, 2), "rr", KindRoundRect},
		{NewCircle("c", Vec2{}, 1), "c", KindCircle},
		{NewLine("l", Vec2{}, Vec2{}), "l", KindLine},
		{NewImage("i", nil, Rect{}, FitCover), "i", KindImage},
		{NewDeclaration("d", &BlurProps{}), "d", KindDeclaration},
	}
	for _, tt := range tests {
		assertNodeDefaults(t, tt.n, tt.name, tt.kind)
	}
}

func TestNewDeclarationOwnsPayload(t *testing.T) {
	p := &OffsetProps{DX: 1}
	n := NewDeclaration("off", p)
	if n.Decl == nil || n.Decl.Node() != n || n.Decl.Props() != Props(p) {
		t.Fatal("declaration payload not wired")
	}
	if n.Decl.Capability() != CapImageFilter {
		t.Errorf("Capability = %v, want imageFilter", n.Decl.Capability())
	}
	if !n.Decl.Resolved().Absent() {
		t.Error("an unresolved declaration should be absent")
	}
}

func TestNodeKindString(t *testing.T) {
	if KindRoundRect.String() != "roundRect" || KindDeclaration.String() != "declaration" {
		t.Error("kind names")
	}
	if KindGroup.IsDrawing() || KindDeclaration.IsDrawing() || !KindImage.IsDrawing() {
		t.Error("IsDrawing")
	}
}

func TestUniqueIDs(t *testing.T) {
	a := NewGroup("a")
	b := NewGroup("b")
	if a.ID == b.ID {
		t.Errorf("IDs should differ, both = %d", a.ID)
	}
}

// --- Tree manipulation ---

func TestAddChild(t *testing.T) {
	parent := NewGroup("parent")
	child := NewGroup("child")
	parent.AddChild(child)

	if child.Parent != parent {
		t.Error("child.Parent should be parent")
	}
	if parent.NumChildren() != 1 || parent.ChildAt(0) != child {
		t.Error("child not appended")
	}
}

func TestAddChildReparents(t *testing.T) {
	a := NewGroup("a")
	b := NewGroup("b")
	child := NewGroup("child")
	a.AddChild(child)
	b.AddChild(child)

	if a.NumChildren() != 0 {
		t.Errorf("old parent still has %d children", a.NumChildren())
	}
	if child.Parent != b {
		t.Error("child.Parent should be the new parent")
	}
}

func TestAddChildAt(t *testing.T) {
	p := NewGroup("p")
	a, b, c := NewGroup("a"), NewGroup("b"), NewGroup("c")
	p.AddChild(a)
	p.AddChild(c)
	p.AddChildAt(b, 1)

	for i, want := range []*Node{a, b, c} {
		if p.ChildAt(i) != want {
			t.Errorf("ChildAt(%d) = %q, want %q", i, p.ChildAt(i).Name, want.Name)
		}
	}
}

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}

func TestTreePanics(t *testing.T) {
	root := NewGroup("root")
	child := NewGroup("child")
	root.AddChild(child)
	other := NewGroup("other")

	expectPanic(t, "nil child", func() { root.AddChild(nil) })
	expectPanic(t, "cycle", func() { child.AddChild(root) })
	expectPanic(t, "self", func() { root.AddChild(root) })
	expectPanic(t, "AddChildAt out of range", func() { root.AddChildAt(other, 5) })
	expectPanic(t, "RemoveChild wrong parent", func() { root.RemoveChild(other) })
	expectPanic(t, "RemoveChildAt out of range", func() { root.RemoveChildAt(3) })
}

func TestRemoveChild(t *testing.T) {
	p := NewGroup("p")
	a, b := NewGroup("a"), NewGroup("b")
	p.AddChild(a)
	p.AddChild(b)

	p.RemoveChild(a)
	if a.Parent != nil || p.NumChildren() != 1 || p.ChildAt(0) != b {
		t.Error("RemoveChild")
	}
	if got := p.RemoveChildAt(0); got != b || b.Parent != nil {
		t.Error("RemoveChildAt")
	}
	b.RemoveFromParent()
}

func TestRemoveChildren(t *testing.T) {
	p := NewGroup("p")
	kids := []*Node{NewGroup("a"), NewGroup("b")}
	for _, k := range kids {
		p.AddChild(k)
	}
	p.RemoveChildren()
	if p.NumChildren() != 0 {
		t.Errorf("NumChildren = %d, want 0", p.NumChildren())
	}
	for _, k := range kids {
		if k.Parent != nil || k.IsDisposed() {
			t.Errorf("%s should be detached, not disposed", k.Name)
		}
	}
}

func TestFindChildPreOrder(t *testing.T) {
	root := NewGroup("root")
	a := NewGroup("a")
	deep := NewGroup("x")
	a.AddChild(deep)
	root.AddChild(a)
	root.AddChild(NewGroup("x"))

	if got := root.FindChild("x"); got != deep {
		t.Error("FindChild should return the first match in pre-order")
	}
	if root.FindChild("missing") != nil {
		t.Error("FindChild(missing) should be nil")
	}
}

func TestMarkDirtyPropagates(t *testing.T) {
	root := NewGroup("root")
	mid := NewGroup("mid")
	leaf := NewGroup("leaf")
	root.AddChild(mid)
	mid.AddChild(leaf)
	clearDirty(root)

	sibling := NewGroup("sibling")
	root.AddChild(sibling)
	clearDirty(root)

	leaf.MarkDirty()
	if !leaf.Dirty() || !mid.Dirty() || !root.Dirty() {
		t.Error("ancestors should be dirty")
	}
	if sibling.Dirty() {
		t.Error("siblings should stay clean")
	}
}

func TestSetRef(t *testing.T) {
	n := NewRect("r", Rect{})
	n.SetRef(CapShader, "a")
	n.SetRef(CapShader, "b")
	if len(n.Refs) != 1 || n.Refs[CapShader] != "b" {
		t.Errorf("Refs = %v", n.Refs)
	}
}

// --- Disposal ---

func TestDisposeRecursive(t *testing.T) {
	b := newFakeBackend()
	root := NewGroup("root")
	g := NewGroup("g")
	d := NewDeclaration("blur", &BlurProps{SigmaX: 1})
	g.AddChild(d)
	root.AddChild(g)
	if _, err := Build(root, NewResolver(b)); err != nil {
		t.Fatal(err)
	}

	g.Dispose()
	if !g.IsDisposed() || !d.IsDisposed() {
		t.Error("subtree should be disposed")
	}
	if g.ID != 0 || d.Decl != nil {
		t.Error("disposed nodes should drop their ID and payload")
	}
	if root.NumChildren() != 0 {
		t.Error("disposed node should leave its parent")
	}
	if b.effects[0].disposed != 1 {
		t.Errorf("blur disposed %d times, want 1", b.effects[0].disposed)
	}
	g.Dispose()
	if b.effects[0].disposed != 1 {
		t.Error("Dispose should be idempotent")
	}
}
