package canopy

import (
	"errors"
	"testing"
)

func ops(f *Frame) []Op {
	out := make([]Op, len(f.Commands))
	for i, c := range f.Commands {
		out[i] = c.Op
	}
	return out
}

func assertOps(t *testing.T, f *Frame, want ...Op) {
	t.Helper()
	got := ops(f)
	if len(got) != len(want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ops = %v, want %v", got, want)
		}
	}
}

func buildTree(t *testing.T, root *Node) (*Frame, *fakeBackend) {
	t.Helper()
	b := newFakeBackend()
	f, err := Build(root, NewResolver(b))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return f, b
}

func TestBuildPreOrder(t *testing.T) {
	root := NewGroup("root")
	root.AddChild(NewFill("bg", ColorRed))
	root.AddChild(NewRect("r", Rect{Width: 10, Height: 10}))
	inner := NewGroup("inner")
	inner.AddChild(NewCircle("c", Vec2{X: 5, Y: 5}, 3))
	inner.AddChild(NewLine("l", Vec2{}, Vec2{X: 10}))
	root.AddChild(inner)
	root.AddChild(NewRoundRect("rr", Rect{Width: 4, Height: 4}, 1, 1))

	f, _ := buildTree(t, root)
	assertOps(t, f,
		OpSave, OpFill, OpRect,
		OpSave, OpCircle, OpLine, OpRestore,
		OpRoundRect, OpRestore)

	if f.DrawCount() != 5 {
		t.Errorf("DrawCount = %d, want 5", f.DrawCount())
	}
	names := []string{"root", "bg", "r", "inner", "c", "l", "inner", "rr", "root"}
	for i, c := range f.Commands {
		if c.Node != names[i] {
			t.Errorf("command %d node = %q, want %q", i, c.Node, names[i])
		}
	}
	if f.Commands[0].Span != 7 {
		t.Errorf("root span = %d, want 7", f.Commands[0].Span)
	}
	if f.Commands[3].Span != 2 {
		t.Errorf("inner span = %d, want 2", f.Commands[3].Span)
	}
}

func TestBuildSkipsHiddenSubtrees(t *testing.T) {
	root := NewGroup("root")
	hidden := NewGroup("hidden")
	hidden.Visible = false
	hidden.AddChild(NewRect("r", Rect{Width: 1, Height: 1}))
	root.AddChild(hidden)
	root.AddChild(NewFill("bg", ColorBlack))

	f, _ := buildTree(t, root)
	assertOps(t, f, OpSave, OpFill, OpRestore)
}

func TestBuildPaintFromNode(t *testing.T) {
	root := NewGroup("root")
	root.Opacity = 0.5
	r := NewRect("r", Rect{Width: 1, Height: 1})
	r.Color = ColorRed
	r.Opacity = 0.5
	r.Style = StyleStroke
	r.StrokeWidth = 3
	r.BlendMode = BlendAdd
	r.X, r.Y = 7, 9
	root.AddChild(r)

	f, _ := buildTree(t, root)
	cmd := f.Commands[1]
	if cmd.Paint.Color != ColorRed || cmd.Paint.Opacity != 0.25 {
		t.Errorf("paint = %+v, want red at opacity 0.25", cmd.Paint)
	}
	if cmd.Paint.Style != StyleStroke || cmd.Paint.StrokeWidth != 3 || cmd.Paint.BlendMode != BlendAdd {
		t.Errorf("paint = %+v", cmd.Paint)
	}
	if cmd.Transform != TranslateMatrix(7, 9) {
		t.Errorf("Transform = %v, want translate(7, 9)", cmd.Transform)
	}
}

func TestBuildDeclarationChildSetsSlot(t *testing.T) {
	root := NewGroup("root")
	r := NewRect("r", Rect{Width: 1, Height: 1})
	r.AddChild(NewDeclaration("dash", &DashPathEffectProps{Intervals: []float64{2, 2}}))
	r.AddChild(NewDeclaration("tint", &BlendColorFilterProps{Color: ColorRed, Mode: BlendMultiply}))
	r.AddChild(NewDeclaration("second", &MatrixColorFilterProps{}))
	root.AddChild(r)

	f, b := buildTree(t, root)
	assertOps(t, f, OpSave, OpRect, OpRestore)
	p := f.Commands[1].Paint
	if p.PathEffect == nil || p.PathEffect.(*fakeEffect).kind != "dash" {
		t.Errorf("PathEffect = %v, want dash", p.PathEffect)
	}
	if p.ColorFilter == nil || p.ColorFilter.(*fakeEffect).kind != "blendColor" {
		t.Errorf("ColorFilter = %v, want the first colour filter", p.ColorFilter)
	}
	if b.calls["matrix"] != 1 {
		t.Error("later declarations are still resolved")
	}
}

func TestBuildGroupSlotsCascade(t *testing.T) {
	root := NewGroup("root")
	root.AddChild(NewDeclaration("outer", &ColorShaderProps{Color: ColorRed}))
	a := NewRect("a", Rect{Width: 1, Height: 1})
	inner := NewGroup("inner")
	inner.AddChild(NewDeclaration("near", &ColorShaderProps{Color: ColorBlack}))
	c := NewCircle("c", Vec2{}, 1)
	inner.AddChild(c)
	root.AddChild(a)
	root.AddChild(inner)

	f, _ := buildTree(t, root)
	assertOps(t, f, OpSave, OpRect, OpSave, OpCircle, OpRestore, OpRestore)
	outer := f.Commands[1].Paint.Shader.(*fakeEffect)
	near := f.Commands[3].Paint.Shader.(*fakeEffect)
	if outer.args[0] != ColorRed {
		t.Errorf("rect shader colour = %v, want red", outer.args[0])
	}
	if near.args[0] != ColorBlack {
		t.Errorf("circle shader colour = %v, want the nearest group's black", near.args[0])
	}
}

func TestBuildGroupImageFilterMakesLayer(t *testing.T) {
	root := NewGroup("root")
	g := NewGroup("blurred")
	g.Opacity = 0.5
	g.BlendMode = BlendScreen
	g.X = 10
	g.AddChild(NewDeclaration("blur", &BlurProps{SigmaX: 4, SigmaY: 4}))
	r := NewRect("r", Rect{Width: 1, Height: 1})
	g.AddChild(r)
	root.AddChild(g)

	f, _ := buildTree(t, root)
	assertOps(t, f, OpSave, OpSaveLayer, OpRect, OpRestore, OpRestore)
	layer := f.Commands[1]
	if layer.Paint.ImageFilter == nil {
		t.Fatal("layer should carry the image filter")
	}
	if layer.Paint.Opacity != 0.5 || layer.Paint.BlendMode != BlendScreen {
		t.Errorf("layer paint = %+v", layer.Paint)
	}
	if layer.Transform != TranslateMatrix(10, 0) {
		t.Errorf("layer transform = %v", layer.Transform)
	}
	inner := f.Commands[2].Paint
	if inner.Opacity != 1 {
		t.Errorf("opacity inside a layer = %v, want 1", inner.Opacity)
	}
	if inner.ImageFilter != nil {
		t.Error("children must not repeat the group's image filter")
	}
}

func TestBuildDrawingNodeWithChildren(t *testing.T) {
	root := NewGroup("root")
	r := NewRect("r", Rect{Width: 4, Height: 4})
	r.X = 3
	r.AddChild(NewCircle("c", Vec2{}, 1))
	root.AddChild(r)

	f, _ := buildTree(t, root)
	assertOps(t, f, OpSave, OpSave, OpRect, OpCircle, OpRestore, OpRestore)
	if f.Commands[1].Transform != TranslateMatrix(3, 0) {
		t.Errorf("save transform = %v", f.Commands[1].Transform)
	}
	if !f.Commands[2].Transform.IsIdentity() {
		t.Error("the rect is drawn under its own save")
	}
}

func TestBuildRefs(t *testing.T) {
	root := NewGroup("root")
	defs := NewGroup("defs")
	defs.Visible = false
	defs.AddChild(NewDeclaration("ants", &DashPathEffectProps{Intervals: []float64{3, 1}}))
	root.AddChild(defs)
	l := NewLine("l", Vec2{}, Vec2{X: 10})
	l.SetRef(CapPathEffect, "ants")
	root.AddChild(l)

	f, _ := buildTree(t, root)
	assertOps(t, f, OpSave, OpLine, OpRestore)
	if f.Commands[1].Paint.PathEffect == nil {
		t.Error("ref into a hidden group should bind")
	}
	if f.Commands[1].Paint.Style != StyleStroke {
		t.Error("lines are always stroked")
	}
	if d, ok := f.Index.Lookup("ants"); !ok || d.Capability() != CapPathEffect {
		t.Error("index should contain ants")
	}
}

func TestBuildRefUnknownName(t *testing.T) {
	root := NewGroup("root")
	r := NewRect("r", Rect{Width: 1, Height: 1})
	r.SetRef(CapShader, "missing")
	root.AddChild(r)

	_, err := Build(root, NewResolver(newFakeBackend()))
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestBuildRefWrongCapability(t *testing.T) {
	root := NewGroup("root")
	root.AddChild(NewDeclaration("blur", &BlurProps{SigmaX: 1}))
	r := NewRect("r", Rect{Width: 1, Height: 1})
	r.SetRef(CapShader, "blur")
	root.AddChild(r)

	_, err := Build(root, NewResolver(newFakeBackend()))
	var tm *TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("err = %v, want *TypeMismatchError", err)
	}
	if tm.Expected != "shader" || tm.Found != "imageFilter" {
		t.Errorf("mismatch = %+v", tm)
	}
	if !errors.Is(err, ErrTypeMismatch) {
		t.Error("should match ErrTypeMismatch")
	}
}

func TestBuildRefErrorsInSlotOrder(t *testing.T) {
	tests := []struct {
		name         string
		shader, path string
		wantMismatch bool
	}{
		{"unknown shader before wrong path effect", "missing", "blur", false},
		{"wrong shader before unknown path effect", "blur", "missing", true},
	}
	for _, tt := range tests {
		for i := 0; i < 20; i++ {
			root := NewGroup("root")
			root.AddChild(NewDeclaration("blur", &BlurProps{SigmaX: 1}))
			r := NewRect("r", Rect{Width: 1, Height: 1})
			r.SetRef(CapPathEffect, tt.path)
			r.SetRef(CapShader, tt.shader)
			root.AddChild(r)

			_, err := Build(root, NewResolver(newFakeBackend()))
			var tm *TypeMismatchError
			if got := errors.As(err, &tm); got != tt.wantMismatch {
				t.Fatalf("%s: err = %v, want mismatch %v", tt.name, err, tt.wantMismatch)
			}
			if !tt.wantMismatch && !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("%s: err = %v, want ErrInvalidParameter", tt.name, err)
			}
		}
	}
}

func TestBuildDeclarationWithDrawingChild(t *testing.T) {
	root := NewGroup("root")
	d := NewDeclaration("blur", &BlurProps{})
	d.AddChild(NewRect("oops", Rect{}))
	root.AddChild(d)

	_, err := Build(root, NewResolver(newFakeBackend()))
	if !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("err = %v, want ErrTypeMismatch", err)
	}
}

func TestBuildDuplicateNamesLastWins(t *testing.T) {
	root := NewGroup("root")
	first := NewDeclaration("fx", &CornerPathEffectProps{Radius: 1})
	second := NewDeclaration("fx", &CornerPathEffectProps{Radius: 2})
	root.AddChild(first)
	root.AddChild(second)

	f, _ := buildTree(t, root)
	d, _ := f.Index.Lookup("fx")
	if d != second.Decl {
		t.Error("the later declaration should win")
	}
	if f.Index.Len() != 2 {
		t.Errorf("Len = %d, want 2", f.Index.Len())
	}
}

func TestBuildAbsentDeclarationLeavesSlotEmpty(t *testing.T) {
	root := NewGroup("root")
	r := NewRect("r", Rect{Width: 1, Height: 1})
	r.AddChild(NewDeclaration("none", &ImageShaderProps{}))
	r.AddChild(NewDeclaration("red", &ColorShaderProps{Color: ColorRed}))
	root.AddChild(r)

	f, _ := buildTree(t, root)
	if f.Commands[1].Paint.Shader == nil {
		t.Error("an absent shader should not occupy the slot")
	}
}

func TestFrameDrawReplaysCommands(t *testing.T) {
	root := NewGroup("root")
	g := NewGroup("g")
	g.X = 5
	g.AddChild(NewDeclaration("blur", &BlurProps{SigmaX: 1, SigmaY: 1}))
	g.AddChild(NewRect("r", Rect{Width: 1, Height: 1}))
	root.AddChild(g)
	root.AddChild(NewImage("missing", StaticImage{}, Rect{}, FitFill))

	f, b := buildTree(t, root)
	c := &fakeCanvas{b: b}
	if n := f.Draw(c); n != 1 {
		t.Errorf("drawn = %d, want 1", n)
	}
	want := []string{"save", "save", "concat 5,0", "saveLayer", "rect", "restore", "restore", "restore"}
	if len(b.log) != len(want) {
		t.Fatalf("log = %v, want %v", b.log, want)
	}
	for i := range want {
		if b.log[i] != want[i] {
			t.Fatalf("log = %v, want %v", b.log, want)
		}
	}
	if c.depth != 0 {
		t.Errorf("depth = %d, want 0", c.depth)
	}
}

func TestFrameDrawImageFit(t *testing.T) {
	b := newFakeBackend()
	img := b.newImage(100, 50)
	root := NewGroup("root")
	root.AddChild(NewImage("img", StaticImage{Image: img}, Rect{Width: 50, Height: 50}, FitCover))
	f, err := Build(root, NewResolver(b))
	if err != nil {
		t.Fatal(err)
	}
	c := &fakeCanvas{b: b}
	if n := f.Draw(c); n != 1 {
		t.Errorf("drawn = %d, want 1", n)
	}
	if b.log[len(b.log)-2] != "imageRect" {
		t.Errorf("log = %v", b.log)
	}
}
