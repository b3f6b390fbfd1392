package canopy

import (
	"errors"
	"testing"
)

func resolveNode(t *testing.T, r *Resolver, n *Node, children ...*Node) Resolved {
	t.Helper()
	in := make([]Resolved, len(children))
	for i, c := range children {
		in[i] = c.Decl.Resolved()
	}
	res, err := r.Resolve(n.Decl, in)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", n.Name, err)
	}
	return res
}

func TestResolveMemoizesUnchangedParams(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	n := NewDeclaration("blur", &BlurProps{SigmaX: 2, SigmaY: 2})

	first := resolveNode(t, r, n)
	second := resolveNode(t, r, n)

	if first.Effect != second.Effect {
		t.Error("unchanged params should return the cached handle")
	}
	if first.Gen != second.Gen {
		t.Errorf("Gen = %d, want %d", second.Gen, first.Gen)
	}
	if b.calls["blur"] != 1 {
		t.Errorf("backend blur calls = %d, want 1", b.calls["blur"])
	}
	st := r.Stats()
	if st.Computes != 1 || st.Hits != 1 {
		t.Errorf("stats = %+v, want 1 compute and 1 hit", st)
	}
	if n.Decl.Computes() != 1 {
		t.Errorf("Computes = %d, want 1", n.Decl.Computes())
	}
}

func TestResolveRecomputesOnParamChange(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	blur := &BlurProps{SigmaX: 2, SigmaY: 2}
	n := NewDeclaration("blur", blur)

	first := resolveNode(t, r, n)
	blur.SigmaX = 4
	second := resolveNode(t, r, n)

	if first.Effect == second.Effect {
		t.Fatal("changed params should build a new handle")
	}
	if second.Gen == first.Gen {
		t.Error("Gen should change on recompute")
	}
	old := first.Effect.(*fakeEffect)
	if old.disposed != 0 {
		t.Error("superseded handle disposed before ReleaseRetired")
	}
	if got := r.Stats().Retired; got != 1 {
		t.Errorf("Retired = %d, want 1", got)
	}
	r.ReleaseRetired()
	r.ReleaseRetired()
	if old.disposed != 1 {
		t.Errorf("old handle disposed %d times, want 1", old.disposed)
	}
	if second.Effect.(*fakeEffect).disposed != 0 {
		t.Error("current handle must stay alive")
	}
}

func TestResolveSameValuesDifferentStruct(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	n := NewDeclaration("m", &MatrixColorFilterProps{})
	resolveNode(t, r, n)
	n.Decl.SetProps(&MatrixColorFilterProps{Matrix: IdentityColorMatrix[:]})
	resolveNode(t, r, n)

	if b.calls["matrix"] != 1 {
		t.Errorf("matrix calls = %d, want 1 (empty matrix is the identity)", b.calls["matrix"])
	}
}

func TestResolveInvalidParams(t *testing.T) {
	tests := []struct {
		name  string
		props Props
		field string
	}{
		{"negative sigma", &BlurProps{SigmaX: -1}, "sigmaX"},
		{"bad tile mode", &BlurProps{Mode: TileMode(9)}, "mode"},
		{"short matrix", &MatrixColorFilterProps{Matrix: []float64{1, 2, 3}}, "matrix"},
		{"odd intervals", &DashPathEffectProps{Intervals: []float64{1, 2, 3}}, "intervals"},
		{"zero intervals", &DashPathEffectProps{Intervals: []float64{0, 0}}, "intervals"},
		{"negative radius", &CornerPathEffectProps{Radius: -2}, "radius"},
		{"empty shader", &RuntimeShaderProps{}, "source"},
		{"bad uniform", &RuntimeShaderProps{Source: "x", Uniforms: map[string]any{"u": "str"}}, "uniforms.u"},
		{"bad blend", &BlendColorFilterProps{Mode: BlendMode(42)}, "mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend()
			r := NewResolver(b)
			n := NewDeclaration("d", tt.props)
			_, err := r.Resolve(n.Decl, nil)
			if !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("err = %v, want ErrInvalidParameter", err)
			}
			var pe *ParamError
			if !errors.As(err, &pe) {
				t.Fatalf("err = %T, want *ParamError", err)
			}
			if pe.Field != tt.field {
				t.Errorf("Field = %q, want %q", pe.Field, tt.field)
			}
			if len(b.effects) != 0 {
				t.Errorf("backend built %d effects for invalid params", len(b.effects))
			}
		})
	}
}

func TestResolveInvalidKeepsCache(t *testing.T) {
	r := NewResolver(newFakeBackend())
	blur := &BlurProps{SigmaX: 1, SigmaY: 1}
	n := NewDeclaration("blur", blur)
	good := resolveNode(t, r, n)

	blur.SigmaX = -5
	if _, err := r.Resolve(n.Decl, nil); err == nil {
		t.Fatal("expected error")
	}
	if n.Decl.Resolved().Effect != good.Effect {
		t.Error("failed resolve should keep the previous handle")
	}
}

func TestResolveChildGenerationInvalidates(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	inner := &BlurProps{SigmaX: 1, SigmaY: 1}
	child := NewDeclaration("inner", inner)
	parent := NewDeclaration("outer", &OffsetProps{DX: 3})
	parent.AddChild(child)

	resolveNode(t, r, child)
	p1 := resolveNode(t, r, parent, child)
	resolveNode(t, r, child)
	p2 := resolveNode(t, r, parent, child)
	if p1.Effect != p2.Effect {
		t.Error("parent should hit when its child did not change")
	}

	inner.SigmaX = 3
	c3 := resolveNode(t, r, child)
	p3 := resolveNode(t, r, parent, child)
	if p3.Effect == p2.Effect {
		t.Fatal("parent should recompute when its child changed")
	}
	args := p3.Effect.(*fakeEffect).args
	if args[2] != c3.Effect {
		t.Errorf("offset input = %v, want the new blur", args[2])
	}
}

func TestResolveImageShaderNilImageIsAbsent(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	n := NewDeclaration("img", &ImageShaderProps{})
	res := resolveNode(t, r, n)
	if !res.Absent() {
		t.Error("image shader without image should be absent")
	}
	if res.Cap != CapShader {
		t.Errorf("Cap = %v, want shader", res.Cap)
	}
	if b.calls["imageShader"] != 0 {
		t.Error("backend should not be called for an absent shader")
	}
}

func TestResolveImageShaderComparesImagesByIdentity(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	props := &ImageShaderProps{Image: b.newImage(4, 4)}
	n := NewDeclaration("img", props)
	resolveNode(t, r, n)
	props.Image = b.newImage(4, 4)
	resolveNode(t, r, n)
	if b.calls["imageShader"] != 2 {
		t.Errorf("imageShader calls = %d, want 2", b.calls["imageShader"])
	}
}

func TestResolveImageShaderFit(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	n := NewDeclaration("img", &ImageShaderProps{
		Image: b.newImage(100, 50),
		Fit:   FitFill,
		Rect:  Rect{X: 10, Y: 20, Width: 200, Height: 200},
	})
	res := resolveNode(t, r, n)
	local := res.Effect.(*fakeEffect).args[3].(Matrix)
	want := Matrix{2, 0, 0, 4, 10, 20}
	if local != want {
		t.Errorf("local = %v, want %v", local, want)
	}
}

func TestRuntimeEffectCompiledOncePerSource(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	a := NewDeclaration("a", &RuntimeShaderProps{Source: "src", Uniforms: map[string]any{"t": 1.0}})
	c := NewDeclaration("c", &RuntimeShaderProps{Source: "src", Uniforms: map[string]any{"t": 2.0}})
	resolveNode(t, r, a)
	resolveNode(t, r, c)

	if b.calls["runtimeEffect"] != 1 {
		t.Errorf("compiles = %d, want 1", b.calls["runtimeEffect"])
	}
	if b.calls["runtimeShader"] != 2 {
		t.Errorf("shaders = %d, want 2", b.calls["runtimeShader"])
	}

	r.Dispose()
	if b.runtimes[0].disposed != 1 {
		t.Errorf("runtime disposed %d times, want 1", b.runtimes[0].disposed)
	}
}

func TestRuntimeShaderChildren(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	img := NewDeclaration("image", &ImageShaderProps{Image: b.newImage(2, 2)})
	rt := NewDeclaration("rt", &RuntimeShaderProps{Source: "src"})
	rt.AddChild(img)
	resolveNode(t, r, img)
	res := resolveNode(t, r, rt, img)

	children := res.Effect.(*fakeEffect).args[1].([]Shader)
	if len(children) != 1 || children[0] != img.Decl.Resolved().Effect {
		t.Errorf("children = %v, want the image shader", children)
	}
}

func TestRuntimeEffectCompileError(t *testing.T) {
	b := newFakeBackend()
	b.runtimeErr = &ParamError{Kind: "runtimeShader", Field: "source", Reason: "syntax"}
	r := NewResolver(b)
	n := NewDeclaration("bad", &RuntimeShaderProps{Source: "oops"})
	_, err := r.Resolve(n.Decl, nil)
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestMatrixComposesWithChild(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	inner := NewDeclaration("inner", &BlendColorFilterProps{Color: ColorRed})
	outer := NewDeclaration("outer", &MatrixColorFilterProps{})
	outer.AddChild(inner)
	resolveNode(t, r, inner)
	res := resolveNode(t, r, outer, inner)

	e := res.Effect.(*fakeEffect)
	if e.kind != "composeColor" {
		t.Fatalf("kind = %q, want composeColor", e.kind)
	}
	if e.args[1] != inner.Decl.Resolved().Effect {
		t.Error("inner filter should be the compose input")
	}
}

func TestResolvePropsUncached(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	p := &CornerPathEffectProps{Radius: 4}
	e1, err := r.ResolveProps(p, nil)
	if err != nil {
		t.Fatal(err)
	}
	e2, _ := r.ResolveProps(p, nil)
	if e1 == e2 {
		t.Error("ResolveProps should build a new handle each call")
	}
	if _, err := r.ResolveProps(nil, nil); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("nil props err = %v, want ErrInvalidParameter", err)
	}
}

func TestMemoKeyDistinguishesKinds(t *testing.T) {
	a := memoKey(&OffsetProps{DX: 1}, nil)
	b := memoKey(&BlurProps{SigmaX: 1}, nil)
	if a == b {
		t.Error("different kinds should hash differently")
	}
	c := memoKey(&OffsetProps{DX: 1}, []Resolved{{Cap: CapImageFilter, Gen: 7}})
	if a == c {
		t.Error("children should contribute to the key")
	}
}

func TestDisposeNodeReleasesHandle(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	n := NewDeclaration("corner", &CornerPathEffectProps{Radius: 2})
	res := resolveNode(t, r, n)
	n.Dispose()
	if res.Effect.(*fakeEffect).disposed != 1 {
		t.Errorf("disposed = %d, want 1", res.Effect.(*fakeEffect).disposed)
	}
}

func TestResolveBlurDefaultsAndFirstInput(t *testing.T) {
	b := newFakeBackend()
	r := NewResolver(b)
	a := NewDeclaration("a", &OffsetProps{DX: 1})
	c := NewDeclaration("c", &OffsetProps{DX: 2})
	resolveNode(t, r, a)
	resolveNode(t, r, c)

	blur := NewDeclaration("blur", &BlurProps{SigmaX: 3, SigmaY: 3})
	res := resolveNode(t, r, blur, a, c)

	args := res.Effect.(*fakeEffect).args
	if args[2] != TileDecal {
		t.Errorf("mode = %v, want %v", args[2], TileDecal)
	}
	if args[3] != a.Decl.Resolved().Effect {
		t.Errorf("input = %v, want the first image filter child", args[3])
	}
	if args[3] == c.Decl.Resolved().Effect {
		t.Error("the second image filter child should be ignored")
	}
}
