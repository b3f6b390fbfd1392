package canopy

import (
	"fmt"
	"sort"
)

// Props is the parameter set of one declaration kind. The set of kinds is
// closed: BlurProps, OffsetProps, ColorFilterImageProps,
// MatrixColorFilterProps, BlendColorFilterProps, ColorShaderProps,
// ImageShaderProps, RuntimeShaderProps, DashPathEffectProps and
// CornerPathEffectProps.
type Props interface {
	Kind() string
	Capability() Capability

	validate() error
	writeKey(k *keyHasher)
	build(ctx *buildContext, in inputs) (Effect, error)
}

// buildContext gives kinds access to the backend and to the resolver's
// compiled runtime effects.
type buildContext struct {
	backend Backend
	effects func(source string) (RuntimeEffect, error)
}

// --- Image filters ---

// BlurProps is a Gaussian blur. The first image filter child is its input.
type BlurProps struct {
	SigmaX, SigmaY float64
	Mode           TileMode // edge handling, TileDecal by default
}

func (p *BlurProps) Kind() string           { return "blur" }
func (p *BlurProps) Capability() Capability { return CapImageFilter }

func (p *BlurProps) validate() error {
	if !isFinite(p.SigmaX) || p.SigmaX < 0 {
		return paramErr("blur", "sigmaX", p.SigmaX, "must be a finite value >= 0")
	}
	if !isFinite(p.SigmaY) || p.SigmaY < 0 {
		return paramErr("blur", "sigmaY", p.SigmaY, "must be a finite value >= 0")
	}
	if !p.Mode.Valid() {
		return paramErr("blur", "mode", p.Mode, "unknown tile mode")
	}
	return nil
}

func (p *BlurProps) writeKey(k *keyHasher) {
	k.f64(p.SigmaX)
	k.f64(p.SigmaY)
	k.u64(uint64(p.Mode))
}

func (p *BlurProps) build(ctx *buildContext, in inputs) (Effect, error) {
	return ctx.backend.NewBlurImageFilter(p.SigmaX, p.SigmaY, p.Mode, in.first(CapImageFilter))
}

// OffsetProps translates its input (or the source) by DX, DY.
type OffsetProps struct {
	DX, DY float64
}

func (p *OffsetProps) Kind() string           { return "offset" }
func (p *OffsetProps) Capability() Capability { return CapImageFilter }

func (p *OffsetProps) validate() error {
	if !isFinite(p.DX) {
		return paramErr("offset", "dx", p.DX, "must be finite")
	}
	if !isFinite(p.DY) {
		return paramErr("offset", "dy", p.DY, "must be finite")
	}
	return nil
}

func (p *OffsetProps) writeKey(k *keyHasher) {
	k.f64(p.DX)
	k.f64(p.DY)
}

func (p *OffsetProps) build(ctx *buildContext, in inputs) (Effect, error) {
	return ctx.backend.NewOffsetImageFilter(p.DX, p.DY, in.first(CapImageFilter))
}

// ColorFilterImageProps runs its first colour filter child over its input.
// Without a colour filter child it resolves to an absent handle.
type ColorFilterImageProps struct{}

func (p *ColorFilterImageProps) Kind() string           { return "colorFilterImage" }
func (p *ColorFilterImageProps) Capability() Capability { return CapImageFilter }
func (p *ColorFilterImageProps) validate() error        { return nil }
func (p *ColorFilterImageProps) writeKey(*keyHasher)    {}

func (p *ColorFilterImageProps) build(ctx *buildContext, in inputs) (Effect, error) {
	cf := in.first(CapColorFilter)
	if cf == nil {
		return nil, nil
	}
	return ctx.backend.NewColorFilterImageFilter(cf, in.first(CapImageFilter))
}

// --- Colour filters ---

// MatrixColorFilterProps applies a row-major 4x5 colour matrix to straight
// alpha colours. An empty Matrix is the identity. The first colour filter
// child is applied before the matrix.
type MatrixColorFilterProps struct {
	Matrix []float64
}

func (p *MatrixColorFilterProps) Kind() string           { return "matrix" }
func (p *MatrixColorFilterProps) Capability() Capability { return CapColorFilter }

func (p *MatrixColorFilterProps) validate() error {
	if len(p.Matrix) != 0 && len(p.Matrix) != 20 {
		return paramErr("matrix", "matrix", len(p.Matrix), "must have 0 or 20 entries")
	}
	for i, v := range p.Matrix {
		if !isFinite(v) {
			return paramErr("matrix", fmt.Sprintf("matrix[%d]", i), v, "must be finite")
		}
	}
	return nil
}

func (p *MatrixColorFilterProps) writeKey(k *keyHasher) {
	m := p.matrix()
	for _, v := range m {
		k.f64(v)
	}
}

func (p *MatrixColorFilterProps) matrix() [20]float64 {
	if len(p.Matrix) == 0 {
		return IdentityColorMatrix
	}
	var m [20]float64
	copy(m[:], p.Matrix)
	return m
}

func (p *MatrixColorFilterProps) build(ctx *buildContext, in inputs) (Effect, error) {
	outer, err := ctx.backend.NewMatrixColorFilter(p.matrix())
	if err != nil {
		return nil, err
	}
	inner := in.first(CapColorFilter)
	if inner == nil {
		return outer, nil
	}
	return ctx.backend.NewComposeColorFilter(outer, inner)
}

// BlendColorFilterProps blends a constant colour into every pixel.
type BlendColorFilterProps struct {
	Color Color
	Mode  BlendMode
}

func (p *BlendColorFilterProps) Kind() string           { return "blendColor" }
func (p *BlendColorFilterProps) Capability() Capability { return CapColorFilter }

func (p *BlendColorFilterProps) validate() error {
	if !p.Mode.Valid() {
		return paramErr("blendColor", "mode", p.Mode, "unknown blend mode")
	}
	if !isFinite(p.Color.R) || !isFinite(p.Color.G) || !isFinite(p.Color.B) || !isFinite(p.Color.A) {
		return paramErr("blendColor", "color", p.Color, "components must be finite")
	}
	return nil
}

func (p *BlendColorFilterProps) writeKey(k *keyHasher) {
	k.color(p.Color)
	k.u64(uint64(p.Mode))
}

func (p *BlendColorFilterProps) build(ctx *buildContext, _ inputs) (Effect, error) {
	return ctx.backend.NewBlendColorFilter(p.Color, p.Mode)
}

// --- Shaders ---

// ColorShaderProps fills with a solid colour.
type ColorShaderProps struct {
	Color Color
}

func (p *ColorShaderProps) Kind() string           { return "colorShader" }
func (p *ColorShaderProps) Capability() Capability { return CapShader }

func (p *ColorShaderProps) validate() error {
	if !isFinite(p.Color.R) || !isFinite(p.Color.G) || !isFinite(p.Color.B) || !isFinite(p.Color.A) {
		return paramErr("colorShader", "color", p.Color, "components must be finite")
	}
	return nil
}

func (p *ColorShaderProps) writeKey(k *keyHasher) { k.color(p.Color) }

func (p *ColorShaderProps) build(ctx *buildContext, _ inputs) (Effect, error) {
	return ctx.backend.NewColorShader(p.Color)
}

// ImageShaderProps samples an image, placed into Rect by Fit and tiled
// outside it. A nil Image resolves to an absent handle.
type ImageShaderProps struct {
	Image        Image
	TileX, TileY TileMode
	Fit          Fit
	Rect         Rect
}

func (p *ImageShaderProps) Kind() string           { return "imageShader" }
func (p *ImageShaderProps) Capability() Capability { return CapShader }

func (p *ImageShaderProps) validate() error {
	if !p.TileX.Valid() {
		return paramErr("imageShader", "tileX", p.TileX, "unknown tile mode")
	}
	if !p.TileY.Valid() {
		return paramErr("imageShader", "tileY", p.TileY, "unknown tile mode")
	}
	if !p.Fit.Valid() {
		return paramErr("imageShader", "fit", p.Fit, "unknown fit")
	}
	if !p.Rect.finite() {
		return paramErr("imageShader", "rect", p.Rect, "must be finite")
	}
	return nil
}

func (p *ImageShaderProps) writeKey(k *keyHasher) {
	k.u64(uint64(p.TileX))
	k.u64(uint64(p.TileY))
	k.u64(uint64(p.Fit))
	k.rect(p.Rect)
	if p.Image != nil {
		k.u64(uint64(p.Image.Width()))
		k.u64(uint64(p.Image.Height()))
	}
}

func (p *ImageShaderProps) identities() []any { return []any{p.Image} }

// localMatrix maps image pixels into the local coordinate space.
func (p *ImageShaderProps) localMatrix() Matrix {
	w, h := float64(p.Image.Width()), float64(p.Image.Height())
	if p.Rect.Empty() || w == 0 || h == 0 {
		return TranslateMatrix(p.Rect.X, p.Rect.Y)
	}
	src, dst := FitRects(p.Fit, w, h, p.Rect)
	sx := dst.Width / src.Width
	sy := dst.Height / src.Height
	return Matrix{sx, 0, 0, sy, dst.X - src.X*sx, dst.Y - src.Y*sy}
}

func (p *ImageShaderProps) build(ctx *buildContext, _ inputs) (Effect, error) {
	if p.Image == nil {
		return nil, nil
	}
	return ctx.backend.NewImageShader(p.Image, p.TileX, p.TileY, p.localMatrix())
}

// RuntimeShaderProps compiles Source once per resolver and binds Uniforms.
// Shader children are bound to the program's image inputs in order; the
// first input is the one called "image".
type RuntimeShaderProps struct {
	Source   string
	Uniforms map[string]any
}

func (p *RuntimeShaderProps) Kind() string           { return "runtimeShader" }
func (p *RuntimeShaderProps) Capability() Capability { return CapShader }

func (p *RuntimeShaderProps) validate() error {
	if p.Source == "" {
		return paramErr("runtimeShader", "source", "", "must not be empty")
	}
	for name, v := range p.Uniforms {
		if err := checkUniform(name, v); err != nil {
			return err
		}
	}
	return nil
}

func checkUniform(name string, v any) error {
	field := "uniforms." + name
	switch u := v.(type) {
	case float64:
		if !isFinite(u) {
			return paramErr("runtimeShader", field, u, "must be finite")
		}
	case float32:
		if !isFinite(float64(u)) {
			return paramErr("runtimeShader", field, u, "must be finite")
		}
	case int, int32:
	case []float64:
		for _, f := range u {
			if !isFinite(f) {
				return paramErr("runtimeShader", field, u, "must be finite")
			}
		}
	case []float32:
		for _, f := range u {
			if !isFinite(float64(f)) {
				return paramErr("runtimeShader", field, u, "must be finite")
			}
		}
	default:
		return paramErr("runtimeShader", field, fmt.Sprintf("%T", v), "unsupported uniform type")
	}
	return nil
}

func (p *RuntimeShaderProps) writeKey(k *keyHasher) {
	k.str(p.Source)
	names := make([]string, 0, len(p.Uniforms))
	for name := range p.Uniforms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		k.str(name)
		switch u := p.Uniforms[name].(type) {
		case float64:
			k.f64(u)
		case float32:
			k.f64(float64(u))
		case int:
			k.u64(uint64(u))
		case int32:
			k.u64(uint64(u))
		case []float64:
			k.u64(uint64(len(u)))
			for _, f := range u {
				k.f64(f)
			}
		case []float32:
			k.u64(uint64(len(u)))
			for _, f := range u {
				k.f64(float64(f))
			}
		}
	}
}

func (p *RuntimeShaderProps) build(ctx *buildContext, in inputs) (Effect, error) {
	effect, err := ctx.effects(p.Source)
	if err != nil {
		return nil, err
	}
	children := in.all(CapShader)
	shaders := make([]Shader, len(children))
	for i, c := range children {
		shaders[i] = c
	}
	return effect.MakeShader(p.Uniforms, shaders)
}

// --- Path effects ---

// DashPathEffectProps dashes strokes. Intervals alternate on and off lengths.
// The first path effect child is applied before dashing.
type DashPathEffectProps struct {
	Intervals []float64
	Phase     float64
}

func (p *DashPathEffectProps) Kind() string           { return "dash" }
func (p *DashPathEffectProps) Capability() Capability { return CapPathEffect }

func (p *DashPathEffectProps) validate() error {
	n := len(p.Intervals)
	if n < 2 || n%2 != 0 {
		return paramErr("dash", "intervals", p.Intervals, "need an even count of at least 2")
	}
	var sum float64
	for i, v := range p.Intervals {
		if !isFinite(v) || v < 0 {
			return paramErr("dash", fmt.Sprintf("intervals[%d]", i), v, "must be a finite value >= 0")
		}
		sum += v
	}
	if sum <= 0 {
		return paramErr("dash", "intervals", p.Intervals, "sum must be > 0")
	}
	if !isFinite(p.Phase) {
		return paramErr("dash", "phase", p.Phase, "must be finite")
	}
	return nil
}

func (p *DashPathEffectProps) writeKey(k *keyHasher) {
	k.u64(uint64(len(p.Intervals)))
	for _, v := range p.Intervals {
		k.f64(v)
	}
	k.f64(p.Phase)
}

func (p *DashPathEffectProps) build(ctx *buildContext, in inputs) (Effect, error) {
	intervals := append([]float64(nil), p.Intervals...)
	outer, err := ctx.backend.NewDashPathEffect(intervals, p.Phase)
	if err != nil {
		return nil, err
	}
	inner := in.first(CapPathEffect)
	if inner == nil {
		return outer, nil
	}
	return ctx.backend.NewComposePathEffect(outer, inner)
}

// CornerPathEffectProps rounds sharp corners with the given radius.
type CornerPathEffectProps struct {
	Radius float64
}

func (p *CornerPathEffectProps) Kind() string           { return "corner" }
func (p *CornerPathEffectProps) Capability() Capability { return CapPathEffect }

func (p *CornerPathEffectProps) validate() error {
	if !isFinite(p.Radius) || p.Radius < 0 {
		return paramErr("corner", "radius", p.Radius, "must be a finite value >= 0")
	}
	return nil
}

func (p *CornerPathEffectProps) writeKey(k *keyHasher) { k.f64(p.Radius) }

func (p *CornerPathEffectProps) build(ctx *buildContext, _ inputs) (Effect, error) {
	return ctx.backend.NewCornerPathEffect(p.Radius)
}
