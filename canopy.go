package canopy

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
// Premultiplication happens when a backend submits the color.
type Color struct {
	R, G, B, A float64
}

var (
	ColorTransparent = Color{}
	ColorBlack       = Color{0, 0, 0, 1}
	ColorWhite       = Color{1, 1, 1, 1}
	ColorRed         = Color{1, 0, 0, 1}
)

// ColorFromRGBA builds a Color from 8-bit straight-alpha components.
func ColorFromRGBA(r, g, b, a uint8) Color {
	return Color{float64(r) / 255, float64(g) / 255, float64(b) / 255, float64(a) / 255}
}

// ColorFromColor converts any color.Color (premultiplied by contract) to a
// straight-alpha Color.
func ColorFromColor(c color.Color) Color {
	if c == nil {
		return ColorTransparent
	}
	r, g, b, a := c.RGBA()
	if a == 0 {
		return ColorTransparent
	}
	fa := float64(a)
	return Color{float64(r) / fa, float64(g) / fa, float64(b) / fa, fa / 0xffff}
}

// ParseColor accepts CSS colour names ("red", "cornflowerblue"),
// "transparent", and hex forms #rgb, #rgba, #rrggbb and #rrggbbaa.
func ParseColor(s string) (Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return Color{}, paramErr("color", "value", s, "empty")
	}
	if s == "transparent" {
		return ColorTransparent, nil
	}
	if !strings.HasPrefix(s, "#") {
		c, ok := colornames.Map[s]
		if !ok {
			return Color{}, paramErr("color", "value", s, "unknown colour name")
		}
		return ColorFromRGBA(c.R, c.G, c.B, c.A), nil
	}
	hex := s[1:]
	switch len(hex) {
	case 3, 4:
		var b strings.Builder
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	case 6, 8:
	default:
		return Color{}, paramErr("color", "value", s, "hex colour must have 3, 4, 6 or 8 digits")
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, paramErr("color", "value", s, "invalid hex digits")
	}
	return ColorFromRGBA(uint8(v>>24), uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

// MustParseColor is ParseColor that panics on error. Meant for literals.
func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// WithAlpha returns c with its alpha replaced.
func (c Color) WithAlpha(a float64) Color {
	c.A = a
	return c
}

// Premultiplied returns the components multiplied by alpha and clamped to [0, 1].
func (c Color) Premultiplied() (r, g, b, a float64) {
	a = clamp01(c.A)
	return clamp01(c.R) * a, clamp01(c.G) * a, clamp01(c.B) * a, a
}

// RGBA returns c as a premultiplied color.RGBA.
func (c Color) RGBA() color.RGBA {
	r, g, b, a := c.Premultiplied()
	return color.RGBA{
		R: uint8(r*255 + 0.5),
		G: uint8(g*255 + 0.5),
		B: uint8(b*255 + 0.5),
		A: uint8(a*255 + 0.5),
	}
}

// NRGBA returns c as a straight-alpha color.NRGBA.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{
		R: uint8(clamp01(c.R)*255 + 0.5),
		G: uint8(clamp01(c.G)*255 + 0.5),
		B: uint8(clamp01(c.B)*255 + 0.5),
		A: uint8(clamp01(c.A)*255 + 0.5),
	}
}

func (c Color) String() string {
	n := c.NRGBA()
	return fmt.Sprintf("#%02x%02x%02x%02x", n.R, n.G, n.B, n.A)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Vec2 is a 2D vector used for positions, offsets and directions.
type Vec2 struct {
	X, Y float64
}

// Size is an integer pixel size.
type Size struct {
	Width, Height int
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool { return s.Width <= 0 || s.Height <= 0 }

// Rect is an axis-aligned rectangle. The origin is the top-left, with Y
// increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
// Adjacent rectangles (sharing only an edge) are considered intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Rect) finite() bool {
	return isFinite(r.X) && isFinite(r.Y) && isFinite(r.Width) && isFinite(r.Height)
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// BlendMode selects a compositing operation.
type BlendMode uint8

const (
	BlendNormal   BlendMode = iota // source-over (standard alpha blending)
	BlendAdd                       // additive / lighter
	BlendMultiply                  // multiply (source * destination; only darkens)
	BlendScreen                    // screen (1 - (1-src)*(1-dst); only brightens)
	BlendErase                     // destination-out (punch transparent holes)
	BlendMask                      // destination-in (clip destination to source alpha)
	BlendBelow                     // destination-over (draw behind existing content)
	BlendNone                      // source copy (skip blending)
	blendModeCount
)

var blendModeNames = [...]string{"normal", "add", "multiply", "screen", "erase", "mask", "below", "none"}

func (b BlendMode) String() string {
	if b < blendModeCount {
		return blendModeNames[b]
	}
	return "BlendMode(" + strconv.Itoa(int(b)) + ")"
}

// Valid reports whether b is one of the defined modes.
func (b BlendMode) Valid() bool { return b < blendModeCount }

// ParseBlendMode maps a name ("normal", "multiply", "srcOver", "dstIn", ...)
// to a BlendMode.
func ParseBlendMode(s string) (BlendMode, error) {
	switch strings.ToLower(s) {
	case "normal", "srcover", "":
		return BlendNormal, nil
	case "add", "plus", "lighter":
		return BlendAdd, nil
	case "multiply", "modulate":
		return BlendMultiply, nil
	case "screen":
		return BlendScreen, nil
	case "erase", "dstout":
		return BlendErase, nil
	case "mask", "dstin":
		return BlendMask, nil
	case "below", "dstover":
		return BlendBelow, nil
	case "none", "src", "copy":
		return BlendNone, nil
	}
	return 0, paramErr("blend", "mode", s, "unknown blend mode")
}

// TileMode selects how sampling behaves outside the source bounds.
// The zero value is TileDecal.
type TileMode uint8

const (
	TileDecal  TileMode = iota // transparent outside the bounds
	TileClamp                  // repeat the edge pixels
	TileRepeat                 // wrap around
	TileMirror                 // wrap around, mirroring every other tile
	tileModeCount
)

var tileModeNames = [...]string{"decal", "clamp", "repeat", "mirror"}

func (m TileMode) String() string {
	if m < tileModeCount {
		return tileModeNames[m]
	}
	return "TileMode(" + strconv.Itoa(int(m)) + ")"
}

// Valid reports whether m is one of the defined modes.
func (m TileMode) Valid() bool { return m < tileModeCount }

// ParseTileMode maps "decal", "clamp", "repeat" or "mirror" to a TileMode.
// The empty string yields TileDecal.
func ParseTileMode(s string) (TileMode, error) {
	if s == "" {
		return TileDecal, nil
	}
	for i, n := range tileModeNames {
		if strings.EqualFold(s, n) {
			return TileMode(i), nil
		}
	}
	return 0, paramErr("tile", "mode", s, "unknown tile mode")
}

// Fit selects how an image is placed into a destination rectangle.
type Fit uint8

const (
	FitFill      Fit = iota // stretch to the rectangle
	FitContain              // scale to fit inside, preserving aspect
	FitCover                // scale to cover, preserving aspect, cropping
	FitFitWidth             // match widths
	FitFitHeight            // match heights
	FitScaleDown            // like contain but never upscale
	FitNone                 // natural size, centred
	fitCount
)

var fitNames = [...]string{"fill", "contain", "cover", "fitWidth", "fitHeight", "scaleDown", "none"}

func (f Fit) String() string {
	if f < fitCount {
		return fitNames[f]
	}
	return "Fit(" + strconv.Itoa(int(f)) + ")"
}

// Valid reports whether f is one of the defined fits.
func (f Fit) Valid() bool { return f < fitCount }

// ParseFit maps a fit name to a Fit. The empty string yields FitContain.
func ParseFit(s string) (Fit, error) {
	if s == "" {
		return FitContain, nil
	}
	for i, n := range fitNames {
		if strings.EqualFold(s, n) {
			return Fit(i), nil
		}
	}
	return 0, paramErr("image", "fit", s, "unknown fit")
}
