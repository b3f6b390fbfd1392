package canopy

import (
	"encoding/json"
	"fmt"
)

// TreeOptions supplies the objects a JSON tree refers to by name.
type TreeOptions struct {
	// Sources backs image nodes: {"type": "image", "source": "video"}.
	Sources map[string]ImageSource
	// Images backs image shaders: {"type": "imageShader", "image": "logo"}.
	Images map[string]Image
}

// jsonNode is the wire form of one node. Unset optional fields keep the
// constructor defaults.
type jsonNode struct {
	Type string `json:"type"`
	Name string `json:"name"`

	X        *float64 `json:"x"`
	Y        *float64 `json:"y"`
	ScaleX   *float64 `json:"scaleX"`
	ScaleY   *float64 `json:"scaleY"`
	Rotation *float64 `json:"rotation"`
	PivotX   *float64 `json:"pivotX"`
	PivotY   *float64 `json:"pivotY"`
	Opacity  *float64 `json:"opacity"`
	Visible  *bool    `json:"visible"`

	Color       string            `json:"color"`
	Style       string            `json:"style"`
	StrokeWidth *float64          `json:"strokeWidth"`
	Blend       string            `json:"blend"`
	Refs        map[string]string `json:"refs"`

	Rect   []float64 `json:"rect"`
	RX     float64   `json:"rx"`
	RY     float64   `json:"ry"`
	Center []float64 `json:"center"`
	Radius float64   `json:"radius"`
	From   []float64 `json:"from"`
	To     []float64 `json:"to"`
	Source string    `json:"source"`
	Fit    string    `json:"fit"`

	// Declaration parameters.
	SigmaX    float64        `json:"sigmaX"`
	SigmaY    float64        `json:"sigmaY"`
	Sigma     *float64       `json:"sigma"`
	Mode      string         `json:"mode"`
	DX        float64        `json:"dx"`
	DY        float64        `json:"dy"`
	Matrix    []float64      `json:"matrix"`
	Image     string         `json:"image"`
	TileX     string         `json:"tileX"`
	TileY     string         `json:"tileY"`
	Code      string         `json:"code"`
	Uniforms  map[string]any `json:"uniforms"`
	Intervals []float64      `json:"intervals"`
	Phase     float64        `json:"phase"`

	Children []jsonNode `json:"children"`
}

// LoadTree decodes a JSON node tree. Every node is an object with a "type"
// (group, fill, rect, roundRect, circle, line, image, or a declaration kind:
// blur, offset, colorFilterImage, matrix, blendColor, colorShader,
// imageShader, runtimeShader, dash, corner) and optional "children".
//
//	{"type": "group", "children": [
//	  {"type": "fill", "color": "red"},
//	  {"type": "image", "source": "video", "rect": [0, 0, 640, 480], "fit": "cover",
//	   "children": [{"type": "blur", "sigma": 4, "mode": "clamp"}]}
//	]}
//
// Parameter values are validated when the tree is built, not here; only
// malformed enum names and geometry arrays are rejected.
func LoadTree(data []byte, opts TreeOptions) (*Node, error) {
	var root jsonNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	n, err := root.node(opts)
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	return n, nil
}

func (j *jsonNode) node(opts TreeOptions) (*Node, error) {
	n, err := j.newNode(opts)
	if err != nil {
		return nil, err
	}
	if err := j.applyCommon(n); err != nil {
		return nil, err
	}
	for i := range j.Children {
		c, err := j.Children[i].node(opts)
		if err != nil {
			return nil, err
		}
		n.AddChild(c)
	}
	return n, nil
}

func (j *jsonNode) newNode(opts TreeOptions) (*Node, error) {
	switch j.Type {
	case "group", "":
		return NewGroup(j.Name), nil
	case "fill":
		return NewFill(j.Name, ColorBlack), nil
	case "rect":
		r, err := rectOf(j.Rect)
		if err != nil {
			return nil, err
		}
		return NewRect(j.Name, r), nil
	case "roundRect":
		r, err := rectOf(j.Rect)
		if err != nil {
			return nil, err
		}
		ry := j.RY
		if ry == 0 {
			ry = j.RX
		}
		return NewRoundRect(j.Name, r, j.RX, ry), nil
	case "circle":
		c, err := vecOf("center", j.Center)
		if err != nil {
			return nil, err
		}
		return NewCircle(j.Name, c, j.Radius), nil
	case "line":
		p0, err := vecOf("from", j.From)
		if err != nil {
			return nil, err
		}
		p1, err := vecOf("to", j.To)
		if err != nil {
			return nil, err
		}
		return NewLine(j.Name, p0, p1), nil
	case "image":
		src, ok := opts.Sources[j.Source]
		if !ok {
			return nil, paramErr("image", "source", j.Source, "no image source with this name")
		}
		r, err := rectOf(j.Rect)
		if err != nil {
			return nil, err
		}
		fit, err := ParseFit(j.Fit)
		if err != nil {
			return nil, err
		}
		return NewImage(j.Name, src, r, fit), nil
	}
	props, err := j.props(opts)
	if err != nil {
		return nil, err
	}
	return NewDeclaration(j.Name, props), nil
}

func (j *jsonNode) props(opts TreeOptions) (Props, error) {
	switch j.Type {
	case "blur":
		mode, err := ParseTileMode(j.Mode)
		if err != nil {
			return nil, err
		}
		p := &BlurProps{SigmaX: j.SigmaX, SigmaY: j.SigmaY, Mode: mode}
		if j.Sigma != nil {
			p.SigmaX, p.SigmaY = *j.Sigma, *j.Sigma
		}
		return p, nil
	case "offset":
		return &OffsetProps{DX: j.DX, DY: j.DY}, nil
	case "colorFilterImage":
		return &ColorFilterImageProps{}, nil
	case "matrix":
		return &MatrixColorFilterProps{Matrix: j.Matrix}, nil
	case "blendColor":
		c, err := colorOr(j.Color, ColorTransparent)
		if err != nil {
			return nil, err
		}
		mode, err := ParseBlendMode(j.Mode)
		if err != nil {
			return nil, err
		}
		return &BlendColorFilterProps{Color: c, Mode: mode}, nil
	case "colorShader":
		c, err := colorOr(j.Color, ColorBlack)
		if err != nil {
			return nil, err
		}
		return &ColorShaderProps{Color: c}, nil
	case "imageShader":
		p := &ImageShaderProps{Fit: FitNone}
		if j.Image != "" {
			img, ok := opts.Images[j.Image]
			if !ok {
				return nil, paramErr("imageShader", "image", j.Image, "no image with this name")
			}
			p.Image = img
		}
		var err error
		if p.TileX, err = ParseTileMode(j.TileX); err != nil {
			return nil, err
		}
		if p.TileY, err = ParseTileMode(j.TileY); err != nil {
			return nil, err
		}
		if j.Fit != "" {
			if p.Fit, err = ParseFit(j.Fit); err != nil {
				return nil, err
			}
		}
		if j.Rect != nil {
			if p.Rect, err = rectOf(j.Rect); err != nil {
				return nil, err
			}
		}
		return p, nil
	case "runtimeShader":
		return &RuntimeShaderProps{Source: j.Code, Uniforms: uniformsOf(j.Uniforms)}, nil
	case "dash":
		return &DashPathEffectProps{Intervals: j.Intervals, Phase: j.Phase}, nil
	case "corner":
		return &CornerPathEffectProps{Radius: j.Radius}, nil
	}
	return nil, &TypeMismatchError{Node: j.Name, Expected: "node or declaration type", Found: fmt.Sprintf("%q", j.Type)}
}

func (j *jsonNode) applyCommon(n *Node) error {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&n.X, j.X)
	set(&n.Y, j.Y)
	set(&n.ScaleX, j.ScaleX)
	set(&n.ScaleY, j.ScaleY)
	set(&n.Rotation, j.Rotation)
	set(&n.PivotX, j.PivotX)
	set(&n.PivotY, j.PivotY)
	set(&n.Opacity, j.Opacity)
	set(&n.StrokeWidth, j.StrokeWidth)
	if j.Visible != nil {
		n.Visible = *j.Visible
	}
	if n.Kind.IsDrawing() && j.Color != "" {
		c, err := ParseColor(j.Color)
		if err != nil {
			return err
		}
		n.Color = c
	}
	switch j.Style {
	case "", "fill":
	case "stroke":
		n.Style = StyleStroke
	default:
		return paramErr(n.Kind.String(), "style", j.Style, "must be fill or stroke")
	}
	if j.Blend != "" {
		b, err := ParseBlendMode(j.Blend)
		if err != nil {
			return err
		}
		n.BlendMode = b
	}
	for slot, name := range j.Refs {
		c, err := ParseCapability(slot)
		if err != nil {
			return err
		}
		n.SetRef(c, name)
	}
	return nil
}

func rectOf(v []float64) (Rect, error) {
	if v == nil {
		return Rect{}, nil
	}
	if len(v) != 4 {
		return Rect{}, paramErr("rect", "rect", v, "need [x, y, width, height]")
	}
	return Rect{v[0], v[1], v[2], v[3]}, nil
}

func vecOf(field string, v []float64) (Vec2, error) {
	if v == nil {
		return Vec2{}, nil
	}
	if len(v) != 2 {
		return Vec2{}, paramErr("point", field, v, "need [x, y]")
	}
	return Vec2{v[0], v[1]}, nil
}

func colorOr(s string, def Color) (Color, error) {
	if s == "" {
		return def, nil
	}
	return ParseColor(s)
}

// uniformsOf converts decoded JSON values to uniform values: numbers become
// float64 and arrays of numbers []float64. Anything else is kept as-is and
// rejected at resolution.
func uniformsOf(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		arr, ok := v.([]any)
		if !ok {
			out[k] = v
			continue
		}
		fs := make([]float64, 0, len(arr))
		for _, e := range arr {
			f, ok := e.(float64)
			if !ok {
				fs = nil
				break
			}
			fs = append(fs, f)
		}
		if fs == nil {
			out[k] = v
		} else {
			out[k] = fs
		}
	}
	return out
}
