package canopy

import "strconv"

// Op identifies the kind of drawing command.
type Op uint8

const (
	OpSave      Op = iota // push state and concat Transform
	OpSaveLayer           // push state, concat Transform and start a layer composited through Paint
	OpRestore             // close the matching OpSave / OpSaveLayer
	OpFill                // fill the canvas
	OpRect
	OpRoundRect
	OpCircle
	OpLine
	OpImage
)

var opNames = [...]string{"save", "saveLayer", "restore", "fill", "rect", "roundRect", "circle", "line", "image"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "Op(" + strconv.Itoa(int(o)) + ")"
}

// IsDraw reports whether o draws something.
func (o Op) IsDraw() bool { return o >= OpFill }

// Command is one entry of a frame's drawing list. Commands are immutable once
// the frame is published; slice order is draw order.
type Command struct {
	Op     Op
	Node   string
	NodeID uint32

	// Transform is relative to the enclosing OpSave / OpSaveLayer.
	Transform Matrix

	Rect   Rect
	RX, RY float64
	Center Vec2
	Radius float64
	P0, P1 Vec2

	Source ImageSource
	Fit    Fit

	Paint Paint

	// Span is the number of commands between an OpSave / OpSaveLayer and its
	// OpRestore. Zero for other ops.
	Span int
}

// DeclarationIndex maps declaration names to declarations and keeps the
// order in which declarations were resolved.
type DeclarationIndex struct {
	byName map[string]*Declaration
	order  []*Declaration
}

func newDeclarationIndex() *DeclarationIndex {
	return &DeclarationIndex{byName: make(map[string]*Declaration)}
}

func (x *DeclarationIndex) add(name string, d *Declaration) {
	x.order = append(x.order, d)
	if name != "" {
		x.byName[name] = d
	}
}

// Lookup returns the declaration registered under name.
func (x *DeclarationIndex) Lookup(name string) (*Declaration, bool) {
	d, ok := x.byName[name]
	return d, ok
}

// Len returns the number of resolved declarations.
func (x *DeclarationIndex) Len() int { return len(x.order) }

// Order returns declarations in resolution order (children before parents).
// The returned slice MUST NOT be mutated by the caller.
func (x *DeclarationIndex) Order() []*Declaration { return x.order }

// Frame is the output of one successful build.
type Frame struct {
	Commands []Command
	Index    *DeclarationIndex
}

// DrawCount returns the number of drawing (non save/restore) commands.
func (f *Frame) DrawCount() int {
	n := 0
	for i := range f.Commands {
		if f.Commands[i].Op.IsDraw() {
			n++
		}
	}
	return n
}

// Draw replays the commands onto c and returns how many draw commands were
// issued. Image commands whose source has no image yet are skipped.
func (f *Frame) Draw(c Canvas) int {
	var layers []bool
	drawn := 0
	for i := range f.Commands {
		cmd := &f.Commands[i]
		switch cmd.Op {
		case OpSave:
			c.Save()
			if !cmd.Transform.IsIdentity() {
				c.Concat(cmd.Transform)
			}
			layers = append(layers, false)
		case OpSaveLayer:
			c.Save()
			if !cmd.Transform.IsIdentity() {
				c.Concat(cmd.Transform)
			}
			c.SaveLayer(&cmd.Paint)
			layers = append(layers, true)
		case OpRestore:
			if len(layers) == 0 {
				continue
			}
			top := layers[len(layers)-1]
			layers = layers[:len(layers)-1]
			if top {
				c.Restore()
			}
			c.Restore()
		default:
			if drawCommand(c, cmd) {
				drawn++
			}
		}
	}
	return drawn
}

func drawCommand(c Canvas, cmd *Command) bool {
	var img Image
	if cmd.Op == OpImage {
		if cmd.Source == nil {
			return false
		}
		img = cmd.Source.CurrentImage()
		if img == nil || img.Width() == 0 || img.Height() == 0 {
			return false
		}
	}
	transformed := !cmd.Transform.IsIdentity()
	if transformed {
		c.Save()
		c.Concat(cmd.Transform)
	}
	p := &cmd.Paint
	switch cmd.Op {
	case OpFill:
		c.DrawPaint(p)
	case OpRect:
		c.DrawRect(cmd.Rect, p)
	case OpRoundRect:
		c.DrawRoundRect(cmd.Rect, cmd.RX, cmd.RY, p)
	case OpCircle:
		c.DrawCircle(cmd.Center, cmd.Radius, p)
	case OpLine:
		c.DrawLine(cmd.P0, cmd.P1, p)
	case OpImage:
		src, dst := FitRects(cmd.Fit, float64(img.Width()), float64(img.Height()), cmd.Rect)
		c.DrawImageRect(img, src, dst, p)
	}
	if transformed {
		c.Restore()
	}
	return true
}
