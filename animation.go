package canopy

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// TweenGroup animates up to 4 float64 fields simultaneously: node transform
// fields or declaration parameters. Call Update(dt) each frame; the group
// writes the values and marks the target node dirty, so the next build
// re-resolves only the declarations whose parameters moved. If the target
// node is disposed, the group stops immediately.
//
// With Yoyo set, the group reverses direction at each end instead of
// finishing; with Loop set (and Yoyo unset) it restarts from the beginning.
type TweenGroup struct {
	tweens [4]*gween.Tween
	from   [4]float32
	to     [4]float32
	count  int
	fields [4]*float64
	target *Node

	duration float32
	fn       ease.TweenFunc
	forward  bool

	Yoyo bool
	Loop bool
	Done bool
}

func newTweenGroup(target *Node, duration float32, fn ease.TweenFunc) *TweenGroup {
	if fn == nil {
		fn = ease.Linear
	}
	return &TweenGroup{target: target, duration: duration, fn: fn, forward: true}
}

func (g *TweenGroup) add(field *float64, to float64) {
	i := g.count
	g.fields[i] = field
	g.from[i] = float32(*field)
	g.to[i] = float32(to)
	g.tweens[i] = gween.New(g.from[i], g.to[i], g.duration, g.fn)
	g.count++
}

// Update advances all tweens by dt seconds, writes values to the target
// fields, and marks the node dirty. If the target node has been disposed,
// Done is set to true and no writes occur.
func (g *TweenGroup) Update(dt float32) {
	if g.Done {
		return
	}

	if g.target != nil && g.target.IsDisposed() {
		g.Done = true
		return
	}

	allDone := true
	for i := 0; i < g.count; i++ {
		val, finished := g.tweens[i].Update(dt)
		*g.fields[i] = float64(val)
		if !finished {
			allDone = false
		}
	}

	if allDone {
		switch {
		case g.Yoyo:
			g.forward = !g.forward
			g.restart()
		case g.Loop:
			g.restart()
		default:
			g.Done = true
		}
	}

	if g.target != nil {
		g.target.MarkDirty()
	}
}

// restart rebuilds the tweens for the current direction.
func (g *TweenGroup) restart() {
	for i := 0; i < g.count; i++ {
		from, to := g.from[i], g.to[i]
		if !g.forward {
			from, to = to, from
		}
		g.tweens[i] = gween.New(from, to, g.duration, g.fn)
	}
}

// TweenPosition animates node.X and node.Y to the given coordinates.
func TweenPosition(node *Node, toX, toY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := newTweenGroup(node, duration, fn)
	g.add(&node.X, toX)
	g.add(&node.Y, toY)
	return g
}

// TweenScale animates node.ScaleX and node.ScaleY.
func TweenScale(node *Node, toSX, toSY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := newTweenGroup(node, duration, fn)
	g.add(&node.ScaleX, toSX)
	g.add(&node.ScaleY, toSY)
	return g
}

// TweenColor animates all four components of node.Color.
func TweenColor(node *Node, to Color, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := newTweenGroup(node, duration, fn)
	g.add(&node.Color.R, to.R)
	g.add(&node.Color.G, to.G)
	g.add(&node.Color.B, to.B)
	g.add(&node.Color.A, to.A)
	return g
}

// TweenOpacity animates node.Opacity.
func TweenOpacity(node *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := newTweenGroup(node, duration, fn)
	g.add(&node.Opacity, to)
	return g
}

// TweenRotation animates node.Rotation.
func TweenRotation(node *Node, to float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	g := newTweenGroup(node, duration, fn)
	g.add(&node.Rotation, to)
	return g
}

// TweenParam animates parameter fields of a declaration node. Each field must
// point into the node's Props value, for example &blur.SigmaX.
//
//	blur := &canopy.BlurProps{SigmaX: 0, SigmaY: 0}
//	n := canopy.NewDeclaration("breath", blur)
//	tw := canopy.TweenParam(n, []*float64{&blur.SigmaX, &blur.SigmaY}, []float64{8, 8}, 2, ease.InOutSine)
//	tw.Yoyo = true
func TweenParam(node *Node, fields []*float64, to []float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	if len(fields) != len(to) {
		panic("canopy: TweenParam fields and targets differ in length")
	}
	if len(fields) > 4 {
		panic("canopy: TweenParam animates at most 4 fields")
	}
	g := newTweenGroup(node, duration, fn)
	for i, f := range fields {
		g.add(f, to[i])
	}
	return g
}

// TweenBlur animates a blur declaration's sigmas to (toX, toY).
func TweenBlur(node *Node, toX, toY float64, duration float32, fn ease.TweenFunc) *TweenGroup {
	var blur *BlurProps
	if node.Decl != nil {
		blur, _ = node.Decl.Props().(*BlurProps)
	}
	if blur == nil {
		panic("canopy: TweenBlur target is not a blur declaration")
	}
	return TweenParam(node, []*float64{&blur.SigmaX, &blur.SigmaY}, []float64{toX, toY}, duration, fn)
}
