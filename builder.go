package canopy

// Build turns the tree under root into a Frame in two passes.
//
// Pass 1 walks the tree post-order and resolves every declaration after its
// declaration children, registering named declarations in the frame index
// (a later duplicate name replaces an earlier one).
//
// Pass 2 walks the tree pre-order and emits commands. A node's direct
// declaration children set its paint slots; a group's slots cascade to every
// descendant, the nearest one winning. An image filter on a group turns the
// group into a layer filtered once as a whole. Refs bind slots to named
// declarations; a ref to a declaration of the wrong capability fails with
// *TypeMismatchError and a ref to an unknown name with ErrInvalidParameter.
//
// Any error aborts the build; no partial frame is returned.
func Build(root *Node, r *Resolver) (*Frame, error) {
	b := &builder{r: r, index: newDeclarationIndex()}
	if err := b.resolve(root); err != nil {
		return nil, err
	}
	if err := b.emit(root, scope{opacity: 1}); err != nil {
		return nil, err
	}
	return &Frame{Commands: b.cmds, Index: b.index}, nil
}

type builder struct {
	r     *Resolver
	index *DeclarationIndex
	cmds  []Command
}

// resolve is pass 1. Declarations are resolved regardless of visibility so
// refs into hidden subtrees still bind.
func (b *builder) resolve(n *Node) error {
	if n.Kind != KindDeclaration {
		for _, c := range n.children {
			if err := b.resolve(c); err != nil {
				return err
			}
		}
		return nil
	}
	if n.Decl == nil {
		return &TypeMismatchError{Node: n.Name, Expected: "declaration payload", Found: "none"}
	}
	children := make([]Resolved, 0, len(n.children))
	for _, c := range n.children {
		if c.Kind != KindDeclaration {
			return &TypeMismatchError{Node: c.Name, Expected: "declaration", Found: c.Kind.String()}
		}
		if err := b.resolve(c); err != nil {
			return err
		}
		children = append(children, c.Decl.resolved)
	}
	if _, err := b.r.Resolve(n.Decl, children); err != nil {
		return err
	}
	b.index.add(n.Name, n.Decl)
	return nil
}

// scope is the paint state a group passes down.
type scope struct {
	shader      Shader
	colorFilter ColorFilter
	pathEffect  PathEffect
	opacity     float64
}

// slots are the effects a node sets for itself.
type slots struct {
	shader      Shader
	imageFilter ImageFilter
	colorFilter ColorFilter
	pathEffect  PathEffect
}

func (s *slots) set(c Capability, e Effect) {
	switch c {
	case CapShader:
		s.shader = e
	case CapImageFilter:
		s.imageFilter = e
	case CapColorFilter:
		s.colorFilter = e
	case CapPathEffect:
		s.pathEffect = e
	}
}

func (s *slots) isSet(c Capability) bool {
	switch c {
	case CapShader:
		return s.shader != nil
	case CapImageFilter:
		return s.imageFilter != nil
	case CapColorFilter:
		return s.colorFilter != nil
	case CapPathEffect:
		return s.pathEffect != nil
	}
	return false
}

// ownSlots collects the node's direct declaration children (first of each
// capability wins) and then applies its refs.
func (b *builder) ownSlots(n *Node) (slots, error) {
	var s slots
	for _, c := range n.children {
		if c.Kind != KindDeclaration || !c.Visible || c.Decl == nil {
			continue
		}
		res := c.Decl.resolved
		if res.Absent() || s.isSet(res.Cap) {
			continue
		}
		s.set(res.Cap, res.Effect)
	}
	for slot := CapShader; slot <= CapPathEffect; slot++ {
		name, ok := n.Refs[slot]
		if !ok {
			continue
		}
		d, ok := b.index.Lookup(name)
		if !ok {
			return s, paramErr("ref", slot.String(), name, "no declaration with this name")
		}
		if got := d.Capability(); got != slot {
			return s, &TypeMismatchError{Node: n.Name, Expected: slot.String(), Found: got.String()}
		}
		if !d.resolved.Absent() {
			s.set(slot, d.resolved.Effect)
		}
	}
	return s, nil
}

// emit is pass 2.
func (b *builder) emit(n *Node, sc scope) error {
	if !n.Visible || n.Kind == KindDeclaration {
		return nil
	}
	own, err := b.ownSlots(n)
	if err != nil {
		return err
	}
	local := localTransform(n)

	if n.Kind == KindGroup {
		inner := sc
		if own.shader != nil {
			inner.shader = own.shader
		}
		if own.colorFilter != nil {
			inner.colorFilter = own.colorFilter
		}
		if own.pathEffect != nil {
			inner.pathEffect = own.pathEffect
		}
		open := Command{Op: OpSave, Node: n.Name, NodeID: n.ID, Transform: local}
		if own.imageFilter != nil {
			open.Op = OpSaveLayer
			open.Paint = Paint{
				Color:       ColorWhite,
				Opacity:     sc.opacity * n.Opacity,
				BlendMode:   n.BlendMode,
				ImageFilter: own.imageFilter,
			}
			inner.opacity = 1
		} else {
			inner.opacity = sc.opacity * n.Opacity
		}
		return b.emitGroup(open, n.children, inner)
	}

	cmd := b.drawCommand(n, sc, own)
	if !hasDrawingChildren(n) {
		cmd.Transform = local
		b.cmds = append(b.cmds, cmd)
		return nil
	}
	// A drawing node with drawing children draws itself first, then its
	// children, all under its transform.
	open := Command{Op: OpSave, Node: n.Name, NodeID: n.ID, Transform: local}
	start := len(b.cmds)
	b.cmds = append(b.cmds, open)
	cmd.Transform = IdentityMatrix
	b.cmds = append(b.cmds, cmd)
	inner := sc
	inner.opacity = sc.opacity * n.Opacity
	for _, c := range n.children {
		if err := b.emit(c, inner); err != nil {
			return err
		}
	}
	b.close(start)
	return nil
}

func (b *builder) emitGroup(open Command, children []*Node, inner scope) error {
	start := len(b.cmds)
	b.cmds = append(b.cmds, open)
	for _, c := range children {
		if err := b.emit(c, inner); err != nil {
			return err
		}
	}
	b.close(start)
	return nil
}

// close sets the span of the command at start and appends its restore.
func (b *builder) close(start int) {
	b.cmds[start].Span = len(b.cmds) - start - 1
	b.cmds = append(b.cmds, Command{
		Op:        OpRestore,
		Node:      b.cmds[start].Node,
		NodeID:    b.cmds[start].NodeID,
		Transform: IdentityMatrix,
	})
}

func (b *builder) drawCommand(n *Node, sc scope, own slots) Command {
	p := Paint{
		Color:       n.Color,
		Opacity:     sc.opacity * n.Opacity,
		Style:       n.Style,
		StrokeWidth: n.StrokeWidth,
		BlendMode:   n.BlendMode,
		Shader:      sc.shader,
		ColorFilter: sc.colorFilter,
		PathEffect:  sc.pathEffect,
		ImageFilter: own.imageFilter,
	}
	if own.shader != nil {
		p.Shader = own.shader
	}
	if own.colorFilter != nil {
		p.ColorFilter = own.colorFilter
	}
	if own.pathEffect != nil {
		p.PathEffect = own.pathEffect
	}
	cmd := Command{Node: n.Name, NodeID: n.ID, Paint: p}
	switch n.Kind {
	case KindFill:
		cmd.Op = OpFill
		cmd.Paint.Style = StyleFill
	case KindRect:
		cmd.Op = OpRect
		cmd.Rect = n.Rect
	case KindRoundRect:
		cmd.Op = OpRoundRect
		cmd.Rect = n.Rect
		cmd.RX, cmd.RY = n.RX, n.RY
	case KindCircle:
		cmd.Op = OpCircle
		cmd.Center = n.Center
		cmd.Radius = n.Radius
	case KindLine:
		cmd.Op = OpLine
		cmd.P0, cmd.P1 = n.P0, n.P1
		cmd.Paint.Style = StyleStroke
	case KindImage:
		cmd.Op = OpImage
		cmd.Rect = n.Rect
		cmd.Source = n.Source
		cmd.Fit = n.Fit
	}
	return cmd
}

func hasDrawingChildren(n *Node) bool {
	for _, c := range n.children {
		if c.Kind != KindDeclaration {
			return true
		}
	}
	return false
}
