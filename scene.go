package canopy

import (
	"time"
)

// Scene owns a node tree, the resolver for its declarations and the last
// successfully built frame.
type Scene struct {
	root     *Node
	resolver *Resolver
	frame    *Frame
	debug    bool

	// ClearColor, when non-transparent, is used to clear the canvas before
	// the frame is replayed in Draw.
	ClearColor Color

	builds   int
	failures int
	lastErr  error
}

// NewScene creates a scene with a root group whose declarations are built by
// backend.
func NewScene(backend Backend) *Scene {
	return &Scene{
		root:     NewGroup("root"),
		resolver: NewResolver(backend),
	}
}

// Root returns the scene's root group.
func (s *Scene) Root() *Node {
	return s.root
}

// Resolver returns the scene's declaration resolver.
func (s *Scene) Resolver() *Resolver {
	return s.resolver
}

// Frame returns the frame in effect: the output of the last successful
// build, or nil before the first one.
func (s *Scene) Frame() *Frame {
	return s.frame
}

// LastError returns the error of the most recent build, or nil if it
// succeeded.
func (s *Scene) LastError() error {
	return s.lastErr
}

// NeedsBuild reports whether the tree changed since the last successful
// build.
func (s *Scene) NeedsBuild() bool {
	return s.frame == nil || s.root.dirty
}

// Build rebuilds the frame. On failure the previous frame stays in effect
// and the error is returned.
func (s *Scene) Build() error {
	var stats debugStats
	t0 := time.Now()
	before := s.resolver.Stats()

	frame, err := Build(s.root, s.resolver)
	s.lastErr = err
	if err != nil {
		s.failures++
		Logger().Warn("canopy: build failed, keeping previous frame", "err", err)
		return err
	}
	s.frame = frame
	s.builds++
	clearDirty(s.root)
	s.resolver.ReleaseRetired()

	if s.debug {
		after := s.resolver.Stats()
		stats.buildTime = time.Since(t0)
		stats.commandCount = len(frame.Commands)
		stats.drawCount = frame.DrawCount()
		stats.declarationCount = frame.Index.Len()
		stats.computes = after.Computes - before.Computes
		stats.hits = after.Hits - before.Hits
		s.debugLog(stats)
	}
	return nil
}

// Update rebuilds the frame when the tree is dirty.
func (s *Scene) Update() error {
	if !s.NeedsBuild() {
		return nil
	}
	return s.Build()
}

// Draw clears c with ClearColor (if set) and replays the current frame.
// It returns the number of draw commands issued.
func (s *Scene) Draw(c Canvas) int {
	if s.ClearColor.A > 0 {
		c.Clear(s.ClearColor)
	}
	if s.frame == nil {
		return 0
	}
	return s.frame.Draw(c)
}

// Builds returns the number of successful and failed builds.
func (s *Scene) Builds() (ok, failed int) {
	return s.builds, s.failures
}

// SetDebugMode enables or disables debug mode. When enabled, disposed-node
// access panics, tree depth and child count warnings are logged, and
// per-build stats are logged at debug level.
func (s *Scene) SetDebugMode(enabled bool) {
	s.debug = enabled
	globalDebug = enabled
}

// globalDebug mirrors the most recently set Scene debug flag so that node
// operations (which lack a Scene pointer) can check it cheaply. Only valid
// with a single Scene; multiple Scenes with differing debug modes will
// reflect whichever called SetDebugMode last.
var globalDebug bool

// Dispose releases every resolved effect in the tree and the resolver's
// compiled programs. The scene must not be drawn afterwards.
func (s *Scene) Dispose() {
	disposeDeclarations(s.root)
	s.resolver.Dispose()
	s.frame = nil
}

func disposeDeclarations(n *Node) {
	if n.Decl != nil {
		n.Decl.release()
	}
	for _, c := range n.children {
		disposeDeclarations(c)
	}
}
