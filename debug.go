package canopy

import (
	"fmt"
	"time"
)

// debugStats holds per-build timing and command metrics.
// Only populated when Scene.debug is true.
type debugStats struct {
	buildTime        time.Duration
	commandCount     int
	drawCount        int
	declarationCount int
	computes         int
	hits             int
}

// debugLog logs build stats at debug level.
func (s *Scene) debugLog(stats debugStats) {
	if !s.debug {
		return
	}
	Logger().Debug("canopy: build",
		"time", stats.buildTime,
		"commands", stats.commandCount,
		"draws", stats.drawCount,
		"declarations", stats.declarationCount,
		"computes", stats.computes,
		"hits", stats.hits)
}

// debugCheckDisposed panics with a descriptive message when a disposed node is
// used in a tree operation. Only called in debug mode.
func debugCheckDisposed(n *Node, op string) {
	if n.disposed {
		panic(fmt.Sprintf("canopy debug: %s on disposed node %q", op, n.Name))
	}
}

// debugCheckTreeDepth warns if tree depth exceeds the threshold.
const debugMaxTreeDepth = 32

func debugCheckTreeDepth(n *Node) {
	depth := 0
	for p := n; p != nil; p = p.Parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		Logger().Warn("canopy: tree depth exceeds threshold",
			"depth", depth, "threshold", debugMaxTreeDepth, "node", n.Name)
	}
}

// debugCheckChildCount warns if a node has more than 1000 children.
const debugMaxChildCount = 1000

func debugCheckChildCount(n *Node) {
	if len(n.children) > debugMaxChildCount {
		Logger().Warn("canopy: child count exceeds threshold",
			"node", n.Name, "children", len(n.children), "threshold", debugMaxChildCount)
	}
}
