package canopy

import "fmt"

// SurfaceManager owns one offscreen surface. The surface is allocated lazily
// by the first Ensure and never re-created: a later Ensure with another size
// returns the existing surface, and an allocation failure is latched as
// ErrResourceExhausted and returned by every later call without retrying.
type SurfaceManager struct {
	backend  Backend
	surface  Surface
	size     Size
	err      error
	allocs   int
	disposed bool
}

// NewSurfaceManager creates a manager allocating through backend.
func NewSurfaceManager(backend Backend) *SurfaceManager {
	return &SurfaceManager{backend: backend}
}

// Ensure returns the surface, allocating it at width x height on first use.
func (m *SurfaceManager) Ensure(width, height int) (Surface, error) {
	if m.disposed {
		return nil, ErrDisposed
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.surface != nil {
		return m.surface, nil
	}
	m.allocs++
	if width <= 0 || height <= 0 {
		m.err = fmt.Errorf("%w: surface size %dx%d", ErrResourceExhausted, width, height)
	} else {
		s, err := m.backend.NewSurface(width, height)
		switch {
		case err != nil:
			m.err = fmt.Errorf("%w: allocate %dx%d surface: %w", ErrResourceExhausted, width, height, err)
		case s == nil:
			m.err = fmt.Errorf("%w: allocate %dx%d surface: backend returned no surface", ErrResourceExhausted, width, height)
		default:
			m.surface = s
			m.size = Size{width, height}
			Logger().Info("canopy: offscreen surface allocated", "width", width, "height", height)
			return s, nil
		}
	}
	Logger().Warn("canopy: offscreen surface allocation failed", "err", m.err)
	return nil, m.err
}

// Surface returns the allocated surface, or nil.
func (m *SurfaceManager) Surface() Surface { return m.surface }

// Size returns the size captured at allocation.
func (m *SurfaceManager) Size() Size { return m.size }

// Err returns the latched allocation error, if any.
func (m *SurfaceManager) Err() error { return m.err }

// Allocations returns how many times allocation was attempted (0 or 1).
func (m *SurfaceManager) Allocations() int { return m.allocs }

func (m *SurfaceManager) ready() error {
	if m.disposed {
		return ErrDisposed
	}
	if m.err != nil {
		return m.err
	}
	if m.surface == nil {
		return ErrNotReady
	}
	return nil
}

// Canvas returns the surface's canvas.
func (m *SurfaceManager) Canvas() (Canvas, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.surface.Canvas(), nil
}

// Flush submits pending drawing on the surface.
func (m *SurfaceManager) Flush() error {
	if err := m.ready(); err != nil {
		return err
	}
	return m.surface.Flush()
}

// Snapshot copies the surface into a new image owned by the caller.
func (m *SurfaceManager) Snapshot() (Image, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	return m.surface.Snapshot()
}

// Dispose releases the surface. Safe to call more than once.
func (m *SurfaceManager) Dispose() {
	if m.disposed {
		return
	}
	m.disposed = true
	if m.surface != nil {
		m.surface.Dispose()
		m.surface = nil
	}
}
