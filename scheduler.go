package canopy

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// DefaultFrameInterval targets 60 frames per second.
const DefaultFrameInterval = 16 * time.Millisecond

// TickOutcome is what one OnTick call did.
type TickOutcome uint8

const (
	TickRendered TickOutcome = iota // a new snapshot was published
	TickSkipped                     // throttled, nothing touched
	TickNotReady                    // the source had no frame yet
	TickDisposed                    // the scheduler was torn down
	TickFailed                      // an error occurred; see the returned error
)

var tickOutcomeNames = [...]string{"rendered", "skipped", "notReady", "disposed", "failed"}

func (o TickOutcome) String() string {
	if int(o) < len(tickOutcomeNames) {
		return tickOutcomeNames[o]
	}
	return "TickOutcome(" + strconv.Itoa(int(o)) + ")"
}

// TickEvent is delivered to SchedulerConfig.Observer after every tick.
type TickEvent struct {
	Timestamp time.Duration
	Outcome   TickOutcome
	Err       error
	Publishes uint64
}

// SchedulerConfig configures a FrameScheduler. The zero value renders a
// 1x1 surface every 16ms on opaque black.
type SchedulerConfig struct {
	// Interval is the minimum time between published frames. A tick renders
	// only if ts - LastTimestamp > Interval. Zero means DefaultFrameInterval.
	Interval time.Duration
	// Viewport is the offscreen surface size, captured on first use.
	Viewport Size
	// Background clears the surface before each frame. The zero value is
	// replaced with opaque black; set Transparent to clear to nothing.
	Background  Color
	Transparent bool
	// Offset is where the source frame's top-left corner is drawn.
	Offset Vec2
	// SourcePaint, if set, is used when drawing the source frame.
	SourcePaint *Paint
	// Observer, if set, receives one event per tick.
	Observer func(TickEvent)
}

// SchedulerStats counts tick outcomes.
type SchedulerStats struct {
	Ticks    int
	Rendered int
	Skipped  int
	NotReady int
	Failed   int
}

// Readier is implemented by frame sources that can report readiness
// before a surface is allocated. Ready is false only while the source is
// still loading; a source whose load failed reports true and returns the
// failure from NextFrame.
type Readier interface {
	Ready() bool
}

// FrameScheduler renders frames from a source into an offscreen surface at a
// throttled rate and publishes each result into a RenderState.
//
// For an accepted tick the order is fixed: clear, draw the source frame,
// flush, snapshot, publish, dispose the source frame, dispose the previously
// published snapshot. The display side therefore always has a valid image.
type FrameScheduler struct {
	backend  Backend
	source   FrameSource
	state    *RenderState
	surfaces *SurfaceManager
	cfg      SchedulerConfig

	reg      Registration
	fatal    error
	disposed bool
	stats    SchedulerStats
}

// NewFrameScheduler creates a scheduler. It does nothing until OnTick is
// called, directly or through Start.
func NewFrameScheduler(backend Backend, source FrameSource, state *RenderState, cfg SchedulerConfig) *FrameScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultFrameInterval
	}
	if cfg.Background == (Color{}) && !cfg.Transparent {
		cfg.Background = ColorBlack
	}
	if cfg.Viewport.Empty() {
		cfg.Viewport = Size{1, 1}
	}
	if state == nil {
		state = NewRenderState()
	}
	return &FrameScheduler{
		backend:  backend,
		source:   source,
		state:    state,
		surfaces: NewSurfaceManager(backend),
		cfg:      cfg,
	}
}

// State returns the render state the scheduler publishes into.
func (f *FrameScheduler) State() *RenderState { return f.state }

// Surfaces returns the scheduler's surface manager.
func (f *FrameScheduler) Surfaces() *SurfaceManager { return f.surfaces }

// Stats returns tick counters.
func (f *FrameScheduler) Stats() SchedulerStats { return f.stats }

// Err returns the fatal error that stopped the scheduler, if any.
func (f *FrameScheduler) Err() error { return f.fatal }

// Start registers the scheduler's tick callback with clock. Calling Start
// again replaces the previous registration.
func (f *FrameScheduler) Start(clock Clock) {
	if f.disposed {
		return
	}
	if f.reg != nil {
		f.reg.Unregister()
	}
	f.reg = clock.Register(func(ts time.Duration) {
		_, _ = f.OnTick(ts)
	})
	Logger().Info("canopy: frame scheduler started", "interval", f.cfg.Interval)
}

// OnTick runs one scheduling step for the clock timestamp ts.
func (f *FrameScheduler) OnTick(ts time.Duration) (TickOutcome, error) {
	outcome, err := f.tick(ts)
	f.stats.Ticks++
	switch outcome {
	case TickRendered:
		f.stats.Rendered++
	case TickSkipped:
		f.stats.Skipped++
	case TickNotReady:
		f.stats.NotReady++
	case TickFailed:
		f.stats.Failed++
	}
	if f.cfg.Observer != nil {
		f.cfg.Observer(TickEvent{
			Timestamp: ts,
			Outcome:   outcome,
			Err:       err,
			Publishes: f.state.Publishes(),
		})
	}
	return outcome, err
}

func (f *FrameScheduler) tick(ts time.Duration) (TickOutcome, error) {
	if f.disposed {
		return TickDisposed, nil
	}
	if f.fatal != nil {
		return TickFailed, f.fatal
	}
	if f.source == nil {
		return TickNotReady, nil
	}
	if r, ok := f.source.(Readier); ok && !r.Ready() {
		return TickNotReady, nil
	}

	surface, err := f.surfaces.Ensure(f.cfg.Viewport.Width, f.cfg.Viewport.Height)
	if err != nil {
		f.fatal = err
		return TickFailed, err
	}
	f.state.setSurface(surface)

	if ts-f.state.LastTimestamp() <= f.cfg.Interval {
		return TickSkipped, nil
	}

	frame, err := f.source.NextFrame(ts)
	if errors.Is(err, ErrNotReady) || (err == nil && frame == nil) {
		return TickNotReady, nil
	}
	if err != nil {
		Logger().Warn("canopy: frame source failed", "ts", ts, "err", err)
		return TickFailed, fmt.Errorf("next frame at %v: %w", ts, err)
	}

	canvas, err := f.surfaces.Canvas()
	if err != nil {
		frame.Dispose()
		return TickFailed, fmt.Errorf("surface canvas: %w", err)
	}
	canvas.Clear(f.cfg.Background)
	canvas.DrawImage(frame, f.cfg.Offset.X, f.cfg.Offset.Y, f.cfg.SourcePaint)
	if err := f.surfaces.Flush(); err != nil {
		frame.Dispose()
		return TickFailed, fmt.Errorf("flush surface: %w", err)
	}
	snapshot, err := f.surfaces.Snapshot()
	if err != nil {
		frame.Dispose()
		return TickFailed, fmt.Errorf("snapshot surface: %w", err)
	}

	prev := f.state.publish(snapshot, ts)
	frame.Dispose()
	if prev != nil {
		prev.Dispose()
	}
	return TickRendered, nil
}

// Teardown unregisters from the clock and disposes the published snapshot
// and the surface, each exactly once. Later ticks report TickDisposed.
// Safe to call more than once.
func (f *FrameScheduler) Teardown() {
	if f.disposed {
		return
	}
	f.disposed = true
	if f.reg != nil {
		f.reg.Unregister()
		f.reg = nil
	}
	if img := f.state.take(); img != nil {
		img.Dispose()
	}
	f.state.setSurface(nil)
	f.surfaces.Dispose()
	Logger().Info("canopy: frame scheduler torn down", "publishes", f.state.Publishes())
}
