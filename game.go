package canopy

import (
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunConfig configures Run.
type RunConfig struct {
	Title         string
	Width, Height int
	// Backend is the backend the scene was created with. Nil creates a new
	// one for the screen canvas.
	Backend *EbitenBackend
	// Clock, if set, is ticked once per update with the elapsed game time.
	// Schedulers registered on it render before the scene is rebuilt.
	Clock *FrameClock
	// ShowStats draws the FPS/TPS and scheduler overlay.
	ShowStats  bool
	Schedulers []*FrameScheduler
	// Update runs once per tick before the clock and the scene.
	Update func() error
}

// game implements ebiten.Game around a Scene.
type game struct {
	scene *Scene
	cfg   RunConfig
	ticks int64
	stats *StatsOverlay
}

// Run opens a window and drives scene until the window closes or an update
// returns an error. Each tick advances the clock by one TPS step, rebuilds
// the scene when dirty and draws it to the screen.
func Run(scene *Scene, cfg RunConfig) error {
	if cfg.Width <= 0 {
		cfg.Width = 640
	}
	if cfg.Height <= 0 {
		cfg.Height = 480
	}
	if cfg.Backend == nil {
		cfg.Backend = NewEbitenBackend()
	}
	g := &game{scene: scene, cfg: cfg}
	if cfg.ShowStats {
		g.stats = NewStatsOverlay(cfg.Schedulers...)
	}
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(cfg.Width, cfg.Height)
	Logger().Info("canopy: run", "title", cfg.Title, "width", cfg.Width, "height", cfg.Height)
	return ebiten.RunGame(g)
}

func (g *game) Update() error {
	if g.cfg.Update != nil {
		if err := g.cfg.Update(); err != nil {
			return err
		}
	}
	g.ticks++
	if g.cfg.Clock != nil {
		g.cfg.Clock.Tick(tickDuration(g.ticks, ebiten.TPS()))
	}
	if g.stats != nil {
		g.stats.Update(1 / float64(ebiten.TPS()))
	}
	// A failed build keeps the previous frame; the error is already logged.
	_ = g.scene.Update()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	g.scene.Draw(g.cfg.Backend.ScreenCanvas(screen))
	if g.stats != nil {
		g.stats.Draw(screen)
	}
}

func (g *game) Layout(_, _ int) (int, int) {
	return g.cfg.Width, g.cfg.Height
}

// tickDuration returns the game time after ticks updates at tps.
func tickDuration(ticks int64, tps int) time.Duration {
	if tps <= 0 {
		tps = ebiten.DefaultTPS
	}
	return time.Duration(ticks) * time.Second / time.Duration(tps)
}
