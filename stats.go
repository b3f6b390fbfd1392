package canopy

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// StatsOverlay prints FPS, TPS and per-scheduler tick counts in the top-left
// corner of the screen. The text is refreshed every ~0.5 seconds.
type StatsOverlay struct {
	schedulers []*FrameScheduler
	img        *ebiten.Image
	elapsed    float64
	text       string
}

// NewStatsOverlay creates an overlay reporting on the given schedulers.
func NewStatsOverlay(schedulers ...*FrameScheduler) *StatsOverlay {
	return &StatsOverlay{schedulers: schedulers, elapsed: 0.5}
}

// Update advances the refresh timer by dt seconds.
func (o *StatsOverlay) Update(dt float64) {
	o.elapsed += dt
	if o.elapsed < 0.5 {
		return
	}
	o.elapsed = 0
	o.text = o.Text(ebiten.ActualFPS(), ebiten.ActualTPS())
}

// Text formats the overlay contents.
func (o *StatsOverlay) Text(fps, tps float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FPS: %.1f\nTPS: %.1f", fps, tps)
	for i, s := range o.schedulers {
		st := s.Stats()
		fmt.Fprintf(&b, "\nsched %d: %d rendered, %d skipped, %d waiting, %d failed",
			i, st.Rendered, st.Skipped, st.NotReady, st.Failed)
	}
	return b.String()
}

// Draw renders the overlay onto screen.
func (o *StatsOverlay) Draw(screen *ebiten.Image) {
	if o.text == "" {
		return
	}
	lines := strings.Count(o.text, "\n") + 1
	w, h := 16+6*longestLine(o.text), 4+16*lines
	if o.img == nil || o.img.Bounds().Dx() != w || o.img.Bounds().Dy() != h {
		if o.img != nil {
			o.img.Deallocate()
		}
		o.img = ebiten.NewImage(w, h)
	}
	o.img.Clear()
	// Semi-transparent background for readability
	o.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(o.img, o.text)
	screen.DrawImage(o.img, nil)
}

func longestLine(s string) int {
	n := 0
	for _, l := range strings.Split(s, "\n") {
		n = max(n, len(l))
	}
	return n
}
