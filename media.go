package canopy

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// FrameSource produces the frame to draw at a clock timestamp. The returned
// image is owned by the caller, which disposes it after drawing. A source
// with nothing to offer yet returns ErrNotReady.
type FrameSource interface {
	NextFrame(ts time.Duration) (Image, error)
}

// MediaOptions controls how decoded frames are prepared.
type MediaOptions struct {
	// Width and Height, when both positive, resize every frame with Fit.
	Width, Height int
	// Fit is FitFill, FitContain or FitCover; other values act as FitContain.
	Fit Fit
	// Loop restarts playback after the last frame. Without it the last
	// frame is held.
	Loop bool
}

// SequenceSource plays a list of decoded frames with per-frame delays. Every
// NextFrame uploads a fresh backend image so ownership can pass to the
// caller.
type SequenceSource struct {
	backend Backend
	frames  []image.Image
	delays  []time.Duration
	total   time.Duration
	loop    bool
}

// NewSequenceSource creates a source showing each frame for frameDuration.
func NewSequenceSource(b Backend, frames []image.Image, frameDuration time.Duration, opts MediaOptions) (*SequenceSource, error) {
	if len(frames) == 0 {
		return nil, paramErr("sequence", "frames", 0, "need at least one frame")
	}
	if frameDuration <= 0 {
		return nil, paramErr("sequence", "frameDuration", frameDuration, "must be > 0")
	}
	delays := make([]time.Duration, len(frames))
	for i := range delays {
		delays[i] = frameDuration
	}
	return newSequence(b, prepareFrames(frames, opts), delays, opts.Loop), nil
}

func newSequence(b Backend, frames []image.Image, delays []time.Duration, loop bool) *SequenceSource {
	var total time.Duration
	for _, d := range delays {
		total += d
	}
	return &SequenceSource{backend: b, frames: frames, delays: delays, total: total, loop: loop}
}

// prepareFrames resizes frames to the requested box.
func prepareFrames(frames []image.Image, opts MediaOptions) []image.Image {
	if opts.Width <= 0 || opts.Height <= 0 {
		return frames
	}
	out := make([]image.Image, len(frames))
	for i, f := range frames {
		switch opts.Fit {
		case FitFill:
			out[i] = imaging.Resize(f, opts.Width, opts.Height, imaging.Lanczos)
		case FitCover:
			out[i] = imaging.Fill(f, opts.Width, opts.Height, imaging.Center, imaging.Lanczos)
		default:
			out[i] = imaging.Fit(f, opts.Width, opts.Height, imaging.Lanczos)
		}
	}
	return out
}

// Len returns the number of frames.
func (s *SequenceSource) Len() int { return len(s.frames) }

// Duration returns the total playback time of one loop.
func (s *SequenceSource) Duration() time.Duration { return s.total }

// FrameIndex returns the index of the frame shown at ts.
func (s *SequenceSource) FrameIndex(ts time.Duration) int {
	if ts < 0 {
		ts = 0
	}
	if s.total <= 0 {
		return 0
	}
	if ts >= s.total {
		if !s.loop {
			return len(s.frames) - 1
		}
		ts %= s.total
	}
	for i, d := range s.delays {
		if ts < d {
			return i
		}
		ts -= d
	}
	return len(s.frames) - 1
}

// NextFrame uploads the frame shown at ts.
func (s *SequenceSource) NextFrame(ts time.Duration) (Image, error) {
	return s.backend.NewImage(s.frames[s.FrameIndex(ts)])
}

// DecodeGIF decodes an animated GIF into a SequenceSource, compositing each
// frame over the previous one according to its disposal method.
func DecodeGIF(b Backend, r io.Reader, opts MediaOptions) (*SequenceSource, error) {
	g, err := gif.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, errors.New("decode gif: no frames")
	}
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		bounds = g.Image[0].Bounds()
	}
	canvas := image.NewNRGBA(bounds)
	frames := make([]image.Image, len(g.Image))
	delays := make([]time.Duration, len(g.Image))
	for i, pal := range g.Image {
		var restore *image.NRGBA
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			restore = imaging.Clone(canvas)
		}
		draw.Draw(canvas, pal.Bounds(), pal, pal.Bounds().Min, draw.Over)
		frames[i] = imaging.Clone(canvas)

		delay := 10 * time.Millisecond
		if i < len(g.Delay) && g.Delay[i] > 0 {
			delay = time.Duration(g.Delay[i]) * 10 * time.Millisecond
		}
		delays[i] = delay

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, pal.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = restore
		}
	}
	loop := opts.Loop || g.LoopCount == 0
	return newSequence(b, prepareFrames(frames, opts), delays, loop), nil
}

// OpenGIF returns an OpenFunc decoding GIF files.
func OpenGIF(b Backend, opts MediaOptions) OpenFunc {
	return func(path string) (FrameSource, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return DecodeGIF(b, f, opts)
	}
}

// OpenImage returns an OpenFunc loading a single still image (any format
// imaging can decode) as a one-frame source.
func OpenImage(b Backend, opts MediaOptions) OpenFunc {
	return func(path string) (FrameSource, error) {
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			return nil, err
		}
		return NewSequenceSource(b, []image.Image{img}, time.Second, opts)
	}
}

// --- async loading ---

// AssetLoader resolves an asset reference to a local file path.
type AssetLoader interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// FileLoader resolves references relative to Root and checks they exist.
type FileLoader struct {
	Root string
}

// Resolve implements AssetLoader.
func (l FileLoader) Resolve(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.Root, ref)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("resolve asset %q: %w", ref, err)
	}
	return path, nil
}

// OpenFunc turns a local path into a frame source.
type OpenFunc func(path string) (FrameSource, error)

// AsyncSource loads a frame source on a goroutine. Until loading finishes,
// Ready is false and NextFrame returns ErrNotReady. Once it finishes Ready is
// true and NextFrame returns either frames or the load error.
type AsyncSource struct {
	mu     sync.Mutex
	src    FrameSource
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

// LoadAsync starts resolving ref with loader and opening it with open.
// Cancelling ctx, or calling Close, abandons a load that has not opened its
// source yet.
func LoadAsync(ctx context.Context, loader AssetLoader, ref string, open OpenFunc) *AsyncSource {
	ctx, cancel := context.WithCancel(ctx)
	a := &AsyncSource{done: make(chan struct{}), cancel: cancel}
	go func() {
		defer close(a.done)
		src, err := a.load(ctx, loader, ref, open)
		a.mu.Lock()
		defer a.mu.Unlock()
		// A cancellation that arrives after open succeeded is ignored.
		if err != nil {
			src = nil
		} else if src == nil {
			err = fmt.Errorf("open asset %q: no frame source", ref)
		}
		a.src, a.err = src, err
		if err != nil {
			Logger().Warn("canopy: asset load failed", "ref", ref, "err", err)
		} else {
			Logger().Debug("canopy: asset loaded", "ref", ref)
		}
	}()
	return a
}

func (a *AsyncSource) load(ctx context.Context, loader AssetLoader, ref string, open OpenFunc) (FrameSource, error) {
	path, err := loader.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return open(path)
}

// Ready reports whether loading has finished, successfully or not.
func (a *AsyncSource) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.src != nil || a.err != nil
}

// Err returns the load error, if loading failed.
func (a *AsyncSource) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Wait blocks until loading finishes or ctx is done.
func (a *AsyncSource) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NextFrame delegates to the loaded source, or returns ErrNotReady.
func (a *AsyncSource) NextFrame(ts time.Duration) (Image, error) {
	a.mu.Lock()
	src, err := a.src, a.err
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, ErrNotReady
	}
	return src.NextFrame(ts)
}

// Close cancels a pending load. A load that already opened its source keeps it.
func (a *AsyncSource) Close() {
	a.cancel()
}
