package canopy

import (
	"sync/atomic"
	"time"
)

type imageBox struct{ img Image }

type surfaceBox struct{ s Surface }

// RenderState is the cell shared by a FrameScheduler (the only writer) and
// whatever displays its output. It holds the timestamp of the last published
// frame, the scheduler's surface and the published snapshot. Reads are safe
// from any goroutine; a reader sees either the old or the new snapshot.
//
// RenderState implements ImageSource, so an image node can display it
// directly.
type RenderState struct {
	last      atomic.Int64
	surface   atomic.Pointer[surfaceBox]
	image     atomic.Pointer[imageBox]
	publishes atomic.Uint64
}

// NewRenderState returns an empty state with a zero last timestamp.
func NewRenderState() *RenderState {
	return &RenderState{}
}

// LastTimestamp returns the timestamp of the last published frame.
func (s *RenderState) LastTimestamp() time.Duration {
	return time.Duration(s.last.Load())
}

// Surface returns the scheduler's offscreen surface, or nil.
func (s *RenderState) Surface() Surface {
	if b := s.surface.Load(); b != nil {
		return b.s
	}
	return nil
}

// Image returns the published snapshot, or nil.
func (s *RenderState) Image() Image {
	if b := s.image.Load(); b != nil {
		return b.img
	}
	return nil
}

// CurrentImage implements ImageSource.
func (s *RenderState) CurrentImage() Image {
	return s.Image()
}

// Publishes returns how many snapshots have been published.
func (s *RenderState) Publishes() uint64 {
	return s.publishes.Load()
}

// publish swaps in img and records ts. It returns the superseded image, which
// the caller must dispose after publish returns.
func (s *RenderState) publish(img Image, ts time.Duration) Image {
	var prev Image
	if old := s.image.Swap(&imageBox{img: img}); old != nil {
		prev = old.img
	}
	s.last.Store(int64(ts))
	s.publishes.Add(1)
	return prev
}

func (s *RenderState) setSurface(sf Surface) {
	if sf == nil {
		s.surface.Store(nil)
		return
	}
	s.surface.Store(&surfaceBox{s: sf})
}

// take clears the published image and returns it for disposal.
func (s *RenderState) take() Image {
	if old := s.image.Swap(nil); old != nil {
		return old.img
	}
	return nil
}
