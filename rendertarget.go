package canopy

import (
	"image"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// renderTexturePool manages reusable offscreen ebiten.Images keyed by
// power-of-two dimensions. Layers and filter passes borrow from it; after
// warmup Acquire/Release do not allocate GPU memory.
type renderTexturePool struct {
	buckets map[uint64][]*ebiten.Image
	parents map[*ebiten.Image]*ebiten.Image
	live    int
}

// poolKey packs power-of-two width and height into a single uint64.
func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// Acquire returns a cleared offscreen image of exactly (w, h) pixels, cut
// from a pooled image rounded up to the next power of two.
func (p *renderTexturePool) Acquire(w, h int) *ebiten.Image {
	pw := nextPowerOfTwo(w)
	ph := nextPowerOfTwo(h)
	key := poolKey(pw, ph)

	var base *ebiten.Image
	if stack := p.buckets[key]; len(stack) > 0 {
		base = stack[len(stack)-1]
		p.buckets[key] = stack[:len(stack)-1]
		base.Clear()
	} else {
		base = ebiten.NewImageWithOptions(
			image.Rect(0, 0, pw, ph),
			&ebiten.NewImageOptions{Unmanaged: true},
		)
	}
	p.live++
	if pw == w && ph == h {
		return base
	}
	sub := base.SubImage(image.Rect(0, 0, w, h)).(*ebiten.Image)
	if p.parents == nil {
		p.parents = make(map[*ebiten.Image]*ebiten.Image)
	}
	p.parents[sub] = base
	return sub
}

// Release returns an image obtained from Acquire to the pool. The image is
// cleared on next Acquire, not here.
func (p *renderTexturePool) Release(img *ebiten.Image) {
	if img == nil {
		return
	}
	if base, ok := p.parents[img]; ok {
		delete(p.parents, img)
		img = base
	}
	b := img.Bounds()
	key := poolKey(b.Dx(), b.Dy())

	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	p.buckets[key] = append(p.buckets[key], img)
	p.live--
}

// Live returns the number of acquired images not yet released.
func (p *renderTexturePool) Live() int { return p.live }

// Dispose deallocates every pooled image.
func (p *renderTexturePool) Dispose() {
	for key, stack := range p.buckets {
		for _, img := range stack {
			img.Deallocate()
		}
		delete(p.buckets, key)
	}
}

// nextPowerOfTwo returns the smallest power of two >= n (minimum 1).
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << int(math.Ceil(math.Log2(float64(n))))
}
