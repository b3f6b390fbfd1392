package raster

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/phanxgames/canopy"
)

func TestNewSurfaceSizeLimits(t *testing.T) {
	b := &Backend{MaxSurfaceSize: 64}
	tests := []struct {
		w, h    int
		wantErr bool
	}{
		{1, 1, false},
		{64, 64, false},
		{0, 10, true},
		{10, -1, true},
		{65, 10, true},
		{10, 65, true},
	}
	for _, tt := range tests {
		s, err := b.NewSurface(tt.w, tt.h)
		if tt.wantErr {
			if !errors.Is(err, canopy.ErrResourceExhausted) {
				t.Errorf("NewSurface(%d, %d) err = %v, want ErrResourceExhausted", tt.w, tt.h, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NewSurface(%d, %d) err = %v", tt.w, tt.h, err)
			continue
		}
		if s.Width() != tt.w || s.Height() != tt.h {
			t.Errorf("size = %dx%d, want %dx%d", s.Width(), s.Height(), tt.w, tt.h)
		}
	}
}

func TestNewImageRejectsEmpty(t *testing.T) {
	b := New()
	_, err := b.NewImage(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if !errors.Is(err, canopy.ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
	if _, err := b.NewImage(nil); err == nil {
		t.Error("NewImage(nil) should fail")
	}
}

func TestNewImageNormalisesBounds(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 9, 8))
	src.SetNRGBA(5, 5, color.NRGBA{255, 0, 0, 255})
	img, err := New().NewImage(src)
	if err != nil {
		t.Fatal(err)
	}
	ri := img.(*Image).RGBA()
	if ri.Bounds() != image.Rect(0, 0, 4, 3) {
		t.Errorf("bounds = %v, want (0,0)-(4,3)", ri.Bounds())
	}
	if got := ri.RGBAAt(0, 0); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("pixel = %v, want red", got)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	s, _ := New().NewSurface(4, 4)
	s.Canvas().Clear(canopy.ColorRed)
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	s.Canvas().Clear(canopy.ColorBlack)

	got := snap.(*Image).RGBA().RGBAAt(1, 1)
	if got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("snapshot pixel = %v, want red", got)
	}
}

func TestDisposedSurface(t *testing.T) {
	s, _ := New().NewSurface(4, 4)
	s.Dispose()
	s.Dispose()
	if _, err := s.Snapshot(); !errors.Is(err, canopy.ErrDisposed) {
		t.Errorf("Snapshot err = %v, want ErrDisposed", err)
	}
	if err := s.Flush(); !errors.Is(err, canopy.ErrDisposed) {
		t.Errorf("Flush err = %v, want ErrDisposed", err)
	}
}

func TestImageToImageStraightAlpha(t *testing.T) {
	s, _ := New().NewSurface(2, 2)
	s.Canvas().Clear(canopy.Color{R: 1, G: 0, B: 0, A: 0.5})
	snap, _ := s.Snapshot()
	nrgba, err := snap.(canopy.PixelReader).ToImage()
	if err != nil {
		t.Fatal(err)
	}
	got := nrgba.NRGBAAt(0, 0)
	if got.R < 250 || got.A < 126 || got.A > 129 {
		t.Errorf("pixel = %v, want ~{255 0 0 128}", got)
	}

	snap.Dispose()
	if _, err := snap.(canopy.PixelReader).ToImage(); !errors.Is(err, canopy.ErrDisposed) {
		t.Errorf("ToImage after Dispose err = %v, want ErrDisposed", err)
	}
}

func TestRuntimeEffectUnsupported(t *testing.T) {
	_, err := New().NewRuntimeEffect("package main")
	if !errors.Is(err, canopy.ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestImageShaderForeignImage(t *testing.T) {
	_, err := New().NewImageShader(nil, canopy.TileClamp, canopy.TileClamp, canopy.IdentityMatrix)
	if !errors.Is(err, canopy.ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
}

func TestSceneRendersThroughRaster(t *testing.T) {
	b := New()
	scene := canopy.NewScene(b)
	scene.ClearColor = canopy.ColorBlack
	rect := canopy.NewRect("box", canopy.Rect{X: 2, Y: 2, Width: 4, Height: 4})
	rect.Color = canopy.ColorRed
	rect.AddChild(canopy.NewDeclaration("tint", &canopy.MatrixColorFilterProps{Matrix: []float64{
		0, 0, 0, 0, 0,
		1, 0, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	}}))
	scene.Root().AddChild(rect)
	if err := scene.Build(); err != nil {
		t.Fatal(err)
	}

	s, _ := b.NewSurface(8, 8)
	if n := scene.Draw(s.Canvas()); n != 1 {
		t.Errorf("draws = %d, want 1", n)
	}
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	img := s.(*Surface).RGBA()
	if got := img.RGBAAt(3, 3); got != (color.RGBA{0, 255, 0, 255}) {
		t.Errorf("inside = %v, want green", got)
	}
	if got := img.RGBAAt(0, 0); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("outside = %v, want black", got)
	}
}
