// Package raster is a CPU implementation of canopy.Backend.
//
// Surfaces are premultiplied *image.RGBA buffers. Shapes are rasterised with
// rasterx, images are drawn with golang.org/x/image/draw, and image and
// colour filters run through imaging. It needs no GPU or window, which makes
// it the backend of choice for tests, headless export and servers:
//
//	b := raster.New()
//	scene := canopy.NewScene(b)
//	// ... build the tree ...
//	surface, _ := b.NewSurface(640, 480)
//	scene.Build()
//	scene.Draw(surface.Canvas())
//	snap, _ := surface.Snapshot()
//
// Runtime shaders are not supported; NewRuntimeEffect returns
// canopy.ErrUnsupported.
package raster
