// Package canopy is a declarative effect binding layer for 2D drawing
// backends, with an [Ebitengine] backend built in and a software backend in
// canopy/raster.
//
// A host describes what to draw as a tree of [Node] values: groups, drawing
// primitives and effect declarations (blur, offset, colour matrices, shaders,
// dash and corner path effects). canopy resolves each declaration into a
// native effect object, flattens the tree into an ordered [Command] list and
// replays it onto any [Canvas].
//
// # Quick start
//
//	backend := canopy.NewEbitenBackend()
//	scene := canopy.NewScene(backend)
//
//	blur := canopy.NewDeclaration("soft", &canopy.BlurProps{SigmaX: 4, SigmaY: 4})
//	card := canopy.NewRoundRect("card", canopy.Rect{X: 40, Y: 40, Width: 200, Height: 120}, 12, 12)
//	card.Color = canopy.ColorFromRGBA(0x33, 0x66, 0xff, 0xff)
//	card.AddChild(blur)
//	scene.Root().AddChild(card)
//
//	canopy.Run(scene, canopy.RunConfig{Title: "canopy", Width: 640, Height: 480})
//
// # Declarations
//
// A declaration node produces one effect object of a [Capability] (shader,
// image filter, colour filter or path effect). Its own declaration children
// are its inputs, resolved first. Resolution is memoised: a declaration is
// rebuilt only when one of its parameters or one of its inputs changed.
// Parameters are validated, never clamped; a bad value fails the build with
// [ErrInvalidParameter].
//
// # Scene graph
//
// [Scene.Build] runs two passes: a post-order pass resolving declarations
// bottom-up, then a pre-order pass emitting drawing commands. A failed build
// leaves the previous frame in effect.
//
// # Offscreen rendering
//
// [FrameScheduler] renders frames from a [FrameSource] into one offscreen
// [Surface] at a throttled rate and publishes a snapshot into a
// [RenderState]. An image node whose source is that RenderState displays the
// most recent snapshot.
//
//	state := canopy.NewRenderState()
//	sched := canopy.NewFrameScheduler(backend, source, state, canopy.SchedulerConfig{
//		Viewport:   canopy.Size{Width: 1920, Height: 1080},
//		Background: canopy.ColorRed,
//		Offset:     canopy.Vec2{X: -450, Y: 100},
//	})
//	clock := canopy.NewFrameClock()
//	sched.Start(clock)
//	defer sched.Teardown()
//
// Logging is silent by default; see [SetLogger].
//
// [Ebitengine]: https://ebitengine.org
package canopy
