// Package ecs bridges canopy frame scheduling into a [Donburi] world.
//
// [NewTickObserver] returns a SchedulerConfig.Observer that publishes every
// scheduler tick to [TickEventType]. Subscribe to it in your ECS systems and
// drain the queue with ProcessEvents once per update:
//
//	world := donburi.NewWorld()
//	ecs.TickEventType.Subscribe(world, onTick)
//	cfg := canopy.SchedulerConfig{Observer: ecs.NewTickObserver(world, "main")}
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
