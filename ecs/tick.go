package ecs

import (
	"github.com/phanxgames/canopy"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// SchedulerTick is a canopy.TickEvent tagged with the scheduler that produced
// it, so one world can observe several schedulers.
type SchedulerTick struct {
	Scheduler string
	canopy.TickEvent
}

// Rendered reports whether the tick published a new frame.
func (t SchedulerTick) Rendered() bool { return t.Outcome == canopy.TickRendered }

// TickEventType is the Donburi event type for scheduler ticks.
var TickEventType = events.NewEventType[SchedulerTick]()

// NewTickObserver returns an observer for canopy.SchedulerConfig that queues
// every tick on world. Events are delivered by TickEventType.ProcessEvents.
func NewTickObserver(world donburi.World, scheduler string) func(canopy.TickEvent) {
	return func(e canopy.TickEvent) {
		TickEventType.Publish(world, SchedulerTick{Scheduler: scheduler, TickEvent: e})
	}
}

// ChainObservers calls each non-nil observer in order.
func ChainObservers(observers ...func(canopy.TickEvent)) func(canopy.TickEvent) {
	return func(e canopy.TickEvent) {
		for _, o := range observers {
			if o != nil {
				o(e)
			}
		}
	}
}
