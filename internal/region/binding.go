package region

import "context"

// Handler receives region edits. Implemented by the annotation session.
type Handler interface {
	// RegionCreated turns a dragged-out span into a snippet. The returned
	// region (snippet id + committed bounds) is pushed back to the surface;
	// ok=false means the span was rejected and nothing is shown.
	RegionCreated(start, end float64) (Region, bool)
	// RegionUpdated commits a move/resize of an existing region. The
	// returned region carries the bounds after overlap resolution.
	RegionUpdated(id string, start, end float64) (Region, bool)
}

// Binding pumps surface events into a handler and reflects the committed
// state back onto the surface.
type Binding struct {
	surface Surface
	handler Handler
}

func NewBinding(surface Surface, handler Handler) *Binding {
	return &Binding{surface: surface, handler: handler}
}

// Run consumes events until the context is done or the surface closes its
// event channel.
func (b *Binding) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.surface.Events():
			if !ok {
				return
			}
			b.dispatch(ev)
		}
	}
}

func (b *Binding) dispatch(ev Event) {
	switch ev.Kind {
	case EventCreated:
		if r, ok := b.handler.RegionCreated(ev.Region.Start, ev.Region.End); ok {
			b.surface.SetRegion(r)
		}
	case EventUpdated:
		if r, ok := b.handler.RegionUpdated(ev.Region.ID, ev.Region.Start, ev.Region.End); ok {
			b.surface.SetRegion(r)
		}
	}
}
