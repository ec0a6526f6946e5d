// Package region wraps the waveform renderer behind a narrow contract: drag
// edits flow in as events, display commands flow out. The renderer itself is
// an external collaborator and never sees snippet state.
package region

// Region is the renderer's visual representation of a snippet's time span.
type Region struct {
	ID    string
	Start float64
	End   float64
}

type EventKind string

const (
	// EventCreated fires when the user drags out a fresh region.
	EventCreated EventKind = "created"
	// EventUpdated fires when an existing region is moved or resized.
	EventUpdated EventKind = "updated"
)

type Event struct {
	Kind   EventKind
	Region Region
}

// Surface is the command side of the waveform renderer.
type Surface interface {
	// SetRegion replaces the visible region with the given one.
	SetRegion(r Region)
	// Play starts playback of the region from its beginning.
	Play(id string)
	// Zoom sets the waveform zoom level in pixels per second.
	Zoom(level int)
	// Events delivers region edits until the surface is torn down.
	Events() <-chan Event
}
