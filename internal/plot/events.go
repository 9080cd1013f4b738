package plot

import "sync"

// Event names fired at plot and panel granularity. Collaborators (UI
// chrome, overlays) subscribe but never participate in resolution logic.
const (
	EventDataRequested  = "data_requested"
	EventDataRendered   = "data_rendered"
	EventLayoutChanged  = "layout_changed"
	EventElementClicked = "element_clicked"
)

// Event is one emitted occurrence with its source and free-form payload.
type Event struct {
	Name    string
	PanelID string
	Data    interface{}
}

// Listener receives events.
type Listener func(Event)

// emitter is a minimal synchronous event hub. Panel emitters forward to
// their plot, so a single plot-level subscription sees everything.
type emitter struct {
	mu       sync.Mutex
	handlers map[string][]Listener
	forward  *emitter
}

func newEmitter() *emitter {
	return &emitter{handlers: make(map[string][]Listener)}
}

// On subscribes a listener to a named event.
func (e *emitter) On(name string, fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = append(e.handlers[name], fn)
}

// Emit dispatches to local listeners, then to the forwarding target.
func (e *emitter) Emit(ev Event) {
	e.mu.Lock()
	local := append([]Listener(nil), e.handlers[ev.Name]...)
	forward := e.forward
	e.mu.Unlock()

	for _, fn := range local {
		fn(ev)
	}
	if forward != nil {
		forward.Emit(ev)
	}
}
