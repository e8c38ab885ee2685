package editor

// EventType names what a session event is about
type EventType string

const (
	// EventGraph is published after nodes or edges changed
	EventGraph EventType = "graph"
	// EventView is published after view-only state changed
	EventView EventType = "view"
	// EventValidation is published after stored validation results changed
	EventValidation EventType = "validation"
	// EventLayout asks the canvas to recompute the anchors of a node
	EventLayout EventType = "layout"
	// EventReset is published after a document was loaded or the session closed
	EventReset EventType = "reset"
)

// Event is delivered to session subscribers
type Event struct {
	Type    EventType `json:"type"`
	Version uint64    `json:"version"`
	NodeID  string    `json:"nodeId,omitempty"`
}

// Subscribe registers fn for every session event and returns a cancel func.
// Callbacks may run on timer goroutines and must not block.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.lmu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.order = append(s.order, id)
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()

		delete(s.listeners, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

func (s *Session) emit(ev Event) {
	s.lmu.RLock()
	fns := make([]func(Event), 0, len(s.order))
	for _, id := range s.order {
		fns = append(fns, s.listeners[id])
	}
	s.lmu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
