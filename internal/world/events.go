package world

import (
	"sync"

	"github.com/udisondev/terrastream/internal/chunk"
)

// EventType classifies streaming events.
type EventType string

const (
	EventCreated    EventType = "created"
	EventVisibility EventType = "visibility"
	EventDisposed   EventType = "disposed"
)

// Event reports a chunk lifecycle change. Visible is meaningful for
// EventVisibility only.
type Event struct {
	Type    EventType
	Coord   chunk.Coord
	Visible bool
	Tick    uint64
}

// subscribers is an explicit observer list. Handlers run synchronously on
// the goroutine that publishes and must not block.
type subscribers struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(Event)
}

func (s *subscribers) subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(Event))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) publish(e Event) {
	s.mu.RLock()
	if len(s.fns) == 0 {
		s.mu.RUnlock()
		return
	}
	fns := make([]func(Event), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

func (s *subscribers) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fns)
}
