package observer

import "sync"

// Subject fans a value out to registered listeners. Notify runs listeners
// synchronously on the caller's goroutine and must not be called while the
// caller holds a lock that a listener might need.
type Subject[T any] struct {
	mu        sync.RWMutex
	listeners map[uint64]func(T)
	order     []uint64
	nextID    uint64
}

func (s *Subject[T]) Subscribe(listener func(T)) (unsubscribe func()) {
	s.mu.Lock()
	if s.listeners == nil {
		s.listeners = make(map[uint64]func(T))
	}
	s.nextID++
	id := s.nextID
	s.listeners[id] = listener
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Subject[T]) Notify(value T) {
	s.mu.RLock()
	listeners := make([]func(T), 0, len(s.order))
	for _, id := range s.order {
		listeners = append(listeners, s.listeners[id])
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(value)
	}
}

func (s *Subject[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}
