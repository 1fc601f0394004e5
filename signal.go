package forge

// Signal is a typed publish/subscribe channel. Subscribe returns an
// explicit unsubscribe handle so listeners cannot leak behind forgotten
// string-keyed off() calls. Emission is synchronous and single-threaded,
// like everything else driven by the frame loop.
type Signal[T any] struct {
	nextID   int
	handlers []signalHandler[T]
}

type signalHandler[T any] struct {
	id int
	fn func(T)
}

// Unsubscribe detaches a previously subscribed handler. Calling it more
// than once is harmless.
type Unsubscribe func()

func (s *Signal[T]) Subscribe(fn func(T)) Unsubscribe {
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, signalHandler[T]{id: id, fn: fn})
	return func() {
		for i, h := range s.handlers {
			if h.id == id {
				s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

func (s *Signal[T]) Emit(v T) {
	// Snapshot so handlers may unsubscribe themselves mid-emit.
	hs := make([]signalHandler[T], len(s.handlers))
	copy(hs, s.handlers)
	for _, h := range hs {
		h.fn(v)
	}
}

func (s *Signal[T]) Len() int { return len(s.handlers) }
