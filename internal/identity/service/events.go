package service

import (
	"sync"

	"github.com/aussiebroadwan/idsync/internal/identity/domain"
)

// broadcaster fans events out to listeners without ever blocking the
// publisher. A listener that falls behind misses events.
type broadcaster struct {
	mu        sync.Mutex
	listeners map[chan domain.Event]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{listeners: make(map[chan domain.Event]struct{})}
}

func (b *broadcaster) subscribe(buffer int) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, buffer)

	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *broadcaster) publish(e domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.listeners {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribe returns a channel of engine events and a cancel function.
func (s *Service) Subscribe() (<-chan domain.Event, func()) {
	return s.events.subscribe(32)
}
