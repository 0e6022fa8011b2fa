package registry

import (
	"iter"
	"sync"
	"sync/atomic"
)

// Subscription is a snapshot followed by a live stream of deltas.
// Slow readers lose the oldest queued deltas rather than holding up publishers.
type Subscription struct {
	registry *Registry

	mutex  sync.Mutex
	buffer []Delta
	head   int
	size   int
	closed bool

	dropped atomic.Uint64

	notify chan struct{}
	done   chan struct{}
	out    chan Delta

	closeOnce sync.Once
}

func newSubscription(registry *Registry, capacity int) *Subscription {
	return &Subscription{
		registry: registry,
		buffer:   make([]Delta, capacity),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		out:      make(chan Delta),
	}
}

// C is closed once the subscription has been closed
func (s *Subscription) C() <-chan Delta {
	return s.out
}

// Deltas ranges over the subscription until it is closed or the loop breaks
func (s *Subscription) Deltas() iter.Seq[Delta] {
	return func(yield func(Delta) bool) {
		for delta := range s.out {
			if !yield(delta) {
				return
			}
		}
	}
}

func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.registry.unsubscribe(s)

		s.mutex.Lock()
		s.closed = true
		s.buffer = nil
		s.head = 0
		s.size = 0
		s.mutex.Unlock()

		close(s.done)
	})
}

func (s *Subscription) push(delta Delta) {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}

	capacity := len(s.buffer)
	if s.size == capacity {
		s.head = (s.head + 1) % capacity
		s.size--
		s.dropped.Add(1)
	}
	s.buffer[(s.head+s.size)%capacity] = delta
	s.size++
	s.mutex.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pop() (Delta, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.size == 0 {
		return Delta{}, false
	}

	delta := s.buffer[s.head]
	s.buffer[s.head] = Delta{}
	s.head = (s.head + 1) % len(s.buffer)
	s.size--

	return delta, true
}

func (s *Subscription) pump() {
	defer close(s.out)

	for {
		delta, ok := s.pop()
		if !ok {
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- delta:
		case <-s.done:
			return
		}
	}
}
