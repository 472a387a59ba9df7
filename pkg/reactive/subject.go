// Package reactive provides the state containers the session and data layers
// publish through. A Subject holds the latest value and replays it to every
// new subscriber; subjects are constructed in main and passed to their single
// writer, never held as package globals.
package reactive

import "sync"

// Subject is a latest-value broadcast cell. Set publishes a new value to all
// subscribers; Subscribe delivers the current value immediately and every
// subsequent value in order. Slow subscribers are conflated: they always see
// the most recent value but may skip intermediates.
type Subject[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[int]*subscriber[T]
	next  int
}

type subscriber[T any] struct {
	ch chan T
}

func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{
		value: initial,
		subs:  make(map[int]*subscriber[T]),
	}
}

// Get returns the current value.
func (s *Subject[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set stores v as the current value and delivers it to all subscribers.
func (s *Subject[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	for _, sub := range s.subs {
		sub.deliver(v)
	}
}

// Update applies f to the current value while holding the subject lock and
// publishes the result. It keeps read-modify-write sequences atomic for the
// single writer.
func (s *Subject[T]) Update(f func(T) T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = f(s.value)
	for _, sub := range s.subs {
		sub.deliver(s.value)
	}
}

func (sub *subscriber[T]) deliver(v T) {
	// Drain a stale value the subscriber has not consumed yet so the newest
	// one always wins.
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- v:
	default:
	}
}

// Subscribe registers a new subscriber. The returned channel immediately
// carries the current value. Cancel must be called when the subscriber is
// done; it closes the channel.
func (s *Subject[T]) Subscribe() (<-chan T, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &subscriber[T]{ch: make(chan T, 1)}
	sub.ch <- s.value
	id := s.next
	s.next++
	s.subs[id] = sub

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub.ch)
		}
	}
	return sub.ch, cancel
}
