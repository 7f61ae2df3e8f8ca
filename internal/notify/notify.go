// Package notify fans a value out to registered observers.
//
// A Hub has a single writer: the component that owns the state calls Publish
// after each mutation. Observers are invoked synchronously, in subscription
// order, on the writer's goroutine.
package notify

// Hub delivers published values of type T to subscribers.
type Hub[T any] struct {
	next int
	subs []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers fn and returns a function that removes it.
func (h *Hub[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	h.next++
	id := h.next
	h.subs = append(h.subs, subscriber[T]{id: id, fn: fn})
	return func() {
		for i, s := range h.subs {
			if s.id == id {
				h.subs = append(h.subs[:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish calls every subscriber with v.
func (h *Hub[T]) Publish(v T) {
	// Copy so an observer may unsubscribe itself while being notified.
	for _, fn := range h.Subscribers() {
		fn(v)
	}
}

// Subscribers returns a copy of the registered observers in subscription
// order. Owners that guard the hub with a lock take the copy while holding
// it and call the observers after releasing it.
func (h *Hub[T]) Subscribers() []func(T) {
	fns := make([]func(T), len(h.subs))
	for i, s := range h.subs {
		fns[i] = s.fn
	}
	return fns
}

// Len returns the number of subscribers.
func (h *Hub[T]) Len() int {
	return len(h.subs)
}

// Close removes all subscribers.
func (h *Hub[T]) Close() {
	h.subs = nil
}
