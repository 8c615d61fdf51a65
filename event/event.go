// Package event provides ordered, synchronous event emitters.
package event

import "sync"

// DisposeFunc cancels a subscription.  It is safe to call more than
// once.
type DisposeFunc func()

// Dispose calls f.
func (f DisposeFunc) Dispose() {
	if f != nil {
		f()
	}
}

// Emitter broadcasts values of type T to its listeners.  Listeners are
// invoked synchronously, in subscription order, on the goroutine that
// calls Fire.  Callers that fire from several goroutines must serialize
// calls to Fire themselves if they need a total order.
//
// The zero value is ready to use.
type Emitter[T any] struct {
	mu        sync.RWMutex
	next      uint64
	listeners []listener[T]
	disposed  bool
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// Event subscribes fn to the emitter.  Subscribing to a disposed
// emitter is a no-op.
func (e *Emitter[T]) Event(fn func(T)) DisposeFunc {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return func() {}
	}

	id := e.next
	e.next++
	e.listeners = append(e.listeners, listener[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Emitter[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Fire delivers v to every listener.
func (e *Emitter[T]) Fire(v T) {
	e.mu.RLock()
	ls := e.listeners
	e.mu.RUnlock()

	for _, l := range ls {
		l.fn(v)
	}
}

// Len returns the number of listeners.
func (e *Emitter[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.listeners)
}

// Dispose removes all listeners.  Subsequent calls to Fire are no-ops.
func (e *Emitter[T]) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.disposed = true
	e.listeners = nil
}
