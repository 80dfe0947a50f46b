package cache

import (
	"sync"
)

// Listener is called with the new state after every dispatched event.
type Listener func(State)

// Container holds the current State and serializes events into it.
type Container struct {
	mu        sync.RWMutex
	state     State
	listeners []Listener
}

// NewContainer returns a container holding initial.
func NewContainer(initial State) *Container {
	if initial.Contacts == nil {
		initial = Reduce(NewState(), Restored{State: initial})
	}
	return &Container{state: initial}
}

// State returns the current state. Callers must treat it as read-only.
func (c *Container) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Dispatch reduces ev into the current state and notifies listeners.
func (c *Container) Dispatch(ev Event) State {
	c.mu.Lock()
	next := Reduce(c.state, ev)
	c.state = next
	listeners := append([]Listener(nil), c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(next)
	}
	return next
}

// Subscribe registers l for state changes.
func (c *Container) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}
