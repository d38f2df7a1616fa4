// Package events carries lifecycle events emitted by the launcher
// components (launch_start, launch_exit, modpack_install_done, ...).
package events

import "sync"

// Event is a lifecycle event. Minimal and stable: name plus optional
// key/value fields.
type Event struct {
	Name   string
	Fields map[string]any
}

// Publisher receives events from lifecycle components. Implementations
// should be lightweight and non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// NopPublisher drops events; it is the default.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
