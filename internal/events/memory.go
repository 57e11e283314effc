package events

import (
	"context"
	"sync"
)

// MemoryPublisher stores published events for inspection in tests.
type MemoryPublisher struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemory returns an empty MemoryPublisher.
func NewMemory() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish records the event.
func (p *MemoryPublisher) Publish(_ context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (p *MemoryPublisher) Events() []Event {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}
