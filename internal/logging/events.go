package logging

import (
	"fmt"
	"sync"
	"time"
)

// EventKind classifies a lifecycle event.
type EventKind string

const (
	EventSpawn         EventKind = "spawn"
	EventExit          EventKind = "exit"
	EventRespawn       EventKind = "respawn"
	EventLaunchRetry   EventKind = "launch_retry"
	EventStopRequested EventKind = "stop"
)

// Event is a single load-unit lifecycle event retained for display.
type Event struct {
	Time   time.Time
	Unit   int
	Kind   EventKind
	Detail string
}

// String formats the event for the TUI event feed.
func (e Event) String() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s unit=%d %s", e.Time.Format("15:04:05"), e.Unit, e.Kind)
	}
	return fmt.Sprintf("%s unit=%d %s %s", e.Time.Format("15:04:05"), e.Unit, e.Kind, e.Detail)
}

// EventRing is a fixed-capacity ring of recent lifecycle events.
// Writers never block and never grow the buffer; the oldest entry is
// overwritten once capacity is reached. Safe for concurrent use.
type EventRing struct {
	mu     sync.Mutex
	events []Event
	next   int
	filled bool
}

// NewEventRing creates a ring holding at most capacity events.
func NewEventRing(capacity int) *EventRing {
	if capacity <= 0 {
		capacity = 64
	}
	return &EventRing{
		events: make([]Event, capacity),
	}
}

// Append records an event, evicting the oldest if the ring is full.
func (r *EventRing) Append(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[r.next] = e
	r.next++
	if r.next == len(r.events) {
		r.next = 0
		r.filled = true
	}
}

// Recent returns up to n events, oldest first.
func (r *EventRing) Recent(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.filled {
		size = len(r.events)
	}
	if n > size {
		n = size
	}
	if n <= 0 {
		return nil
	}

	out := make([]Event, 0, n)
	start := r.next - n
	if start < 0 {
		start += len(r.events)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.events[(start+i)%len(r.events)])
	}
	return out
}

// Len reports how many events are currently retained.
func (r *EventRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.filled {
		return len(r.events)
	}
	return r.next
}
