// Package eventbus decouples reservation lifecycle mutations from the
// reconciliation sweeper with a small in-process queue.
package eventbus

import (
	"log"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a bus event.
type Kind string

const (
	// KindReservationsChanged means the active-reservation set of a lab
	// changed and its computers need reconciling.
	KindReservationsChanged Kind = "reservations_changed"
)

// Event is a reconciliation trigger for one lab.
type Event struct {
	ID    uuid.UUID
	Kind  Kind
	LabID int64
	At    time.Time
}

// Bus is a buffered in-process event queue with a single consumer.
type Bus struct {
	events chan Event
}

// New creates a bus with the given buffer size.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{events: make(chan Event, buffer)}
}

// Publish enqueues the event without blocking. A full buffer drops the
// event: the periodic sweep is the safety net, so a dropped trigger only
// delays reconciliation by one cycle. Returns whether the event was
// accepted.
func (b *Bus) Publish(e Event) bool {
	select {
	case b.events <- e:
		return true
	default:
		log.Printf("eventbus: buffer full, dropping %s event for lab %d", e.Kind, e.LabID)
		return false
	}
}

// ReservationsChanged publishes a reconciliation trigger for the lab.
func (b *Bus) ReservationsChanged(labID int64) bool {
	return b.Publish(Event{
		ID:    uuid.New(),
		Kind:  KindReservationsChanged,
		LabID: labID,
		At:    time.Now().UTC(),
	})
}

// Events returns the consumer channel.
func (b *Bus) Events() <-chan Event {
	return b.events
}
