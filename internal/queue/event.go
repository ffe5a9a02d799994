// Package queue carries seat events over RabbitMQ.  The HTTP layer publishes
// one event per successful reserve or cancel; the consumer appends them to an
// audit log.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// SeatEventsQueue is the durable queue seat events are routed to.
const SeatEventsQueue = "seat.events"

// Event types.
const (
	EventSeatReserved  = "seat.reserved"
	EventSeatCancelled = "seat.cancelled"
)

// SeatEvent is published after a seat changes state.  It carries enough
// information for downstream consumers to log or notify without asking the
// inventory again.
type SeatEvent struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	SeatNumber int    `json:"seat_number"`
	Holder     string `json:"holder"`
	OccurredAt string `json:"occurred_at"` // RFC3339, UTC
}

// NewSeatEvent stamps a new event with a random ID and the current UTC time.
func NewSeatEvent(eventType string, seatNumber int, holder string) SeatEvent {
	return SeatEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		SeatNumber: seatNumber,
		Holder:     holder,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
