// Package inventory owns the fixed set of seats in a cinema hall and enforces
// that a seat is held by at most one holder at a time.
package inventory

import (
	"fmt"
	"sync"
)

// DefaultCapacity is the number of seats in a hall when none is configured.
const DefaultCapacity = 100

const (
	msgReserved = "Seat reserved successfully!"
	msgCanceled = "Reservation canceled successfully!"
)

// Result is returned by successful mutations.  Seat is the state of the seat
// immediately after the operation.
type Result struct {
	Message string
	Seat    Seat
}

// slot guards a single seat.  Each seat has its own mutex so operations on
// different seats never contend.
type slot struct {
	mu     sync.Mutex
	number int
	status Status
	holder string
}

func (s *slot) snapshot() Seat {
	seat := Seat{Number: s.number, Status: s.status}
	if s.status == StatusReserved {
		h := s.holder
		seat.ReservedBy = &h
	}
	return seat
}

// Hall is an in-memory seat inventory with seats numbered 1..capacity.  The
// slice is built once in NewHall and never resized.
type Hall struct {
	slots []*slot
}

// NewHall creates a hall with capacity seats, all available.  A non-positive
// capacity is rejected.
func NewHall(capacity int) (*Hall, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid hall capacity %d", capacity)
	}
	slots := make([]*slot, capacity)
	for i := range slots {
		slots[i] = &slot{number: i + 1, status: StatusAvailable}
	}
	return &Hall{slots: slots}, nil
}

// Capacity returns the number of seats in the hall.
func (h *Hall) Capacity() int { return len(h.slots) }

// lookup indexes directly into the ordered slots; numbers outside 1..N miss.
func (h *Hall) lookup(number int) (*slot, bool) {
	if number < 1 || number > len(h.slots) {
		return nil, false
	}
	return h.slots[number-1], true
}

// Reserve marks the seat as reserved by holder.  It fails with
// ErrSeatUnavailable when the seat does not exist or is already reserved,
// regardless of who holds it.  On failure nothing changes.
func (h *Hall) Reserve(number int, holder string) (Result, error) {
	if holder == "" {
		return Result{}, fmt.Errorf("%w: %w", ErrSeatUnavailable, ErrInvalidHolder)
	}
	s, ok := h.lookup(number)
	if !ok {
		return Result{}, ErrSeatUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusAvailable {
		return Result{}, ErrSeatUnavailable
	}
	s.status = StatusReserved
	s.holder = holder
	return Result{Message: msgReserved, Seat: s.snapshot()}, nil
}

// Cancel releases a reservation owned by holder.  It fails with
// ErrReservationNotFound when the seat does not exist, is not reserved or is
// reserved by someone else.  The holder comparison is plain string equality.
func (h *Hall) Cancel(number int, holder string) (Result, error) {
	if holder == "" {
		return Result{}, fmt.Errorf("%w: %w", ErrReservationNotFound, ErrInvalidHolder)
	}
	s, ok := h.lookup(number)
	if !ok {
		return Result{}, ErrReservationNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusReserved || s.holder != holder {
		return Result{}, ErrReservationNotFound
	}
	s.status = StatusAvailable
	s.holder = ""
	return Result{Message: msgCanceled, Seat: s.snapshot()}, nil
}

// Seat returns a snapshot of one seat.
func (h *Hall) Seat(number int) (Seat, error) {
	s, ok := h.lookup(number)
	if !ok {
		return Seat{}, ErrSeatNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// Seats returns a snapshot of every seat ordered by number.  Each seat is
// read under its own lock, so the list is consistent per seat but not across
// the whole hall.
func (h *Hall) Seats() []Seat {
	out := make([]Seat, 0, len(h.slots))
	for _, s := range h.slots {
		s.mu.Lock()
		out = append(out, s.snapshot())
		s.mu.Unlock()
	}
	return out
}

// Available counts the seats that can currently be reserved.
func (h *Hall) Available() int {
	n := 0
	for _, s := range h.slots {
		s.mu.Lock()
		if s.status == StatusAvailable {
			n++
		}
		s.mu.Unlock()
	}
	return n
}
