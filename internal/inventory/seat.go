package inventory

// Status describes whether a seat can currently be booked.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusReserved  Status = "RESERVED"
)

// Seat is a snapshot of a single bookable seat in the hall.  Number is the
// 1-based identifier and never changes.  ReservedBy is set if and only if
// Status is StatusReserved.
//
// Fields:
//
//	Number     – position of the seat in the hall (1..capacity).
//	Status     – AVAILABLE or RESERVED.
//	ReservedBy – holder of the reservation (nil when available).
type Seat struct {
	Number     int
	Status     Status
	ReservedBy *string
}

// IsAvailable reports whether the seat can be reserved.
func (s Seat) IsAvailable() bool {
	return s.Status == StatusAvailable
}

// Holder returns the reservation holder or an empty string.
func (s Seat) Holder() string {
	if s.ReservedBy == nil {
		return ""
	}
	return *s.ReservedBy
}
