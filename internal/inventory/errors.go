package inventory

// Callers distinguish failures with errors.Is.  ErrSeatUnavailable and
// ErrReservationNotFound are the only kinds returned by Reserve and Cancel;
// ErrInvalidHolder is wrapped inside them when the holder is empty.

import "errors"

// ErrSeatUnavailable is returned by Reserve when the seat does not exist or
// is already reserved.  Handlers should translate this into HTTP 409.
var ErrSeatUnavailable = errors.New("seat is either unavailable or already reserved")

// ErrReservationNotFound is returned by Cancel when the seat does not exist,
// is not reserved, or is reserved by another holder.  Handlers should
// translate this into HTTP 404.
var ErrReservationNotFound = errors.New("seat reservation does not exist or unauthorized")

// ErrSeatNotFound is returned by read-only lookups for numbers outside 1..capacity.
var ErrSeatNotFound = errors.New("seat not found")

// ErrInvalidHolder marks an empty holder identifier.
var ErrInvalidHolder = errors.New("holder must not be empty")
