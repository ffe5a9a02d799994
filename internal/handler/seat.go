package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-hall/internal/inventory"
	"github.com/iliyamo/cinema-hall/internal/logger"
	"github.com/iliyamo/cinema-hall/internal/metrics"
	"github.com/iliyamo/cinema-hall/internal/middleware"
	"github.com/iliyamo/cinema-hall/internal/pricing"
	"github.com/iliyamo/cinema-hall/internal/queue"
)

const publishTimeout = 2 * time.Second

// Inventory is the seat store the handler operates on.  *inventory.Hall
// implements it.
type Inventory interface {
	Capacity() int
	Available() int
	Seat(number int) (inventory.Seat, error)
	Seats() []inventory.Seat
	Reserve(number int, holder string) (inventory.Result, error)
	Cancel(number int, holder string) (inventory.Result, error)
}

// SeatHandler exposes the hall's seats over HTTP.  Reservations and
// cancellations are published as seat events after they succeed; a
// publishing failure is logged and never fails the request.
type SeatHandler struct {
	Inventory Inventory
	Price     pricing.Price
	Events    queue.Publisher
	Metrics   *metrics.Metrics
}

// NewSeatHandler wires a SeatHandler.  inv and m must be non-nil; a nil
// publisher disables events.
func NewSeatHandler(inv Inventory, price pricing.Price, pub queue.Publisher, m *metrics.Metrics) *SeatHandler {
	if inv == nil || m == nil {
		panic("nil dependency passed to NewSeatHandler")
	}
	if pub == nil {
		pub = queue.NopPublisher{}
	}
	h := &SeatHandler{Inventory: inv, Price: price, Events: pub, Metrics: m}
	m.SeatsAvailable.Set(float64(inv.Available()))
	return h
}

// SeatResponse is the public JSON form of a seat.
type SeatResponse struct {
	Number     int     `json:"number"`
	Status     string  `json:"status"`
	ReservedBy *string `json:"reserved_by,omitempty"`
}

func toSeatResponse(s inventory.Seat) SeatResponse {
	return SeatResponse{Number: s.Number, Status: string(s.Status), ReservedBy: s.ReservedBy}
}

// HolderRequest is the body of reserve and cancel calls.  The holder may
// also be sent in the X-Holder header.
type HolderRequest struct {
	Holder string `json:"holder" validate:"required,max=128"`
}

// Health handles GET /healthz.
func (h *SeatHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "ok",
		"capacity":  h.Inventory.Capacity(),
		"available": h.Inventory.Available(),
	})
}

// ListSeats handles GET /v1/seats.  The optional ?status=available|reserved
// query parameter filters the list; seats are always ordered by number.
func (h *SeatHandler) ListSeats(c echo.Context) error {
	var want inventory.Status
	switch c.QueryParam("status") {
	case "":
	case "available", string(inventory.StatusAvailable):
		want = inventory.StatusAvailable
	case "reserved", string(inventory.StatusReserved):
		want = inventory.StatusReserved
	default:
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "status must be available or reserved", Code: http.StatusBadRequest})
	}

	seats := h.Inventory.Seats()
	out := make([]SeatResponse, 0, len(seats))
	available := 0
	for _, s := range seats {
		if s.IsAvailable() {
			available++
		}
		if want != "" && s.Status != want {
			continue
		}
		out = append(out, toSeatResponse(s))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"capacity":  len(seats),
		"available": available,
		"seats":     out,
	})
}

// GetSeat handles GET /v1/seats/:number.
func (h *SeatHandler) GetSeat(c echo.Context) error {
	number, err := seatNumber(c)
	if err != nil {
		return err
	}
	s, err := h.Inventory.Seat(number)
	if err != nil {
		return seatError(c, err)
	}
	return c.JSON(http.StatusOK, toSeatResponse(s))
}

// Reserve handles POST /v1/seats/:number/reservation.  It returns 201 with
// the reserved seat and the formatted ticket price, or 409 when the seat
// does not exist or is already taken.
func (h *SeatHandler) Reserve(c echo.Context) error {
	number, err := seatNumber(c)
	if err != nil {
		return err
	}
	holder, err := bindHolder(c)
	if err != nil {
		return err
	}

	res, err := h.Inventory.Reserve(number, holder)
	h.Metrics.ObserveSeatOperation(metrics.OperationReserve, err)
	if err != nil {
		return seatError(c, err)
	}
	h.Metrics.SeatsAvailable.Dec()
	h.publish(c, queue.EventSeatReserved, number, holder)

	body := echo.Map{
		"message": res.Message,
		"seat":    toSeatResponse(res.Seat),
	}
	if price, err := h.Price.Format(); err == nil {
		body["ticket_price"] = price
	} else {
		logger.Warn("ticket price cannot be formatted", zap.String("currency", h.Price.Currency), zap.Error(err))
	}
	return c.JSON(http.StatusCreated, body)
}

// Cancel handles DELETE /v1/seats/:number/reservation.  Only the holder
// that reserved the seat can cancel; every other case is 404.
func (h *SeatHandler) Cancel(c echo.Context) error {
	number, err := seatNumber(c)
	if err != nil {
		return err
	}
	holder, err := bindHolder(c)
	if err != nil {
		return err
	}

	res, err := h.Inventory.Cancel(number, holder)
	h.Metrics.ObserveSeatOperation(metrics.OperationCancel, err)
	if err != nil {
		return seatError(c, err)
	}
	h.Metrics.SeatsAvailable.Inc()
	h.publish(c, queue.EventSeatCancelled, number, holder)

	return c.JSON(http.StatusOK, echo.Map{
		"message": res.Message,
		"seat":    toSeatResponse(res.Seat),
	})
}

func (h *SeatHandler) publish(c echo.Context, eventType string, number int, holder string) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), publishTimeout)
	defer cancel()
	ev := queue.NewSeatEvent(eventType, number, holder)
	if err := h.Events.Publish(ctx, ev); err != nil {
		h.Metrics.EventPublishFailures.Inc()
		logger.Warn("seat event not published",
			zap.String("event_id", ev.ID),
			zap.String("type", eventType),
			zap.Int("seat", number),
			zap.Error(err),
		)
	}
}

func seatNumber(c echo.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid seat number")
	}
	return n, nil
}

// bindHolder reads the holder from the JSON body, falling back to the
// X-Holder header, and validates it.
func bindHolder(c echo.Context) (string, error) {
	var req HolderRequest
	if c.Request().ContentLength > 0 {
		if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
			return "", echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}
	if req.Holder == "" {
		req.Holder = c.Request().Header.Get(middleware.HeaderHolder)
	}
	if err := c.Validate(&req); err != nil {
		return "", err
	}
	return req.Holder, nil
}
