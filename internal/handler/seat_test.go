package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-hall/internal/inventory"
	"github.com/iliyamo/cinema-hall/internal/metrics"
	"github.com/iliyamo/cinema-hall/internal/pricing"
	"github.com/iliyamo/cinema-hall/internal/queue"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.SeatEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.SeatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

type fixture struct {
	e       *echo.Echo
	hall    *inventory.Hall
	pub     *recordingPublisher
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	hall, err := inventory.NewHall(capacity)
	require.NoError(t, err)
	pub := &recordingPublisher{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	h := NewSeatHandler(hall, pricing.Price{Amount: 10, Currency: "USD"}, pub, m)

	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = HTTPErrorHandler
	e.GET("/healthz", h.Health)
	e.GET("/v1/seats", h.ListSeats)
	e.GET("/v1/seats/:number", h.GetSeat)
	e.POST("/v1/seats/:number/reservation", h.Reserve)
	e.DELETE("/v1/seats/:number/reservation", h.Cancel)
	return &fixture{e: e, hall: hall, pub: pub, metrics: m}
}

func (f *fixture) do(method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) reserve(n, holder string) *httptest.ResponseRecorder {
	return f.do(http.MethodPost, "/v1/seats/"+n+"/reservation", `{"holder":"`+holder+`"}`, nil)
}

func (f *fixture) cancel(n, holder string) *httptest.ResponseRecorder {
	return f.do(http.MethodDelete, "/v1/seats/"+n+"/reservation", `{"holder":"`+holder+`"}`, nil)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSeatHandler_Reserve(t *testing.T) {
	t.Run("reserves an available seat", func(t *testing.T) {
		f := newFixture(t, 5)

		rec := f.reserve("3", "A")

		require.Equal(t, http.StatusCreated, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "Seat reserved successfully!", body["message"])
		assert.Equal(t, "$10.00", body["ticket_price"])
		seat := body["seat"].(map[string]interface{})
		assert.Equal(t, float64(3), seat["number"])
		assert.Equal(t, "RESERVED", seat["status"])
		assert.Equal(t, "A", seat["reserved_by"])

		require.Len(t, f.pub.events, 1)
		assert.Equal(t, queue.EventSeatReserved, f.pub.events[0].Type)
		assert.Equal(t, 3, f.pub.events[0].SeatNumber)
		assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.SeatsAvailable))
	})

	t.Run("already reserved seat is a conflict", func(t *testing.T) {
		f := newFixture(t, 5)
		require.Equal(t, http.StatusCreated, f.reserve("3", "A").Code)

		rec := f.reserve("3", "B")

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, inventory.ErrSeatUnavailable.Error(), decode(t, rec)["error"])
		assert.Len(t, f.pub.events, 1)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ReservationsTotal.WithLabelValues(metrics.OperationReserve, metrics.OutcomeRejected)))
	})

	t.Run("out of range seat is a conflict", func(t *testing.T) {
		f := newFixture(t, 5)
		for _, n := range []string{"0", "6", "-1"} {
			assert.Equal(t, http.StatusConflict, f.reserve(n, "A").Code, n)
		}
	})

	t.Run("holder header is accepted", func(t *testing.T) {
		f := newFixture(t, 5)

		rec := f.do(http.MethodPost, "/v1/seats/1/reservation", "", map[string]string{"X-Holder": "John Doe"})

		require.Equal(t, http.StatusCreated, rec.Code)
		s, err := f.hall.Seat(1)
		require.NoError(t, err)
		assert.Equal(t, "John Doe", s.Holder())
	})

	t.Run("bad input is rejected", func(t *testing.T) {
		f := newFixture(t, 5)

		assert.Equal(t, http.StatusBadRequest, f.reserve("abc", "A").Code)
		assert.Equal(t, http.StatusBadRequest, f.reserve("1", "").Code)
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/v1/seats/1/reservation", "{", nil).Code)
		assert.Equal(t, 5, f.hall.Available())
	})

	t.Run("publisher failure does not fail the request", func(t *testing.T) {
		f := newFixture(t, 5)
		f.pub.err = errors.New("broker down")

		rec := f.reserve("2", "A")

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EventPublishFailures))
	})
}

func TestSeatHandler_Cancel(t *testing.T) {
	t.Run("holder cancels", func(t *testing.T) {
		f := newFixture(t, 5)
		require.Equal(t, http.StatusCreated, f.reserve("4", "A").Code)

		rec := f.cancel("4", "A")

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "Reservation canceled successfully!", body["message"])
		seat := body["seat"].(map[string]interface{})
		assert.Equal(t, "AVAILABLE", seat["status"])
		assert.NotContains(t, seat, "reserved_by")
		require.Len(t, f.pub.events, 2)
		assert.Equal(t, queue.EventSeatCancelled, f.pub.events[1].Type)
		assert.Equal(t, 5.0, testutil.ToFloat64(f.metrics.SeatsAvailable))
	})

	t.Run("other holder gets not found", func(t *testing.T) {
		f := newFixture(t, 5)
		require.Equal(t, http.StatusCreated, f.reserve("4", "A").Code)

		rec := f.cancel("4", "B")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, inventory.ErrReservationNotFound.Error(), decode(t, rec)["error"])
	})

	t.Run("available and missing seats get not found", func(t *testing.T) {
		f := newFixture(t, 5)
		assert.Equal(t, http.StatusNotFound, f.cancel("1", "A").Code)
		assert.Equal(t, http.StatusNotFound, f.cancel("9", "A").Code)
	})
}

func TestSeatHandler_Scenario(t *testing.T) {
	f := newFixture(t, 5)

	assert.Equal(t, http.StatusCreated, f.reserve("3", "A").Code)
	assert.Equal(t, http.StatusConflict, f.reserve("3", "B").Code)
	assert.Equal(t, http.StatusNotFound, f.cancel("3", "B").Code)
	assert.Equal(t, http.StatusOK, f.cancel("3", "A").Code)
	assert.Equal(t, http.StatusCreated, f.reserve("3", "B").Code)
}

func TestSeatHandler_ListSeats(t *testing.T) {
	f := newFixture(t, 3)
	require.Equal(t, http.StatusCreated, f.reserve("2", "A").Code)

	t.Run("all seats", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/seats", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, float64(3), body["capacity"])
		assert.Equal(t, float64(2), body["available"])
		assert.Len(t, body["seats"], 3)
	})

	t.Run("filtered by status", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/seats?status=reserved", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		seats := decode(t, rec)["seats"].([]interface{})
		require.Len(t, seats, 1)
		assert.Equal(t, float64(2), seats[0].(map[string]interface{})["number"])
	})

	t.Run("unknown status", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/v1/seats?status=sold", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSeatHandler_GetSeat(t *testing.T) {
	f := newFixture(t, 3)

	rec := f.do(http.MethodGet, "/v1/seats/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "AVAILABLE", decode(t, rec)["status"])

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/v1/seats/4", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/v1/seats/x", "", nil).Code)
}

func TestSeatHandler_Health(t *testing.T) {
	f := newFixture(t, 3)

	rec := f.do(http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(3), body["capacity"])
}

func TestNewSeatHandler_Panics(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	assert.Panics(t, func() { NewSeatHandler(nil, pricing.Price{}, nil, m) })
}

func TestSeatErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, seatErrorStatus(inventory.ErrSeatUnavailable))
	assert.Equal(t, http.StatusNotFound, seatErrorStatus(inventory.ErrReservationNotFound))
	assert.Equal(t, http.StatusNotFound, seatErrorStatus(inventory.ErrSeatNotFound))
	assert.Equal(t, http.StatusInternalServerError, seatErrorStatus(errors.New("boom")))
}

func TestSeatHandler_AvailableGaugeUnderConcurrency(t *testing.T) {
	f := newFixture(t, 40)

	var wg sync.WaitGroup
	for i := 1; i <= 40; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			seat := fmt.Sprint(n)
			f.reserve(seat, "A")
			if n%2 == 0 {
				f.cancel(seat, "A")
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, f.hall.Available())
	assert.Equal(t, 20.0, testutil.ToFloat64(f.metrics.SeatsAvailable))
}

func TestSeatHandler_UnresponsiveBrokerDoesNotStallReserve(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	var conns []net.Conn
	var mu sync.Mutex
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})

	f := newFixture(t, 5)
	pub := queue.NewAMQPPublisher("amqp://guest:guest@" + ln.Addr().String() + "/")
	defer pub.Close()
	h := NewSeatHandler(f.hall, pricing.Price{Amount: 10, Currency: "USD"}, pub, f.metrics)
	f.e.POST("/v2/seats/:number/reservation", h.Reserve)

	start := time.Now()
	rec := f.do(http.MethodPost, "/v2/seats/1/reservation", `{"holder":"A"}`, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Less(t, time.Since(start), publishTimeout+time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.EventPublishFailures))
}
