package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinema-hall/internal/inventory"
	"github.com/iliyamo/cinema-hall/internal/logger"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

// seatErrorStatus maps inventory errors to HTTP status codes.  Unknown
// errors are treated as internal failures.
func seatErrorStatus(err error) int {
	switch {
	case errors.Is(err, inventory.ErrSeatUnavailable):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrReservationNotFound), errors.Is(err, inventory.ErrSeatNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func seatError(c echo.Context, err error) error {
	code := seatErrorStatus(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger.Error("seat operation failed", zap.String("path", c.Request().URL.Path), zap.Error(err))
		msg = http.StatusText(code)
	}
	return c.JSON(code, ErrorResponse{Error: msg, Code: code})
}

// HTTPErrorHandler renders errors returned by handlers and middleware
// (binding, validation, routing) in the ErrorResponse shape and logs 5xx.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	if code >= 500 {
		logger.Error("server error",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = c.JSON(code, ErrorResponse{Error: message, Code: code})
	}
	if werr != nil {
		logger.Error("failed to write error response", zap.Error(werr))
	}
}
