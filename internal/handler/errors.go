package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/spacebook/reservation-core/internal/service"
)

// ErrorResponder turns service errors into JSON responses.  Unknown errors
// become 500; the cause is echoed back only outside production.
type ErrorResponder struct {
	Logger      *zap.Logger
	ExposeCause bool
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errNoIdentity):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrAmountMismatch):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrConcurrencyConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// Respond writes err.  internalMsg is the client message used for 500s.
func (r ErrorResponder) Respond(c echo.Context, err error, internalMsg string) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return c.JSON(he.Code, errorBody{Message: httpMessage(he)})
	}
	status := statusFor(err)
	if status != http.StatusInternalServerError {
		return c.JSON(status, errorBody{Message: err.Error()})
	}
	if r.Logger != nil {
		r.Logger.Error(internalMsg, zap.String("path", c.Path()), zap.Error(err))
	}
	body := errorBody{Message: internalMsg}
	if r.ExposeCause {
		body.Error = err.Error()
	}
	return c.JSON(status, body)
}

func httpMessage(he *echo.HTTPError) string {
	if s, ok := he.Message.(string); ok {
		return s
	}
	return http.StatusText(he.Code)
}
