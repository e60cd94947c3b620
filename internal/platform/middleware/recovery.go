package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorBody is the JSON body the status server returns for a failed request.
type ErrorBody struct {
	Status    string `json:"status"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// Recovery turns a handler panic into a 500 ErrorBody tagged with the
// request id. A response that was already committed is left as is, and
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if e, ok := r.(error); ok && errors.Is(e, http.ErrAbortHandler) {
					panic(r)
				}
				rid, _ := c.Get("request_id").(string)
				logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("status handler panicked")

				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, ErrorBody{
					Status:    "error",
					Error:     "internal server error",
					RequestID: rid,
				})
			}()
			return next(c)
		}
	}
}
