package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/labstack/echo/v4"

	"StockPredictor/pkg/logger"
)

// Recover turns a handler panic into a 500 envelope and logs the stack.
func Recover(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				rid := c.Response().Header().Get(echo.HeaderXRequestID)
				l.Error("http handler panic",
					logger.String("route", c.Path()),
					logger.String("request_id", rid),
					logger.String("panic", fmt.Sprint(r)),
					logger.String("stack", string(debug.Stack())))
				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, map[string]any{
					"status":    http.StatusInternalServerError,
					"message":   http.StatusText(http.StatusInternalServerError),
					"requestId": rid,
				})
			}()
			return next(c)
		}
	}
}
