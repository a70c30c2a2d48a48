package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"StockPredictor/pkg/logger"
)

// RequestLogging writes one debug line per request; failed handlers are
// logged at warn with their error.
func RequestLogging(l *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("route", c.Path()),
				logger.String("uri", req.RequestURI),
				logger.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				logger.String("remote", c.RealIP()),
				logger.Int("status", c.Response().Status),
				logger.Duration("latency_ms", time.Since(start)),
			}
			if err != nil {
				l.Warn("http request failed", append(fields, logger.Error(err))...)
				return err
			}
			l.Debug("http request", fields...)
			return err
		}
	}
}
