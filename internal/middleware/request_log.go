package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-seat-booking/internal/logger"
)

// RequestLogger writes one line per request.  It expects echo's RequestID
// middleware to run first so the id is on the response header.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler write the response so the status is final
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			l := log.WithRequestID(res.Header().Get(echo.HeaderXRequestID))
			args := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", res.Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"bytes", res.Size,
				"remote", remoteIP(c),
			}
			switch {
			case res.Status >= 500:
				l.Error("request", args...)
			case res.Status >= 400:
				l.Warn("request", args...)
			default:
				l.Info("request", args...)
			}
			return nil
		}
	}
}
