package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-seat-booking/internal/logger"
	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/ratelimit"
)

// LookupGuard throttles credential guessing.  Blocked keys get 429 without
// reaching the handler.  Otherwise the handler runs and its status decides:
// 401 counts a failure, 200 clears the key, anything else is ignored.
// Store errors fail open and are logged.
func LookupGuard(l *ratelimit.Limiter, log *logger.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := clientKey(c)

			d, err := l.Allow(ctx, key)
			if err != nil {
				log.Warn("lookup guard: store read failed", "key", key, "error", err)
			}
			if !d.Allowed {
				secs := d.RetryAfterSeconds()
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				log.Info("lookup guard: blocked", "key", key, "retry_after", secs)
				return c.JSON(http.StatusTooManyRequests, model.Fail(model.ErrorBody{
					Code:       "TOO_MANY_ATTEMPTS",
					Message:    "too many failed attempts, try again later",
					RetryAfter: secs,
				}))
			}

			herr := next(c)
			status := c.Response().Status
			var he *echo.HTTPError
			if herr != nil && errors.As(herr, &he) && !c.Response().Committed {
				status = he.Code
			}

			switch status {
			case http.StatusUnauthorized:
				if e, err := l.RecordFailure(ctx, key); err != nil {
					log.Warn("lookup guard: record failure", "key", key, "error", err)
				} else {
					log.Info("lookup guard: failed attempt", "key", key, "count", e.Count)
				}
			case http.StatusOK:
				if err := l.Reset(ctx, key); err != nil {
					log.Warn("lookup guard: reset", "key", key, "error", err)
				}
			}
			return herr
		}
	}
}
