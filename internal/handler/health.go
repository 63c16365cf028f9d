package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health handles GET /healthz.  With a database attached it also reports
// whether the database answers a ping within a second; the process is
// live either way, so the status is always 200.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := echo.Map{"status": "ok"}
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				body["database"] = "unreachable"
			} else {
				body["database"] = "ok"
			}
		}
		return ok(c, http.StatusOK, body)
	}
}
