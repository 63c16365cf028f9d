package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/concert-seat-booking/internal/config"
	"github.com/iliyamo/concert-seat-booking/internal/handler"
	"github.com/iliyamo/concert-seat-booking/internal/logger"
	"github.com/iliyamo/concert-seat-booking/internal/middleware"
	"github.com/iliyamo/concert-seat-booking/internal/ratelimit"
)

// Deps carries everything the routes need.  Redis may be nil, in which case
// the token bucket and the response cache pass requests through.
type Deps struct {
	DB       handler.Pinger
	Concerts *handler.ConcertHandler
	Seats    *handler.SeatHandler
	Bookings *handler.BookingHandler

	Lookup    *ratelimit.Limiter
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Log       *logger.Logger
}

// RegisterRoutes mounts /healthz and the /api surface.
//
//	GET  /api/concerts                  cached
//	GET  /api/concerts/:id              cached
//	GET  /api/concerts/:id/seats        never cached, clients poll it
//	POST /api/seats/check-availability
//	POST /api/bookings
//	POST /api/bookings/search           behind the lookup guard
//	GET  /api/bookings/:id
//	GET  /api/bookings/:id/ticket.png
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))

	api := e.Group("/api")
	api.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log))

	cache := middleware.NewRedisCache(d.Cache, d.Redis, d.Log)
	api.GET("/concerts", d.Concerts.List, cache)
	api.GET("/concerts/:id", d.Concerts.Detail, cache)
	api.GET("/concerts/:id/seats", d.Seats.ListByConcert)

	api.POST("/seats/check-availability", d.Seats.CheckAvailability)

	api.POST("/bookings", d.Bookings.Create)
	api.POST("/bookings/search", d.Bookings.Search, middleware.LookupGuard(d.Lookup, d.Log))
	api.GET("/bookings/:id", d.Bookings.Get)
	api.GET("/bookings/:id/ticket.png", d.Bookings.Ticket)
}
