package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/service"
)

// SeatInventory is implemented by *service.SeatService.
type SeatInventory interface {
	ListSeats(ctx context.Context, concertID string) ([]model.Seat, error)
	CheckAvailability(ctx context.Context, concertID string, seatIDs []string) (*service.AvailabilityResult, error)
}

var _ SeatInventory = (*service.SeatService)(nil)

type SeatHandler struct {
	seats SeatInventory
}

func NewSeatHandler(seats SeatInventory) *SeatHandler {
	if seats == nil {
		panic("nil inventory passed to NewSeatHandler")
	}
	return &SeatHandler{seats: seats}
}

// ListByConcert handles GET /api/concerts/:id/seats.
func (h *SeatHandler) ListByConcert(c echo.Context) error {
	seats, err := h.seats.ListSeats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err, service.CodeSeatFetch)
	}
	return ok(c, http.StatusOK, echo.Map{"seats": seats})
}

// checkAvailabilityRequest leaves concertId unchecked here; the service
// reports a malformed id as SEAT_INVALID_CONCERT.
type checkAvailabilityRequest struct {
	ConcertID string   `json:"concertId" validate:"required"`
	SeatIDs   []string `json:"seatIds" validate:"required,min=1,max=4,unique,dive,uuid"`
}

// CheckAvailability handles POST /api/seats/check-availability.  A list
// longer than four is rejected before the validator so it gets its own
// code.
func (h *SeatHandler) CheckAvailability(c echo.Context) error {
	var req checkAvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, service.CodeSeatValidation, "invalid request body", nil)
	}
	if len(req.SeatIDs) > service.MaxSeatsPerBooking {
		return fail(c, http.StatusBadRequest, service.CodeSeatMaxExceeded, "at most 4 seats can be selected", nil)
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, service.CodeSeatValidation, "request validation failed", validationDetails(err))
	}

	res, err := h.seats.CheckAvailability(c.Request().Context(), req.ConcertID, req.SeatIDs)
	if err != nil {
		return writeError(c, err, service.CodeSeatFetch)
	}
	return ok(c, http.StatusOK, res)
}
