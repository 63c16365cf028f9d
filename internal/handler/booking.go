package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/service"
	"github.com/iliyamo/concert-seat-booking/internal/ticket"
)

// BookingManager is implemented by *service.BookingService.
type BookingManager interface {
	Create(ctx context.Context, in service.CreateBookingInput) (*model.BookingDetail, error)
	Get(ctx context.Context, id string) (*model.BookingDetail, error)
	Search(ctx context.Context, phone, password string) ([]model.BookingDetail, error)
}

var _ BookingManager = (*service.BookingService)(nil)

type BookingHandler struct {
	bookings BookingManager
}

func NewBookingHandler(bookings BookingManager) *BookingHandler {
	if bookings == nil {
		panic("nil booking service passed to NewBookingHandler")
	}
	return &BookingHandler{bookings: bookings}
}

// createBookingRequest has no price field; the total is always computed
// server side.
type createBookingRequest struct {
	ConcertID string   `json:"concertId" validate:"required,uuid"`
	SeatIDs   []string `json:"seatIds" validate:"required,min=1,max=4,unique,dive,uuid"`
	UserName  string   `json:"userName" validate:"required,min=2,max=50"`
	UserPhone string   `json:"userPhone" validate:"required,mobile"`
	Password  string   `json:"password" validate:"required,pin"`
}

type searchRequest struct {
	UserPhone string `json:"userPhone" validate:"required,mobile"`
	Password  string `json:"password" validate:"required,pin"`
}

// Create handles POST /api/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, service.CodeValidation, "invalid request body", nil)
	}
	req.UserName = strings.TrimSpace(req.UserName)
	if err := c.Validate(&req); err != nil {
		return fail(c, http.StatusBadRequest, service.CodeValidation, "request validation failed", validationDetails(err))
	}

	d, err := h.bookings.Create(c.Request().Context(), service.CreateBookingInput{
		ConcertID: req.ConcertID,
		SeatIDs:   req.SeatIDs,
		UserName:  req.UserName,
		UserPhone: req.UserPhone,
		Password:  req.Password,
	})
	if err != nil {
		return writeError(c, err, service.CodeTransactionFailed)
	}
	return ok(c, http.StatusCreated, d)
}

// Get handles GET /api/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	d, err := h.bookings.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err, service.CodeBookingFetch)
	}
	return ok(c, http.StatusOK, d)
}

// Search handles POST /api/bookings/search.  The lookup guard in front of
// it counts the 401s this returns.
func (h *BookingHandler) Search(c echo.Context) error {
	var req searchRequest
	if okay, err := bindAndValidate(c, &req, service.CodeValidation); !okay {
		return err
	}
	bookings, err := h.bookings.Search(c.Request().Context(), req.UserPhone, req.Password)
	if err != nil {
		return writeError(c, err, service.CodeBookingFetch)
	}
	return ok(c, http.StatusOK, echo.Map{"bookings": bookings})
}

// Ticket handles GET /api/bookings/:id/ticket.png.  ?size= picks the edge
// length in pixels.
func (h *BookingHandler) Ticket(c echo.Context) error {
	d, err := h.bookings.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err, service.CodeBookingFetch)
	}
	size := ticket.SizeStandard
	if s := c.QueryParam("size"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			size = n
		}
	}
	png, err := ticket.PNG(*d, size)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TICKET_RENDER_ERROR", "failed to render ticket", nil)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return c.Blob(http.StatusOK, "image/png", png)
}
