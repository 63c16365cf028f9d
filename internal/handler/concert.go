package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/service"
)

// ConcertCatalog is implemented by *service.ConcertService.
type ConcertCatalog interface {
	List(ctx context.Context) ([]model.ConcertSummary, error)
	Detail(ctx context.Context, id string) (*model.ConcertDetail, error)
}

var _ ConcertCatalog = (*service.ConcertService)(nil)

// ConcertHandler serves the public catalog.
type ConcertHandler struct {
	catalog ConcertCatalog
}

func NewConcertHandler(catalog ConcertCatalog) *ConcertHandler {
	if catalog == nil {
		panic("nil catalog passed to NewConcertHandler")
	}
	return &ConcertHandler{catalog: catalog}
}

// List handles GET /api/concerts.
func (h *ConcertHandler) List(c echo.Context) error {
	concerts, err := h.catalog.List(c.Request().Context())
	if err != nil {
		return writeError(c, err, service.CodeConcertFetch)
	}
	return ok(c, http.StatusOK, echo.Map{"concerts": concerts})
}

// Detail handles GET /api/concerts/:id.
func (h *ConcertHandler) Detail(c echo.Context) error {
	d, err := h.catalog.Detail(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err, service.CodeConcertFetch)
	}
	return ok(c, http.StatusOK, d)
}
