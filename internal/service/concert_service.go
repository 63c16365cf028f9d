package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/repository"
)

// ConcertService serves the catalog.
type ConcertService struct {
	concerts ConcertStore
	now      func() time.Time
}

func NewConcertService(concerts ConcertStore) *ConcertService {
	return &ConcertService{concerts: concerts, now: time.Now}
}

func posterURL(c model.Concert) string {
	if c.PosterImage != nil && *c.PosterImage != "" {
		return *c.PosterImage
	}
	return fmt.Sprintf(model.PosterFallbackURL, c.ID)
}

func summarize(c model.Concert, total, available int) model.ConcertSummary {
	return model.ConcertSummary{
		ID:             c.ID,
		Title:          c.Title,
		Artist:         c.Artist,
		Venue:          c.Venue,
		Date:           c.Date,
		PosterImage:    posterURL(c),
		Description:    c.Description,
		TotalSeats:     total,
		AvailableSeats: available,
	}
}

// List returns concerts that have not started yet, soonest first.
func (s *ConcertService) List(ctx context.Context) ([]model.ConcertSummary, error) {
	rows, err := s.concerts.ListUpcoming(ctx, s.now().UTC())
	if err != nil {
		return nil, internalError(CodeConcertFetch, "failed to load concerts", err)
	}
	out := make([]model.ConcertSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, summarize(r.Concert, r.TotalSeats, r.AvailableSeats))
	}
	return out, nil
}

// Detail returns one concert with its per-grade breakdown.
func (s *ConcertService) Detail(ctx context.Context, id string) (*model.ConcertDetail, error) {
	if !validConcertID(id) {
		return nil, newError(http.StatusBadRequest, CodeValidation, "invalid concert id format")
	}
	c, err := s.concerts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrConcertNotFound) {
		return nil, newError(http.StatusNotFound, CodeConcertNotFound, "concert not found")
	}
	if err != nil {
		return nil, internalError(CodeConcertFetch, "failed to load concert", err)
	}
	grades, err := s.concerts.GradeBreakdown(ctx, id)
	if err != nil {
		return nil, internalError(CodeConcertFetch, "failed to load seat grades", err)
	}
	var total, available int
	for _, g := range grades {
		total += g.TotalSeats
		available += g.AvailableSeats
	}
	return &model.ConcertDetail{
		ConcertSummary: summarize(*c, total, available),
		Grades:         grades,
	}, nil
}
