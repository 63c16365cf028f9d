package service

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-seat-booking/internal/model"
)

// SeatService serves the seat map and the advisory availability check.
type SeatService struct {
	concerts ConcertStore
	seats    SeatStore
}

func NewSeatService(concerts ConcertStore, seats SeatStore) *SeatService {
	return &SeatService{concerts: concerts, seats: seats}
}

// AvailabilityResult answers a check.  UnavailableSeats is set only when
// Available is false.
type AvailabilityResult struct {
	Available        bool     `json:"available"`
	UnavailableSeats []string `json:"unavailableSeats,omitempty"`
}

func validConcertID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *SeatService) requireConcert(ctx context.Context, concertID string) error {
	if !validConcertID(concertID) {
		return newError(http.StatusBadRequest, CodeSeatInvalidConcert, "invalid concert id format")
	}
	ok, err := s.concerts.Exists(ctx, concertID)
	if err != nil {
		return internalError(CodeSeatFetch, "failed to load concert", err)
	}
	if !ok {
		return newError(http.StatusNotFound, CodeSeatInvalidConcert, "concert not found")
	}
	return nil
}

// ListSeats returns the seat map sorted by section, row and number.
func (s *SeatService) ListSeats(ctx context.Context, concertID string) ([]model.Seat, error) {
	if err := s.requireConcert(ctx, concertID); err != nil {
		return nil, err
	}
	seats, err := s.seats.ListByConcert(ctx, concertID)
	if err != nil {
		return nil, internalError(CodeSeatFetch, "failed to load seats", err)
	}
	if len(seats) == 0 {
		return nil, newError(http.StatusNotFound, CodeSeatNotFound, "no seats found for this concert")
	}
	model.SortSeats(seats)
	return seats, nil
}

// CheckAvailability reports whether every requested seat is currently
// available.  It reads without locking; the booking transaction makes the
// real decision.
func (s *SeatService) CheckAvailability(ctx context.Context, concertID string, seatIDs []string) (*AvailabilityResult, error) {
	if len(seatIDs) > MaxSeatsPerBooking {
		return nil, newError(http.StatusBadRequest, CodeSeatMaxExceeded, "at most 4 seats can be selected")
	}
	if len(seatIDs) == 0 {
		return nil, newError(http.StatusBadRequest, CodeSeatValidation, "at least one seat is required")
	}
	if err := s.requireConcert(ctx, concertID); err != nil {
		return nil, err
	}

	seats, err := s.seats.FindByIDs(ctx, concertID, seatIDs)
	if err != nil {
		return nil, internalError(CodeSeatFetch, "failed to check seats", err)
	}
	if len(seats) == 0 {
		return nil, newError(http.StatusNotFound, CodeSeatNotFound, "seats not found")
	}
	if len(seats) != len(seatIDs) {
		return nil, newError(http.StatusNotFound, CodeSeatNotFound, "some seats not found")
	}

	status := make(map[string]model.SeatStatus, len(seats))
	for _, st := range seats {
		status[st.ID] = st.Status
	}
	res := &AvailabilityResult{Available: true}
	for _, id := range seatIDs {
		if status[id] != model.SeatAvailable {
			res.Available = false
			res.UnavailableSeats = append(res.UnavailableSeats, id)
		}
	}
	return res, nil
}
