package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-seat-booking/internal/logger"
	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/queue"
	"github.com/iliyamo/concert-seat-booking/internal/repository"
	"github.com/iliyamo/concert-seat-booking/internal/utils"
)

const publishTimeout = 5 * time.Second

// BookingService runs the booking transaction and the phone/password
// lookup.
type BookingService struct {
	concerts   ConcertStore
	seats      SeatStore
	bookings   BookingStore
	publisher  EventPublisher
	log        *logger.Logger
	bcryptCost int
	now        func() time.Time
	newID      func() string

	inflight sync.WaitGroup
}

// Option configures a BookingService.
type Option func(*BookingService)

// WithPublisher sends a booking.confirmed event after every commit.
func WithPublisher(p EventPublisher) Option { return func(s *BookingService) { s.publisher = p } }

func WithLogger(l *logger.Logger) Option { return func(s *BookingService) { s.log = l } }

// WithClock replaces time.Now, for expiry checks and created_at.
func WithClock(now func() time.Time) Option { return func(s *BookingService) { s.now = now } }

func WithBcryptCost(cost int) Option { return func(s *BookingService) { s.bcryptCost = cost } }

func NewBookingService(concerts ConcertStore, seats SeatStore, bookings BookingStore, opts ...Option) *BookingService {
	s := &BookingService{
		concerts:   concerts,
		seats:      seats,
		bookings:   bookings,
		log:        logger.Nop(),
		bcryptCost: 10,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateBookingInput is a validated booking request.  There is no total
// field; the price is always computed from the seat rows.
type CreateBookingInput struct {
	ConcertID string
	SeatIDs   []string
	UserName  string
	UserPhone string
	Password  string
}

// Create books the requested seats.  The gates run in order: concert exists
// and has not started, password hashes, every seat belongs to the concert,
// then the atomic reserve-and-insert.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*model.BookingDetail, error) {
	if n := len(in.SeatIDs); n == 0 || n > MaxSeatsPerBooking {
		return nil, newError(http.StatusBadRequest, CodeValidation, "between 1 and 4 seats must be selected")
	}
	log := s.log.With("concert_id", in.ConcertID, logger.Phone(in.UserPhone))

	concert, err := s.concerts.GetByID(ctx, in.ConcertID)
	if errors.Is(err, repository.ErrConcertNotFound) {
		return nil, newError(http.StatusNotFound, CodeConcertNotFound, "concert not found")
	}
	if err != nil {
		return nil, internalError(CodeTransactionFailed, "failed to load concert", err)
	}
	now := s.now().UTC()
	if concert.Expired(now) {
		return nil, newError(http.StatusBadRequest, CodeConcertExpired, "concert has already taken place")
	}

	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		log.Error("password hashing failed", "error", err)
		return nil, internalError(CodeCredentialProcess, "failed to process password", err)
	}

	seats, err := s.seats.FindByIDs(ctx, in.ConcertID, in.SeatIDs)
	if err != nil {
		return nil, internalError(CodeTransactionFailed, "failed to load seats", err)
	}
	if len(seats) != len(in.SeatIDs) {
		return nil, newError(http.StatusBadRequest, CodeInvalidSelection, "one or more seats are invalid for this concert")
	}
	var total int64
	for _, st := range seats {
		total += st.Price
	}

	b := &model.Booking{
		ID:           s.newID(),
		ConcertID:    concert.ID,
		UserName:     in.UserName,
		UserPhone:    in.UserPhone,
		PasswordHash: hash,
		TotalPrice:   total,
		Status:       model.BookingConfirmed,
		CreatedAt:    now,
	}
	if err := s.bookings.CreateWithSeats(ctx, b, seats); err != nil {
		var conflict *repository.SeatConflictError
		switch {
		case errors.As(err, &conflict):
			log.Info("booking lost seat race", "seats", conflict.SeatIDs)
			e := newError(http.StatusConflict, CodeSeatReserved, "one or more seats are already reserved")
			e.Details = map[string]any{"unavailableSeats": conflict.SeatIDs}
			return nil, e
		case errors.Is(err, repository.ErrDuplicateBooking):
			return nil, newError(http.StatusConflict, CodeDuplicateBooking, "this phone number already has a booking for this concert")
		default:
			log.Error("booking transaction failed", "error", err)
			return nil, internalError(CodeTransactionFailed, "booking transaction failed", err)
		}
	}

	detail := &model.BookingDetail{
		BookingID:     b.ID,
		ConcertID:     concert.ID,
		ConcertTitle:  concert.Title,
		ConcertArtist: concert.Artist,
		ConcertDate:   concert.Date,
		ConcertVenue:  concert.Venue,
		Seats:         make([]model.BookedSeat, 0, len(seats)),
		UserName:      b.UserName,
		UserPhone:     b.UserPhone,
		TotalPrice:    total,
		Status:        b.Status,
		CreatedAt:     b.CreatedAt,
	}
	for _, st := range seats {
		detail.Seats = append(detail.Seats, model.BookedSeat{
			SeatID: st.ID, Section: st.Section, Row: st.Row, Number: st.Number, Grade: st.Grade, Price: st.Price,
		})
	}
	detail.FormatSeats()
	log.Info("booking confirmed", "booking_id", b.ID, "seats", len(seats), "total", total)

	s.publish(detail)
	return detail, nil
}

// publish sends the event in the background so a slow or absent broker
// never delays the response.  Drain waits for these goroutines.
func (s *BookingService) publish(d *model.BookingDetail) {
	if s.publisher == nil {
		return
	}
	labels := make([]string, len(d.Seats))
	for i, st := range d.Seats {
		labels[i] = st.Formatted
	}
	ev := queue.BookingConfirmedEvent{
		BookingID:    d.BookingID,
		ConcertID:    d.ConcertID,
		ConcertTitle: d.ConcertTitle,
		ConcertVenue: d.ConcertVenue,
		ConcertDate:  d.ConcertDate,
		SeatLabels:   labels,
		TotalPrice:   d.TotalPrice,
		UserPhone:    logger.MaskPhone(d.UserPhone),
		ConfirmedAt:  d.CreatedAt,
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
			s.log.Warn("booking event dropped", "booking_id", ev.BookingID, "error", err)
		}
	}()
}

// Drain blocks until background event publishes have finished.
func (s *BookingService) Drain() { s.inflight.Wait() }

// Get returns one booking by id.
func (s *BookingService) Get(ctx context.Context, id string) (*model.BookingDetail, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, newError(http.StatusBadRequest, CodeValidation, "invalid booking id format")
	}
	d, err := s.bookings.GetDetail(ctx, id)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil, newError(http.StatusNotFound, CodeBookingNotFound, "booking not found")
	}
	if err != nil {
		return nil, internalError(CodeBookingFetch, "failed to load booking", err)
	}
	return d, nil
}

// Search returns every confirmed booking of a phone, newest first.
//
// All bookings under one phone are assumed to share one password, so it is
// verified once against the oldest confirmed booking.  A phone with no
// bookings yields an empty list rather than an error.
func (s *BookingService) Search(ctx context.Context, phone, password string) ([]model.BookingDetail, error) {
	creds, err := s.bookings.ListCredentialsByPhone(ctx, phone)
	if err != nil {
		return nil, internalError(CodeBookingFetch, "failed to search bookings", err)
	}
	if len(creds) == 0 {
		utils.BurnCompare(password)
		return []model.BookingDetail{}, nil
	}
	if !utils.VerifyPassword(creds[0].PasswordHash, password) {
		s.log.Info("booking lookup rejected", logger.Phone(phone))
		return nil, newError(http.StatusUnauthorized, CodeInvalidCreds, "phone number or password is incorrect")
	}
	details, err := s.bookings.ListDetailsByPhone(ctx, phone)
	if err != nil {
		return nil, internalError(CodeBookingFetch, "failed to search bookings", err)
	}
	if details == nil {
		details = []model.BookingDetail{}
	}
	return details, nil
}
