package service

import (
	"context"
	"time"

	"github.com/iliyamo/concert-seat-booking/internal/model"
	"github.com/iliyamo/concert-seat-booking/internal/queue"
	"github.com/iliyamo/concert-seat-booking/internal/repository"
)

// ConcertStore is implemented by *repository.ConcertRepo.
type ConcertStore interface {
	GetByID(ctx context.Context, id string) (*model.Concert, error)
	Exists(ctx context.Context, id string) (bool, error)
	ListUpcoming(ctx context.Context, now time.Time) ([]repository.ConcertCounts, error)
	GradeBreakdown(ctx context.Context, concertID string) ([]model.GradeAvailability, error)
}

// SeatStore is implemented by *repository.SeatRepo.
type SeatStore interface {
	ListByConcert(ctx context.Context, concertID string) ([]model.Seat, error)
	FindByIDs(ctx context.Context, concertID string, ids []string) ([]model.Seat, error)
}

// BookingStore is implemented by *repository.BookingRepo.  CreateWithSeats
// must be atomic: all seats reserved and the booking written, or nothing.
type BookingStore interface {
	CreateWithSeats(ctx context.Context, b *model.Booking, seats []model.Seat) error
	GetDetail(ctx context.Context, id string) (*model.BookingDetail, error)
	ListCredentialsByPhone(ctx context.Context, phone string) ([]repository.Credential, error)
	ListDetailsByPhone(ctx context.Context, phone string) ([]model.BookingDetail, error)
}

// EventPublisher is implemented by *queue.Publisher.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

var (
	_ ConcertStore   = (*repository.ConcertRepo)(nil)
	_ SeatStore      = (*repository.SeatRepo)(nil)
	_ BookingStore   = (*repository.BookingRepo)(nil)
	_ EventPublisher = (*queue.Publisher)(nil)
)
