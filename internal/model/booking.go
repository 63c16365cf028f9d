package model

import (
	"sort"
	"time"
)

// BookingStatus is confirmed on creation.  Cancellation exists as a value
// but never returns seats to the pool.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking records one holder's purchase of 1-4 seats for a concert.
//
// Fields:
//
//	ID           – bookings.id (UUID).
//	ConcertID    – concert the seats belong to.
//	UserName     – holder name.
//	UserPhone    – holder phone, the lookup key.
//	PasswordHash – bcrypt hash of the 4-digit password.
//	TotalPrice   – sum of the linked seat prices at creation.
//	Status       – confirmed or cancelled.
//	CreatedAt    – creation timestamp.
type Booking struct {
	ID           string
	ConcertID    string
	UserName     string
	UserPhone    string
	PasswordHash string
	TotalPrice   int64
	Status       BookingStatus
	CreatedAt    time.Time
}

// BookingSeat links a booking to one seat and records the price charged.
type BookingSeat struct {
	BookingID string
	SeatID    string
	Price     int64
}

// BookedSeat is a seat as shown on a booking.
type BookedSeat struct {
	SeatID    string  `json:"seatId"`
	Section   Section `json:"section"`
	Row       int     `json:"row"`
	Number    int     `json:"number"`
	Grade     Grade   `json:"grade"`
	Price     int64   `json:"price"`
	Formatted string  `json:"formatted,omitempty"`
}

// BookingDetail is the booking confirmation returned to clients.
type BookingDetail struct {
	BookingID     string        `json:"bookingId"`
	ConcertID     string        `json:"concertId"`
	ConcertTitle  string        `json:"concertTitle"`
	ConcertArtist string        `json:"concertArtist"`
	ConcertDate   time.Time     `json:"concertDate"`
	ConcertVenue  string        `json:"concertVenue"`
	Seats         []BookedSeat  `json:"seats"`
	UserName      string        `json:"userName"`
	UserPhone     string        `json:"userPhone"`
	TotalPrice    int64         `json:"totalPrice"`
	Status        BookingStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// FormatSeats fills Formatted labels and sorts seats by section, row and
// number.
func (d *BookingDetail) FormatSeats() {
	for i := range d.Seats {
		s := &d.Seats[i]
		s.Formatted = SeatLabel(s.Section, s.Row, s.Number)
	}
	sort.SliceStable(d.Seats, func(i, j int) bool {
		a, b := d.Seats[i], d.Seats[j]
		return SeatLess(a.Section, a.Row, a.Number, b.Section, b.Row, b.Number)
	})
}
