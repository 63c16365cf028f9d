// Package queue carries booking events over RabbitMQ: the publisher used by
// the booking service and the consumer that keeps an audit log.
package queue

import "time"

// BookingConfirmedEvent is published once a booking transaction commits.
// It carries enough to log or notify without reading the database again.
// The phone number is masked before it leaves the service.
type BookingConfirmedEvent struct {
	BookingID    string    `json:"booking_id"`
	ConcertID    string    `json:"concert_id"`
	ConcertTitle string    `json:"concert_title"`
	ConcertVenue string    `json:"concert_venue"`
	ConcertDate  time.Time `json:"concert_date"`
	SeatLabels   []string  `json:"seats"`
	TotalPrice   int64     `json:"total_price"`
	UserPhone    string    `json:"user_phone"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
}
