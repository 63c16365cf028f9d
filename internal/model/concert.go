package model

import (
	"math"
	"time"
)

// PosterFallbackURL is used when a concert has no poster image.  The seed
// keeps the placeholder stable per concert.
const PosterFallbackURL = "https://picsum.photos/seed/%s/400/600"

// Concert is a single performance that seats are sold for.
type Concert struct {
	ID          string    // concerts.id (UUID)
	Title       string    // concerts.title
	Artist      string    // concerts.artist
	Venue       string    // concerts.venue
	Date        time.Time // concerts.date (UTC)
	PosterImage *string   // concerts.poster_image (nullable)
	Description *string   // concerts.description (nullable)
	CreatedAt   time.Time // concerts.created_at
}

// Expired reports whether the concert date has passed at now.
func (c Concert) Expired(now time.Time) bool { return c.Date.Before(now) }

// ConcertSummary is a concert with its aggregated seat counts, as listed
// on the catalog page.
type ConcertSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Artist         string    `json:"artist"`
	Venue          string    `json:"venue"`
	Date           time.Time `json:"date"`
	PosterImage    string    `json:"posterImage"`
	Description    *string   `json:"description,omitempty"`
	TotalSeats     int       `json:"totalSeats"`
	AvailableSeats int       `json:"availableSeats"`
}

// GradeAvailability is the per-grade breakdown shown on a concert page.
// AvailabilityRate is a percentage rounded to two decimals.
type GradeAvailability struct {
	Grade            Grade   `json:"grade"`
	Price            int64   `json:"price"`
	TotalSeats       int     `json:"totalSeats"`
	AvailableSeats   int     `json:"availableSeats"`
	AvailabilityRate float64 `json:"availabilityRate"`
}

// ConcertDetail extends the summary with the grade breakdown.
type ConcertDetail struct {
	ConcertSummary
	Grades []GradeAvailability `json:"grades"`
}

// AvailabilityRate returns available/total as a percentage rounded to two
// decimals; zero when total is zero.
func AvailabilityRate(available, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(available)/float64(total)*100*100) / 100
}
