package model

import (
	"fmt"
	"sort"
	"time"
)

// Section is one of the four fixed seating blocks.
type Section string

const (
	SectionA Section = "A"
	SectionB Section = "B"
	SectionC Section = "C"
	SectionD Section = "D"
)

// Sections lists the blocks in display order.
var Sections = []Section{SectionA, SectionB, SectionC, SectionD}

// Grade is a seat tier.  Each grade covers a contiguous row range and
// shares one price per concert.
type Grade string

const (
	GradeSpecial  Grade = "Special"
	GradePremium  Grade = "Premium"
	GradeAdvanced Grade = "Advanced"
	GradeRegular  Grade = "Regular"
)

// Grades lists the tiers from the front of the hall to the back.
var Grades = []Grade{GradeSpecial, GradePremium, GradeAdvanced, GradeRegular}

// Grid dimensions.
const (
	RowsPerSection = 20
	SeatsPerRow    = 4
)

// GradeForRow maps a row (1-20) onto its grade.  ok is false for rows
// outside the grid.
func GradeForRow(row int) (g Grade, ok bool) {
	switch {
	case row >= 1 && row <= 3:
		return GradeSpecial, true
	case row >= 4 && row <= 7:
		return GradePremium, true
	case row >= 8 && row <= 15:
		return GradeAdvanced, true
	case row >= 16 && row <= RowsPerSection:
		return GradeRegular, true
	}
	return "", false
}

// SeatStatus is the reservation state of a seat.  The only transition is
// available -> reserved.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatReserved  SeatStatus = "reserved"
)

// Seat is one position in a concert's seat map.
//
// Fields:
//
//	ID        – seats.id (UUID).
//	ConcertID – owning concert.
//	Section   – A, B, C or D.
//	Row       – 1 to 20.
//	Number    – 1 to 4 within the row.
//	Grade     – implied by Row, see GradeForRow.
//	Price     – positive, fixed per grade per concert.
//	Status    – available or reserved.
type Seat struct {
	ID        string     `json:"id"`
	ConcertID string     `json:"concertId"`
	Section   Section    `json:"section"`
	Row       int        `json:"row"`
	Number    int        `json:"number"`
	Grade     Grade      `json:"grade"`
	Price     int64      `json:"price"`
	Status    SeatStatus `json:"status"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Available reports whether the seat can still be booked.
func (s Seat) Available() bool { return s.Status == SeatAvailable }

// Label renders the seat position as "A-3-2".
func (s Seat) Label() string { return SeatLabel(s.Section, s.Row, s.Number) }

// SeatLabel formats a seat position as section-row-number.
func SeatLabel(section Section, row, number int) string {
	return fmt.Sprintf("%s-%d-%d", section, row, number)
}

// SeatLess orders seats by section, then row, then number.
func SeatLess(aSec Section, aRow, aNum int, bSec Section, bRow, bNum int) bool {
	if aSec != bSec {
		return aSec < bSec
	}
	if aRow != bRow {
		return aRow < bRow
	}
	return aNum < bNum
}

// SortSeats sorts seats in place by section, row and number.
func SortSeats(seats []Seat) {
	sort.SliceStable(seats, func(i, j int) bool {
		a, b := seats[i], seats[j]
		return SeatLess(a.Section, a.Row, a.Number, b.Section, b.Row, b.Number)
	})
}
