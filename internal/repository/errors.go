package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrConcertNotFound is returned when a concert id has no row.
	ErrConcertNotFound = errors.New("concert not found")
	// ErrBookingNotFound is returned when a booking id has no row.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrSeatsUnavailable means the conditional reservation did not flip
	// every requested seat.  Callers get a *SeatConflictError that wraps it.
	ErrSeatsUnavailable = errors.New("seats unavailable")
	// ErrDuplicateBooking means the phone already holds a confirmed
	// booking for the concert.
	ErrDuplicateBooking = errors.New("duplicate booking")
)

// SeatConflictError lists the seats that were no longer available when a
// reservation was attempted.
type SeatConflictError struct {
	SeatIDs []string
}

func (e *SeatConflictError) Error() string {
	return "seats unavailable: " + strings.Join(e.SeatIDs, ",")
}

func (e *SeatConflictError) Unwrap() error { return ErrSeatsUnavailable }

// MySQL server error numbers the repositories react to.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

// isDuplicateKey reports whether err is a duplicate-entry violation of the
// named unique index.  An empty index matches any duplicate.
func isDuplicateKey(err error, index string) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != errDupEntry {
		return false
	}
	return index == "" || strings.Contains(me.Message, index)
}

// isLockContention reports deadlocks and lock wait timeouts.  Both mean a
// concurrent transaction touched the same seats.
func isLockContention(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == errDeadlock || me.Number == errLockWaitTimeout
}
