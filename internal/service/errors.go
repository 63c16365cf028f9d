package service

import (
	"fmt"
	"net/http"
)

// Error codes returned to clients.  They are part of the HTTP contract.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeConcertNotFound   = "CONCERT_NOT_FOUND"
	CodeConcertExpired    = "CONCERT_EXPIRED"
	CodeConcertFetch      = "CONCERT_FETCH_ERROR"
	CodeInvalidSelection  = "INVALID_SEAT_SELECTION"
	CodeSeatReserved      = "SEAT_ALREADY_RESERVED"
	CodeDuplicateBooking  = "DUPLICATE_BOOKING"
	CodeCredentialProcess = "CREDENTIAL_PROCESSING_ERROR"
	CodeTransactionFailed = "TRANSACTION_FAILED"
	CodeBookingNotFound   = "BOOKING_NOT_FOUND"
	CodeBookingFetch      = "BOOKING_FETCH_ERROR"
	CodeInvalidCreds      = "INVALID_CREDENTIALS"
	CodeTooManyAttempts   = "TOO_MANY_ATTEMPTS"

	CodeSeatNotFound       = "SEAT_NOT_FOUND"
	CodeSeatFetch          = "SEAT_FETCH_ERROR"
	CodeSeatValidation     = "SEAT_VALIDATION_ERROR"
	CodeSeatInvalidConcert = "SEAT_INVALID_CONCERT"
	CodeSeatMaxExceeded    = "SEAT_MAX_SEATS_EXCEEDED"
)

// MaxSeatsPerBooking bounds every seat list the service accepts.
const MaxSeatsPerBooking = 4

// Error is a failure with an HTTP status and a machine-readable code.
// Details, when set, is serialized next to the message (for example the
// unavailable seat ids of a conflict).
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(status int, code, msg string) *Error {
	return &Error{Status: status, Code: code, Message: msg}
}

func internalError(code, msg string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: code, Message: msg, Err: err}
}
