// Package seatselect is the client side of seat selection: a pure reducer
// over an immutable State, a Session that drives it against the API with
// optimistic selection, and a Poller that keeps the seat map fresh.
package seatselect

import (
	"fmt"
	"net/http"
	"time"

	"github.com/iliyamo/concert-seat-booking/internal/apiclient"
	"github.com/iliyamo/concert-seat-booking/internal/model"
)

// DefaultMaxSeats is the per-booking seat limit.
const DefaultMaxSeats = 4

// ErrorKind classifies what went wrong in a session.
type ErrorKind string

const (
	KindNetwork         ErrorKind = "NETWORK"
	KindMaxSeats        ErrorKind = "MAX_SEATS"
	KindAlreadyReserved ErrorKind = "ALREADY_RESERVED"
	KindSessionExpired  ErrorKind = "SESSION_EXPIRED"
	KindInvalidConcert  ErrorKind = "INVALID_CONCERT"
	KindNoSelection     ErrorKind = "NO_SELECTION"
	KindNotReady        ErrorKind = "NOT_READY"
	KindRejected        ErrorKind = "REJECTED"
)

// ErrorState is the single error slot of a session.  Retryable tells the
// caller whether repeating the same action may succeed.
type ErrorState struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
}

func (e *ErrorState) Error() string { return string(e.Kind) + ": " + e.Message }

func networkError(msg string) *ErrorState {
	return &ErrorState{Kind: KindNetwork, Message: msg, Retryable: true}
}

func maxSeatsError(max int) *ErrorState {
	return &ErrorState{Kind: KindMaxSeats, Message: fmt.Sprintf("at most %d seats can be selected", max)}
}

func alreadyReservedError(msg string) *ErrorState {
	return &ErrorState{Kind: KindAlreadyReserved, Message: msg}
}

func sessionExpiredError() *ErrorState {
	return &ErrorState{Kind: KindSessionExpired, Message: "the selection has expired, select seats again"}
}

func invalidConcertError() *ErrorState {
	return &ErrorState{Kind: KindInvalidConcert, Message: "this concert does not exist"}
}

func noSelectionError() *ErrorState {
	return &ErrorState{Kind: KindNoSelection, Message: "select at least one seat"}
}

func notReadyError(msg string) *ErrorState {
	return &ErrorState{Kind: KindNotReady, Message: msg, Retryable: true}
}

// serverError carries a refusal from the API into the error slot.  Rate
// limits and server faults may be retried; anything else needs the user
// to change something first.
func serverError(ae *apiclient.Error) *ErrorState {
	msg := ae.Message
	if msg == "" {
		msg = ae.Code
	}
	return &ErrorState{
		Kind:      KindRejected,
		Message:   msg,
		Retryable: ae.Status == http.StatusTooManyRequests || ae.Status >= http.StatusInternalServerError,
	}
}

// SelectedSeat is a seat in the selection.  Attempt identifies the
// optimistic select that added it; zero means no confirmation is tracked.
type SelectedSeat struct {
	SeatID     string
	Section    model.Section
	Row        int
	Number     int
	Grade      model.Grade
	Price      int64
	SelectedAt time.Time
	Attempt    uint64
}

// ConcertInfo is the header data shown above the seat map.
type ConcertInfo struct {
	Title  string
	Artist string
	Venue  string
	Date   time.Time
}

// State is one snapshot of a selection session.  Reduce never mutates a
// State it is given; slices and maps are copied before being changed.
type State struct {
	ConcertID string
	Concert   *ConcertInfo
	Seats     []model.Seat
	Selected  []SelectedSeat
	Total     int64
	Loading   bool
	Err       *ErrorState
	Hovered   string
	MaxSeats  int
	LastSync  time.Time

	// Pending maps a seat id to the attempt awaiting confirmation.
	Pending map[string]uint64
}

// NewState returns the empty state of a session on concertID.  maxSeats
// below one falls back to DefaultMaxSeats.
func NewState(concertID string, maxSeats int) State {
	if maxSeats < 1 {
		maxSeats = DefaultMaxSeats
	}
	return State{ConcertID: concertID, MaxSeats: maxSeats}
}

func (s State) seatIndex(id string) int {
	for i := range s.Seats {
		if s.Seats[i].ID == id {
			return i
		}
	}
	return -1
}

func (s State) selectedIndex(id string) int {
	for i := range s.Selected {
		if s.Selected[i].SeatID == id {
			return i
		}
	}
	return -1
}

// SeatByID returns the seat with id from the current snapshot.
func (s State) SeatByID(id string) (model.Seat, bool) {
	if i := s.seatIndex(id); i >= 0 {
		return s.Seats[i], true
	}
	return model.Seat{}, false
}

// SelectedIDs returns the selection in the order it was made.
func (s State) SelectedIDs() []string {
	ids := make([]string, len(s.Selected))
	for i, sel := range s.Selected {
		ids[i] = sel.SeatID
	}
	return ids
}
