package seatselect

import (
	"maps"
	"slices"
	"time"

	"github.com/iliyamo/concert-seat-booking/internal/model"
)

// Action is the closed set of state transitions.
type Action interface{ isAction() }

type (
	LoadRequest struct{}
	LoadSuccess struct {
		Seats []model.Seat
		At    time.Time
	}
	LoadFailure struct{ Err *ErrorState }

	// SetConcert switches the session to another concert; seats and
	// selection are dropped when the id changes.
	SetConcert struct {
		ConcertID string
		Info      *ConcertInfo
	}

	// Select adds a seat.  A non-zero Attempt marks it pending until a
	// Confirm or Reject with the same attempt arrives.
	Select struct {
		SeatID  string
		At      time.Time
		Attempt uint64
	}
	Deselect struct{ SeatID string }
	Toggle   struct {
		SeatID  string
		At      time.Time
		Attempt uint64
	}
	ClearSelection struct{}

	UpdateSeatStatus struct {
		SeatID string
		Status model.SeatStatus
		At     time.Time
	}
	BatchUpdateSeats struct {
		Updates map[string]model.SeatStatus
		At      time.Time
	}
	// Sync merges a server snapshot by id.  Seats unknown locally are
	// ignored and the selection is never touched.
	Sync struct {
		Seats []model.Seat
		At    time.Time
	}

	SetHover   struct{ SeatID string }
	SetError   struct{ Err *ErrorState }
	ClearError struct{}
	SetLoading struct{ Loading bool }

	// Confirm resolves a pending select as accepted.
	Confirm struct {
		SeatID  string
		Attempt uint64
	}
	// Reject rolls a pending select back and records Err.  With
	// MarkReserved the seat is also shown as reserved.  A Reject whose
	// attempt no longer matches the selection is ignored.
	Reject struct {
		SeatID       string
		Attempt      uint64
		Err          *ErrorState
		MarkReserved bool
	}
)

func (LoadRequest) isAction()      {}
func (LoadSuccess) isAction()      {}
func (LoadFailure) isAction()      {}
func (SetConcert) isAction()       {}
func (Select) isAction()           {}
func (Deselect) isAction()         {}
func (Toggle) isAction()           {}
func (ClearSelection) isAction()   {}
func (UpdateSeatStatus) isAction() {}
func (BatchUpdateSeats) isAction() {}
func (Sync) isAction()             {}
func (SetHover) isAction()         {}
func (SetError) isAction()         {}
func (ClearError) isAction()       {}
func (SetLoading) isAction()       {}
func (Confirm) isAction()          {}
func (Reject) isAction()           {}

// Reduce applies a to s and returns the next state.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case LoadRequest:
		s.Loading = true
		s.Err = nil
	case LoadSuccess:
		s.Seats = slices.Clone(a.Seats)
		s.Loading = false
		s.Err = nil
		s.LastSync = a.At
	case LoadFailure:
		s.Loading = false
		s.Err = a.Err
	case SetConcert:
		if a.ConcertID != "" && a.ConcertID != s.ConcertID {
			s = NewState(a.ConcertID, s.MaxSeats)
		}
		s.Concert = a.Info

	case Select:
		return selectSeat(s, a)
	case Deselect:
		return deselectSeat(s, a.SeatID)
	case Toggle:
		if s.selectedIndex(a.SeatID) >= 0 {
			return deselectSeat(s, a.SeatID)
		}
		return selectSeat(s, Select{SeatID: a.SeatID, At: a.At, Attempt: a.Attempt})
	case ClearSelection:
		s.Selected = nil
		s.Total = 0
		s.Pending = nil

	case UpdateSeatStatus:
		if i := s.seatIndex(a.SeatID); i >= 0 {
			s.Seats = slices.Clone(s.Seats)
			s.Seats[i].Status = a.Status
		}
		s.LastSync = a.At
	case BatchUpdateSeats:
		s.Seats = slices.Clone(s.Seats)
		for i := range s.Seats {
			if st, ok := a.Updates[s.Seats[i].ID]; ok {
				s.Seats[i].Status = st
			}
		}
		s.LastSync = a.At
	case Sync:
		fresh := make(map[string]model.Seat, len(a.Seats))
		for _, st := range a.Seats {
			fresh[st.ID] = st
		}
		s.Seats = slices.Clone(s.Seats)
		for i := range s.Seats {
			if st, ok := fresh[s.Seats[i].ID]; ok {
				s.Seats[i] = st
			}
		}
		s.LastSync = a.At

	case SetHover:
		s.Hovered = a.SeatID
	case SetError:
		s.Err = a.Err
	case ClearError:
		s.Err = nil
	case SetLoading:
		s.Loading = a.Loading

	case Confirm:
		if s.Pending[a.SeatID] == a.Attempt {
			s.Pending = withoutPending(s.Pending, a.SeatID)
		}
	case Reject:
		i := s.selectedIndex(a.SeatID)
		if i < 0 || s.Selected[i].Attempt != a.Attempt {
			return s
		}
		s = deselectSeat(s, a.SeatID)
		s.Err = a.Err
		if a.MarkReserved {
			s = Reduce(s, UpdateSeatStatus{SeatID: a.SeatID, Status: model.SeatReserved, At: s.LastSync})
		}
	}
	return s
}

func selectSeat(s State, a Select) State {
	seat, ok := s.SeatByID(a.SeatID)
	if !ok || !seat.Available() || s.selectedIndex(a.SeatID) >= 0 {
		return s
	}
	if len(s.Selected) >= s.MaxSeats {
		s.Err = maxSeatsError(s.MaxSeats)
		return s
	}
	s.Selected = append(slices.Clone(s.Selected), SelectedSeat{
		SeatID:     seat.ID,
		Section:    seat.Section,
		Row:        seat.Row,
		Number:     seat.Number,
		Grade:      seat.Grade,
		Price:      seat.Price,
		SelectedAt: a.At,
		Attempt:    a.Attempt,
	})
	s.Total += seat.Price
	s.Err = nil
	if a.Attempt != 0 {
		s.Pending = maps.Clone(s.Pending)
		if s.Pending == nil {
			s.Pending = make(map[string]uint64, 1)
		}
		s.Pending[seat.ID] = a.Attempt
	}
	return s
}

func deselectSeat(s State, id string) State {
	i := s.selectedIndex(id)
	if i < 0 {
		return s
	}
	s.Total -= s.Selected[i].Price
	s.Selected = slices.Delete(slices.Clone(s.Selected), i, i+1)
	s.Pending = withoutPending(s.Pending, id)
	return s
}

func withoutPending(p map[string]uint64, id string) map[string]uint64 {
	if _, ok := p[id]; !ok {
		return p
	}
	p = maps.Clone(p)
	delete(p, id)
	return p
}
