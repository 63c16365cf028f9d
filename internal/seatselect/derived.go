package seatselect

import "github.com/iliyamo/concert-seat-booking/internal/model"

// IsReserveEnabled reports whether Proceed may run: something is selected,
// within the limit, and no load is in flight.
func (s State) IsReserveEnabled() bool {
	n := len(s.Selected)
	return n > 0 && n <= s.MaxSeats && !s.Loading
}

func (s State) CanSelectMore() bool { return len(s.Selected) < s.MaxSeats }

func (s State) SelectedCount() int { return len(s.Selected) }

// AvailableCount counts seats shown as available, selected ones included.
func (s State) AvailableCount() int {
	n := 0
	for _, st := range s.Seats {
		if st.Available() {
			n++
		}
	}
	return n
}

// SeatsBySection groups the seat map by section, each group ordered by row
// and number.
func (s State) SeatsBySection() map[model.Section][]model.Seat {
	out := make(map[model.Section][]model.Seat, len(model.Sections))
	for _, st := range s.Seats {
		out[st.Section] = append(out[st.Section], st)
	}
	for _, group := range out {
		model.SortSeats(group)
	}
	return out
}

// PriceByGrade returns the price of each grade present in the seat map.
func (s State) PriceByGrade() map[model.Grade]int64 {
	out := make(map[model.Grade]int64, len(model.Grades))
	for _, st := range s.Seats {
		if _, ok := out[st.Grade]; !ok {
			out[st.Grade] = st.Price
		}
	}
	return out
}

// Label renders a seat as "A-3-2".
func Label(seat model.Seat) string { return seat.Label() }

func (s State) IsSelected(id string) bool { return s.selectedIndex(id) >= 0 }

// CanSelect reports whether selecting id would be accepted right now.
func (s State) CanSelect(id string) bool {
	seat, ok := s.SeatByID(id)
	return ok && seat.Available() && !s.IsSelected(id) && s.CanSelectMore()
}

// IsPending reports whether id is selected but not yet confirmed by the
// server.
func (s State) IsPending(id string) bool {
	_, ok := s.Pending[id]
	return ok
}
