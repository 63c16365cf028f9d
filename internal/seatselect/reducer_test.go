package seatselect

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/iliyamo/concert-seat-booking/internal/model"
)

var t0 = time.Date(2026, 10, 1, 19, 0, 0, 0, time.UTC)

// grid builds rows 1..rows of section A, four seats each, priced by grade.
func grid(rows int) []model.Seat {
	prices := map[model.Grade]int64{
		model.GradeSpecial: 250000, model.GradePremium: 190000,
		model.GradeAdvanced: 170000, model.GradeRegular: 140000,
	}
	var out []model.Seat
	for r := 1; r <= rows; r++ {
		g, _ := model.GradeForRow(r)
		for n := 1; n <= model.SeatsPerRow; n++ {
			out = append(out, model.Seat{
				ID:        fmt.Sprintf("A-%d-%d", r, n),
				ConcertID: "c1",
				Section:   model.SectionA,
				Row:       r,
				Number:    n,
				Grade:     g,
				Price:     prices[g],
				Status:    model.SeatAvailable,
			})
		}
	}
	return out
}

func loaded(rows int) State {
	return Reduce(NewState("c1", DefaultMaxSeats), LoadSuccess{Seats: grid(rows), At: t0})
}

func sumSelected(s State) int64 {
	var total int64
	for _, sel := range s.Selected {
		total += sel.Price
	}
	return total
}

func TestTotalMatchesSelectionUnderRandomActions(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := loaded(8)
	ids := make([]string, len(s.Seats))
	for i, st := range s.Seats {
		ids[i] = st.ID
	}
	var attempt uint64

	for step := 0; step < 5000; step++ {
		id := ids[rng.Intn(len(ids))]
		var a Action
		switch rng.Intn(8) {
		case 0, 1:
			attempt++
			a = Select{SeatID: id, At: t0, Attempt: attempt}
		case 2:
			a = Deselect{SeatID: id}
		case 3:
			attempt++
			a = Toggle{SeatID: id, At: t0, Attempt: attempt}
		case 4:
			a = Reject{SeatID: id, Attempt: uint64(rng.Intn(int(attempt) + 1)), Err: networkError("x"), MarkReserved: rng.Intn(2) == 0}
		case 5:
			a = Confirm{SeatID: id, Attempt: uint64(rng.Intn(int(attempt) + 1))}
		case 6:
			st := model.SeatAvailable
			if rng.Intn(4) == 0 {
				st = model.SeatReserved
			}
			a = Sync{Seats: []model.Seat{{ID: id, Section: model.SectionA, Price: 1, Status: st}}, At: t0}
		default:
			if rng.Intn(10) == 0 {
				a = ClearSelection{}
			} else {
				a = SetHover{SeatID: id}
			}
		}
		s = Reduce(s, a)

		if got := sumSelected(s); got != s.Total {
			t.Fatalf("step %d after %T: total %d, selected sum %d", step, a, s.Total, got)
		}
		if len(s.Selected) > s.MaxSeats {
			t.Fatalf("step %d: %d seats selected", step, len(s.Selected))
		}
		seen := map[string]bool{}
		for _, sel := range s.Selected {
			if seen[sel.SeatID] {
				t.Fatalf("step %d: %s selected twice", step, sel.SeatID)
			}
			seen[sel.SeatID] = true
		}
		for id := range s.Pending {
			if !seen[id] {
				t.Fatalf("step %d: pending %s is not selected", step, id)
			}
		}
	}
}

func TestSelectRules(t *testing.T) {
	s := loaded(2)
	for i, id := range []string{"A-1-1", "A-1-2", "A-1-3", "A-1-4"} {
		s = Reduce(s, Select{SeatID: id, At: t0, Attempt: uint64(i + 1)})
	}
	if s.SelectedCount() != 4 || s.Total != 4*250000 || s.CanSelectMore() {
		t.Fatalf("after four: count %d total %d", s.SelectedCount(), s.Total)
	}

	before := s
	s = Reduce(s, Select{SeatID: "A-2-1", At: t0, Attempt: 5})
	if s.Err == nil || s.Err.Kind != KindMaxSeats || s.Err.Retryable {
		t.Fatalf("fifth seat error = %+v", s.Err)
	}
	if s.SelectedCount() != 4 || s.Total != before.Total || s.IsPending("A-2-1") {
		t.Fatal("fifth seat changed the selection")
	}

	s = Reduce(s, Deselect{SeatID: "A-1-2"})
	s = Reduce(s, Select{SeatID: "A-2-1", At: t0, Attempt: 6})
	if s.Err != nil || !s.IsSelected("A-2-1") || s.Total != 3*250000+250000 {
		t.Fatalf("select after deselect: err %v total %d", s.Err, s.Total)
	}

	unchanged := Reduce(s, Select{SeatID: "nope", At: t0})
	if unchanged.Total != s.Total || unchanged.SelectedCount() != s.SelectedCount() {
		t.Fatal("unknown seat selected")
	}
}

func TestReservedSeatCannotBeSelected(t *testing.T) {
	s := loaded(1)
	s = Reduce(s, UpdateSeatStatus{SeatID: "A-1-1", Status: model.SeatReserved, At: t0})
	if s.CanSelect("A-1-1") {
		t.Fatal("CanSelect on reserved seat")
	}
	s = Reduce(s, Select{SeatID: "A-1-1", At: t0, Attempt: 1})
	if s.IsSelected("A-1-1") || s.Err != nil {
		t.Fatalf("reserved seat: selected=%v err=%v", s.IsSelected("A-1-1"), s.Err)
	}
}

func TestRejectAppliesOnlyToItsAttempt(t *testing.T) {
	s := loaded(1)
	s = Reduce(s, Select{SeatID: "A-1-1", At: t0, Attempt: 1})
	s = Reduce(s, Deselect{SeatID: "A-1-1"})
	s = Reduce(s, Select{SeatID: "A-1-1", At: t0, Attempt: 2})

	stale := Reduce(s, Reject{SeatID: "A-1-1", Attempt: 1, Err: alreadyReservedError("x"), MarkReserved: true})
	if !stale.IsSelected("A-1-1") || stale.Err != nil {
		t.Fatal("stale reject rolled back a newer selection")
	}
	if st, _ := stale.SeatByID("A-1-1"); !st.Available() {
		t.Fatal("stale reject marked the seat reserved")
	}

	s = Reduce(s, Reject{SeatID: "A-1-1", Attempt: 2, Err: alreadyReservedError("taken"), MarkReserved: true})
	if s.IsSelected("A-1-1") || s.Total != 0 || s.IsPending("A-1-1") {
		t.Fatal("reject did not roll back")
	}
	if s.Err == nil || s.Err.Kind != KindAlreadyReserved {
		t.Fatalf("err = %v", s.Err)
	}
	if st, _ := s.SeatByID("A-1-1"); st.Status != model.SeatReserved {
		t.Fatal("seat not marked reserved")
	}
}

func TestConfirmClearsPending(t *testing.T) {
	s := loaded(1)
	s = Reduce(s, Select{SeatID: "A-1-1", At: t0, Attempt: 7})
	if !s.IsPending("A-1-1") {
		t.Fatal("not pending")
	}
	if s2 := Reduce(s, Confirm{SeatID: "A-1-1", Attempt: 6}); !s2.IsPending("A-1-1") {
		t.Fatal("wrong attempt confirmed")
	}
	s = Reduce(s, Confirm{SeatID: "A-1-1", Attempt: 7})
	if s.IsPending("A-1-1") || !s.IsSelected("A-1-1") {
		t.Fatal("confirm did not settle the seat")
	}
}

func TestSyncMergesWithoutTouchingSelection(t *testing.T) {
	s := loaded(1)
	s = Reduce(s, Select{SeatID: "A-1-1", At: t0})
	later := t0.Add(time.Minute)
	s = Reduce(s, Sync{At: later, Seats: []model.Seat{
		{ID: "A-1-1", Section: model.SectionA, Row: 1, Number: 1, Price: 250000, Status: model.SeatReserved},
		{ID: "A-1-2", Section: model.SectionA, Row: 1, Number: 2, Price: 250000, Status: model.SeatReserved},
		{ID: "Z-9-9", Status: model.SeatAvailable},
	}})
	if !s.IsSelected("A-1-1") || s.Total != 250000 {
		t.Fatal("sync changed the selection")
	}
	if len(s.Seats) != 4 || s.AvailableCount() != 2 {
		t.Fatalf("seats %d available %d", len(s.Seats), s.AvailableCount())
	}
	if !s.LastSync.Equal(later) {
		t.Fatal("last sync not updated")
	}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	s := loaded(1)
	s = Reduce(s, Select{SeatID: "A-1-1", At: t0, Attempt: 1})
	snapshot := s

	_ = Reduce(s, Select{SeatID: "A-1-2", At: t0, Attempt: 2})
	_ = Reduce(s, UpdateSeatStatus{SeatID: "A-1-3", Status: model.SeatReserved, At: t0})
	_ = Reduce(s, Reject{SeatID: "A-1-1", Attempt: 1, Err: networkError("x")})

	if len(snapshot.Selected) != 1 || !snapshot.IsPending("A-1-1") || snapshot.Seats[2].Status != model.SeatAvailable {
		t.Fatal("input state mutated")
	}
}

func TestDerivedValues(t *testing.T) {
	s := loaded(4)
	s = Reduce(s, SetLoading{Loading: true})
	s = Reduce(s, Select{SeatID: "A-4-1", At: t0})
	if s.IsReserveEnabled() {
		t.Fatal("reserve enabled while loading")
	}
	s = Reduce(s, SetLoading{Loading: false})
	if !s.IsReserveEnabled() {
		t.Fatal("reserve disabled with a selection")
	}

	prices := s.PriceByGrade()
	if prices[model.GradeSpecial] != 250000 || prices[model.GradePremium] != 190000 || len(prices) != 2 {
		t.Fatalf("prices = %v", prices)
	}
	by := s.SeatsBySection()
	if len(by[model.SectionA]) != 16 || by[model.SectionA][0].ID != "A-1-1" {
		t.Fatalf("sections = %v", by)
	}
	if Label(by[model.SectionA][5]) != "A-2-2" {
		t.Fatalf("label = %s", Label(by[model.SectionA][5]))
	}
}

func TestSetConcertResetsOnNewID(t *testing.T) {
	s := loaded(1)
	s = Reduce(s, Select{SeatID: "A-1-1", At: t0})
	s = Reduce(s, SetConcert{ConcertID: "c1", Info: &ConcertInfo{Title: "Night Show"}})
	if !s.IsSelected("A-1-1") || s.Concert.Title != "Night Show" {
		t.Fatal("same concert lost state")
	}
	s = Reduce(s, SetConcert{ConcertID: "c2"})
	if s.ConcertID != "c2" || len(s.Seats) != 0 || s.Total != 0 || s.MaxSeats != DefaultMaxSeats {
		t.Fatalf("state after switch = %+v", s)
	}
}
