package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-seat-booking/internal/model"
)

func TestCheckAvailability(t *testing.T) {
	st := newMemStore()
	c := st.addConcert("Summer Night", base.Add(time.Hour))
	free := st.addSeat(c.ID, model.SectionA, 1, 1, 100)
	taken := st.addSeat(c.ID, model.SectionA, 1, 2, 100)
	taken.Status = model.SeatReserved
	st.seats[taken.ID] = taken
	svc := NewSeatService(st, st)
	ctx := context.Background()

	t.Run("all available", func(t *testing.T) {
		res, err := svc.CheckAvailability(ctx, c.ID, []string{free.ID})
		if err != nil || !res.Available || len(res.UnavailableSeats) != 0 {
			t.Fatalf("res = %+v, err = %v", res, err)
		}
	})
	t.Run("one taken", func(t *testing.T) {
		res, err := svc.CheckAvailability(ctx, c.ID, []string{free.ID, taken.ID})
		if err != nil {
			t.Fatal(err)
		}
		if res.Available || len(res.UnavailableSeats) != 1 || res.UnavailableSeats[0] != taken.ID {
			t.Fatalf("res = %+v", res)
		}
	})

	errCases := []struct {
		name    string
		concert string
		seats   []string
		status  int
		code    string
	}{
		{"too many seats", c.ID, []string{"a", "b", "c", "d", "e"}, http.StatusBadRequest, CodeSeatMaxExceeded},
		{"empty list", c.ID, nil, http.StatusBadRequest, CodeSeatValidation},
		{"bad concert id", "concert-1", []string{free.ID}, http.StatusBadRequest, CodeSeatInvalidConcert},
		{"missing concert", uuid.NewString(), []string{free.ID}, http.StatusNotFound, CodeSeatInvalidConcert},
		{"no seats found", c.ID, []string{uuid.NewString()}, http.StatusNotFound, CodeSeatNotFound},
		{"partial lookup", c.ID, []string{free.ID, uuid.NewString()}, http.StatusNotFound, CodeSeatNotFound},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.CheckAvailability(ctx, tt.concert, tt.seats)
			if res != nil {
				t.Fatalf("partial result returned: %+v", res)
			}
			wantCode(t, err, tt.status, tt.code)
		})
	}
}

func TestCheckAvailabilityDoesNotModify(t *testing.T) {
	st := newMemStore()
	c := st.addConcert("Summer Night", base.Add(time.Hour))
	s := st.addSeat(c.ID, model.SectionA, 1, 1, 100)
	svc := NewSeatService(st, st)
	for i := 0; i < 3; i++ {
		if _, err := svc.CheckAvailability(context.Background(), c.ID, []string{s.ID}); err != nil {
			t.Fatal(err)
		}
	}
	if st.seat(s.ID).Status != model.SeatAvailable {
		t.Fatal("availability check changed seat status")
	}
}

func TestListSeatsSorted(t *testing.T) {
	st := newMemStore()
	c := st.addConcert("Summer Night", base.Add(time.Hour))
	st.addSeat(c.ID, model.SectionB, 1, 1, 100)
	st.addSeat(c.ID, model.SectionA, 2, 1, 100)
	st.addSeat(c.ID, model.SectionA, 1, 4, 100)
	empty := st.addConcert("No Seats", base.Add(time.Hour))
	svc := NewSeatService(st, st)

	seats, err := svc.ListSeats(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	var labels []string
	for _, s := range seats {
		labels = append(labels, s.Label())
	}
	want := []string{"A-1-4", "A-2-1", "B-1-1"}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
	}

	_, err = svc.ListSeats(context.Background(), empty.ID)
	wantCode(t, err, http.StatusNotFound, CodeSeatNotFound)

	st.err = errors.New("db down")
	_, err = svc.ListSeats(context.Background(), c.ID)
	wantCode(t, err, http.StatusInternalServerError, CodeSeatFetch)
}

func TestConcertDetailAndList(t *testing.T) {
	st := newMemStore()
	now := base
	soon := st.addConcert("Soon", now.Add(24*time.Hour))
	later := st.addConcert("Later", now.Add(48*time.Hour))
	st.addConcert("Gone", now.Add(-time.Hour))
	poster := "https://cdn.example/poster.jpg"
	l := st.concerts[later.ID]
	l.PosterImage = &poster
	st.concerts[later.ID] = l

	st.addSeat(soon.ID, model.SectionA, 1, 1, 150000)
	st.addSeat(soon.ID, model.SectionA, 1, 2, 150000)
	r := st.addSeat(soon.ID, model.SectionA, 16, 1, 90000)
	r.Status = model.SeatReserved
	st.seats[r.ID] = r
	st.addSeat(soon.ID, model.SectionA, 17, 1, 90000)
	st.addSeat(soon.ID, model.SectionA, 18, 1, 90000)

	svc := NewConcertService(st)
	svc.now = func() time.Time { return now }

	list, err := svc.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != soon.ID || list[1].ID != later.ID {
		t.Fatalf("list = %+v", list)
	}
	if list[0].PosterImage != "https://picsum.photos/seed/"+soon.ID+"/400/600" {
		t.Errorf("fallback poster = %q", list[0].PosterImage)
	}
	if list[1].PosterImage != poster {
		t.Errorf("poster = %q", list[1].PosterImage)
	}
	if list[0].TotalSeats != 5 || list[0].AvailableSeats != 4 {
		t.Errorf("counts = %d/%d", list[0].AvailableSeats, list[0].TotalSeats)
	}

	d, err := svc.Detail(context.Background(), soon.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Grades) != 2 || d.Grades[0].Grade != model.GradeSpecial || d.Grades[1].Grade != model.GradeRegular {
		t.Fatalf("grades = %+v", d.Grades)
	}
	if d.Grades[1].AvailabilityRate != 66.67 || d.Grades[1].Price != 90000 {
		t.Errorf("regular grade = %+v", d.Grades[1])
	}
	if d.TotalSeats != 5 || d.AvailableSeats != 4 {
		t.Errorf("detail counts = %d/%d", d.AvailableSeats, d.TotalSeats)
	}

	_, err = svc.Detail(context.Background(), uuid.NewString())
	wantCode(t, err, http.StatusNotFound, CodeConcertNotFound)
	_, err = svc.Detail(context.Background(), "nope")
	wantCode(t, err, http.StatusBadRequest, CodeValidation)
}
