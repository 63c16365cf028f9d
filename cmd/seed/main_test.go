package main

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/iliyamo/concert-seat-booking/internal/model"
)

var prices = map[model.Grade]int64{
	model.GradeSpecial:  250000,
	model.GradePremium:  190000,
	model.GradeAdvanced: 170000,
	model.GradeRegular:  140000,
}

func TestBuildSeatsGrid(t *testing.T) {
	seats, err := buildSeats("c1", prices)
	if err != nil {
		t.Fatal(err)
	}
	if len(seats) != 320 {
		t.Fatalf("len = %d, want 320", len(seats))
	}

	ids := map[string]bool{}
	perGrade := map[model.Grade]int{}
	for _, s := range seats {
		if ids[s.ID] {
			t.Fatalf("duplicate id %s", s.ID)
		}
		ids[s.ID] = true
		perGrade[s.Grade]++
		if s.Price != prices[s.Grade] || !s.Available() || s.ConcertID != "c1" {
			t.Fatalf("bad seat %+v", s)
		}
	}
	// rows per grade (3, 4, 8, 5) times 4 sections times 4 seats
	want := map[model.Grade]int{
		model.GradeSpecial:  48,
		model.GradePremium:  64,
		model.GradeAdvanced: 128,
		model.GradeRegular:  80,
	}
	for g, n := range want {
		if perGrade[g] != n {
			t.Errorf("%s: %d seats, want %d", g, perGrade[g], n)
		}
	}
}

func TestBuildSeatsRejectsMissingPrice(t *testing.T) {
	if _, err := buildSeats("c1", map[model.Grade]int64{model.GradeSpecial: 1}); err == nil {
		t.Fatal("expected error")
	}
}

func TestConcertDate(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	c, err := options{title: "x"}.concert(now)
	if err != nil || !c.Date.Equal(now.AddDate(0, 0, 30)) || c.PosterImage != nil {
		t.Fatalf("default concert = %+v, %v", c, err)
	}
	if _, err := (options{date: "tomorrow"}).concert(now); err == nil {
		t.Fatal("bad date accepted")
	}
	c, _ = options{date: "2026-12-24T19:30:00+09:00", poster: "p.jpg"}.concert(now)
	if c.Date.Hour() != 10 || *c.PosterImage != "p.jpg" {
		t.Fatalf("concert = %+v", c)
	}
}

func TestInsertRollsBackOnSeatFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	seats, _ := buildSeats("c1", prices)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO concerts").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO seats").WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err = insert(context.Background(), db, &model.Concert{ID: "c1", Title: "x", Date: time.Now()}, seats)
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
